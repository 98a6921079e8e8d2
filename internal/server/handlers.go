package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/claude/liftlog/internal/catalog"
	"github.com/claude/liftlog/internal/display"
	"github.com/claude/liftlog/internal/grouping"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	defaultSessionLimit = 20
	maxSessionLimit     = 200
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	info := userInfoFromContext(r)
	if err := s.db.TouchUser(r.Context(), info.Login, info.DisplayName); err != nil {
		s.log.Warn("touch user failed", "login", info.Login, "error", err)
	}
	writeJSON(w, http.StatusOK, models.User{
		Login:       info.Login,
		DisplayName: info.DisplayName,
		Pro:         s.pro[info.Login],

		DraftDebounceMs: s.debounce.Milliseconds(),
	})
}

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	records, err := s.exerciseRecords(r)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if r.URL.Query().Get("grouped") == "true" {
		writeJSON(w, http.StatusOK, catalog.New(records, s.system).Options())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// exerciseRecords lists the exercises visible to the caller.
func (s *Server) exerciseRecords(r *http.Request) ([]catalog.Record, error) {
	rows, err := s.db.ListExercises(r.Context(), Login(r), s.system)
	if err != nil {
		return nil, err
	}
	records := make([]catalog.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, catalog.Record{
			ID:          row.ID.String(),
			Name:        row.Name,
			MuscleGroup: row.MuscleGroup,
			OwnerUserID: row.OwnerUserID,
		})
	}
	return records, nil
}

func (s *Server) catalogFor(r *http.Request) (*catalog.Catalog, error) {
	records, err := s.exerciseRecords(r)
	if err != nil {
		return nil, err
	}
	return catalog.New(records, s.system), nil
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req models.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	login := Login(r)
	var templateID *uuid.UUID
	if req.TemplateID != "" {
		id, err := uuid.Parse(req.TemplateID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid template ID"})
			return
		}
		if _, err := s.db.GetTemplate(r.Context(), id, login); err != nil {
			s.writeStoreError(w, err, "template not found")
			return
		}
		templateID = &id
	}

	session, err := s.db.StartSession(r.Context(), login, templateID)
	if err != nil {
		s.log.Error("start session failed", "login", login, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultSessionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxSessionLimit)
	}

	sessions, err := s.db.ListSessions(r.Context(), Login(r), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if sessions == nil {
		sessions = []models.SessionRow{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// sessionView is the response of GET /api/v1/sessions/{id}.
type sessionView struct {
	Session  models.SessionRow  `json:"session"`
	View     display.View       `json:"view"`
	Warnings []grouping.Warning `json:"warnings,omitempty"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	items, err := s.db.SessionItems(r.Context(), session.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	cat, err := s.catalogFor(r)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	tree, warnings := s.hydrator.Hydrate(items, cat)
	writeJSON(w, http.StatusOK, sessionView{
		Session:  *session,
		View:     display.Compose(tree),
		Warnings: warnings,
	})
}

func (s *Server) handleSessionSets(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	items, err := s.db.SessionItems(r.Context(), session.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, models.ItemsPayload{Items: items})
}

func (s *Server) handleFinishSession(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "invalid session ID")
	if !ok {
		return
	}
	var payload models.ItemsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	cat, err := s.catalogFor(r)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	login := Login(r)
	if err := checkGrouping(payload.Items); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	items, skipped := loggedSets(payload.Items)
	if err := s.checkAccess(cat, login, items); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	session, err := s.db.FinishSession(r.Context(), id, login, items)
	switch {
	case errors.Is(err, storage.ErrAlreadyFinished):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session already finished"})
		return
	case err != nil:
		s.writeStoreError(w, err, "session not found")
		return
	}

	s.log.Info("session finished", "session_id", id, "login", login, "saved", len(items), "skipped", skipped)
	writeJSON(w, http.StatusOK, models.FinishResponse{Session: session, Saved: len(items), Skipped: skipped})
}

// loggedSets keeps items with positive weight and reps, in position order.
func loggedSets(items []models.FlatItem) ([]models.FlatItem, int) {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b models.FlatItem) int { return a.Position - b.Position })

	kept := make([]models.FlatItem, 0, len(sorted))
	for _, it := range sorted {
		if it.Weight == nil || it.Reps == nil || !grouping.ValidSet(*it.Weight, *it.Reps) {
			continue
		}
		kept = append(kept, it)
	}
	return kept, len(items) - len(kept)
}

// checkGrouping rejects items whose groupId and groupType are not both
// present or both absent, and unknown group types.
func checkGrouping(items []models.FlatItem) error {
	for i, it := range items {
		if it.GroupType != "" && !it.GroupType.Valid() {
			return fmt.Errorf("item %d: unknown groupType %q", i, it.GroupType)
		}
		if (it.GroupID == "") != (it.GroupType == "") {
			return fmt.Errorf("item %d: groupId and groupType must be set together", i)
		}
	}
	return nil
}

func (s *Server) checkAccess(cat *catalog.Catalog, login string, items []models.FlatItem) error {
	for _, it := range items {
		if _, ok := cat.Lookup(it.ExerciseID); !ok {
			return fmt.Errorf("exercise not found: %s", it.ExerciseID)
		}
		if !cat.Accessible(it.ExerciseID, login) {
			return fmt.Errorf("exercise not accessible: %s", it.ExerciseID)
		}
	}
	return nil
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "invalid session ID")
	if !ok {
		return
	}
	if err := s.db.DeleteSession(r.Context(), id, Login(r)); err != nil {
		s.writeStoreError(w, err, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*models.SessionRow, bool) {
	id, ok := parseID(w, r, "invalid session ID")
	if !ok {
		return nil, false
	}
	session, err := s.db.GetSession(r.Context(), id, Login(r))
	if err != nil {
		s.writeStoreError(w, err, "session not found")
		return nil, false
	}
	return session, true
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.db.ListTemplates(r.Context(), Login(r))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if templates == nil {
		templates = []models.TemplateRow{}
	}
	writeJSON(w, http.StatusOK, templates)
}

// templateView is the response of GET /api/v1/templates/{id}.
type templateView struct {
	Template models.TemplateRow `json:"template"`
	Tree     *models.Tree       `json:"tree"`
	Warnings []grouping.Warning `json:"warnings,omitempty"`
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, items, ok := s.loadTemplate(w, r)
	if !ok {
		return
	}
	cat, err := s.catalogFor(r)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	tree, warnings := s.hydrator.Hydrate(items, cat)
	writeJSON(w, http.StatusOK, templateView{Template: *tmpl, Tree: tree, Warnings: warnings})
}

func (s *Server) handleTemplateItems(w http.ResponseWriter, r *http.Request) {
	_, items, ok := s.loadTemplate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, models.ItemsPayload{Items: items})
}

func (s *Server) loadTemplate(w http.ResponseWriter, r *http.Request) (*models.TemplateRow, []models.FlatItem, bool) {
	id, ok := parseID(w, r, "invalid template ID")
	if !ok {
		return nil, nil, false
	}
	tmpl, err := s.db.GetTemplate(r.Context(), id, Login(r))
	if err != nil {
		s.writeStoreError(w, err, "template not found")
		return nil, nil, false
	}
	items, err := s.db.TemplateItems(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return nil, nil, false
	}
	return tmpl, items, true
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	name, items, ok := s.decodeTemplate(w, r, nil)
	if !ok {
		return
	}
	tmpl, err := s.db.CreateTemplate(r.Context(), Login(r), name, items)
	if err != nil {
		s.log.Error("create template failed", "login", Login(r), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, tmpl)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "invalid template ID")
	if !ok {
		return
	}
	name, items, ok := s.decodeTemplate(w, r, &id)
	if !ok {
		return
	}
	tmpl, err := s.db.UpdateTemplate(r.Context(), id, Login(r), name, items)
	if err != nil {
		s.writeStoreError(w, err, "template not found")
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

// decodeTemplate reads and validates a template body. exclude is the
// template being updated, if any.
func (s *Server) decodeTemplate(w http.ResponseWriter, r *http.Request, exclude *uuid.UUID) (string, []models.FlatItem, bool) {
	var req models.TemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return "", nil, false
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "template name is required"})
		return "", nil, false
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "add at least one exercise"})
		return "", nil, false
	}

	cat, err := s.catalogFor(r)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return "", nil, false
	}
	if err := checkGrouping(req.Items); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return "", nil, false
	}
	login := Login(r)
	if err := s.checkAccess(cat, login, req.Items); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return "", nil, false
	}

	taken, err := s.db.TemplateNameTaken(r.Context(), login, name, exclude)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return "", nil, false
	}
	if taken {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "you already have a template with that name"})
		return "", nil, false
	}

	items := slices.Clone(req.Items)
	slices.SortStableFunc(items, func(a, b models.FlatItem) int { return a.Position - b.Position })
	return name, items, true
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "invalid template ID")
	if !ok {
		return
	}
	if err := s.db.DeleteTemplate(r.Context(), id, Login(r)); err != nil {
		s.writeStoreError(w, err, "template not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseID(w http.ResponseWriter, r *http.Request, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return uuid.Nil, false
	}
	return id, true
}

// writeStoreError maps storage.ErrNotFound to 404 and anything else to 500.
func (s *Server) writeStoreError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": notFound})
		return
	}
	s.log.Error("store error", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
