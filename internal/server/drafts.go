package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/claude/liftlog/internal/draft"
	"github.com/go-chi/chi/v5"
)

const maxDraftBytes = 1 << 20

// draftKey scopes the client's key to the caller.
func draftKey(r *http.Request) string {
	return Login(r) + "/" + chi.URLParam(r, "key")
}

func (s *Server) draftsAvailable(w http.ResponseWriter) bool {
	if s.drafts == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "draft storage not configured"})
		return false
	}
	return true
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	if !s.draftsAvailable(w) {
		return
	}
	data, err := s.drafts.Get(r.Context(), draftKey(r))
	if errors.Is(err, draft.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "draft not found"})
		return
	}
	if err != nil {
		s.log.Error("draft read failed", "key", draftKey(r), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handlePutDraft(w http.ResponseWriter, r *http.Request) {
	if !s.draftsAvailable(w) {
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDraftBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "draft too large"})
		return
	}
	if !json.Valid(data) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "draft must be JSON"})
		return
	}
	if err := s.drafts.Set(r.Context(), draftKey(r), data); err != nil {
		s.log.Error("draft write failed", "key", draftKey(r), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	if !s.draftsAvailable(w) {
		return
	}
	if err := s.drafts.Remove(r.Context(), draftKey(r)); err != nil {
		s.log.Error("draft delete failed", "key", draftKey(r), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
