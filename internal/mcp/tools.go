package mcp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/catalog"
	"github.com/claude/liftlog/internal/display"
	"github.com/claude/liftlog/internal/grouping"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

const maxSessions = 200

// defaultTimeRange returns start/end defaulting to the last 7 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -7)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List the exercises available to the user, grouped into the user's own and built-in exercises, then by muscle group."),
	mcp.WithString("muscle_group", mcp.Description("Only include this muscle group (e.g. CHEST, BACK, LEGS)")),
)

var toolListWorkouts = mcp.NewTool("list_workouts",
	mcp.WithDescription("List workout sessions started in a time range, newest first. Returns status, start/finish times and set counts."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 7 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
)

var toolGetWorkout = mcp.NewTool("get_workout",
	mcp.WithDescription("Get one workout as exercise cards: sets with drop-set rows, superset pairs, and volume/reps/average weight per card."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Workout session ID")),
)

var toolGetWorkoutSets = mcp.NewTool("get_workout_sets",
	mcp.WithDescription("Get the raw set records of a workout in logged order, including drop-set and superset grouping fields."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Workout session ID")),
)

var toolListTemplates = mcp.NewTool("list_templates",
	mcp.WithDescription("List the user's workout templates."),
)

var toolGetTemplate = mcp.NewTool("get_template",
	mcp.WithDescription("Get a workout template as a tree of exercises and supersets with their target sets and planned drop sets."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Template ID")),
)

// --- Tool handlers ---

func (h *handlers) listExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cat, err := h.catalog(ctx)
	if err != nil {
		h.log.Error("mcp list_exercises", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	groups := cat.Options()
	if muscle := strings.ToUpper(strings.TrimSpace(req.GetString("muscle_group", ""))); muscle != "" {
		groups = filterMuscle(groups, muscle)
	}

	result, err := mcp.NewToolResultJSON(groups)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func filterMuscle(groups []catalog.OptionGroup, muscle string) []catalog.OptionGroup {
	out := []catalog.OptionGroup{}
	for _, g := range groups {
		for _, sec := range g.Sections {
			if sec.MuscleGroup == muscle {
				out = append(out, catalog.OptionGroup{Label: g.Label, Sections: []catalog.MuscleSection{sec}})
			}
		}
	}
	return out
}

func (h *handlers) listWorkouts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	sessions, err := h.sessionsBetween(ctx, start, end)
	if err != nil {
		h.log.Error("mcp list_workouts", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(sessions)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) sessionsBetween(ctx context.Context, start, end time.Time) ([]models.SessionRow, error) {
	all, err := h.ds.ListSessions(ctx, UserFromContext(ctx), maxSessions)
	if err != nil {
		return nil, err
	}
	out := []models.SessionRow{}
	for _, s := range all {
		if !s.StartedAt.Before(start) && !s.StartedAt.After(end) {
			out = append(out, s)
		}
	}
	return out, nil
}

// workout is a session with its composed view.
type workout struct {
	Session  models.SessionRow  `json:"session"`
	View     display.View       `json:"view"`
	Warnings []grouping.Warning `json:"warnings,omitempty"`
}

func (h *handlers) workout(ctx context.Context, s models.SessionRow, cat *catalog.Catalog) (workout, error) {
	items, err := h.ds.SessionItems(ctx, s.ID)
	if err != nil {
		return workout{}, err
	}
	tree, warnings := h.hydrator.Hydrate(items, cat)
	return workout{Session: s, View: display.Compose(tree), Warnings: warnings}, nil
}

func (h *handlers) getWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, errResult := h.session(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	cat, err := h.catalog(ctx)
	if err != nil {
		h.log.Error("mcp get_workout catalog", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	w, err := h.workout(ctx, *session, cat)
	if err != nil {
		h.log.Error("mcp get_workout", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(w)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWorkoutSets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, errResult := h.session(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	items, err := h.ds.SessionItems(ctx, session.ID)
	if err != nil {
		h.log.Error("mcp get_workout_sets", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(models.ItemsPayload{Items: items})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// session resolves the "id" argument to one of the caller's sessions. A
// non-nil result is the error to return to the client.
func (h *handlers) session(ctx context.Context, req mcp.CallToolRequest) (*models.SessionRow, *mcp.CallToolResult) {
	id, errResult := requireID(req)
	if errResult != nil {
		return nil, errResult
	}
	s, err := h.ds.GetSession(ctx, id, UserFromContext(ctx))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, mcp.NewToolResultError("workout not found")
	}
	if err != nil {
		h.log.Error("mcp get session", "error", err)
		return nil, mcp.NewToolResultError("query failed: " + err.Error())
	}
	return s, nil
}

func requireID(req mcp.CallToolRequest) (uuid.UUID, *mcp.CallToolResult) {
	raw, err := req.RequireString("id")
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError("id parameter is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError("invalid id: " + raw)
	}
	return id, nil
}

func (h *handlers) listTemplates(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templates, err := h.ds.ListTemplates(ctx, UserFromContext(ctx))
	if err != nil {
		h.log.Error("mcp list_templates", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if templates == nil {
		templates = []models.TemplateRow{}
	}

	result, err := mcp.NewToolResultJSON(templates)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req)
	if errResult != nil {
		return errResult, nil
	}
	tmpl, err := h.ds.GetTemplate(ctx, id, UserFromContext(ctx))
	if errors.Is(err, storage.ErrNotFound) {
		return mcp.NewToolResultError("template not found"), nil
	}
	if err != nil {
		h.log.Error("mcp get_template", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	items, err := h.ds.TemplateItems(ctx, id)
	if err != nil {
		h.log.Error("mcp get_template items", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	cat, err := h.catalog(ctx)
	if err != nil {
		h.log.Error("mcp get_template catalog", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	tree, warnings := h.hydrator.Hydrate(items, cat)

	result, err := mcp.NewToolResultJSON(map[string]any{
		"template": tmpl,
		"tree":     tree,
		"warnings": warnings,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
