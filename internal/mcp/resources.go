package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

const recentWorkoutDays = 14

func (h *handlers) recentWorkouts(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -recentWorkoutDays)

	sessions, err := h.sessionsBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	cat, err := h.catalog(ctx)
	if err != nil {
		return nil, err
	}

	workouts := []workout{}
	for _, s := range sessions {
		if s.Status != models.SessionFinished {
			continue
		}
		w, err := h.workout(ctx, s, cat)
		if err != nil {
			h.log.Warn("recent_workouts: session items failed", "session_id", s.ID, "error", err)
			continue
		}
		workouts = append(workouts, w)
	}

	data, err := json.Marshal(workouts)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (h *handlers) exerciseCatalog(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	cat, err := h.catalog(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(cat.Options())
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
