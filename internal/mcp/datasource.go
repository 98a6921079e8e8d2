package mcp

import (
	"context"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
	"github.com/google/uuid"
)

// DataSource abstracts the data layer for MCP tools.
type DataSource interface {
	ListExercises(ctx context.Context, ownerID, systemOwnerID string) ([]models.ExerciseRow, error)
	ListSessions(ctx context.Context, userID string, limit int) ([]models.SessionRow, error)
	GetSession(ctx context.Context, id uuid.UUID, userID string) (*models.SessionRow, error)
	SessionItems(ctx context.Context, id uuid.UUID) ([]models.FlatItem, error)
	ListTemplates(ctx context.Context, ownerID string) ([]models.TemplateRow, error)
	GetTemplate(ctx context.Context, id uuid.UUID, ownerID string) (*models.TemplateRow, error)
	TemplateItems(ctx context.Context, id uuid.UUID) ([]models.FlatItem, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
