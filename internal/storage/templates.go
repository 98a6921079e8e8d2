package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const templateColumns = `t.id, t.owner_user_id, t.name, t.created_at,
	(SELECT COUNT(*) FROM template_items ti WHERE ti.template_id = t.id)`

func scanTemplate(row pgx.Row) (models.TemplateRow, error) {
	var t models.TemplateRow
	err := row.Scan(&t.ID, &t.OwnerUserID, &t.Name, &t.CreatedAt, &t.ItemCount)
	return t, err
}

// ListTemplates returns the owner's templates ordered by name.
func (db *DB) ListTemplates(ctx context.Context, ownerID string) ([]models.TemplateRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+templateColumns+`
		 FROM workout_templates t
		 WHERE t.owner_user_id = $1
		 ORDER BY lower(t.name)`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	defer rows.Close()

	var result []models.TemplateRow
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning template: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// GetTemplate returns one of the owner's templates.
func (db *DB) GetTemplate(ctx context.Context, id uuid.UUID, ownerID string) (*models.TemplateRow, error) {
	t, err := scanTemplate(db.Pool.QueryRow(ctx,
		`SELECT `+templateColumns+`
		 FROM workout_templates t
		 WHERE t.id = $1 AND t.owner_user_id = $2`,
		id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying template: %w", err)
	}
	return &t, nil
}

// TemplateNameTaken reports whether the owner has another template with the
// same name, compared case-insensitively. exclude skips the template being
// renamed.
func (db *DB) TemplateNameTaken(ctx context.Context, ownerID, name string, exclude *uuid.UUID) (bool, error) {
	var taken bool
	err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM workout_templates
			WHERE owner_user_id = $1 AND lower(name) = lower($2)
			  AND ($3::uuid IS NULL OR id <> $3)
		)`,
		ownerID, name, exclude).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("checking template name: %w", err)
	}
	return taken, nil
}

// CreateTemplate inserts a template with its items.
func (db *DB) CreateTemplate(ctx context.Context, ownerID, name string, items []models.FlatItem) (models.TemplateRow, error) {
	t := models.TemplateRow{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		Name:        name,
		CreatedAt:   time.Now().UTC(),
		ItemCount:   len(items),
	}
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO workout_templates (id, owner_user_id, name, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $4)`,
			t.ID, t.OwnerUserID, t.Name, t.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting template: %w", err)
		}
		return insertTemplateItems(ctx, tx, t.ID, items)
	})
	return t, err
}

// UpdateTemplate renames a template and replaces its items.
func (db *DB) UpdateTemplate(ctx context.Context, id uuid.UUID, ownerID, name string, items []models.FlatItem) (models.TemplateRow, error) {
	var t models.TemplateRow
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE workout_templates SET name = $3, updated_at = NOW()
			 WHERE id = $1 AND owner_user_id = $2`,
			id, ownerID, name)
		if err != nil {
			return fmt.Errorf("updating template: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM template_items WHERE template_id = $1`, id); err != nil {
			return fmt.Errorf("deleting template items: %w", err)
		}
		if err := insertTemplateItems(ctx, tx, id, items); err != nil {
			return err
		}
		t, err = scanTemplate(tx.QueryRow(ctx,
			`SELECT `+templateColumns+` FROM workout_templates t WHERE t.id = $1`, id))
		if err != nil {
			return fmt.Errorf("reading template: %w", err)
		}
		return nil
	})
	return t, err
}

// DeleteTemplate removes one of the owner's templates. Sessions started from
// it keep their sets.
func (db *DB) DeleteTemplate(ctx context.Context, id uuid.UUID, ownerID string) error {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM workout_templates WHERE id = $1 AND owner_user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TemplateItems returns a template's items in position order.
func (db *DB) TemplateItems(ctx context.Context, id uuid.UUID) ([]models.FlatItem, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT position, exercise_id, group_id, group_type, group_order, set_number, target_sets
		 FROM template_items
		 WHERE template_id = $1
		 ORDER BY position`,
		id)
	if err != nil {
		return nil, fmt.Errorf("querying template items: %w", err)
	}
	defer rows.Close()

	result := []models.FlatItem{}
	for rows.Next() {
		var target int
		it, err := scanItem(rows, &target)
		if err != nil {
			return nil, fmt.Errorf("scanning template item: %w", err)
		}
		it.TargetSets = &target
		result = append(result, it)
	}
	return result, rows.Err()
}
