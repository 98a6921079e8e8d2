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

const sessionColumns = `s.id, s.user_id, s.started_at, s.finished_at, s.status,
	(SELECT COUNT(*) FROM workout_sets ws WHERE ws.session_id = s.id)`

func scanSession(row pgx.Row) (models.SessionRow, error) {
	var s models.SessionRow
	err := row.Scan(&s.ID, &s.UserID, &s.StartedAt, &s.FinishedAt, &s.Status, &s.SetCount)
	return s, err
}

// StartSession creates an active session for userID.
func (db *DB) StartSession(ctx context.Context, userID string, templateID *uuid.UUID) (models.SessionRow, error) {
	s := models.SessionRow{
		ID:        uuid.New(),
		UserID:    userID,
		StartedAt: time.Now().UTC(),
		Status:    models.SessionActive,
	}
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO workout_sessions (id, user_id, template_id, started_at, status)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.UserID, templateID, s.StartedAt, s.Status)
	if err != nil {
		return s, fmt.Errorf("inserting session: %w", err)
	}
	return s, nil
}

// ListSessions returns the user's most recent sessions.
func (db *DB) ListSessions(ctx context.Context, userID string, limit int) ([]models.SessionRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM workout_sessions s
		 WHERE s.user_id = $1
		 ORDER BY s.started_at DESC
		 LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []models.SessionRow
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// GetSession returns one of the user's sessions.
func (db *DB) GetSession(ctx context.Context, id uuid.UUID, userID string) (*models.SessionRow, error) {
	s, err := scanSession(db.Pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM workout_sessions s
		 WHERE s.id = $1 AND s.user_id = $2`,
		id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return &s, nil
}

// SessionItems returns a session's sets as flat items in position order.
func (db *DB) SessionItems(ctx context.Context, id uuid.UUID) ([]models.FlatItem, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT position, exercise_id, group_id, group_type, group_order, set_number, weight_kg, reps
		 FROM workout_sets
		 WHERE session_id = $1
		 ORDER BY position`,
		id)
	if err != nil {
		return nil, fmt.Errorf("querying workout sets: %w", err)
	}
	defer rows.Close()

	result := []models.FlatItem{}
	for rows.Next() {
		var (
			weight float64
			reps   int
		)
		it, err := scanItem(rows, &weight, &reps)
		if err != nil {
			return nil, fmt.Errorf("scanning workout set: %w", err)
		}
		it.Weight, it.Reps = &weight, &reps
		result = append(result, it)
	}
	return result, rows.Err()
}

// FinishSession replaces the session's sets with items and marks it
// finished, in one transaction.
func (db *DB) FinishSession(ctx context.Context, id uuid.UUID, userID string, items []models.FlatItem) (models.SessionRow, error) {
	var s models.SessionRow
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx,
			`SELECT status FROM workout_sessions WHERE id = $1 AND user_id = $2 FOR UPDATE`,
			id, userID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("locking session: %w", err)
		}
		if status == models.SessionFinished {
			return ErrAlreadyFinished
		}
		if _, err := tx.Exec(ctx,
			`UPDATE workout_sessions SET finished_at = NOW(), status = $2 WHERE id = $1`,
			id, models.SessionFinished); err != nil {
			return fmt.Errorf("updating session: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM workout_sets WHERE session_id = $1`, id); err != nil {
			return fmt.Errorf("deleting workout sets: %w", err)
		}
		if err := insertSets(ctx, tx, id, items); err != nil {
			return err
		}
		s, err = scanSession(tx.QueryRow(ctx,
			`SELECT `+sessionColumns+` FROM workout_sessions s WHERE s.id = $1`, id))
		if err != nil {
			return fmt.Errorf("reading session: %w", err)
		}
		return nil
	})
	return s, err
}

// DeleteSession removes one of the user's sessions and its sets.
func (db *DB) DeleteSession(ctx context.Context, id uuid.UUID, userID string) error {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM workout_sessions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
