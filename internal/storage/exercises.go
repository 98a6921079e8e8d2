package storage

import (
	"context"
	"fmt"

	"github.com/claude/liftlog/internal/models"
)

// ListExercises returns the exercises visible to ownerID: its own plus the
// built-ins owned by systemOwnerID.
func (db *DB) ListExercises(ctx context.Context, ownerID, systemOwnerID string) ([]models.ExerciseRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, name, muscle_group, owner_user_id
		 FROM exercises
		 WHERE owner_user_id = $1 OR owner_user_id = $2
		 ORDER BY lower(name)`,
		ownerID, systemOwnerID)
	if err != nil {
		return nil, fmt.Errorf("querying exercises: %w", err)
	}
	defer rows.Close()

	var result []models.ExerciseRow
	for rows.Next() {
		var r models.ExerciseRow
		if err := rows.Scan(&r.ID, &r.Name, &r.MuscleGroup, &r.OwnerUserID); err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// InsertExercises batch-inserts exercises, skipping ids or owner/name pairs
// that already exist. Returns count inserted.
func (db *DB) InsertExercises(ctx context.Context, rows []models.ExerciseRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(rows)*4)
	for _, r := range rows {
		args = append(args, r.ID, r.Name, r.MuscleGroup, r.OwnerUserID)
	}
	query := `INSERT INTO exercises (id, name, muscle_group, owner_user_id) VALUES ` +
		valuesClause(len(rows), 4) + " ON CONFLICT DO NOTHING"

	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting exercises: %w", err)
	}
	return tag.RowsAffected(), nil
}
