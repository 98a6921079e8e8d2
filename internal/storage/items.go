package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// valuesClause returns "($1,...,$cols),($cols+1,...)" for n rows.
func valuesClause(n, cols int) string {
	rows := make([]string, 0, n)
	for i := range n {
		ph := make([]string, cols)
		for j := range cols {
			ph[j] = fmt.Sprintf("$%d", i*cols+j+1)
		}
		rows = append(rows, "("+strings.Join(ph, ",")+")")
	}
	return strings.Join(rows, ",")
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// setArgs flattens session items into insert arguments. Items must carry
// weight and reps.
func setArgs(sessionID uuid.UUID, items []models.FlatItem) ([]any, error) {
	args := make([]any, 0, len(items)*9)
	for i, it := range items {
		exID, err := uuid.Parse(it.ExerciseID)
		if err != nil {
			return nil, fmt.Errorf("item %d: invalid exercise id %q", i, it.ExerciseID)
		}
		if it.Weight == nil || it.Reps == nil {
			return nil, fmt.Errorf("item %d: weight and reps are required", i)
		}
		args = append(args, sessionID, i, exID, *it.Weight, *it.Reps,
			nullString(it.GroupID), nullString(string(it.GroupType)), it.GroupOrder, it.SetNumber)
	}
	return args, nil
}

// templateArgs flattens template items into insert arguments.
func templateArgs(templateID uuid.UUID, items []models.FlatItem) ([]any, error) {
	args := make([]any, 0, len(items)*8)
	for i, it := range items {
		exID, err := uuid.Parse(it.ExerciseID)
		if err != nil {
			return nil, fmt.Errorf("item %d: invalid exercise id %q", i, it.ExerciseID)
		}
		target := 3
		if it.TargetSets != nil {
			target = max(1, min(20, *it.TargetSets))
		}
		args = append(args, templateID, i, exID, target,
			nullString(it.GroupID), nullString(string(it.GroupType)), it.GroupOrder, it.SetNumber)
	}
	return args, nil
}

func insertSets(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, items []models.FlatItem) error {
	if len(items) == 0 {
		return nil
	}
	args, err := setArgs(sessionID, items)
	if err != nil {
		return err
	}
	query := `INSERT INTO workout_sets (session_id, position, exercise_id, weight_kg, reps,
		group_id, group_type, group_order, set_number) VALUES ` + valuesClause(len(items), 9)
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting workout sets: %w", err)
	}
	return nil
}

func insertTemplateItems(ctx context.Context, tx pgx.Tx, templateID uuid.UUID, items []models.FlatItem) error {
	if len(items) == 0 {
		return nil
	}
	args, err := templateArgs(templateID, items)
	if err != nil {
		return err
	}
	query := `INSERT INTO template_items (template_id, position, exercise_id, target_sets,
		group_id, group_type, group_order, set_number) VALUES ` + valuesClause(len(items), 8)
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting template items: %w", err)
	}
	return nil
}

// scanItem reads the shared grouping columns; value columns are scanned by
// the caller through extra.
func scanItem(rows pgx.Rows, extra ...any) (models.FlatItem, error) {
	var (
		it        models.FlatItem
		exID      uuid.UUID
		groupID   *string
		groupType *string
	)
	dest := append([]any{&it.Position, &exID, &groupID, &groupType, &it.GroupOrder, &it.SetNumber}, extra...)
	if err := rows.Scan(dest...); err != nil {
		return it, err
	}
	it.ExerciseID = exID.String()
	if groupID != nil && groupType != nil {
		it.GroupID = *groupID
		it.GroupType = models.GroupType(*groupType)
	}
	return it, nil
}
