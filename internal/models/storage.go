package models

import (
	"time"

	"github.com/google/uuid"
)

// ExerciseRow is a row of the exercises table.
type ExerciseRow struct {
	ID          uuid.UUID
	Name        string
	MuscleGroup string
	OwnerUserID string
}

// SessionRow is a row of the workout_sessions table.
type SessionRow struct {
	ID         uuid.UUID  `json:"id"`
	UserID     string     `json:"userId"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Status     string     `json:"status"`
	SetCount   int        `json:"setCount"`
}

// Session statuses.
const (
	SessionActive   = "ACTIVE"
	SessionFinished = "FINISHED"
)

// TemplateRow is a row of the workout_templates table.
type TemplateRow struct {
	ID          uuid.UUID `json:"id"`
	OwnerUserID string    `json:"ownerUserId"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"createdAt"`
	ItemCount   int       `json:"itemCount"`
}
