// Package grouping converts between the flat, persistence-oriented list of
// set records and the hierarchical exercise tree used for editing and display.
package grouping

import (
	"fmt"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// WarningKind classifies a recoverable problem found while flattening or
// hydrating. None of them abort the operation.
type WarningKind string

const (
	WarnNoValidSets       WarningKind = "no_valid_sets"
	WarnUnknownExercise   WarningKind = "unknown_exercise"
	WarnMalformedSuperset WarningKind = "malformed_superset"
	WarnMalformedDropSet  WarningKind = "malformed_drop_set"
	WarnUnknownGroupType  WarningKind = "unknown_group_type"
	WarnSupersetMismatch  WarningKind = "superset_length_mismatch"
)

// Warning describes a skipped or degraded part of the input.
type Warning struct {
	Kind       WarningKind `json:"kind"`
	ExerciseID string      `json:"exerciseId,omitempty"`
	GroupID    string      `json:"groupId,omitempty"`
	Message    string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Kind, w.Message)
}

// IDFunc mints group identifiers.
type IDFunc func() string

// NewGroupID returns a random (version 4) UUID string.
func NewGroupID() string {
	return uuid.NewString()
}

// Lookup resolves catalog exercises by id.
type Lookup interface {
	Lookup(id string) (models.Exercise, bool)
}

// MapLookup is a Lookup backed by a map, handy for tests and small catalogs.
type MapLookup map[string]models.Exercise

// Lookup implements Lookup.
func (m MapLookup) Lookup(id string) (models.Exercise, bool) {
	ex, ok := m[id]
	return ex, ok
}

// Target set bounds for template exercises.
const (
	MinTargetSets     = 1
	MaxTargetSets     = 20
	DefaultTargetSets = 3
)

// ClampTargetSets bounds n to [MinTargetSets, MaxTargetSets].
func ClampTargetSets(n int) int {
	return max(MinTargetSets, min(MaxTargetSets, n))
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
