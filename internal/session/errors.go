package session

import "errors"

// User input errors. They are recoverable and meant to be shown as a notice.
var (
	ErrNoExercise       = errors.New("no exercise selected")
	ErrUnknownExercise  = errors.New("exercise not found in catalog")
	ErrSameExercise     = errors.New("a superset needs two different exercises")
	ErrNoEntry          = errors.New("entry not found")
	ErrNoSet            = errors.New("set not found")
	ErrNoDrop           = errors.New("drop not found")
	ErrNotExercise      = errors.New("drop sets can only be added to a standalone exercise")
	ErrNegativeValue    = errors.New("weight and reps cannot be negative")
	ErrTargetSets       = errors.New("target sets must be between 1 and 20")
	ErrProRequired      = errors.New("drop sets and supersets require Pro")
	ErrNothingToSubmit  = errors.New("nothing to submit: add at least one set with weight and reps")
	ErrNoName           = errors.New("template name is required")
	ErrSubmitInProgress = errors.New("a submission is already in progress")
)
