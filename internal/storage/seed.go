package storage

import (
	"context"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// builtinNamespace scopes the name-derived ids of built-in exercises so
// seeding is idempotent across installs.
var builtinNamespace = uuid.MustParse("4b3c1d9e-6a0f-4f5e-9d2b-7c8e1a2f3b40")

var builtinExercises = []struct {
	name   string
	muscle string
}{
	{"Barbell Bench Press", "CHEST"},
	{"Dumbbell Bench Press", "CHEST"},
	{"Incline Bench Press", "CHEST"},
	{"Push-Ups", "CHEST"},
	{"Chest Dips", "CHEST"},
	{"Pull-Ups", "BACK"},
	{"Barbell Rows", "BACK"},
	{"Dumbbell Rows", "BACK"},
	{"Lat Pulldowns", "BACK"},
	{"Deadlifts", "BACK"},
	{"Back Squat", "LEGS"},
	{"Front Squat", "LEGS"},
	{"Leg Press", "LEGS"},
	{"Walking Lunges", "LEGS"},
	{"Leg Extensions", "LEGS"},
	{"Overhead Press", "SHOULDERS"},
	{"Arnold Press", "SHOULDERS"},
	{"Lateral Raises", "SHOULDERS"},
	{"Rear Delt Flyes", "SHOULDERS"},
	{"Barbell Curl", "BICEPS"},
	{"Dumbbell Curl", "BICEPS"},
	{"Hammer Curl", "BICEPS"},
	{"Cable Curl", "BICEPS"},
	{"Close-Grip Bench Press", "TRICEPS"},
	{"Skull Crushers", "TRICEPS"},
	{"Tricep Pushdowns", "TRICEPS"},
	{"Overhead Tricep Extension", "TRICEPS"},
	{"Wrist Curls", "FOREARMS"},
	{"Farmer's Carry", "FOREARMS"},
	{"Romanian Deadlift", "HAMSTRINGS"},
	{"Lying Leg Curl", "HAMSTRINGS"},
	{"Standing Calf Raises", "CALVES"},
	{"Seated Calf Raises", "CALVES"},
	{"Barbell Shrugs", "TRAPS"},
	{"Plank", "CORE"},
	{"Hanging Leg Raises", "CORE"},
	{"Cable Crunch", "CORE"},
}

// BuiltinExerciseID returns the stable id of a built-in exercise.
func BuiltinExerciseID(name string) uuid.UUID {
	return uuid.NewSHA1(builtinNamespace, []byte(name))
}

// BuiltinExercises returns the built-in catalog owned by systemOwnerID.
func BuiltinExercises(systemOwnerID string) []models.ExerciseRow {
	rows := make([]models.ExerciseRow, 0, len(builtinExercises))
	for _, b := range builtinExercises {
		rows = append(rows, models.ExerciseRow{
			ID:          BuiltinExerciseID(b.name),
			Name:        b.name,
			MuscleGroup: b.muscle,
			OwnerUserID: systemOwnerID,
		})
	}
	return rows
}

// SeedBuiltinExercises inserts missing built-in exercises. Returns count inserted.
func (db *DB) SeedBuiltinExercises(ctx context.Context, systemOwnerID string) (int64, error) {
	return db.InsertExercises(ctx, BuiltinExercises(systemOwnerID))
}
