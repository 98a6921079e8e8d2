package grouping

import (
	"testing"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var testCatalog = MapLookup{
	"A":        {ID: "A", Name: "Bench Press", MuscleGroup: "CHEST"},
	"B":        {ID: "B", Name: "Barbell Row", MuscleGroup: "BACK"},
	"C":        {ID: "C", Name: "Squat", MuscleGroup: "LEGS"},
	"bench":    {ID: "bench", Name: "Bench Press", MuscleGroup: "CHEST"},
	"curl":     {ID: "curl", Name: "Biceps Curl", MuscleGroup: "BICEPS"},
	"pushdown": {ID: "pushdown", Name: "Triceps Pushdown", MuscleGroup: "TRICEPS"},
}

// treeOpts ignores the unexported id counter and entry ids when comparing trees.
var treeOpts = cmp.Options{
	cmpopts.IgnoreUnexported(models.Tree{}),
	cmpopts.IgnoreFields(models.Entry{}, "ID"),
	cmpopts.EquateEmpty(),
}

func hydrate(t *testing.T, items []models.FlatItem) (*models.Tree, []Warning) {
	t.Helper()
	return NewHydrator(nil).Hydrate(items, testCatalog)
}

func logged(exerciseID string, pos int, w float64, r int) models.FlatItem {
	return models.FlatItem{ExerciseID: exerciseID, Position: pos, Weight: floatPtr(w), Reps: intPtr(r)}
}

func grouped(it models.FlatItem, gid string, typ models.GroupType, order, setNumber int) models.FlatItem {
	it.GroupID = gid
	it.GroupType = typ
	it.GroupOrder = intPtr(order)
	it.SetNumber = intPtr(setNumber)
	return it
}

// TestHydratePlainTemplate verifies ungrouped template items become standalone
// exercises in position order with default empty slots.
func TestHydratePlainTemplate(t *testing.T) {
	tree, warnings := hydrate(t, []models.FlatItem{
		{ExerciseID: "B", Position: 1},
		{ExerciseID: "A", Position: 0},
	})
	if len(warnings) != 0 {
		t.Errorf("warnings = %v", warnings)
	}
	if tree.Len() != 2 {
		t.Fatalf("entries = %d, want 2", tree.Len())
	}
	for i, id := range []string{"A", "B"} {
		ex := tree.Entries[i].Exercise
		if ex == nil || ex.ExerciseID != id {
			t.Fatalf("entry %d = %+v, want exercise %s", i, tree.Entries[i], id)
		}
		if len(ex.Sets) != DefaultTargetSets {
			t.Errorf("%s slots = %d, want %d", id, len(ex.Sets), DefaultTargetSets)
		}
		for _, s := range ex.Sets {
			if s.Weight != 0 || s.Reps != 0 || s.IsChain() {
				t.Errorf("%s slot not empty: %+v", id, s)
			}
		}
	}
	if tree.Entries[0].Exercise.Name != "Bench Press" || tree.Entries[0].Exercise.MuscleGroup != "CHEST" {
		t.Errorf("catalog fields not resolved: %+v", tree.Entries[0].Exercise)
	}
}

// TestHydrateTargetSets verifies targetSets sizes the placeholder slots and is
// clamped to the allowed range.
func TestHydrateTargetSets(t *testing.T) {
	tree, _ := hydrate(t, []models.FlatItem{
		{ExerciseID: "A", Position: 0, TargetSets: intPtr(5)},
		{ExerciseID: "B", Position: 1, TargetSets: intPtr(99)},
		{ExerciseID: "C", Position: 2, TargetSets: intPtr(0)},
	})
	want := []int{5, MaxTargetSets, MinTargetSets}
	for i, n := range want {
		if got := len(tree.Entries[i].Exercise.Sets); got != n {
			t.Errorf("entry %d slots = %d, want %d", i, got, n)
		}
	}
}

// TestHydrateDropSetRoundTrip verifies a main set with two drops becomes one
// chain and re-flattening reproduces the group order and set number.
func TestHydrateDropSetRoundTrip(t *testing.T) {
	items := []models.FlatItem{
		grouped(logged("bench", 0, 100, 5), "g-1", models.GroupDropSet, 0, 1),
		grouped(logged("bench", 1, 80, 6), "g-1", models.GroupDropSet, 1, 1),
		grouped(logged("bench", 2, 60, 8), "g-1", models.GroupDropSet, 2, 1),
	}
	tree, warnings := hydrate(t, items)
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}
	if tree.Len() != 1 {
		t.Fatalf("entries = %d, want 1", tree.Len())
	}
	sets := tree.Entries[0].Exercise.Sets
	if len(sets) != 1 {
		t.Fatalf("sets = %d, want 1", len(sets))
	}
	want := models.SetSlot{Weight: 100, Reps: 5, GroupID: "g-1", Drops: []models.Drop{
		{Level: 1, Weight: 80, Reps: 6},
		{Level: 2, Weight: 60, Reps: 8},
	}}
	if diff := cmp.Diff(want, sets[0]); diff != "" {
		t.Errorf("chain mismatch (-want +got):\n%s", diff)
	}

	res := NewFlattener(seqIDs()).Flatten(tree)
	if diff := cmp.Diff(items, res.Items); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

// TestHydrateChainPlacement verifies a chain lands at its set number even when
// its items come after later plain sets.
func TestHydrateChainPlacement(t *testing.T) {
	tree, _ := hydrate(t, []models.FlatItem{
		logged("curl", 0, 20, 10),
		logged("curl", 1, 20, 9),
		grouped(logged("curl", 2, 18, 8), "c", models.GroupDropSet, 0, 2),
		grouped(logged("curl", 3, 12, 8), "c", models.GroupDropSet, 1, 2),
	})
	sets := tree.Entries[0].Exercise.Sets
	if len(sets) != 3 {
		t.Fatalf("sets = %d, want 3", len(sets))
	}
	if !sets[1].IsChain() || sets[1].Weight != 18 {
		t.Errorf("slot 2 = %+v, want chain at 18kg", sets[1])
	}
	if sets[0].Reps != 10 || sets[2].Reps != 9 {
		t.Errorf("plain sets out of order: %+v", sets)
	}
}

// TestHydrateRenumbersDropLevels verifies gaps in group order close up.
func TestHydrateRenumbersDropLevels(t *testing.T) {
	tree, _ := hydrate(t, []models.FlatItem{
		grouped(logged("bench", 0, 100, 5), "g", models.GroupDropSet, 0, 1),
		grouped(logged("bench", 1, 60, 8), "g", models.GroupDropSet, 5, 1),
		grouped(logged("bench", 2, 80, 6), "g", models.GroupDropSet, 2, 1),
	})
	drops := tree.Entries[0].Exercise.Sets[0].Drops
	want := []models.Drop{{Level: 1, Weight: 80, Reps: 6}, {Level: 2, Weight: 60, Reps: 8}}
	if diff := cmp.Diff(want, drops); diff != "" {
		t.Errorf("drops mismatch (-want +got):\n%s", diff)
	}
}

// TestHydrateMalformedDropSet verifies a group without exactly one main set
// degrades to plain sets with a warning.
func TestHydrateMalformedDropSet(t *testing.T) {
	tree, warnings := hydrate(t, []models.FlatItem{
		grouped(logged("bench", 0, 80, 6), "g", models.GroupDropSet, 1, 1),
		grouped(logged("bench", 1, 60, 8), "g", models.GroupDropSet, 2, 1),
	})
	if len(warnings) != 1 || warnings[0].Kind != WarnMalformedDropSet {
		t.Fatalf("warnings = %v, want one %s", warnings, WarnMalformedDropSet)
	}
	sets := tree.Entries[0].Exercise.Sets
	if len(sets) != 2 || sets[0].IsChain() || sets[1].IsChain() {
		t.Errorf("sets = %+v, want two plain sets", sets)
	}
}

// TestHydrateSuperset verifies a valid superset becomes one pair ordered by
// group order with rows paired by index.
func TestHydrateSuperset(t *testing.T) {
	items := []models.FlatItem{
		grouped(logged("curl", 0, 15, 10), "ss", models.GroupSuperset, 0, 1),
		grouped(logged("pushdown", 1, 25, 12), "ss", models.GroupSuperset, 1, 1),
		grouped(logged("curl", 2, 15, 9), "ss", models.GroupSuperset, 0, 2),
		grouped(logged("pushdown", 3, 25, 11), "ss", models.GroupSuperset, 1, 2),
	}
	tree, warnings := hydrate(t, items)
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}
	if tree.Len() != 1 || tree.Entries[0].Superset == nil {
		t.Fatalf("entries = %+v, want one superset", tree.Entries)
	}
	p := tree.Entries[0].Superset
	if p.GroupID != "ss" || p.A.ExerciseID != "curl" || p.B.ExerciseID != "pushdown" {
		t.Errorf("pair = %s %s/%s", p.GroupID, p.A.ExerciseID, p.B.ExerciseID)
	}
	if len(p.A.Sets) != 2 || len(p.B.Sets) != 2 {
		t.Fatalf("rows = %d/%d, want 2/2", len(p.A.Sets), len(p.B.Sets))
	}
	if p.A.Sets[1].Reps != 9 || p.B.Sets[1].Reps != 11 {
		t.Errorf("row 2 = %+v / %+v", p.A.Sets[1], p.B.Sets[1])
	}

	res := NewFlattener(seqIDs()).Flatten(tree)
	if diff := cmp.Diff(items, res.Items); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

// TestHydrateSupersetOrderFromGroupOrder verifies the A half is the one with
// group order 0 even when B appears first.
func TestHydrateSupersetOrderFromGroupOrder(t *testing.T) {
	tree, _ := hydrate(t, []models.FlatItem{
		{ExerciseID: "pushdown", Position: 0, GroupID: "ss", GroupType: models.GroupSuperset, GroupOrder: intPtr(1), TargetSets: intPtr(4)},
		{ExerciseID: "curl", Position: 1, GroupID: "ss", GroupType: models.GroupSuperset, GroupOrder: intPtr(0), TargetSets: intPtr(4)},
	})
	p := tree.Entries[0].Superset
	if p == nil {
		t.Fatalf("entries = %+v, want superset", tree.Entries)
	}
	if p.A.ExerciseID != "curl" {
		t.Errorf("A = %s, want curl", p.A.ExerciseID)
	}
	if len(p.A.Sets) != 4 || len(p.B.Sets) != 4 {
		t.Errorf("rows = %d/%d, want 4/4", len(p.A.Sets), len(p.B.Sets))
	}
}

// TestHydrateMalformedSuperset verifies three exercises sharing a superset id
// are hydrated as standalone exercises with a warning.
func TestHydrateMalformedSuperset(t *testing.T) {
	tree, warnings := hydrate(t, []models.FlatItem{
		grouped(logged("A", 0, 50, 10), "bad", models.GroupSuperset, 0, 1),
		grouped(logged("B", 1, 40, 10), "bad", models.GroupSuperset, 1, 1),
		grouped(logged("C", 2, 60, 10), "bad", models.GroupSuperset, 2, 1),
	})
	if len(warnings) != 1 || warnings[0].Kind != WarnMalformedSuperset || warnings[0].GroupID != "bad" {
		t.Fatalf("warnings = %v, want one %s", warnings, WarnMalformedSuperset)
	}
	if tree.Len() != 3 {
		t.Fatalf("entries = %d, want 3", tree.Len())
	}
	for i, e := range tree.Entries {
		if e.Superset != nil || e.Exercise == nil {
			t.Errorf("entry %d should be a standalone exercise", i)
			continue
		}
		if len(e.Exercise.Sets) != 1 || e.Exercise.Sets[0].GroupID != "" {
			t.Errorf("entry %d sets = %+v", i, e.Exercise.Sets)
		}
	}
}

// TestHydrateUnknownGroupType verifies an unrecognized group type is treated
// as ungrouped.
func TestHydrateUnknownGroupType(t *testing.T) {
	tree, warnings := hydrate(t, []models.FlatItem{
		grouped(logged("A", 0, 50, 10), "x", "GIANT_SET", 0, 1),
	})
	if len(warnings) != 1 || warnings[0].Kind != WarnUnknownGroupType {
		t.Fatalf("warnings = %v", warnings)
	}
	if tree.Len() != 1 || tree.Entries[0].Exercise == nil {
		t.Fatalf("entries = %+v", tree.Entries)
	}
}

// TestHydrateUnknownExercise verifies items for exercises missing from the
// catalog are skipped with one warning per exercise.
func TestHydrateUnknownExercise(t *testing.T) {
	tree, warnings := hydrate(t, []models.FlatItem{
		logged("ghost", 0, 10, 10),
		logged("A", 1, 50, 10),
		logged("ghost", 2, 10, 10),
	})
	if len(warnings) != 1 || warnings[0].Kind != WarnUnknownExercise || warnings[0].ExerciseID != "ghost" {
		t.Fatalf("warnings = %v", warnings)
	}
	if tree.Len() != 1 || tree.Entries[0].Exercise.ExerciseID != "A" {
		t.Errorf("entries = %+v", tree.Entries)
	}
}

// TestHydrateFlattenIdempotent verifies hydrate(flatten(tree)) is a fixed
// point for a tree with plain sets, a chain and a superset.
func TestHydrateFlattenIdempotent(t *testing.T) {
	tree := models.NewTree()
	tree.AddExercise(models.ExerciseEntry{ExerciseID: "bench", Name: "Bench Press", MuscleGroup: "CHEST", Sets: []models.SetSlot{
		plain(100, 5),
		chain(90, 6, drop(1, 70, 8), drop(2, 50, 10)),
		plain(85, 8),
	}})
	tree.AddSuperset(models.SupersetPair{
		A: models.ExerciseEntry{ExerciseID: "curl", Name: "Biceps Curl", MuscleGroup: "BICEPS", Sets: []models.SetSlot{plain(15, 10), plain(15, 9)}},
		B: models.ExerciseEntry{ExerciseID: "pushdown", Name: "Triceps Pushdown", MuscleGroup: "TRICEPS", Sets: []models.SetSlot{plain(25, 12), plain(25, 11)}},
	})

	f := NewFlattener(seqIDs())
	first := f.Flatten(tree)
	hydrated, warnings := hydrate(t, first.Items)
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}
	if diff := cmp.Diff(tree, hydrated, treeOpts); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}

	second := f.Flatten(hydrated)
	if diff := cmp.Diff(first.Items, second.Items); diff != "" {
		t.Errorf("flatten not stable (-first +second):\n%s", diff)
	}
}

// TestHydrateTemplateRoundTrip verifies template trees survive a flatten and
// hydrate cycle, chained slots included.
func TestHydrateTemplateRoundTrip(t *testing.T) {
	tree := models.NewTree()
	tree.AddExercise(models.ExerciseEntry{ExerciseID: "bench", Name: "Bench Press", MuscleGroup: "CHEST",
		Sets: []models.SetSlot{{}, {}, {Drops: []models.Drop{{Level: 1}}}}})
	tree.AddSuperset(models.SupersetPair{
		A: models.ExerciseEntry{ExerciseID: "curl", Name: "Biceps Curl", MuscleGroup: "BICEPS", Sets: make([]models.SetSlot, 3)},
		B: models.ExerciseEntry{ExerciseID: "pushdown", Name: "Triceps Pushdown", MuscleGroup: "TRICEPS", Sets: make([]models.SetSlot, 3)},
	})

	res := NewFlattener(seqIDs()).FlattenTemplate(tree)
	hydrated, warnings := hydrate(t, res.Items)
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}
	if diff := cmp.Diff(tree, hydrated, treeOpts); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

// TestHydrateEmpty verifies no items hydrate to an empty tree.
func TestHydrateEmpty(t *testing.T) {
	tree, warnings := hydrate(t, nil)
	if tree == nil || tree.Len() != 0 || len(warnings) != 0 {
		t.Errorf("tree = %+v warnings = %v", tree, warnings)
	}
}
