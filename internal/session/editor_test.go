package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/client"
	"github.com/claude/liftlog/internal/draft"
	"github.com/claude/liftlog/internal/grouping"
	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

var catalog = grouping.MapLookup{
	"bench":    {ID: "bench", Name: "Bench Press", MuscleGroup: "CHEST"},
	"curl":     {ID: "curl", Name: "Biceps Curl", MuscleGroup: "BICEPS"},
	"pushdown": {ID: "pushdown", Name: "Triceps Pushdown", MuscleGroup: "TRICEPS"},
}

// fakeBoundary records calls and returns the configured error.
type fakeBoundary struct {
	finishCalls   int
	templateCalls int
	items         []models.FlatItem
	name          string
	templateItems []models.FlatItem
	err           error
}

func (f *fakeBoundary) FinishWorkout(_ context.Context, _ string, items []models.FlatItem) (models.FinishResponse, error) {
	f.finishCalls++
	if f.err != nil {
		return models.FinishResponse{}, f.err
	}
	f.items = items
	return models.FinishResponse{Saved: len(items)}, nil
}

func (f *fakeBoundary) SaveTemplate(_ context.Context, _, name string, items []models.FlatItem) (models.TemplateRow, error) {
	f.templateCalls++
	if f.err != nil {
		return models.TemplateRow{}, f.err
	}
	f.items, f.name = items, name
	return models.TemplateRow{ID: uuid.MustParse("6f1c2a52-8a8e-4b61-9a51-0d6f3c1b2a11"), Name: name}, nil
}

func (f *fakeBoundary) TemplateItems(context.Context, string) ([]models.FlatItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.templateItems, nil
}

type memBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[key]
	if !ok {
		return nil, draft.ErrNotFound
	}
	return d, nil
}

func (m *memBackend) Set(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

func (m *memBackend) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func seqIDs() grouping.IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("g%d", n)
	}
}

func newDeps(b *fakeBoundary) Deps {
	return Deps{
		Catalog:  catalog,
		Boundary: b,
		Drafts:   draft.NewStore(&memBackend{data: map[string][]byte{}}, time.Hour, nil),
		NewID:    seqIDs(),
	}
}

func mustAdd(t *testing.T, e *Editor, exerciseID string) int {
	t.Helper()
	id, err := e.AddExercise(exerciseID)
	if err != nil {
		t.Fatalf("AddExercise(%s): %v", exerciseID, err)
	}
	return id
}

// TestAddExerciseErrors verifies user input errors are returned, not panicked.
func TestAddExerciseErrors(t *testing.T) {
	e := NewWorkoutEditor("s1", false, newDeps(&fakeBoundary{}))
	if _, err := e.AddExercise(" "); !errors.Is(err, ErrNoExercise) {
		t.Errorf("empty id err = %v", err)
	}
	if _, err := e.AddExercise("ghost"); !errors.Is(err, ErrUnknownExercise) {
		t.Errorf("unknown id err = %v", err)
	}
	if err := e.RemoveEntry(99); !errors.Is(err, ErrNoEntry) {
		t.Errorf("remove err = %v", err)
	}
	if err := e.UpdateSet(99, SideA, 0, 1, 1); !errors.Is(err, ErrNoEntry) {
		t.Errorf("update err = %v", err)
	}
}

// TestProGating verifies drop sets and supersets need the Pro flag.
func TestProGating(t *testing.T) {
	e := NewWorkoutEditor("s1", false, newDeps(&fakeBoundary{}))
	id := mustAdd(t, e, "bench")
	if _, err := e.AddDrop(id, 0); !errors.Is(err, ErrProRequired) {
		t.Errorf("AddDrop err = %v", err)
	}
	if _, err := e.AddSuperset("curl", "pushdown"); !errors.Is(err, ErrProRequired) {
		t.Errorf("AddSuperset err = %v", err)
	}
}

// TestDropLifecycle verifies adding drops mints one group id and removing a
// drop renumbers the rest.
func TestDropLifecycle(t *testing.T) {
	e := NewWorkoutEditor("s1", true, newDeps(&fakeBoundary{}))
	id := mustAdd(t, e, "bench")
	e.UpdateSet(id, SideA, 0, 100, 5)

	for want := 1; want <= 3; want++ {
		level, err := e.AddDrop(id, 0)
		if err != nil || level != want {
			t.Fatalf("AddDrop = %d, %v; want %d", level, err, want)
		}
	}
	slot := &e.Tree().Entries[0].Exercise.Sets[0]
	if slot.GroupID != "g1" {
		t.Errorf("group id = %q, want g1", slot.GroupID)
	}

	if err := e.RemoveDrop(id, 0, 2); err != nil {
		t.Fatalf("RemoveDrop: %v", err)
	}
	if len(slot.Drops) != 2 || slot.Drops[0].Level != 1 || slot.Drops[1].Level != 2 {
		t.Errorf("drops = %+v", slot.Drops)
	}
	if err := e.UpdateDrop(id, 0, 3, 50, 5); !errors.Is(err, ErrNoDrop) {
		t.Errorf("UpdateDrop on removed level err = %v", err)
	}

	e.RemoveDrop(id, 0, 1)
	e.RemoveDrop(id, 0, 1)
	if slot.IsChain() || slot.GroupID != "" {
		t.Errorf("slot = %+v, want plain set", slot)
	}
}

// TestDropOnSupersetRejected verifies drops are only for standalone exercises.
func TestDropOnSupersetRejected(t *testing.T) {
	e := NewWorkoutEditor("s1", true, newDeps(&fakeBoundary{}))
	id, err := e.AddSuperset("curl", "pushdown")
	if err != nil {
		t.Fatalf("AddSuperset: %v", err)
	}
	if _, err := e.AddDrop(id, 0); !errors.Is(err, ErrNotExercise) {
		t.Errorf("err = %v", err)
	}
	if _, err := e.AddSuperset("curl", "curl"); !errors.Is(err, ErrSameExercise) {
		t.Errorf("same exercise err = %v", err)
	}
}

// TestSupersetRowsStayPaired verifies set adds and removals apply to both halves.
func TestSupersetRowsStayPaired(t *testing.T) {
	e := NewWorkoutEditor("s1", true, newDeps(&fakeBoundary{}))
	id, _ := e.AddSuperset("curl", "pushdown")
	e.AddSet(id)
	e.AddSet(id)
	e.UpdateSet(id, SideB, 2, 25, 12)
	if err := e.RemoveSet(id, 0); err != nil {
		t.Fatalf("RemoveSet: %v", err)
	}
	p := e.Tree().Entries[0].Superset
	if len(p.A.Sets) != 2 || len(p.B.Sets) != 2 {
		t.Fatalf("rows = %d/%d, want 2/2", len(p.A.Sets), len(p.B.Sets))
	}
	if p.B.Sets[1].Reps != 12 {
		t.Errorf("B row 2 = %+v", p.B.Sets[1])
	}
}

// TestUpdateSetRejectsNegative verifies negative input is refused.
func TestUpdateSetRejectsNegative(t *testing.T) {
	e := NewWorkoutEditor("s1", false, newDeps(&fakeBoundary{}))
	id := mustAdd(t, e, "bench")
	if err := e.UpdateSet(id, SideA, 0, -1, 5); !errors.Is(err, ErrNegativeValue) {
		t.Errorf("err = %v", err)
	}
	if err := e.UpdateSet(id, SideA, 3, 1, 5); !errors.Is(err, ErrNoSet) {
		t.Errorf("out of range err = %v", err)
	}
}

// TestSubmitNothing verifies an empty submission never reaches the boundary.
func TestSubmitNothing(t *testing.T) {
	b := &fakeBoundary{}
	e := NewWorkoutEditor("s1", false, newDeps(b))
	mustAdd(t, e, "bench")

	res, err := e.Submit(context.Background())
	if !errors.Is(err, ErrNothingToSubmit) {
		t.Fatalf("err = %v, want ErrNothingToSubmit", err)
	}
	if !res.Empty() || b.finishCalls != 0 {
		t.Errorf("items = %d, boundary calls = %d", len(res.Items), b.finishCalls)
	}
}

// TestSubmitSuccessClearsDraft verifies the draft is cleared after a
// successful submission.
func TestSubmitSuccessClearsDraft(t *testing.T) {
	b := &fakeBoundary{}
	deps := newDeps(b)
	e := NewWorkoutEditor("s1", false, deps)
	id := mustAdd(t, e, "bench")
	e.UpdateSet(id, SideA, 0, 100, 5)

	ctx := context.Background()
	if deps.Drafts.Load(ctx, draft.Key("s1"), catalog) == nil {
		t.Fatal("mutation did not autosave")
	}
	if _, err := e.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if b.finishCalls != 1 || len(b.items) != 1 {
		t.Errorf("calls = %d items = %+v", b.finishCalls, b.items)
	}
	if deps.Drafts.Load(ctx, draft.Key("s1"), catalog) != nil {
		t.Error("draft not cleared after success")
	}
}

// TestSubmitFailurePreservesState verifies a failed submission is surfaced
// with its status, not retried, and leaves the tree and draft intact.
func TestSubmitFailurePreservesState(t *testing.T) {
	b := &fakeBoundary{err: &client.StatusError{StatusCode: http.StatusBadGateway, Status: "502 Bad Gateway"}}
	deps := newDeps(b)
	e := NewWorkoutEditor("s1", false, deps)
	id := mustAdd(t, e, "bench")
	e.UpdateSet(id, SideA, 0, 100, 5)

	ctx := context.Background()
	_, err := e.Submit(ctx)
	if !client.IsStatus(err, http.StatusBadGateway) {
		t.Fatalf("err = %v, want status 502", err)
	}
	if b.finishCalls != 1 {
		t.Errorf("boundary calls = %d, want 1", b.finishCalls)
	}
	if got := e.Tree().Entries[0].Exercise.Sets[0]; got.Weight != 100 || got.Reps != 5 {
		t.Errorf("tree changed: %+v", got)
	}
	if deps.Drafts.Load(ctx, draft.Key("s1"), catalog) == nil {
		t.Error("draft lost after failed submission")
	}
}

// TestResumeDraftWins verifies a draft takes precedence over persisted sets.
func TestResumeDraftWins(t *testing.T) {
	deps := newDeps(&fakeBoundary{})
	first := NewWorkoutEditor("s1", false, deps)
	id := mustAdd(t, first, "bench")
	first.UpdateSet(id, SideA, 0, 80, 10)

	w, r := 60.0, 12
	persisted := []models.FlatItem{{ExerciseID: "curl", Weight: &w, Reps: &r}}

	second := NewWorkoutEditor("s1", false, deps)
	fromDraft, _ := second.Resume(context.Background(), persisted)
	if !fromDraft || second.Tree().Entries[0].Exercise.ExerciseID != "bench" {
		t.Errorf("fromDraft = %v tree = %+v", fromDraft, second.Tree().Entries)
	}

	other := NewWorkoutEditor("s2", false, deps)
	fromDraft, _ = other.Resume(context.Background(), persisted)
	if fromDraft || other.Tree().Entries[0].Exercise.ExerciseID != "curl" {
		t.Errorf("fromDraft = %v tree = %+v", fromDraft, other.Tree().Entries)
	}
}

// TestPreloadTemplate verifies template items are appended after a
// successful fetch and nothing changes when it fails.
func TestPreloadTemplate(t *testing.T) {
	four := 4
	b := &fakeBoundary{templateItems: []models.FlatItem{
		{ExerciseID: "bench", Position: 0, TargetSets: &four},
		{ExerciseID: "curl", Position: 1},
	}}
	e := NewWorkoutEditor("s1", false, newDeps(b))
	mustAdd(t, e, "pushdown")

	if _, err := e.PreloadTemplate(context.Background(), "t1"); err != nil {
		t.Fatalf("PreloadTemplate: %v", err)
	}
	tree := e.Tree()
	if tree.Len() != 3 {
		t.Fatalf("entries = %d, want 3", tree.Len())
	}
	if n := len(tree.Entries[1].Exercise.Sets); n != 4 {
		t.Errorf("bench slots = %d, want 4", n)
	}

	b.err = errors.New("network down")
	if _, err := e.PreloadTemplate(context.Background(), "t1"); err == nil {
		t.Fatal("expected error")
	}
	if tree.Len() != 3 {
		t.Errorf("entries = %d after failed preload, want 3", tree.Len())
	}
}

// TestTemplateSubmit verifies template mode requires a name and sends
// targetSets items.
func TestTemplateSubmit(t *testing.T) {
	b := &fakeBoundary{}
	e := NewTemplateEditor("", "", false, newDeps(b))
	id := mustAdd(t, e, "bench")
	if err := e.SetTargetSets(id, 5); err != nil {
		t.Fatalf("SetTargetSets: %v", err)
	}
	if err := e.SetTargetSets(id, 21); !errors.Is(err, ErrTargetSets) {
		t.Errorf("SetTargetSets(21) err = %v", err)
	}

	if _, err := e.Submit(context.Background()); !errors.Is(err, ErrNoName) {
		t.Fatalf("err = %v, want ErrNoName", err)
	}
	e.SetName("  Push Day ")
	if _, err := e.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if b.name != "Push Day" || len(b.items) != 1 || *b.items[0].TargetSets != 5 {
		t.Errorf("name = %q items = %+v", b.name, b.items)
	}
}

// TestTemplateEditorSkipsDrafts verifies template editing never touches drafts.
func TestTemplateEditorSkipsDrafts(t *testing.T) {
	deps := newDeps(&fakeBoundary{})
	e := NewTemplateEditor("", "Legs", false, deps)
	mustAdd(t, e, "bench")
	if deps.Drafts.Pending(draft.Key("")) {
		t.Error("template editor scheduled a draft write")
	}
	if e.RestoreDraft(context.Background()) {
		t.Error("template editor restored a draft")
	}
}
