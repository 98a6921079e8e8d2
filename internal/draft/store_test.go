package draft

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/grouping"
	"github.com/claude/liftlog/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// memBackend is an in-memory Backend that counts writes.
type memBackend struct {
	mu     sync.Mutex
	data   map[string][]byte
	writes int
}

func newMemBackend() *memBackend {
	return &memBackend{data: map[string][]byte{}}
}

func (m *memBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (m *memBackend) Set(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	m.writes++
	return nil
}

func (m *memBackend) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memBackend) stats() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data), m.writes
}

var catalog = grouping.MapLookup{
	"bench":    {ID: "bench", Name: "Bench Press", MuscleGroup: "CHEST"},
	"curl":     {ID: "curl", Name: "Biceps Curl", MuscleGroup: "BICEPS"},
	"pushdown": {ID: "pushdown", Name: "Triceps Pushdown", MuscleGroup: "TRICEPS"},
}

var treeOpts = cmp.Options{
	cmpopts.IgnoreUnexported(models.Tree{}),
	cmpopts.IgnoreFields(models.Entry{}, "ID"),
	cmpopts.EquateEmpty(),
}

func sampleTree() *models.Tree {
	t := models.NewTree()
	t.AddExercise(models.ExerciseEntry{ExerciseID: "bench", Name: "Bench Press", MuscleGroup: "CHEST", Sets: []models.SetSlot{
		{Weight: 100, Reps: 5},
		{Weight: 90, Reps: 6, GroupID: "chain-1", Drops: []models.Drop{{Level: 1, Weight: 70, Reps: 8}}},
		{},
	}})
	t.AddSuperset(models.SupersetPair{
		GroupID: "ss-1",
		A:       models.ExerciseEntry{ExerciseID: "curl", Name: "Biceps Curl", MuscleGroup: "BICEPS", Sets: []models.SetSlot{{Weight: 15, Reps: 10}, {Weight: 15}}},
		B:       models.ExerciseEntry{ExerciseID: "pushdown", Name: "Triceps Pushdown", MuscleGroup: "TRICEPS", Sets: []models.SetSlot{{Weight: 25, Reps: 12}, {}}},
	})
	return t
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestKey verifies the session-scoped key format.
func TestKey(t *testing.T) {
	if got := Key("42"); got != "workoutDraft:42" {
		t.Errorf("Key = %q", got)
	}
}

// TestSaveDebounces verifies rapid saves coalesce into a single write of the
// latest snapshot.
func TestSaveDebounces(t *testing.T) {
	backend := newMemBackend()
	s := NewStore(backend, 50*time.Millisecond, nil)

	tree := sampleTree()
	for i := range 5 {
		tree.Entries[0].Exercise.Sets[0].Reps = i + 1
		if err := s.Save("k", tree); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if n, _ := backend.stats(); n != 0 {
		t.Fatalf("write happened before the window elapsed")
	}

	waitFor(t, func() bool { n, _ := backend.stats(); return n == 1 })
	time.Sleep(100 * time.Millisecond)
	if _, writes := backend.stats(); writes != 1 {
		t.Errorf("writes = %d, want 1", writes)
	}

	got := s.Load(context.Background(), "k", catalog)
	if got == nil {
		t.Fatal("Load returned nil")
	}
	if reps := got.Entries[0].Exercise.Sets[0].Reps; reps != 5 {
		t.Errorf("reps = %d, want latest value 5", reps)
	}
}

// TestLoadRoundTrip verifies a flushed draft rehydrates to the same tree,
// chains, supersets and unfinished rows included.
func TestLoadRoundTrip(t *testing.T) {
	s := NewStore(newMemBackend(), time.Hour, nil)
	ctx := context.Background()

	want := sampleTree()
	if err := s.Save("k", want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if s.Pending("k") {
		t.Error("write still pending after Flush")
	}

	got := s.Load(ctx, "k", catalog)
	if diff := cmp.Diff(want, got, treeOpts); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

// TestLoadSeesPendingSnapshot verifies Load returns an unwritten snapshot.
func TestLoadSeesPendingSnapshot(t *testing.T) {
	backend := newMemBackend()
	s := NewStore(backend, time.Hour, nil)

	if err := s.Save("k", sampleTree()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := s.Load(context.Background(), "k", catalog); got == nil || got.Len() != 2 {
		t.Errorf("Load = %+v, want 2 entries", got)
	}
	if _, writes := backend.stats(); writes != 0 {
		t.Errorf("writes = %d, want 0", writes)
	}
}

// TestLoadMissingOrMalformed verifies absent and corrupt drafts load as nil.
func TestLoadMissingOrMalformed(t *testing.T) {
	backend := newMemBackend()
	s := NewStore(backend, time.Hour, nil)
	ctx := context.Background()

	if got := s.Load(ctx, "missing", catalog); got != nil {
		t.Errorf("missing draft = %+v, want nil", got)
	}

	for name, payload := range map[string]string{
		"not json":    "{not json",
		"wrong shape": `{"kind":"REGULAR"}`,
		"empty":       `[]`,
		"unknown":     `[{"kind":"REGULAR","exerciseId":"ghost","sets":[]}]`,
	} {
		t.Run(name, func(t *testing.T) {
			backend.Set(ctx, "bad", []byte(payload))
			if got := s.Load(ctx, "bad", catalog); got != nil {
				t.Errorf("Load = %+v, want nil", got)
			}
		})
	}
}

// TestClearCancelsPendingWrite verifies a cleared draft is not written back
// by a save scheduled before the clear.
func TestClearCancelsPendingWrite(t *testing.T) {
	backend := newMemBackend()
	s := NewStore(backend, 20*time.Millisecond, nil)
	ctx := context.Background()

	backend.Set(ctx, "k", []byte(`[]`))
	if err := s.Save("k", sampleTree()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Clear(ctx, "k"); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if n, writes := backend.stats(); n != 0 || writes != 1 {
		t.Errorf("entries = %d writes = %d, want 0 entries and only the seed write", n, writes)
	}
}

// TestItemsEmptyExercise verifies an exercise without rows keeps one empty slot.
func TestItemsEmptyExercise(t *testing.T) {
	items := Items([]Entry{{Kind: KindRegular, ExerciseID: "bench"}}, nil)
	tree, warnings := grouping.NewHydrator(nil).Hydrate(items, catalog)
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}
	if tree.Len() != 1 || len(tree.Entries[0].Exercise.Sets) != 1 {
		t.Errorf("tree = %+v, want one exercise with one slot", tree.Entries)
	}
}

// TestItemsMintsChainIDs verifies chains saved without an id get one, shared
// by the main set and its drops.
func TestItemsMintsChainIDs(t *testing.T) {
	items := Items([]Entry{{Kind: KindRegular, ExerciseID: "bench", Sets: []Row{
		{Type: RowDrop, Level: 1, Weight: 1, Reps: 1},
		{Type: RowMain, Weight: 100, Reps: 5},
		{Type: RowDrop, Level: 1, Weight: 70, Reps: 8},
	}}}, func() string { return "minted" })

	if len(items) != 2 {
		t.Fatalf("items = %d, want 2 (orphan drop ignored)", len(items))
	}
	for _, it := range items {
		if it.GroupID != "minted" || it.GroupType != models.GroupDropSet || *it.SetNumber != 1 {
			t.Errorf("item = %+v", it)
		}
	}
}
