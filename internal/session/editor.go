// Package session implements workout and template editing on top of the
// grouping tree: user mutations, draft autosave, template preload and
// one-shot submission.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/claude/liftlog/internal/display"
	"github.com/claude/liftlog/internal/draft"
	"github.com/claude/liftlog/internal/grouping"
	"github.com/claude/liftlog/internal/models"
)

// Boundary is the persistence side an editor submits to and preloads from.
// *client.Client satisfies it.
type Boundary interface {
	FinishWorkout(ctx context.Context, sessionID string, items []models.FlatItem) (models.FinishResponse, error)
	SaveTemplate(ctx context.Context, templateID, name string, items []models.FlatItem) (models.TemplateRow, error)
	TemplateItems(ctx context.Context, templateID string) ([]models.FlatItem, error)
}

// Deps are the collaborators shared by editors.
type Deps struct {
	Catalog  grouping.Lookup
	Boundary Boundary
	// Drafts is optional; workout editors autosave to it when set.
	Drafts *draft.Store
	NewID  grouping.IDFunc
	Log    *slog.Logger
}

// Side selects a superset half.
type Side int

const (
	SideA Side = iota
	SideB
)

// Editor owns one workout or template tree for its lifetime. It is not safe
// for concurrent use.
type Editor struct {
	deps     Deps
	template bool
	pro      bool

	sessionID  string
	templateID string
	name       string

	tree       *models.Tree
	hydrator   *grouping.Hydrator
	flattener  *grouping.Flattener
	submitting bool
}

// NewWorkoutEditor creates an editor for a workout session.
func NewWorkoutEditor(sessionID string, pro bool, deps Deps) *Editor {
	e := newEditor(pro, deps)
	e.sessionID = sessionID
	return e
}

// NewTemplateEditor creates an editor for a template. An empty templateID
// creates a new template on submit.
func NewTemplateEditor(templateID, name string, pro bool, deps Deps) *Editor {
	e := newEditor(pro, deps)
	e.template = true
	e.templateID = templateID
	e.name = name
	return e
}

func newEditor(pro bool, deps Deps) *Editor {
	if deps.Log == nil {
		deps.Log = slog.New(slog.DiscardHandler)
	}
	return &Editor{
		deps:      deps,
		pro:       pro,
		tree:      models.NewTree(),
		hydrator:  grouping.NewHydrator(deps.Log),
		flattener: grouping.NewFlattener(deps.NewID),
	}
}

// Tree returns the tree being edited. Callers must not modify it.
func (e *Editor) Tree() *models.Tree {
	return e.tree
}

// View composes the current tree for display.
func (e *Editor) View() display.View {
	return display.Compose(e.tree)
}

// SetName renames the template being edited.
func (e *Editor) SetName(name string) {
	e.name = name
}

func (e *Editor) draftKey() string {
	return draft.Key(e.sessionID)
}

func (e *Editor) autosave() {
	if e.template || e.deps.Drafts == nil {
		return
	}
	if err := e.deps.Drafts.Save(e.draftKey(), e.tree); err != nil {
		e.deps.Log.Warn("draft autosave failed", "session_id", e.sessionID, "error", err)
	}
}

// initialSlots is the slot count of a newly added exercise.
func (e *Editor) initialSlots() int {
	if e.template {
		return grouping.DefaultTargetSets
	}
	return 1
}

func (e *Editor) newEntry(exerciseID string) (models.ExerciseEntry, error) {
	if strings.TrimSpace(exerciseID) == "" {
		return models.ExerciseEntry{}, ErrNoExercise
	}
	ex, ok := e.deps.Catalog.Lookup(exerciseID)
	if !ok {
		return models.ExerciseEntry{}, fmt.Errorf("%w: %s", ErrUnknownExercise, exerciseID)
	}
	return models.ExerciseEntry{
		ExerciseID:  ex.ID,
		Name:        ex.Name,
		MuscleGroup: ex.MuscleGroup,
		Sets:        make([]models.SetSlot, e.initialSlots()),
	}, nil
}

// AddExercise appends a standalone exercise and returns its entry id.
func (e *Editor) AddExercise(exerciseID string) (int, error) {
	entry, err := e.newEntry(exerciseID)
	if err != nil {
		return 0, err
	}
	id := e.tree.AddExercise(entry)
	e.autosave()
	return id, nil
}

// AddSuperset appends a superset of two different exercises.
func (e *Editor) AddSuperset(a, b string) (int, error) {
	if !e.pro {
		return 0, ErrProRequired
	}
	if a == b && a != "" {
		return 0, ErrSameExercise
	}
	entryA, err := e.newEntry(a)
	if err != nil {
		return 0, err
	}
	entryB, err := e.newEntry(b)
	if err != nil {
		return 0, err
	}
	id := e.tree.AddSuperset(models.SupersetPair{A: entryA, B: entryB})
	e.autosave()
	return id, nil
}

// RemoveEntry deletes an exercise or superset.
func (e *Editor) RemoveEntry(id int) error {
	if !e.tree.Remove(id) {
		return ErrNoEntry
	}
	e.autosave()
	return nil
}

func (e *Editor) entry(id int) (*models.Entry, error) {
	en, ok := e.tree.Entry(id)
	if !ok {
		return nil, ErrNoEntry
	}
	return en, nil
}

// halves returns the exercise lists a set operation applies to: the entry
// itself, or both halves of a superset.
func halves(en *models.Entry) []*models.ExerciseEntry {
	if en.Superset != nil {
		return []*models.ExerciseEntry{&en.Superset.A, &en.Superset.B}
	}
	return []*models.ExerciseEntry{en.Exercise}
}

// side returns the exercise a single-set operation addresses.
func side(en *models.Entry, s Side) *models.ExerciseEntry {
	if en.Superset == nil {
		return en.Exercise
	}
	if s == SideB {
		return &en.Superset.B
	}
	return &en.Superset.A
}

// AddSet appends an empty set (a row to both halves of a superset) and
// returns its 0-based index.
func (e *Editor) AddSet(entryID int) (int, error) {
	en, err := e.entry(entryID)
	if err != nil {
		return 0, err
	}
	idx := 0
	for _, ex := range halves(en) {
		ex.Sets = append(ex.Sets, models.SetSlot{})
		idx = len(ex.Sets) - 1
	}
	e.autosave()
	return idx, nil
}

// RemoveSet deletes a set (a row from both halves of a superset), drops
// included.
func (e *Editor) RemoveSet(entryID, index int) error {
	en, err := e.entry(entryID)
	if err != nil {
		return err
	}
	hs := halves(en)
	for _, ex := range hs {
		if index < 0 || index >= len(ex.Sets) {
			return ErrNoSet
		}
	}
	for _, ex := range hs {
		ex.Sets = append(ex.Sets[:index], ex.Sets[index+1:]...)
	}
	e.autosave()
	return nil
}

func checkValues(weight float64, reps int) error {
	if weight < 0 || reps < 0 {
		return ErrNegativeValue
	}
	return nil
}

func (e *Editor) slot(entryID int, s Side, index int) (*models.Entry, *models.SetSlot, error) {
	en, err := e.entry(entryID)
	if err != nil {
		return nil, nil, err
	}
	ex := side(en, s)
	if index < 0 || index >= len(ex.Sets) {
		return nil, nil, ErrNoSet
	}
	return en, &ex.Sets[index], nil
}

// UpdateSet records weight and reps of a set. s is ignored for standalone
// exercises.
func (e *Editor) UpdateSet(entryID int, s Side, index int, weight float64, reps int) error {
	if err := checkValues(weight, reps); err != nil {
		return err
	}
	_, slot, err := e.slot(entryID, s, index)
	if err != nil {
		return err
	}
	slot.Weight, slot.Reps = weight, reps
	e.autosave()
	return nil
}

// AddDrop chains a new drop to a set and returns its level. The first drop
// turns the set into a chain and mints its group id.
func (e *Editor) AddDrop(entryID, index int) (int, error) {
	if !e.pro {
		return 0, ErrProRequired
	}
	en, slot, err := e.slot(entryID, SideA, index)
	if err != nil {
		return 0, err
	}
	if en.Superset != nil {
		return 0, ErrNotExercise
	}
	if slot.GroupID == "" {
		slot.GroupID = e.newID()
	}
	level := len(slot.Drops) + 1
	slot.Drops = append(slot.Drops, models.Drop{Level: level})
	e.autosave()
	return level, nil
}

func (e *Editor) newID() string {
	if e.deps.NewID != nil {
		return e.deps.NewID()
	}
	return grouping.NewGroupID()
}

func (e *Editor) drop(entryID, index, level int) (*models.SetSlot, int, error) {
	_, slot, err := e.slot(entryID, SideA, index)
	if err != nil {
		return nil, 0, err
	}
	for i, d := range slot.Drops {
		if d.Level == level {
			return slot, i, nil
		}
	}
	return nil, 0, ErrNoDrop
}

// UpdateDrop records weight and reps of a drop.
func (e *Editor) UpdateDrop(entryID, index, level int, weight float64, reps int) error {
	if err := checkValues(weight, reps); err != nil {
		return err
	}
	slot, i, err := e.drop(entryID, index, level)
	if err != nil {
		return err
	}
	slot.Drops[i].Weight, slot.Drops[i].Reps = weight, reps
	e.autosave()
	return nil
}

// RemoveDrop deletes a drop and renumbers the remaining levels from 1.
// Removing the last drop turns the chain back into a plain set.
func (e *Editor) RemoveDrop(entryID, index, level int) error {
	slot, i, err := e.drop(entryID, index, level)
	if err != nil {
		return err
	}
	slot.Drops = append(slot.Drops[:i], slot.Drops[i+1:]...)
	for j := range slot.Drops {
		slot.Drops[j].Level = j + 1
	}
	if len(slot.Drops) == 0 {
		slot.Drops = nil
		slot.GroupID = ""
	}
	e.autosave()
	return nil
}

// SetTargetSets resizes an entry to n slots, truncating from the end or
// appending empty slots.
func (e *Editor) SetTargetSets(entryID, n int) error {
	if n < grouping.MinTargetSets || n > grouping.MaxTargetSets {
		return ErrTargetSets
	}
	en, err := e.entry(entryID)
	if err != nil {
		return err
	}
	for _, ex := range halves(en) {
		if n <= len(ex.Sets) {
			ex.Sets = ex.Sets[:n]
			continue
		}
		ex.Sets = append(ex.Sets, make([]models.SetSlot, n-len(ex.Sets))...)
	}
	e.autosave()
	return nil
}

// LoadItems replaces the tree with persisted flat items.
func (e *Editor) LoadItems(items []models.FlatItem) []grouping.Warning {
	tree, warnings := e.hydrator.Hydrate(items, e.deps.Catalog)
	e.tree = tree
	return warnings
}

// RestoreDraft replaces the tree with the session draft, if there is one.
func (e *Editor) RestoreDraft(ctx context.Context) bool {
	if e.template || e.deps.Drafts == nil {
		return false
	}
	t := e.deps.Drafts.Load(ctx, e.draftKey(), e.deps.Catalog)
	if t == nil {
		return false
	}
	e.tree = t
	return true
}

// Resume opens a session: a draft, when present, wins over the persisted
// items.
func (e *Editor) Resume(ctx context.Context, persisted []models.FlatItem) (fromDraft bool, warnings []grouping.Warning) {
	if e.RestoreDraft(ctx) {
		return true, nil
	}
	return false, e.LoadItems(persisted)
}

// PreloadTemplate appends a template's exercises. The tree is untouched
// when the fetch fails.
func (e *Editor) PreloadTemplate(ctx context.Context, templateID string) ([]grouping.Warning, error) {
	items, err := e.deps.Boundary.TemplateItems(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("loading template %s: %w", templateID, err)
	}

	loaded, warnings := e.hydrator.Hydrate(items, e.deps.Catalog)
	for _, en := range loaded.Entries {
		switch {
		case en.Superset != nil:
			e.tree.AddSuperset(*en.Superset)
		case en.Exercise != nil:
			e.tree.AddExercise(*en.Exercise)
		}
	}
	e.autosave()
	return warnings, nil
}

// Submit flattens the tree and sends it once. An empty result returns
// ErrNothingToSubmit without contacting the boundary. On failure the tree
// and the draft are left as they are; on success the draft is cleared.
func (e *Editor) Submit(ctx context.Context) (grouping.Result, error) {
	if e.submitting {
		return grouping.Result{}, ErrSubmitInProgress
	}
	if e.template && strings.TrimSpace(e.name) == "" {
		return grouping.Result{}, ErrNoName
	}

	var res grouping.Result
	if e.template {
		res = e.flattener.FlattenTemplate(e.tree)
	} else {
		res = e.flattener.Flatten(e.tree)
	}
	for _, w := range res.Warnings {
		e.deps.Log.Info("submission warning", "kind", w.Kind, "message", w.Message)
	}
	if res.Empty() {
		return res, ErrNothingToSubmit
	}

	e.submitting = true
	defer func() { e.submitting = false }()

	if e.template {
		row, err := e.deps.Boundary.SaveTemplate(ctx, e.templateID, strings.TrimSpace(e.name), res.Items)
		if err != nil {
			return res, fmt.Errorf("saving template: %w", err)
		}
		e.templateID = row.ID.String()
		return res, nil
	}

	if _, err := e.deps.Boundary.FinishWorkout(ctx, e.sessionID, res.Items); err != nil {
		return res, fmt.Errorf("finishing workout: %w", err)
	}
	if e.deps.Drafts != nil {
		if err := e.deps.Drafts.Clear(ctx, e.draftKey()); err != nil {
			e.deps.Log.Warn("draft clear failed", "session_id", e.sessionID, "error", err)
		}
	}
	return res, nil
}
