package grouping

import (
	"fmt"

	"github.com/claude/liftlog/internal/models"
)

// Result is the output of a flatten call.
type Result struct {
	Items    []models.FlatItem `json:"items"`
	Warnings []Warning         `json:"warnings,omitempty"`
}

// Empty reports whether there is nothing to submit.
func (r Result) Empty() bool {
	return len(r.Items) == 0
}

// Flattener serializes a tree into ordered flat items. Group ids it mints
// are written back onto the tree so later calls reuse them.
type Flattener struct {
	newID IDFunc
}

// NewFlattener returns a Flattener minting ids with newID, or with
// NewGroupID when newID is nil.
func NewFlattener(newID IDFunc) *Flattener {
	if newID == nil {
		newID = NewGroupID
	}
	return &Flattener{newID: newID}
}

// ValidSet reports whether a logged set carries positive weight and reps.
func ValidSet(weight float64, reps int) bool {
	return weight > 0 && reps > 0
}

type emitter struct {
	res *Result
	pos int
}

func (e *emitter) emit(items ...models.FlatItem) {
	for _, it := range items {
		it.Position = e.pos
		e.pos++
		e.res.Items = append(e.res.Items, it)
	}
}

func (e *emitter) warn(w Warning) {
	e.res.Warnings = append(e.res.Warnings, w)
}

// Flatten serializes a session tree. Only sets with positive weight and reps
// are emitted; an exercise left with no valid sets is omitted and reported.
func (f *Flattener) Flatten(t *models.Tree) Result {
	var res Result
	em := &emitter{res: &res}
	for i := range t.Entries {
		e := &t.Entries[i]
		switch {
		case e.Superset != nil:
			f.flattenSuperset(em, e.Superset)
		case e.Exercise != nil:
			f.flattenExercise(em, e.Exercise)
		}
	}
	return res
}

func (f *Flattener) flattenExercise(em *emitter, ex *models.ExerciseEntry) {
	var out []models.FlatItem
	setNumber := 0
	for i := range ex.Sets {
		slot := &ex.Sets[i]
		if !ValidSet(slot.Weight, slot.Reps) {
			continue
		}
		setNumber++

		var drops []models.Drop
		for _, d := range slot.Drops {
			if ValidSet(d.Weight, d.Reps) {
				drops = append(drops, d)
			}
		}
		if len(drops) == 0 {
			out = append(out, models.FlatItem{
				ExerciseID: ex.ExerciseID,
				Weight:     floatPtr(slot.Weight),
				Reps:       intPtr(slot.Reps),
			})
			continue
		}

		if slot.GroupID == "" {
			slot.GroupID = f.newID()
		}
		out = append(out, models.FlatItem{
			ExerciseID: ex.ExerciseID,
			Weight:     floatPtr(slot.Weight),
			Reps:       intPtr(slot.Reps),
			GroupID:    slot.GroupID,
			GroupType:  models.GroupDropSet,
			GroupOrder: intPtr(0),
			SetNumber:  intPtr(setNumber),
		})
		// Drops are already in level order; skipped levels close up.
		for level, d := range drops {
			out = append(out, models.FlatItem{
				ExerciseID: ex.ExerciseID,
				Weight:     floatPtr(d.Weight),
				Reps:       intPtr(d.Reps),
				GroupID:    slot.GroupID,
				GroupType:  models.GroupDropSet,
				GroupOrder: intPtr(level + 1),
				SetNumber:  intPtr(setNumber),
			})
		}
	}

	if len(out) == 0 {
		em.warn(Warning{
			Kind:       WarnNoValidSets,
			ExerciseID: ex.ExerciseID,
			Message:    fmt.Sprintf("%s has no sets with positive weight and reps", displayName(ex)),
		})
		return
	}
	em.emit(out...)
}

func (f *Flattener) flattenSuperset(em *emitter, p *models.SupersetPair) {
	rows := min(len(p.A.Sets), len(p.B.Sets))
	if len(p.A.Sets) != len(p.B.Sets) {
		em.warn(Warning{
			Kind:    WarnSupersetMismatch,
			GroupID: p.GroupID,
			Message: fmt.Sprintf("superset %s + %s has %d and %d sets; only %d rows are paired",
				displayName(&p.A), displayName(&p.B), len(p.A.Sets), len(p.B.Sets), rows),
		})
	}

	var out []models.FlatItem
	for i := 0; i < rows; i++ {
		a, b := p.A.Sets[i], p.B.Sets[i]
		if !ValidSet(a.Weight, a.Reps) || !ValidSet(b.Weight, b.Reps) {
			continue
		}
		if p.GroupID == "" {
			p.GroupID = f.newID()
		}
		row := len(out)/2 + 1
		out = append(out,
			supersetItem(p.A.ExerciseID, p.GroupID, 0, row, a),
			supersetItem(p.B.ExerciseID, p.GroupID, 1, row, b),
		)
	}

	if len(out) == 0 {
		for _, ex := range []*models.ExerciseEntry{&p.A, &p.B} {
			em.warn(Warning{
				Kind:       WarnNoValidSets,
				ExerciseID: ex.ExerciseID,
				GroupID:    p.GroupID,
				Message:    fmt.Sprintf("superset %s + %s has no complete rows", displayName(&p.A), displayName(&p.B)),
			})
		}
		return
	}
	em.emit(out...)
}

func supersetItem(exerciseID, groupID string, order, row int, s models.SetSlot) models.FlatItem {
	return models.FlatItem{
		ExerciseID: exerciseID,
		Weight:     floatPtr(s.Weight),
		Reps:       intPtr(s.Reps),
		GroupID:    groupID,
		GroupType:  models.GroupSuperset,
		GroupOrder: intPtr(order),
		SetNumber:  intPtr(row),
	}
}

// FlattenTemplate serializes a template tree. Template slots carry no logged
// values: each exercise becomes one item with targetSets, or one drop-set
// group per chained slot, and each superset half becomes one item.
func (f *Flattener) FlattenTemplate(t *models.Tree) Result {
	var res Result
	em := &emitter{res: &res}
	for i := range t.Entries {
		e := &t.Entries[i]
		switch {
		case e.Superset != nil:
			p := e.Superset
			if p.GroupID == "" {
				p.GroupID = f.newID()
			}
			for order, ex := range []*models.ExerciseEntry{&p.A, &p.B} {
				em.emit(models.FlatItem{
					ExerciseID: ex.ExerciseID,
					TargetSets: intPtr(ClampTargetSets(len(ex.Sets))),
					GroupID:    p.GroupID,
					GroupType:  models.GroupSuperset,
					GroupOrder: intPtr(order),
				})
			}
		case e.Exercise != nil:
			f.flattenTemplateExercise(em, e.Exercise)
		}
	}
	return res
}

func (f *Flattener) flattenTemplateExercise(em *emitter, ex *models.ExerciseEntry) {
	target := ClampTargetSets(len(ex.Sets))
	chained := false
	for i := range ex.Sets {
		slot := &ex.Sets[i]
		if !slot.IsChain() || i >= MaxTargetSets {
			continue
		}
		chained = true
		if slot.GroupID == "" {
			slot.GroupID = f.newID()
		}
		for order := 0; order <= len(slot.Drops); order++ {
			em.emit(models.FlatItem{
				ExerciseID: ex.ExerciseID,
				TargetSets: intPtr(target),
				GroupID:    slot.GroupID,
				GroupType:  models.GroupDropSet,
				GroupOrder: intPtr(order),
				SetNumber:  intPtr(i + 1),
			})
		}
	}
	if !chained {
		em.emit(models.FlatItem{ExerciseID: ex.ExerciseID, TargetSets: intPtr(target)})
	}
}

func displayName(ex *models.ExerciseEntry) string {
	if ex.Name != "" {
		return ex.Name
	}
	return ex.ExerciseID
}
