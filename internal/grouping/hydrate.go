package grouping

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/claude/liftlog/internal/models"
)

// Hydrator rebuilds the hierarchical tree from flat items.
type Hydrator struct {
	log *slog.Logger
}

// NewHydrator creates a Hydrator. Warnings are logged to log when non-nil.
func NewHydrator(log *slog.Logger) *Hydrator {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Hydrator{log: log}
}

// Hydrate reconstructs a tree from flat items. Items are ordered by position
// (stable on input order). Malformed groups lose their grouping and are
// hydrated as plain sets; items referencing exercises missing from lookup
// are dropped. Both cases are reported as warnings, never as errors.
func (h *Hydrator) Hydrate(items []models.FlatItem, lookup Lookup) (*models.Tree, []Warning) {
	b := &treeBuilder{
		lookup:    lookup,
		exercises: map[string]*exerciseBuild{},
		supersets: map[string]*supersetBuild{},
	}

	sorted := make([]models.FlatItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})

	kept := b.dropUnknown(sorted)
	valid := b.validateGroups(kept)
	for _, it := range kept {
		k := groupKey{typ: it.GroupType, id: it.GroupID}
		switch {
		case it.Grouped() && valid[k] && k.typ == models.GroupSuperset:
			b.superset(it.GroupID).add(b, it)
		case it.Grouped() && valid[k] && k.typ == models.GroupDropSet:
			eb := b.exercise(it.ExerciseID)
			eb.chain(it.GroupID).add(eb, it)
		default:
			b.exercise(it.ExerciseID).addPlain(it)
		}
	}

	tree := b.finish()
	for _, w := range b.warnings {
		h.log.Warn("hydration warning",
			"kind", w.Kind,
			"exercise_id", w.ExerciseID,
			"group_id", w.GroupID,
			"message", w.Message,
		)
	}
	return tree, b.warnings
}

type groupKey struct {
	typ models.GroupType
	id  string
}

// node is an entry under construction, kept in first-occurrence order.
type node interface {
	appendTo(t *models.Tree)
}

type treeBuilder struct {
	lookup    Lookup
	order     []node
	exercises map[string]*exerciseBuild
	supersets map[string]*supersetBuild
	warnings  []Warning
}

func (b *treeBuilder) warn(w Warning) {
	b.warnings = append(b.warnings, w)
}

func (b *treeBuilder) dropUnknown(items []models.FlatItem) []models.FlatItem {
	skipped := map[string]int{}
	var unknown []string
	kept := items[:0:0]
	for _, it := range items {
		if _, ok := b.lookup.Lookup(it.ExerciseID); !ok {
			if skipped[it.ExerciseID] == 0 {
				unknown = append(unknown, it.ExerciseID)
			}
			skipped[it.ExerciseID]++
			continue
		}
		kept = append(kept, it)
	}
	for _, id := range unknown {
		b.warn(Warning{
			Kind:       WarnUnknownExercise,
			ExerciseID: id,
			Message:    fmt.Sprintf("exercise %q is not in the catalog; %d item(s) skipped", id, skipped[id]),
		})
	}
	return kept
}

// validateGroups returns the groups that can be materialized.
func (b *treeBuilder) validateGroups(items []models.FlatItem) map[groupKey]bool {
	members := map[groupKey][]models.FlatItem{}
	var order []groupKey
	for _, it := range items {
		if !it.Grouped() {
			continue
		}
		k := groupKey{typ: it.GroupType, id: it.GroupID}
		if _, seen := members[k]; !seen {
			order = append(order, k)
		}
		members[k] = append(members[k], it)
	}

	valid := make(map[groupKey]bool, len(order))
	for _, k := range order {
		group := members[k]
		exerciseIDs := distinctExercises(group)
		switch k.typ {
		case models.GroupSuperset:
			if len(exerciseIDs) == 2 {
				valid[k] = true
				continue
			}
			b.warn(Warning{
				Kind:    WarnMalformedSuperset,
				GroupID: k.id,
				Message: fmt.Sprintf("superset %s references %d exercise(s), want 2; sets kept as plain sets", k.id, len(exerciseIDs)),
			})
		case models.GroupDropSet:
			anchors := 0
			for _, it := range group {
				if it.Order() == 0 {
					anchors++
				}
			}
			if anchors == 1 && len(exerciseIDs) == 1 {
				valid[k] = true
				continue
			}
			b.warn(Warning{
				Kind:       WarnMalformedDropSet,
				ExerciseID: exerciseIDs[0],
				GroupID:    k.id,
				Message:    fmt.Sprintf("drop set %s has %d main set(s) across %d exercise(s); sets kept as plain sets", k.id, anchors, len(exerciseIDs)),
			})
		default:
			b.warn(Warning{
				Kind:    WarnUnknownGroupType,
				GroupID: k.id,
				Message: fmt.Sprintf("group %s has unknown type %q; sets kept as plain sets", k.id, k.typ),
			})
		}
	}
	return valid
}

func distinctExercises(items []models.FlatItem) []string {
	seen := map[string]bool{}
	var ids []string
	for _, it := range items {
		if !seen[it.ExerciseID] {
			seen[it.ExerciseID] = true
			ids = append(ids, it.ExerciseID)
		}
	}
	return ids
}

func (b *treeBuilder) newExerciseBuild(id string) *exerciseBuild {
	ex, _ := b.lookup.Lookup(id)
	return &exerciseBuild{
		entry: models.ExerciseEntry{
			ExerciseID:  id,
			Name:        ex.Name,
			MuscleGroup: ex.MuscleGroup,
		},
		chains: map[string]*chainBuild{},
	}
}

func (b *treeBuilder) exercise(id string) *exerciseBuild {
	if eb, ok := b.exercises[id]; ok {
		return eb
	}
	eb := b.newExerciseBuild(id)
	b.exercises[id] = eb
	b.order = append(b.order, eb)
	return eb
}

func (b *treeBuilder) superset(groupID string) *supersetBuild {
	if sb, ok := b.supersets[groupID]; ok {
		return sb
	}
	sb := &supersetBuild{groupID: groupID}
	b.supersets[groupID] = sb
	b.order = append(b.order, sb)
	return sb
}

func (b *treeBuilder) finish() *models.Tree {
	t := models.NewTree()
	for _, n := range b.order {
		n.appendTo(t)
	}
	return t
}

// exerciseBuild accumulates the primary slots of one exercise. target is the
// planned slot count contributed by template items.
type exerciseBuild struct {
	entry  models.ExerciseEntry
	target int
	prims  []*primary
	chains map[string]*chainBuild
}

type primary struct {
	slot  models.SetSlot
	chain *chainBuild
}

func (eb *exerciseBuild) plan(it models.FlatItem) {
	n := DefaultTargetSets
	if it.TargetSets != nil {
		n = *it.TargetSets
	}
	eb.target = max(eb.target, ClampTargetSets(n))
}

func (eb *exerciseBuild) addPlain(it models.FlatItem) {
	if it.Weightless() {
		eb.plan(it)
		return
	}
	eb.prims = append(eb.prims, &primary{slot: models.SetSlot{
		Weight: deref(it.Weight),
		Reps:   derefInt(it.Reps),
	}})
}

func (eb *exerciseBuild) chain(groupID string) *chainBuild {
	if c, ok := eb.chains[groupID]; ok {
		return c
	}
	c := &chainBuild{groupID: groupID}
	eb.chains[groupID] = c
	eb.prims = append(eb.prims, &primary{chain: c})
	return c
}

// slots places chains at their set number when it is in range and free,
// then fills the remaining positions in encounter order. Positions nobody
// claims stay empty (template placeholders).
func (eb *exerciseBuild) slots() []models.SetSlot {
	n := max(eb.target, len(eb.prims))
	out := make([]models.SetSlot, n)
	filled := make([]bool, n)

	var rest []*primary
	for _, p := range eb.prims {
		if p.chain != nil {
			if sn := p.chain.setNumber(); sn >= 1 && sn <= n && !filled[sn-1] {
				out[sn-1] = p.chain.slot()
				filled[sn-1] = true
				continue
			}
		}
		rest = append(rest, p)
	}

	next := 0
	for _, p := range rest {
		for filled[next] {
			next++
		}
		if p.chain != nil {
			out[next] = p.chain.slot()
		} else {
			out[next] = p.slot
		}
		filled[next] = true
	}
	return out
}

func (eb *exerciseBuild) build() models.ExerciseEntry {
	entry := eb.entry
	entry.Sets = eb.slots()
	return entry
}

func (eb *exerciseBuild) appendTo(t *models.Tree) {
	t.AddExercise(eb.build())
}

type chainBuild struct {
	groupID string
	main    *models.FlatItem
	drops   []models.FlatItem
}

func (c *chainBuild) add(eb *exerciseBuild, it models.FlatItem) {
	if it.Weightless() && it.TargetSets != nil {
		eb.plan(it)
	}
	if it.Order() == 0 {
		c.main = &it
		return
	}
	c.drops = append(c.drops, it)
}

func (c *chainBuild) setNumber() int {
	if c.main == nil || c.main.SetNumber == nil {
		return 0
	}
	return *c.main.SetNumber
}

// slot renumbers drop levels contiguously from 1.
func (c *chainBuild) slot() models.SetSlot {
	sort.SliceStable(c.drops, func(i, j int) bool {
		return c.drops[i].Order() < c.drops[j].Order()
	})
	s := models.SetSlot{GroupID: c.groupID}
	if c.main != nil {
		s.Weight = deref(c.main.Weight)
		s.Reps = derefInt(c.main.Reps)
	}
	for i, d := range c.drops {
		s.Drops = append(s.Drops, models.Drop{
			Level:  i + 1,
			Weight: deref(d.Weight),
			Reps:   derefInt(d.Reps),
		})
	}
	return s
}

type supersetBuild struct {
	groupID string
	halves  []*supersetHalf
}

type supersetHalf struct {
	order int
	eb    *exerciseBuild
}

func (sb *supersetBuild) add(b *treeBuilder, it models.FlatItem) {
	for _, h := range sb.halves {
		if h.eb.entry.ExerciseID == it.ExerciseID {
			h.eb.addPlain(it)
			return
		}
	}
	h := &supersetHalf{order: it.Order(), eb: b.newExerciseBuild(it.ExerciseID)}
	h.eb.addPlain(it)
	sb.halves = append(sb.halves, h)
}

func (sb *supersetBuild) appendTo(t *models.Tree) {
	sort.SliceStable(sb.halves, func(i, j int) bool {
		return sb.halves[i].order < sb.halves[j].order
	})
	t.AddSuperset(models.SupersetPair{
		GroupID: sb.groupID,
		A:       sb.halves[0].eb.build(),
		B:       sb.halves[1].eb.build(),
	})
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
