package draft

import (
	"github.com/claude/liftlog/internal/grouping"
	"github.com/claude/liftlog/internal/models"
)

// EntryKind tags a draft entry.
type EntryKind string

const (
	KindRegular  EntryKind = "REGULAR"
	KindSuperset EntryKind = "SUPERSET"
)

// RowType tags a draft set row.
type RowType string

const (
	RowMain RowType = "MAIN"
	RowDrop RowType = "DROP"
)

// Row is one typed-in set. Values are kept as entered, including zeros, so
// unfinished input survives a reload.
type Row struct {
	Type    RowType `json:"type"`
	Level   int     `json:"level"`
	Weight  float64 `json:"weight"`
	Reps    int     `json:"reps"`
	GroupID string  `json:"groupId,omitempty"`
}

// Entry is one exercise of a draft. Superset entries carry the second half in
// Partner.
type Entry struct {
	Kind       EntryKind `json:"kind"`
	ExerciseID string    `json:"exerciseId"`
	GroupID    string    `json:"groupId,omitempty"`
	Sets       []Row     `json:"sets"`
	Partner    *Entry    `json:"partner,omitempty"`
}

// Snapshot converts a tree to draft entries.
func Snapshot(t *models.Tree) []Entry {
	out := []Entry{}
	for _, e := range t.Entries {
		switch {
		case e.Superset != nil:
			p := e.Superset
			partner := Entry{Kind: KindSuperset, ExerciseID: p.B.ExerciseID, Sets: rows(p.B.Sets)}
			out = append(out, Entry{
				Kind:       KindSuperset,
				ExerciseID: p.A.ExerciseID,
				GroupID:    p.GroupID,
				Sets:       rows(p.A.Sets),
				Partner:    &partner,
			})
		case e.Exercise != nil:
			out = append(out, Entry{
				Kind:       KindRegular,
				ExerciseID: e.Exercise.ExerciseID,
				Sets:       rows(e.Exercise.Sets),
			})
		}
	}
	return out
}

func rows(sets []models.SetSlot) []Row {
	out := []Row{}
	for _, s := range sets {
		out = append(out, Row{Type: RowMain, Weight: s.Weight, Reps: s.Reps, GroupID: s.GroupID})
		for _, d := range s.Drops {
			out = append(out, Row{Type: RowDrop, Level: d.Level, Weight: d.Weight, Reps: d.Reps})
		}
	}
	return out
}

// Items converts draft entries into flat items for the hydrator. Every row
// becomes an item with explicit weight and reps, so empty rows come back as
// empty slots. Chains without a stored id get one from newID.
func Items(entries []Entry, newID grouping.IDFunc) []models.FlatItem {
	if newID == nil {
		newID = grouping.NewGroupID
	}
	c := &converter{newID: newID}
	for _, e := range entries {
		if e.ExerciseID == "" {
			continue
		}
		if e.Kind == KindSuperset && e.Partner != nil && e.Partner.ExerciseID != "" {
			c.superset(e)
			continue
		}
		c.regular(e.ExerciseID, e.Sets)
	}
	return c.items
}

type converter struct {
	newID grouping.IDFunc
	items []models.FlatItem
}

func (c *converter) add(it models.FlatItem) {
	it.Position = len(c.items)
	c.items = append(c.items, it)
}

// placeholder keeps an exercise with no rows in the tree as one empty slot.
func (c *converter) placeholder(it models.FlatItem) {
	one := 1
	it.TargetSets = &one
	c.add(it)
}

func (c *converter) regular(exerciseID string, rows []Row) {
	type chainRows struct {
		main  Row
		drops []Row
	}
	var mains []chainRows
	for _, r := range rows {
		switch r.Type {
		case RowMain:
			mains = append(mains, chainRows{main: r})
		case RowDrop:
			// A drop with no main set before it has nothing to attach to.
			if len(mains) > 0 {
				last := &mains[len(mains)-1]
				last.drops = append(last.drops, r)
			}
		}
	}
	if len(mains) == 0 {
		c.placeholder(models.FlatItem{ExerciseID: exerciseID})
		return
	}

	for i, m := range mains {
		if len(m.drops) == 0 {
			c.add(logged(exerciseID, m.main))
			continue
		}
		gid := m.main.GroupID
		if gid == "" {
			gid = c.newID()
		}
		setNumber := i + 1
		for order, r := range append([]Row{m.main}, m.drops...) {
			it := logged(exerciseID, r)
			it.GroupID = gid
			it.GroupType = models.GroupDropSet
			it.GroupOrder = &order
			it.SetNumber = &setNumber
			c.add(it)
		}
	}
}

func (c *converter) superset(e Entry) {
	gid := e.GroupID
	if gid == "" {
		gid = c.newID()
	}
	for order, half := range []Entry{e, *e.Partner} {
		n := 0
		for _, r := range half.Sets {
			if r.Type != RowMain {
				continue
			}
			n++
			row := n
			it := logged(half.ExerciseID, r)
			it.GroupID = gid
			it.GroupType = models.GroupSuperset
			it.GroupOrder = &order
			it.SetNumber = &row
			c.add(it)
		}
		if n == 0 {
			c.placeholder(models.FlatItem{
				ExerciseID: half.ExerciseID,
				GroupID:    gid,
				GroupType:  models.GroupSuperset,
				GroupOrder: &order,
			})
		}
	}
}

func logged(exerciseID string, r Row) models.FlatItem {
	w, reps := r.Weight, r.Reps
	return models.FlatItem{ExerciseID: exerciseID, Weight: &w, Reps: &reps}
}
