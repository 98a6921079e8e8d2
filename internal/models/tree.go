package models

// Entry is one node of a workout or template tree: either a standalone
// exercise or a superset pair. ID is issued by the owning Tree.
type Entry struct {
	ID       int            `json:"id"`
	Exercise *ExerciseEntry `json:"exercise,omitempty"`
	Superset *SupersetPair  `json:"superset,omitempty"`
}

// ExerciseIDs returns the exercise ids referenced by the entry.
func (e Entry) ExerciseIDs() []string {
	switch {
	case e.Superset != nil:
		return []string{e.Superset.A.ExerciseID, e.Superset.B.ExerciseID}
	case e.Exercise != nil:
		return []string{e.Exercise.ExerciseID}
	}
	return nil
}

// Tree is the hierarchical editing/display representation of a workout or
// template. It is owned by a single editing or viewing context.
type Tree struct {
	Entries []Entry `json:"entries"`
	lastID  int
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{}
}

// syncLastID raises lastID to the highest id present, so trees decoded from
// JSON keep issuing fresh ids.
func (t *Tree) syncLastID() {
	for _, e := range t.Entries {
		if e.ID > t.lastID {
			t.lastID = e.ID
		}
	}
}

func (t *Tree) nextID() int {
	t.syncLastID()
	t.lastID++
	return t.lastID
}

// AddExercise appends a standalone exercise entry and returns its id.
func (t *Tree) AddExercise(ex ExerciseEntry) int {
	id := t.nextID()
	t.Entries = append(t.Entries, Entry{ID: id, Exercise: &ex})
	return id
}

// AddSuperset appends a superset pair and returns its id.
func (t *Tree) AddSuperset(p SupersetPair) int {
	id := t.nextID()
	t.Entries = append(t.Entries, Entry{ID: id, Superset: &p})
	return id
}

// Entry returns the entry with the given id.
func (t *Tree) Entry(id int) (*Entry, bool) {
	for i := range t.Entries {
		if t.Entries[i].ID == id {
			return &t.Entries[i], true
		}
	}
	return nil, false
}

// Remove deletes the entry with the given id. Ids are never reissued.
func (t *Tree) Remove(id int) bool {
	t.syncLastID()
	for i := range t.Entries {
		if t.Entries[i].ID == id {
			t.Entries = append(t.Entries[:i], t.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (t *Tree) Len() int {
	return len(t.Entries)
}
