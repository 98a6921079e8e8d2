package models

import "encoding/json"

// GroupType tags a flat item as a member of a drop-set chain or a superset.
// The zero value means the item is ungrouped.
type GroupType string

const (
	GroupDropSet  GroupType = "DROP_SET"
	GroupSuperset GroupType = "SUPERSET"
)

// Valid reports whether g is one of the known group types.
func (g GroupType) Valid() bool {
	return g == GroupDropSet || g == GroupSuperset
}

// FlatItem is the wire and storage record for one logical set (sessions) or
// one planned exercise slot (templates).
type FlatItem struct {
	ExerciseID string    `json:"exerciseId"`
	Weight     *float64  `json:"weight,omitempty"`
	Reps       *int      `json:"reps,omitempty"`
	TargetSets *int      `json:"targetSets,omitempty"`
	Position   int       `json:"position"`
	GroupID    string    `json:"groupId,omitempty"`
	GroupType  GroupType `json:"groupType,omitempty"`
	GroupOrder *int      `json:"groupOrder,omitempty"`
	SetNumber  *int      `json:"setNumber,omitempty"`
}

// Grouped reports whether the item carries both halves of the grouping pair.
func (it FlatItem) Grouped() bool {
	return it.GroupID != "" && it.GroupType != ""
}

// Weightless reports whether the item carries no logged values, which is how
// template items are stored.
func (it FlatItem) Weightless() bool {
	return it.Weight == nil && it.Reps == nil
}

// Order returns GroupOrder, treating a missing value as 0.
func (it FlatItem) Order() int {
	if it.GroupOrder == nil {
		return 0
	}
	return *it.GroupOrder
}

// UnmarshalJSON accepts "orderIndex" as an alias for "position" and a JSON
// null for groupId/groupType.
func (it *FlatItem) UnmarshalJSON(data []byte) error {
	type plain FlatItem
	var aux struct {
		plain
		Position   *int    `json:"position"`
		OrderIndex *int    `json:"orderIndex"`
		GroupID    *string `json:"groupId"`
		GroupType  *string `json:"groupType"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*it = FlatItem(aux.plain)
	switch {
	case aux.Position != nil:
		it.Position = *aux.Position
	case aux.OrderIndex != nil:
		it.Position = *aux.OrderIndex
	}
	it.GroupID = ""
	if aux.GroupID != nil {
		it.GroupID = *aux.GroupID
	}
	it.GroupType = ""
	if aux.GroupType != nil {
		it.GroupType = GroupType(*aux.GroupType)
	}
	return nil
}

// Exercise is the catalog projection the tree and the hydrator work with.
type Exercise struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MuscleGroup string `json:"muscleGroup"`
	OwnerUserID string `json:"ownerUserId,omitempty"`
	BuiltIn     bool   `json:"builtIn"`
}

// Drop is one reduced-weight set chained to a main set. Levels start at 1.
type Drop struct {
	Level  int     `json:"level"`
	Weight float64 `json:"weight"`
	Reps   int     `json:"reps"`
}

// SetSlot is a plain set, or the main set of a drop-set chain when Drops is
// non-empty. GroupID identifies the chain once one has been minted.
type SetSlot struct {
	Weight  float64 `json:"weight"`
	Reps    int     `json:"reps"`
	GroupID string  `json:"groupId,omitempty"`
	Drops   []Drop  `json:"drops,omitempty"`
}

// IsChain reports whether the slot heads a drop-set chain.
func (s SetSlot) IsChain() bool {
	return len(s.Drops) > 0
}

// ExerciseEntry is an exercise owning an ordered sequence of set slots.
type ExerciseEntry struct {
	ExerciseID  string    `json:"exerciseId"`
	Name        string    `json:"name"`
	MuscleGroup string    `json:"muscleGroup"`
	Sets        []SetSlot `json:"sets"`
}

// SupersetPair is two exercises whose sets are performed alternately and
// paired by index.
type SupersetPair struct {
	GroupID string        `json:"groupId,omitempty"`
	A       ExerciseEntry `json:"a"`
	B       ExerciseEntry `json:"b"`
}

// MuscleGroupOrder is the display order of muscle groups.
var MuscleGroupOrder = []string{
	"CHEST", "BACK", "LEGS", "SHOULDERS", "BICEPS", "TRICEPS",
	"FOREARMS", "HAMSTRINGS", "CALVES", "CORE", "OTHER",
}
