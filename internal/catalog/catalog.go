// Package catalog adapts exercise records from the persistence layer into the
// lookup the grouping package needs, and groups them for exercise pickers.
package catalog

import (
	"sort"
	"strings"

	"github.com/claude/liftlog/internal/models"
)

// OtherMuscleGroup is used when a record names no muscle group.
const OtherMuscleGroup = "OTHER"

// Record is an exercise as delivered by the catalog source. MuscleGroup falls
// back to PrimaryMuscle. BuiltIn, when set, overrides the owner comparison.
type Record struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	MuscleGroup   string `json:"muscleGroup,omitempty"`
	PrimaryMuscle string `json:"primaryMuscle,omitempty"`
	OwnerUserID   string `json:"ownerUserId,omitempty"`
	BuiltIn       *bool  `json:"builtIn,omitempty"`
}

// Catalog is an immutable, indexed set of exercises.
type Catalog struct {
	systemOwner string
	byID        map[string]models.Exercise
	byName      map[string]models.Exercise
	all         []models.Exercise
}

// New builds a catalog. Records without an id are skipped; on duplicate ids
// the first record wins.
func New(records []Record, systemOwnerID string) *Catalog {
	c := &Catalog{
		systemOwner: systemOwnerID,
		byID:        make(map[string]models.Exercise, len(records)),
		byName:      make(map[string]models.Exercise, len(records)),
	}
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		if _, dup := c.byID[r.ID]; dup {
			continue
		}
		ex := c.project(r)
		c.byID[ex.ID] = ex
		c.all = append(c.all, ex)

		// User exercises shadow built-ins of the same name.
		name := normalize(ex.Name)
		if prev, ok := c.byName[name]; !ok || (prev.BuiltIn && !ex.BuiltIn) {
			c.byName[name] = ex
		}
	}
	return c
}

func (c *Catalog) project(r Record) models.Exercise {
	muscle := strings.ToUpper(strings.TrimSpace(r.MuscleGroup))
	if muscle == "" {
		muscle = strings.ToUpper(strings.TrimSpace(r.PrimaryMuscle))
	}
	if muscle == "" {
		muscle = OtherMuscleGroup
	}
	builtIn := c.systemOwner != "" && r.OwnerUserID == c.systemOwner
	if r.BuiltIn != nil {
		builtIn = *r.BuiltIn
	}
	return models.Exercise{
		ID:          r.ID,
		Name:        r.Name,
		MuscleGroup: muscle,
		OwnerUserID: r.OwnerUserID,
		BuiltIn:     builtIn,
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Lookup implements grouping.Lookup.
func (c *Catalog) Lookup(id string) (models.Exercise, bool) {
	ex, ok := c.byID[id]
	return ex, ok
}

// LookupByName finds an exercise by name, ignoring case and repeated spaces.
func (c *Catalog) LookupByName(name string) (models.Exercise, bool) {
	ex, ok := c.byName[normalize(name)]
	return ex, ok
}

// Accessible reports whether userID may log the exercise: it is built in or
// owned by the user.
func (c *Catalog) Accessible(id, userID string) bool {
	ex, ok := c.byID[id]
	if !ok {
		return false
	}
	return ex.BuiltIn || ex.OwnerUserID == userID
}

// Len returns the number of exercises.
func (c *Catalog) Len() int {
	return len(c.all)
}

// MuscleSection is one muscle group heading of a picker.
type MuscleSection struct {
	MuscleGroup string            `json:"muscleGroup"`
	Exercises   []models.Exercise `json:"exercises"`
}

// OptionGroup is a top-level picker group.
type OptionGroup struct {
	Label    string          `json:"label"`
	Sections []MuscleSection `json:"sections"`
}

// Options groups the catalog for an exercise picker: the user's own
// exercises first, then built-ins. Empty groups are omitted. Within a group,
// sections follow models.MuscleGroupOrder (unknown groups last, alphabetical)
// and exercises are sorted by name.
func (c *Catalog) Options() []OptionGroup {
	var mine, builtIn []models.Exercise
	for _, ex := range c.all {
		if ex.BuiltIn {
			builtIn = append(builtIn, ex)
		} else {
			mine = append(mine, ex)
		}
	}

	var out []OptionGroup
	if len(mine) > 0 {
		out = append(out, OptionGroup{Label: "My exercises", Sections: sections(mine)})
	}
	if len(builtIn) > 0 {
		out = append(out, OptionGroup{Label: "Built-in", Sections: sections(builtIn)})
	}
	return out
}

func sections(exs []models.Exercise) []MuscleSection {
	byMuscle := map[string][]models.Exercise{}
	for _, ex := range exs {
		byMuscle[ex.MuscleGroup] = append(byMuscle[ex.MuscleGroup], ex)
	}

	muscles := make([]string, 0, len(byMuscle))
	for m := range byMuscle {
		muscles = append(muscles, m)
	}
	sort.Slice(muscles, func(i, j int) bool {
		ri, rj := muscleRank(muscles[i]), muscleRank(muscles[j])
		if ri != rj {
			return ri < rj
		}
		return muscles[i] < muscles[j]
	})

	out := make([]MuscleSection, 0, len(muscles))
	for _, m := range muscles {
		list := byMuscle[m]
		sort.SliceStable(list, func(i, j int) bool {
			return strings.ToLower(list[i].Name) < strings.ToLower(list[j].Name)
		})
		out = append(out, MuscleSection{MuscleGroup: m, Exercises: list})
	}
	return out
}

func muscleRank(m string) int {
	for i, g := range models.MuscleGroupOrder {
		if g == m {
			return i
		}
	}
	return len(models.MuscleGroupOrder)
}
