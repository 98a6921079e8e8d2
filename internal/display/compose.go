// Package display builds read-only views of a hydrated workout tree:
// exercise cards with indented drop rows, and superset cards with paired rows.
package display

import (
	"fmt"

	"github.com/claude/liftlog/internal/models"
)

// CardKind distinguishes standalone exercise cards from superset cards.
type CardKind string

const (
	KindExercise CardKind = "exercise"
	KindSuperset CardKind = "superset"
)

// SetRow is one displayed set. DropLevel is 0 for a primary set.
type SetRow struct {
	Number    int     `json:"number"`
	DropLevel int     `json:"dropLevel,omitempty"`
	Weight    float64 `json:"weight"`
	Reps      int     `json:"reps"`
	Volume    float64 `json:"volume"`
}

// PairRow is one superset round: set i of A next to set i of B.
type PairRow struct {
	Number int     `json:"number"`
	A      SetRow  `json:"a"`
	B      SetRow  `json:"b"`
	Volume float64 `json:"volume"`
}

// Card aggregates one tree entry.
type Card struct {
	Kind        CardKind  `json:"kind"`
	Title       string    `json:"title"`
	MuscleGroup string    `json:"muscleGroup"`
	GroupID     string    `json:"groupId,omitempty"`
	Rows        []SetRow  `json:"rows,omitempty"`
	Pairs       []PairRow `json:"pairs,omitempty"`

	// SetCount counts primary sets; drop rows add volume and reps only.
	SetCount    int     `json:"setCount"`
	TotalVolume float64 `json:"totalVolume"`
	TotalReps   int     `json:"totalReps"`
	AvgWeight   float64 `json:"avgWeight"`

	// UnpairedSets is the number of sets left over when superset halves differ
	// in length. They are not shown and not counted.
	UnpairedSets int `json:"unpairedSets,omitempty"`
}

// View is the composed read-only workout.
type View struct {
	Cards       []Card  `json:"cards"`
	TotalVolume float64 `json:"totalVolume"`
	TotalSets   int     `json:"totalSets"`
}

// Compose builds a View from a tree. The tree is not modified.
func Compose(t *models.Tree) View {
	v := View{Cards: []Card{}}
	if t == nil {
		return v
	}
	for _, e := range t.Entries {
		var c Card
		switch {
		case e.Superset != nil:
			c = supersetCard(e.Superset)
		case e.Exercise != nil:
			c = exerciseCard(e.Exercise)
		default:
			continue
		}
		v.Cards = append(v.Cards, c)
		v.TotalVolume += c.TotalVolume
		v.TotalSets += c.SetCount
	}
	return v
}

func row(number, level int, w float64, r int) SetRow {
	return SetRow{Number: number, DropLevel: level, Weight: w, Reps: r, Volume: w * float64(r)}
}

func exerciseCard(ex *models.ExerciseEntry) Card {
	c := Card{
		Kind:        KindExercise,
		Title:       title(ex),
		MuscleGroup: ex.MuscleGroup,
	}
	for i, s := range ex.Sets {
		c.add(row(i+1, 0, s.Weight, s.Reps))
		for _, d := range s.Drops {
			c.add(row(i+1, d.Level, d.Weight, d.Reps))
		}
	}
	c.SetCount = len(ex.Sets)
	c.finish()
	return c
}

func (c *Card) add(r SetRow) {
	c.Rows = append(c.Rows, r)
	c.TotalVolume += r.Volume
	c.TotalReps += r.Reps
}

func (c *Card) finish() {
	if c.TotalReps > 0 {
		c.AvgWeight = c.TotalVolume / float64(c.TotalReps)
	}
}

func supersetCard(p *models.SupersetPair) Card {
	c := Card{
		Kind:        KindSuperset,
		Title:       fmt.Sprintf("%s + %s", title(&p.A), title(&p.B)),
		MuscleGroup: muscles(p.A.MuscleGroup, p.B.MuscleGroup),
		GroupID:     p.GroupID,
	}
	rows := min(len(p.A.Sets), len(p.B.Sets))
	for i := 0; i < rows; i++ {
		a, b := p.A.Sets[i], p.B.Sets[i]
		pr := PairRow{
			Number: i + 1,
			A:      row(i+1, 0, a.Weight, a.Reps),
			B:      row(i+1, 0, b.Weight, b.Reps),
		}
		pr.Volume = pr.A.Volume + pr.B.Volume
		c.Pairs = append(c.Pairs, pr)
		c.TotalVolume += pr.Volume
		c.TotalReps += a.Reps + b.Reps
	}
	c.SetCount = rows
	c.UnpairedSets = len(p.A.Sets) + len(p.B.Sets) - 2*rows
	c.finish()
	return c
}

func title(ex *models.ExerciseEntry) string {
	if ex.Name != "" {
		return ex.Name
	}
	return ex.ExerciseID
}

func muscles(a, b string) string {
	if a == b || b == "" {
		return a
	}
	if a == "" {
		return b
	}
	return a + " / " + b
}
