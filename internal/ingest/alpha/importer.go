package alpha

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/claude/liftlog/internal/catalog"
	"github.com/claude/liftlog/internal/client"
	"github.com/claude/liftlog/internal/draft"
	"github.com/claude/liftlog/internal/grouping"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
)

// Target is the server side of an import. *client.Client satisfies it.
type Target interface {
	session.Boundary
	StartSession(ctx context.Context, templateID string) (models.SessionRow, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Stats tracks import progress.
type Stats struct {
	SessionsTotal    int
	SessionsImported int
	SessionsSkipped  int
	SessionsEmpty    int

	SetsSent       int
	WarmupsSkipped int
	SetsSkipped    int

	Unmatched []string
}

// Report describes one converted session.
type Report struct {
	Name      string
	Date      time.Time
	Sets      int
	Warmups   int
	Skipped   int // working sets without positive weight and reps
	Unmatched []string
}

// Importer replays parsed Alpha Progression sessions through a workout
// editor and finishes them on the server.
type Importer struct {
	cat    *catalog.Catalog
	target Target
	state  *StateDB
	drafts *draft.Store
	pro    bool
	dryRun bool
	log    *slog.Logger
}

// NewImporter creates an Importer. state may be nil to disable re-import
// detection. Drop sets are only reconstructed when pro is set.
func NewImporter(cat *catalog.Catalog, target Target, state *StateDB, pro, dryRun bool, log *slog.Logger) *Importer {
	return &Importer{cat: cat, target: target, state: state, pro: pro, dryRun: dryRun, log: log}
}

// UseDrafts makes converted editors autosave to store, so a session whose
// finish fails can be resumed from its draft by a later run.
func (imp *Importer) UseDrafts(store *draft.Store) {
	imp.drafts = store
}

// Import parses r and imports every session that has loggable sets.
func (imp *Importer) Import(ctx context.Context, r io.Reader) (*Stats, error) {
	sessions, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}

	stats := &Stats{SessionsTotal: len(sessions)}
	unmatched := map[string]bool{}

	for _, s := range sessions {
		key, hash := SessionKey(s), HashSession(s)
		if imp.state != nil {
			done, err := imp.state.IsImported(key, hash)
			if err != nil {
				return stats, fmt.Errorf("checking state for %q: %w", key, err)
			}
			if done {
				imp.log.Debug("already imported", "session", key)
				stats.SessionsSkipped++
				continue
			}
		}

		_, rep := imp.Convert(s, "")
		stats.WarmupsSkipped += rep.Warmups
		stats.SetsSkipped += rep.Skipped
		for _, name := range rep.Unmatched {
			if !unmatched[name] {
				unmatched[name] = true
				stats.Unmatched = append(stats.Unmatched, name)
			}
		}
		if rep.Sets == 0 {
			imp.log.Warn("session has no loggable sets", "session", key)
			stats.SessionsEmpty++
			continue
		}
		if imp.dryRun {
			imp.log.Info("dry run", "session", key, "sets", rep.Sets)
			stats.SetsSent += rep.Sets
			continue
		}

		id, err := imp.send(ctx, s, key, hash)
		if err != nil {
			return stats, fmt.Errorf("importing %q: %w", key, err)
		}
		if imp.state != nil {
			if err := imp.state.MarkImported(key, hash, id); err != nil {
				imp.log.Warn("failed to record import", "session", key, "error", err)
			}
		}
		imp.log.Info("session imported", "session", key, "session_id", id, "sets", rep.Sets)
		stats.SessionsImported++
		stats.SetsSent += rep.Sets
	}

	return stats, nil
}

// send finishes s on the server. A session left unfinished by an earlier
// run is reused, from its draft when one was saved. When finishing fails
// the session is recorded as pending, or deleted when there is no state
// database to remember it in.
func (imp *Importer) send(ctx context.Context, s models.AlphaSession, key, hash string) (string, error) {
	id, ed, err := imp.resume(ctx, s, key, hash)
	if err != nil {
		return "", err
	}
	if ed == nil {
		row, err := imp.target.StartSession(ctx, "")
		if err != nil {
			return "", fmt.Errorf("starting session: %w", err)
		}
		id = row.ID.String()
		ed, _ = imp.Convert(s, id)
	}

	if _, err := ed.Submit(ctx); err != nil {
		if client.IsStatus(err, http.StatusNotFound) && imp.state != nil {
			// The pending session is gone; start over next run.
			if cerr := imp.state.ClearPending(key); cerr != nil {
				imp.log.Warn("failed to clear pending session", "session", key, "error", cerr)
			}
			return id, err
		}
		imp.abandon(context.WithoutCancel(ctx), key, hash, id)
		return id, err
	}
	return id, nil
}

// resume returns the editor for an unfinished session recorded for key, or
// a nil editor when a new session has to be started. A pending session for
// different content is deleted.
func (imp *Importer) resume(ctx context.Context, s models.AlphaSession, key, hash string) (string, *session.Editor, error) {
	if imp.state == nil {
		return "", nil, nil
	}
	id, pendingHash, err := imp.state.Pending(key)
	if err != nil {
		return "", nil, fmt.Errorf("checking pending session for %q: %w", key, err)
	}
	if id == "" {
		return "", nil, nil
	}
	if pendingHash != hash {
		imp.log.Info("export changed, replacing unfinished session", "session", key, "session_id", id)
		if err := imp.target.DeleteSession(ctx, id); err != nil && !client.IsStatus(err, http.StatusNotFound) {
			return "", nil, fmt.Errorf("deleting outdated session %s: %w", id, err)
		}
		if imp.drafts != nil {
			if err := imp.drafts.Clear(ctx, draft.Key(id)); err != nil {
				imp.log.Warn("failed to clear outdated draft", "session_id", id, "error", err)
			}
		}
		return "", nil, imp.state.ClearPending(key)
	}

	ed := session.NewWorkoutEditor(id, imp.pro, imp.deps(id))
	if fromDraft, _ := ed.Resume(ctx, nil); fromDraft {
		imp.log.Info("resuming session from draft", "session", key, "session_id", id)
		return id, ed, nil
	}
	imp.log.Info("resuming session", "session", key, "session_id", id)
	ed, _ = imp.Convert(s, id)
	return id, ed, nil
}

// abandon keeps a failed session for the next run: its draft is flushed and
// the id recorded. Without a state database the session is deleted instead.
func (imp *Importer) abandon(ctx context.Context, key, hash, id string) {
	if imp.state == nil {
		if err := imp.target.DeleteSession(ctx, id); err != nil {
			imp.log.Warn("failed to delete unfinished session", "session_id", id, "error", err)
		}
		return
	}
	if imp.drafts != nil {
		if err := imp.drafts.Flush(ctx); err != nil {
			imp.log.Warn("failed to save draft", "session_id", id, "error", err)
		}
	}
	if err := imp.state.MarkPending(key, hash, id); err != nil {
		imp.log.Warn("failed to record unfinished session", "session", key, "session_id", id, "error", err)
	}
}

func (imp *Importer) deps(sessionID string) session.Deps {
	d := session.Deps{Catalog: imp.cat, Boundary: imp.target, Log: imp.log}
	if sessionID != "" {
		d.Drafts = imp.drafts
	}
	return d
}

// Convert builds a workout editor for sessionID holding the session's
// working sets. Warm-ups and exercises missing from the catalog are left
// out. With pro, the last DropSets sets of an exercise become drops of the
// set before them.
func (imp *Importer) Convert(s models.AlphaSession, sessionID string) (*session.Editor, Report) {
	rep := Report{Name: s.Name, Date: s.Date}
	ed := session.NewWorkoutEditor(sessionID, imp.pro, imp.deps(sessionID))

	for _, ex := range s.Exercises {
		match, ok := imp.cat.LookupByName(ex.Name)
		if !ok {
			rep.Unmatched = append(rep.Unmatched, ex.Name)
			continue
		}
		var working []models.AlphaSet
		for _, set := range ex.Sets {
			if set.IsWarmup {
				rep.Warmups++
				continue
			}
			if !grouping.ValidSet(set.WeightKg, set.Reps) {
				rep.Skipped++
			}
			working = append(working, set)
		}
		if len(working) == 0 {
			continue
		}
		if err := imp.addExercise(ed, match.ID, working, ex.DropSets); err != nil {
			imp.log.Warn("skipping exercise", "exercise", ex.Name, "error", err)
		}
	}

	rep.Sets = len(grouping.NewFlattener(nil).Flatten(ed.Tree()).Items)
	return ed, rep
}

func (imp *Importer) addExercise(ed *session.Editor, exerciseID string, working []models.AlphaSet, dropSets int) error {
	primaries, drops := working, []models.AlphaSet(nil)
	if imp.pro && dropSets > 0 && dropSets < len(working) {
		cut := len(working) - dropSets
		primaries, drops = working[:cut], working[cut:]
	}

	id, err := ed.AddExercise(exerciseID)
	if err != nil {
		return err
	}
	for i, set := range primaries {
		if i > 0 {
			if _, err := ed.AddSet(id); err != nil {
				return err
			}
		}
		if err := ed.UpdateSet(id, session.SideA, i, set.WeightKg, set.Reps); err != nil {
			return err
		}
	}

	last := len(primaries) - 1
	for _, d := range drops {
		level, err := ed.AddDrop(id, last)
		if err != nil {
			return err
		}
		if err := ed.UpdateDrop(id, last, level, d.WeightKg, d.Reps); err != nil {
			return errors.Join(err, ed.RemoveDrop(id, last, level))
		}
	}
	return nil
}
