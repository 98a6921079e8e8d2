// Package draft keeps in-progress workout input so it survives reloads and
// crashes. Saves are debounced; loads rehydrate through the grouping package.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/liftlog/internal/grouping"
	"github.com/claude/liftlog/internal/models"
)

// DefaultWindow is the debounce window applied when none is configured.
const DefaultWindow = 400 * time.Millisecond

const writeTimeout = 5 * time.Second

// ErrNotFound is returned by backends for a missing key.
var ErrNotFound = errors.New("draft not found")

// Backend persists raw draft payloads by key.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
	Remove(ctx context.Context, key string) error
}

// Key returns the draft key for a workout session.
func Key(sessionID string) string {
	return "workoutDraft:" + sessionID
}

// Store debounces draft writes to a Backend.
type Store struct {
	backend  Backend
	hydrator *grouping.Hydrator
	window   time.Duration
	newID    grouping.IDFunc
	log      *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingWrite

	// writeMu orders backend writes against Clear so a late debounced
	// write cannot resurrect a cleared draft.
	writeMu sync.Mutex
}

type pendingWrite struct {
	timer *time.Timer
	data  []byte
}

// NewStore creates a Store. A zero window uses DefaultWindow.
func NewStore(backend Backend, window time.Duration, log *slog.Logger) *Store {
	if window <= 0 {
		window = DefaultWindow
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Store{
		backend:  backend,
		hydrator: grouping.NewHydrator(log),
		window:   window,
		newID:    grouping.NewGroupID,
		log:      log,
		pending:  map[string]*pendingWrite{},
	}
}

// Save snapshots the tree now and schedules the write. A later Save for the
// same key within the window replaces the pending snapshot and restarts the
// window.
func (s *Store) Save(key string, t *models.Tree) error {
	data, err := json.Marshal(Snapshot(t))
	if err != nil {
		return fmt.Errorf("encoding draft: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.pending[key]; ok {
		old.timer.Stop()
	}
	p := &pendingWrite{data: data}
	p.timer = time.AfterFunc(s.window, func() { s.fire(key, p) })
	s.pending[key] = p
	return nil
}

func (s *Store) fire(key string, p *pendingWrite) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	current := s.pending[key] == p
	if current {
		delete(s.pending, key)
	}
	s.mu.Unlock()
	if !current {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.backend.Set(ctx, key, p.data); err != nil {
		s.log.Error("draft save failed", "key", key, "error", err)
		return
	}
	s.log.Debug("draft saved", "key", key, "bytes", len(p.data))
}

// Flush writes every pending snapshot immediately.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	batch := s.pending
	s.pending = map[string]*pendingWrite{}
	for _, p := range batch {
		p.timer.Stop()
	}
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	var errs []error
	for key, p := range batch {
		if err := s.backend.Set(ctx, key, p.data); err != nil {
			errs = append(errs, fmt.Errorf("saving draft %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Pending reports whether a write for key is waiting for its window.
func (s *Store) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Load returns the drafted tree for key, or nil when there is no usable
// draft. Backend failures and malformed payloads are logged, not returned.
func (s *Store) Load(ctx context.Context, key string, lookup grouping.Lookup) *models.Tree {
	data, err := s.read(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		s.log.Warn("draft load failed", "key", key, "error", err)
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.log.Warn("malformed draft ignored", "key", key, "error", err)
		return nil
	}
	tree, _ := s.hydrator.Hydrate(Items(entries, s.newID), lookup)
	if tree.Len() == 0 {
		return nil
	}
	return tree
}

func (s *Store) read(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	p, ok := s.pending[key]
	s.mu.Unlock()
	if ok {
		return p.data, nil
	}
	return s.backend.Get(ctx, key)
}

// Clear drops any pending write for key and removes the stored draft.
func (s *Store) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	if p, ok := s.pending[key]; ok {
		p.timer.Stop()
		delete(s.pending, key)
	}
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.backend.Remove(ctx, key); err != nil {
		return fmt.Errorf("clearing draft %s: %w", key, err)
	}
	return nil
}
