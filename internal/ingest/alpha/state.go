package alpha

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/claude/liftlog/internal/models"
	_ "modernc.org/sqlite"
)

// StateDB tracks which sessions have been imported to avoid re-sending, and
// which were started on the server but not finished.
type StateDB struct {
	db *sql.DB
}

// OpenStateDB opens (or creates) the SQLite state database at dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "state.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS imported_sessions (
			session_key TEXT PRIMARY KEY,
			hash        TEXT NOT NULL,
			session_id  TEXT NOT NULL,
			imported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS pending_sessions (
			session_key TEXT PRIMARY KEY,
			hash        TEXT NOT NULL,
			session_id  TEXT NOT NULL,
			started_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	} {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating state tables: %w", err)
		}
	}

	return &StateDB{db: db}, nil
}

// IsImported checks if a session has already been imported with the same content.
func (s *StateDB) IsImported(key, hash string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM imported_sessions WHERE session_key = ? AND hash = ?`,
		key, hash,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkImported records that a session was stored as sessionID and clears
// any pending entry for it.
func (s *StateDB) MarkImported(key, hash, sessionID string) error {
	if _, err := s.db.Exec(
		`INSERT OR REPLACE INTO imported_sessions (session_key, hash, session_id) VALUES (?, ?, ?)`,
		key, hash, sessionID,
	); err != nil {
		return err
	}
	return s.ClearPending(key)
}

// MarkPending records that sessionID was started for key but not finished.
func (s *StateDB) MarkPending(key, hash, sessionID string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO pending_sessions (session_key, hash, session_id) VALUES (?, ?, ?)`,
		key, hash, sessionID,
	)
	return err
}

// Pending returns the unfinished server session for key and the content hash
// it was started with. id is empty when there is none.
func (s *StateDB) Pending(key string) (id, hash string, err error) {
	err = s.db.QueryRow(
		`SELECT session_id, hash FROM pending_sessions WHERE session_key = ?`, key,
	).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", nil
	}
	return id, hash, err
}

// ClearPending forgets the unfinished session for key.
func (s *StateDB) ClearPending(key string) error {
	_, err := s.db.Exec(`DELETE FROM pending_sessions WHERE session_key = ?`, key)
	return err
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}

// SessionKey identifies an exported session by its start time and name.
func SessionKey(s models.AlphaSession) string {
	return s.Date.Format("2006-01-02T15:04") + " " + s.Name
}

// HashSession computes the SHA-256 hash of a session's exercises and sets.
func HashSession(s models.AlphaSession) string {
	h := sha256.New()
	for _, ex := range s.Exercises {
		fmt.Fprintf(h, "%d|%s|%s|%d|%d\n", ex.Number, ex.Name, ex.Equipment, ex.TargetReps, ex.DropSets)
		for _, set := range ex.Sets {
			fmt.Fprintf(h, "%d|%g|%t|%d|%g|%t\n",
				set.Number, set.WeightKg, set.IsBodyweightPlus, set.Reps, set.RIR, set.IsWarmup)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
