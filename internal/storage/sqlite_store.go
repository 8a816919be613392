package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/julianstephens/fieldbook/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists the boundary's data in a single SQLite file. Structures
// and entries are stored as JSON blobs keyed by date; actions keep a dedicated
// order column so reorders stay cheap.
type SQLiteStore struct {
	mu   sync.Mutex
	path string
	db   *sql.DB
}

// NewSQLiteStore returns a store backed by the database file at path. Init
// must be called before use.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	schema := []string{
		`CREATE TABLE IF NOT EXISTS structures (
			effective_from TEXT PRIMARY KEY,
			id             TEXT NOT NULL,
			groups         TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			date TEXT PRIMARY KEY,
			data TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS actions (
			id   TEXT PRIMARY KEY,
			ord  INTEGER NOT NULL,
			data TEXT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) loadVersions() ([]version, error) {
	rows, err := s.db.Query("SELECT effective_from, id, groups FROM structures")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []version
	for rows.Next() {
		var v version
		var groupsJSON string
		if err := rows.Scan(&v.EffectiveFrom, &v.ID, &groupsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(groupsJSON), &v.Groups); err != nil {
			return nil, fmt.Errorf("failed to parse structure %s: %w", v.EffectiveFrom, err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *SQLiteStore) GetStructure(date string) (models.Journal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions, err := s.loadVersions()
	if err != nil {
		return models.Journal{}, err
	}
	v, ok := resolveVersion(versions, date)
	if !ok {
		return models.Journal{}, fmt.Errorf("no structure for %s: %w", date, ErrNotFound)
	}
	return toJournal(v, latestEffectiveFrom(versions)), nil
}

func (s *SQLiteStore) SaveStructure(currentDate string, groups []models.Group, deleted models.DeletedElements) (models.Journal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	groupsJSON, err := json.Marshal(groups)
	if err != nil {
		return models.Journal{}, fmt.Errorf("failed to serialize structure: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return models.Journal{}, err
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRow("SELECT id FROM structures WHERE effective_from = ?", currentDate).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		id = newVersionID()
		_, err = tx.Exec("INSERT INTO structures (effective_from, id, groups) VALUES (?, ?, ?)",
			currentDate, id, string(groupsJSON))
	case err == nil:
		_, err = tx.Exec("UPDATE structures SET groups = ? WHERE effective_from = ?",
			string(groupsJSON), currentDate)
	}
	if err != nil {
		return models.Journal{}, fmt.Errorf("failed to save structure: %w", err)
	}

	if !deleted.IsEmpty() {
		if err := scrubEntriesTx(tx, deleted); err != nil {
			return models.Journal{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Journal{}, err
	}

	versions, err := s.loadVersions()
	if err != nil {
		return models.Journal{}, err
	}
	saved := version{ID: id, EffectiveFrom: currentDate, Groups: groups}
	return toJournal(saved, latestEffectiveFrom(versions)), nil
}

// scrubEntriesTx rewrites every stored entry without values that reference
// tombstoned ids.
func scrubEntriesTx(tx *sql.Tx, deleted models.DeletedElements) error {
	rows, err := tx.Query("SELECT date, data FROM entries")
	if err != nil {
		return err
	}
	defer rows.Close()

	updates := make(map[string]models.JournalEntry)
	for rows.Next() {
		var date, data string
		if err := rows.Scan(&date, &data); err != nil {
			return err
		}
		var entry models.JournalEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			return fmt.Errorf("failed to parse entry %s: %w", date, err)
		}
		scrubbed := scrubEntry(entry, deleted)
		if len(scrubbed.Values) != len(entry.Values) {
			updates[date] = scrubbed
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for date, entry := range updates {
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if _, err := tx.Exec("UPDATE entries SET data = ? WHERE date = ?", string(data), date); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) GetEntry(date string) (models.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data string
	err := s.db.QueryRow("SELECT data FROM entries WHERE date = ?", date).Scan(&data)
	if err == sql.ErrNoRows {
		return models.JournalEntry{}, fmt.Errorf("no entry for %s: %w", date, ErrNotFound)
	}
	if err != nil {
		return models.JournalEntry{}, err
	}

	var entry models.JournalEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return models.JournalEntry{}, fmt.Errorf("failed to parse entry %s: %w", date, err)
	}
	return entry, nil
}

func (s *SQLiteStore) SaveEntry(entry models.JournalEntry) (models.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return models.JournalEntry{}, fmt.Errorf("failed to serialize entry: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT INTO entries (date, data) VALUES (?, ?) ON CONFLICT(date) DO UPDATE SET data = excluded.data",
		entry.Date, string(data))
	if err != nil {
		return models.JournalEntry{}, err
	}
	return entry, nil
}

func (s *SQLiteStore) loadActions() ([]models.Action, error) {
	rows, err := s.db.Query("SELECT data FROM actions ORDER BY ord")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []models.Action
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var action models.Action
		if err := json.Unmarshal([]byte(data), &action); err != nil {
			return nil, fmt.Errorf("failed to parse action: %w", err)
		}
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

func (s *SQLiteStore) GetActions() ([]models.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadActions()
}

func (s *SQLiteStore) GetAction(id string) (models.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data string
	err := s.db.QueryRow("SELECT data FROM actions WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return models.Action{}, fmt.Errorf("action %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Action{}, err
	}

	var action models.Action
	if err := json.Unmarshal([]byte(data), &action); err != nil {
		return models.Action{}, fmt.Errorf("failed to parse action %s: %w", id, err)
	}
	return action, nil
}

func (s *SQLiteStore) AddAction(action models.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAction(action)
}

func (s *SQLiteStore) UpdateAction(action models.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM actions WHERE id = ?", action.ID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("action %s: %w", action.ID, ErrNotFound)
	}
	return s.writeAction(action)
}

func (s *SQLiteStore) writeAction(action models.Action) error {
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to serialize action: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT INTO actions (id, ord, data) VALUES (?, ?, ?) ON CONFLICT(id) DO UPDATE SET ord = excluded.ord, data = excluded.data",
		action.ID, action.Order, string(data))
	return err
}

func (s *SQLiteStore) DeleteAction(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM actions WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("action %s: %w", id, ErrNotFound)
	}

	// Close the gap so orders stay dense.
	actions, err := s.loadActions()
	if err != nil {
		return err
	}
	for i := range actions {
		if actions[i].Order != i {
			actions[i].Order = i
			if err := s.writeAction(actions[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *SQLiteStore) ReorderAction(id string, order int) ([]models.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	actions, err := s.loadActions()
	if err != nil {
		return nil, err
	}
	actions, ok := shiftActions(actions, id, order)
	if !ok {
		return nil, fmt.Errorf("action %s: %w", id, ErrNotFound)
	}
	for i := range actions {
		if err := s.writeAction(actions[i]); err != nil {
			return nil, err
		}
	}
	return actions, nil
}
