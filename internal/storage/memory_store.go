package storage

import (
	"fmt"
	"sync"

	"github.com/julianstephens/fieldbook/internal/models"
)

// MemoryStore is a mutex-guarded in-memory Provider, used by tests and as the
// reference for the SQLite backend's semantics.
type MemoryStore struct {
	mu       sync.Mutex
	versions []version
	entries  map[string]models.JournalEntry
	actions  []models.Action
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]models.JournalEntry)}
}

func (s *MemoryStore) Init() error  { return nil }
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) GetStructure(date string) (models.Journal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := resolveVersion(s.versions, date)
	if !ok {
		return models.Journal{}, fmt.Errorf("no structure for %s: %w", date, ErrNotFound)
	}
	return toJournal(cloneVersion(v), latestEffectiveFrom(s.versions)), nil
}

func (s *MemoryStore) SaveStructure(currentDate string, groups []models.Group, deleted models.DeletedElements) (models.Journal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := -1
	for i := range s.versions {
		if s.versions[i].EffectiveFrom == currentDate {
			s.versions[i].Groups = cloneGroups(groups)
			saved = i
			break
		}
	}
	if saved < 0 {
		s.versions = append(s.versions, version{
			ID:            newVersionID(),
			EffectiveFrom: currentDate,
			Groups:        cloneGroups(groups),
		})
		saved = len(s.versions) - 1
	}

	for date, entry := range s.entries {
		s.entries[date] = scrubEntry(entry, deleted)
	}

	return toJournal(cloneVersion(s.versions[saved]), latestEffectiveFrom(s.versions)), nil
}

func (s *MemoryStore) GetEntry(date string) (models.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[date]
	if !ok {
		return models.JournalEntry{}, fmt.Errorf("no entry for %s: %w", date, ErrNotFound)
	}
	return entry, nil
}

func (s *MemoryStore) SaveEntry(entry models.JournalEntry) (models.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Date] = entry
	return entry, nil
}

func (s *MemoryStore) GetActions() ([]models.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	actions := make([]models.Action, len(s.actions))
	copy(actions, s.actions)
	return actions, nil
}

func (s *MemoryStore) GetAction(id string) (models.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, action := range s.actions {
		if action.ID == id {
			return action, nil
		}
	}
	return models.Action{}, fmt.Errorf("action %s: %w", id, ErrNotFound)
}

func (s *MemoryStore) AddAction(action models.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
	return nil
}

func (s *MemoryStore) UpdateAction(action models.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.actions {
		if s.actions[i].ID == action.ID {
			s.actions[i] = action
			return nil
		}
	}
	return fmt.Errorf("action %s: %w", action.ID, ErrNotFound)
}

func (s *MemoryStore) DeleteAction(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.actions {
		if s.actions[i].ID == id {
			s.actions = append(s.actions[:i], s.actions[i+1:]...)
			for j := range s.actions {
				s.actions[j].Order = j
			}
			return nil
		}
	}
	return fmt.Errorf("action %s: %w", id, ErrNotFound)
}

func (s *MemoryStore) ReorderAction(id string, order int) ([]models.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	actions, ok := shiftActions(s.actions, id, order)
	if !ok {
		return nil, fmt.Errorf("action %s: %w", id, ErrNotFound)
	}
	s.actions = actions

	out := make([]models.Action, len(s.actions))
	copy(out, s.actions)
	return out, nil
}

func cloneGroups(groups []models.Group) []models.Group {
	out := make([]models.Group, len(groups))
	copy(out, groups)
	for i := range out {
		out[i].Fields = make([]models.Field, len(groups[i].Fields))
		copy(out[i].Fields, groups[i].Fields)
		for j := range out[i].Fields {
			types := make([]models.FieldType, len(groups[i].Fields[j].Types))
			copy(types, groups[i].Fields[j].Types)
			out[i].Fields[j].Types = types
		}
	}
	return out
}

func cloneVersion(v version) version {
	v.Groups = cloneGroups(v.Groups)
	return v
}
