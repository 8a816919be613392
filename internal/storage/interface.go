// Package storage persists journal structures, entries and actions for the
// reference synchronization server. Two backends implement the same Provider
// contract: an in-memory store used by tests and a SQLite store for real use.
package storage

import (
	"errors"

	"github.com/julianstephens/fieldbook/internal/models"
)

// ErrNotFound is returned when no record matches the request.
var ErrNotFound = errors.New("record not found")

// Provider is the persistence surface behind the synchronization API.
type Provider interface {
	// Lifecycle
	Init() error
	Close() error

	// Structures, versioned by effective date. GetStructure returns the
	// version effective on the given date; SaveStructure overwrites the
	// version at currentDate or starts a new one, and scrubs any tombstoned
	// element ids from stored entries.
	GetStructure(date string) (models.Journal, error)
	SaveStructure(currentDate string, groups []models.Group, deleted models.DeletedElements) (models.Journal, error)

	// Entries
	GetEntry(date string) (models.JournalEntry, error)
	SaveEntry(entry models.JournalEntry) (models.JournalEntry, error)

	// Actions
	GetActions() ([]models.Action, error)
	GetAction(id string) (models.Action, error)
	AddAction(action models.Action) error
	UpdateAction(action models.Action) error
	DeleteAction(id string) error
	ReorderAction(id string, order int) ([]models.Action, error)
}
