// Package remote defines the contract with the synchronization boundary that
// persists journal structures, entries and actions, plus its HTTP
// implementation. The boundary is treated as opaque: callers only see the
// request/response shapes below.
package remote

import (
	"context"
	"errors"

	"github.com/julianstephens/fieldbook/internal/models"
)

// ErrNotFound signals a 404 from the boundary: no structure for the requested
// date, no entry for the day, or an unknown action id.
var ErrNotFound = errors.New("not found")

// SaveStructureRequest persists the current group tree. DeletedElements carries
// the tombstone set accumulated since the last successful save and is omitted
// when empty. CurrentDate anchors which structure version the save applies to.
type SaveStructureRequest struct {
	Groups          []models.Group          `json:"groups"`
	DeletedElements *models.DeletedElements `json:"deleted_elements,omitempty"`
	CurrentDate     string                  `json:"current_date"`
}

// CreateActionRequest creates a new quick action bound to one field type.
type CreateActionRequest struct {
	Name          string   `json:"name"`
	FieldID       string   `json:"field_id"`
	FieldTypeID   string   `json:"field_type_id"`
	Increment     *float64 `json:"increment,omitempty"`
	IsDailyAction bool     `json:"is_daily_action"`
}

// RegisterActionRequest applies a triggered action's effect for today. Value is
// only set for custom actions.
type RegisterActionRequest struct {
	ID    string   `json:"id"`
	Value *float64 `json:"value,omitempty"`
}

// ReorderActionRequest moves an action to a new position in the flat list.
type ReorderActionRequest struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

// Client is the full surface the editor and registry need from the boundary.
type Client interface {
	GetStructure(ctx context.Context, date string) (*models.Journal, error)
	SaveStructure(ctx context.Context, req SaveStructureRequest) (*models.Journal, error)

	GetEntry(ctx context.Context, date string) (*models.JournalEntry, error)
	SaveEntry(ctx context.Context, entry *models.JournalEntry) (*models.JournalEntry, error)

	GetActions(ctx context.Context) ([]models.Action, error)
	CreateAction(ctx context.Context, req CreateActionRequest) (*models.Action, error)
	RemoveAction(ctx context.Context, id string) error
	RegisterAction(ctx context.Context, req RegisterActionRequest) error
	ReorderAction(ctx context.Context, req ReorderActionRequest) error
}
