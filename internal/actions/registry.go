// Package actions owns the flat quick-action list: validation of every action
// against the current schema tree, eligibility of fields for new actions, and
// the delayed-commit registration protocol used when an action is triggered.
package actions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/julianstephens/fieldbook/internal/models"
	"github.com/julianstephens/fieldbook/internal/remote"
	"github.com/julianstephens/fieldbook/internal/structure"
	"github.com/julianstephens/fieldbook/internal/utils"
)

var ErrActionNotFound = errors.New("action not found")

// Invalidity reasons surfaced in a Validation verdict.
const (
	ReasonNoStructure      = "structure unavailable"
	ReasonMissingField     = "bound field no longer exists"
	ReasonMissingFieldType = "bound field type no longer exists"
)

// eligibleKinds are the field type kinds an action can meaningfully increment.
var eligibleKinds = map[models.Kind]bool{
	models.KindNumber:           true,
	models.KindNumberNavigation: true,
	models.KindTimeSelect:       true,
}

// Validation is the derived, never-persisted verdict on one action's binding.
type Validation struct {
	IsValid            bool   `json:"is_valid"`
	Reason             string `json:"invalid_reason,omitempty"`
	MissingFieldID     string `json:"missing_field_id,omitempty"`
	MissingFieldTypeID string `json:"missing_field_type_id,omitempty"`
}

// ValidatedAction pairs a raw action with its current validation verdict.
type ValidatedAction struct {
	models.Action
	Validation Validation `json:"_validation"`
}

// Registry holds the flat, order-indexed action list plus a read-only
// dependency on the current schema tree. The validated view is recomputed
// whenever either input changes; validation never mutates the raw list.
type Registry struct {
	mu     sync.Mutex
	client remote.Client

	journal   *models.Journal
	index     *structure.Index
	raw       []models.Action
	validated []ValidatedAction

	lastErr error
}

// NewRegistry returns a registry backed by the given boundary client.
func NewRegistry(client remote.Client) *Registry {
	return &Registry{client: client}
}

// Refresh fetches the raw action list from the boundary and revalidates.
func (r *Registry) Refresh(ctx context.Context) error {
	actions, err := r.client.GetActions(ctx)
	if err != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.fail(fmt.Errorf("failed to fetch actions: %w", err))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.SliceStable(actions, func(i, j int) bool { return actions[i].Order < actions[j].Order })
	r.raw = actions
	r.revalidate()
	r.lastErr = nil
	return nil
}

// SetStructure installs the schema tree snapshot actions are validated against
// and recomputes every verdict. A nil journal marks every action invalid.
func (r *Registry) SetStructure(journal *models.Journal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.journal = journal
	r.index = structure.NewIndex(journal)
	r.revalidate()
}

// Validated returns the current validated view in order.
func (r *Registry) Validated() []ValidatedAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ValidatedAction, len(r.validated))
	copy(out, r.validated)
	return out
}

// Get returns one validated action by id.
func (r *Registry) Get(id string) (ValidatedAction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, action := range r.validated {
		if action.ID == id {
			return action, true
		}
	}
	return ValidatedAction{}, false
}

// LastError returns the most recent operation's error, nil after a success.
func (r *Registry) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Registry) fail(err error) error {
	r.lastErr = err
	return err
}

// revalidate recomputes the full validated view: one index lookup per action
// for the field, one for the bound field type. Caller holds mu.
func (r *Registry) revalidate() {
	r.validated = make([]ValidatedAction, 0, len(r.raw))
	for _, action := range r.raw {
		r.validated = append(r.validated, ValidatedAction{
			Action:     action,
			Validation: r.validate(action),
		})
	}
}

func (r *Registry) validate(action models.Action) Validation {
	if r.index == nil {
		return Validation{Reason: ReasonNoStructure}
	}
	if r.index.Field(action.FieldID) == nil {
		return Validation{
			Reason:         ReasonMissingField,
			MissingFieldID: action.FieldID,
		}
	}
	if r.index.FieldType(action.FieldID, action.Option.FieldTypeID) == nil {
		return Validation{
			Reason:             ReasonMissingFieldType,
			MissingFieldID:     action.FieldID,
			MissingFieldTypeID: action.Option.FieldTypeID,
		}
	}
	return Validation{IsValid: true}
}

// EligibleFields enumerates, in tree order, the fields a new action could bind
// to: fields carrying at least one incrementable kind, or pure boolean fields
// whose only type is the CHECK. Fields already bound to an existing action are
// excluded; first binding wins.
func (r *Registry) EligibleFields() []models.Field {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.journal == nil {
		return nil
	}

	bound := make(map[string]bool, len(r.raw))
	for _, action := range r.raw {
		bound[action.FieldID] = true
	}

	var eligible []models.Field
	for _, group := range r.journal.Groups {
		for _, field := range group.Fields {
			if bound[field.ID] || !fieldEligible(field) {
				continue
			}
			eligible = append(eligible, field)
		}
	}
	return eligible
}

func fieldEligible(field models.Field) bool {
	if len(field.Types) == 1 && field.Types[0].Kind == models.KindCheck {
		return true
	}
	for _, fieldType := range field.Types {
		if eligibleKinds[fieldType.Kind] {
			return true
		}
	}
	return false
}

// Create registers a new action with the boundary and appends it locally. A nil
// increment makes the action custom: it prompts for a value at trigger time.
func (r *Registry) Create(ctx context.Context, name, fieldID, fieldTypeID string, increment *float64, daily bool) (models.Action, error) {
	created, err := r.client.CreateAction(ctx, remote.CreateActionRequest{
		Name:          name,
		FieldID:       fieldID,
		FieldTypeID:   fieldTypeID,
		Increment:     increment,
		IsDailyAction: daily,
	})
	if err != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		return models.Action{}, r.fail(fmt.Errorf("failed to create action: %w", err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.raw = append(r.raw, *created)
	sort.SliceStable(r.raw, func(i, j int) bool { return r.raw[i].Order < r.raw[j].Order })
	r.revalidate()
	r.lastErr = nil
	return *created, nil
}

// Delete removes an action at the boundary and locally, keeping the remaining
// orders dense.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	idx := r.indexOf(id)
	r.mu.Unlock()
	if idx < 0 {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.fail(fmt.Errorf("%w: %s", ErrActionNotFound, id))
	}

	if err := r.client.RemoveAction(ctx, id); err != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.fail(fmt.Errorf("failed to delete action: %w", err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if idx = r.indexOf(id); idx >= 0 {
		r.raw = append(r.raw[:idx], r.raw[idx+1:]...)
		for i := range r.raw {
			r.raw[i].Order = i
		}
	}
	r.revalidate()
	r.lastErr = nil
	return nil
}

// Reorder optimistically splices the action to newOrder and reindexes the whole
// list, then round-trips the move. The server applies its own minimal-shift
// algorithm, so on success the list is re-fetched and the server's order
// adopted as authoritative. On failure the optimistic move is rolled back.
func (r *Registry) Reorder(ctx context.Context, id string, newOrder int) error {
	r.mu.Lock()
	idx := r.indexOf(id)
	if idx < 0 {
		defer r.mu.Unlock()
		return r.fail(fmt.Errorf("%w: %s", ErrActionNotFound, id))
	}

	before := make([]models.Action, len(r.raw))
	copy(before, r.raw)

	action := r.raw[idx]
	r.raw = append(r.raw[:idx], r.raw[idx+1:]...)
	if newOrder < 0 {
		newOrder = 0
	}
	if newOrder > len(r.raw) {
		newOrder = len(r.raw)
	}
	r.raw = append(r.raw, models.Action{})
	copy(r.raw[newOrder+1:], r.raw[newOrder:])
	r.raw[newOrder] = action
	for i := range r.raw {
		r.raw[i].Order = i
	}
	r.revalidate()
	r.mu.Unlock()

	if err := r.client.ReorderAction(ctx, remote.ReorderActionRequest{ID: id, Order: newOrder}); err != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.raw = before
		r.revalidate()
		return r.fail(fmt.Errorf("failed to reorder action: %w", err))
	}

	// Server order wins over the optimistic guess.
	return r.Refresh(ctx)
}

// CompletedToday reports whether a daily action has already been registered
// today.
func (r *Registry) CompletedToday(action models.Action) bool {
	return action.CompletedOn(utils.Today())
}

// markTriggered stamps the action's last-triggered date after a successful
// registration commit.
func (r *Registry) markTriggered(id, day string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.raw {
		if r.raw[i].ID == id {
			r.raw[i].LastTriggeredDate = day
			break
		}
	}
	r.revalidate()
}

// indexOf returns the raw-list index of an action. Caller holds mu.
func (r *Registry) indexOf(id string) int {
	for i := range r.raw {
		if r.raw[i].ID == id {
			return i
		}
	}
	return -1
}
