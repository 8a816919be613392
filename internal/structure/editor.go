// Package structure owns the in-memory schema tree for one editing session:
// CRUD and reorder operations over groups, fields and field types, dense
// sibling ordering, tombstone tracking for deferred deletion, and the
// save/refresh protocol against the synchronization boundary.
package structure

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mitchellh/hashstructure/v2"

	"github.com/julianstephens/fieldbook/internal/constants"
	"github.com/julianstephens/fieldbook/internal/models"
	"github.com/julianstephens/fieldbook/internal/remote"
	"github.com/julianstephens/fieldbook/internal/utils"
)

var (
	ErrNoStructure       = errors.New("no structure loaded")
	ErrHistorical        = errors.New("historical structures are read-only")
	ErrInvalidDate       = errors.New("invalid date, expected YYYY-MM-DD")
	ErrGroupNotFound     = errors.New("group not found")
	ErrFieldNotFound     = errors.New("field not found")
	ErrFieldTypeNotFound = errors.New("field type not found")
	ErrCheckProtected    = errors.New("the CHECK field type cannot be added, removed or retyped")
	ErrStaleResponse     = errors.New("fetch superseded by a newer request")
)

// checkTypeOrder is the order given to the auto-attached CHECK type so it sorts
// last among a fresh field's types. The first add/remove/reorder on the type
// collection collapses orders back to a dense 0..n-1 sequence.
const checkTypeOrder = 999

// Editor holds one mutable schema tree snapshot plus a dirty flag and the
// tombstone set. Every mutating operation either fully applies, leaving the
// tree internally consistent, or reports a named error and changes nothing.
//
// An Editor is meant to be driven by a single editing session. The internal
// mutex exists so the registration timer and overlapping refreshes cannot
// corrupt the snapshot, not to support concurrent multi-writer editing.
type Editor struct {
	mu     sync.Mutex
	client remote.Client

	journal    *models.Journal
	historical bool
	deleted    models.DeletedElements

	// savedHash is the tree hash at the last successful save or refresh. The
	// dirty flag is derived from it, so edits that net out to the saved state
	// do not force a round-trip.
	savedHash uint64
	dirty     bool

	// fetchSeq tags every outbound structure fetch; responses that are no
	// longer the latest issued are discarded instead of reverting newer state.
	fetchSeq uint64

	lastErr error
}

// NewEditor returns an editor backed by the given boundary client. No structure
// is loaded until Refresh succeeds.
func NewEditor(client remote.Client) *Editor {
	return &Editor{client: client}
}

// Journal returns the current snapshot, or nil before the first refresh.
// Callers must treat the returned tree as read-only.
func (e *Editor) Journal() *models.Journal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.journal
}

// Dirty reports whether local edits or pending deletions have not been saved.
func (e *Editor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// Historical reports whether the loaded snapshot is a read-only past version.
func (e *Editor) Historical() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.historical
}

// Deleted returns a copy of the tombstone set accumulated since the last save.
func (e *Editor) Deleted() models.DeletedElements {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deleted
}

// LastError returns the most recent operation's error, nil after a success.
// There is one slot: each operation overwrites it.
func (e *Editor) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Index returns normalized id lookup maps over the current snapshot.
func (e *Editor) Index() *Index {
	e.mu.Lock()
	defer e.mu.Unlock()
	return NewIndex(e.journal)
}

func (e *Editor) fail(err error) error {
	e.lastErr = err
	return err
}

// Refresh fetches the structure for the given date ("" and "today" mean today)
// and replaces the snapshot. A 404 for today's date bootstraps and persists a
// default single-group structure; a 404 for any other date is terminal. Any
// pending edits and tombstones are discarded on success.
func (e *Editor) Refresh(ctx context.Context, date string) error {
	date = utils.ResolveDay(date)
	if !utils.ValidDay(date) {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.fail(fmt.Errorf("%w: %q", ErrInvalidDate, date))
	}

	e.mu.Lock()
	e.fetchSeq++
	seq := e.fetchSeq
	e.mu.Unlock()

	journal, err := e.client.GetStructure(ctx, date)
	if errors.Is(err, remote.ErrNotFound) {
		if date != utils.Today() {
			e.mu.Lock()
			defer e.mu.Unlock()
			return e.fail(fmt.Errorf("no structure recorded for %s", date))
		}
		journal, err = e.bootstrap(ctx, date)
	}
	if err != nil {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.fail(fmt.Errorf("failed to fetch structure: %w", err))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if seq != e.fetchSeq {
		// A newer fetch was issued while this one was in flight.
		return e.fail(ErrStaleResponse)
	}
	e.adopt(journal)
	e.lastErr = nil
	return nil
}

// bootstrap creates and persists the default structure for a brand-new journal.
func (e *Editor) bootstrap(ctx context.Context, date string) (*models.Journal, error) {
	group := models.Group{
		ID:     uuid.NewString(),
		Name:   constants.DefaultGroupName,
		Order:  0,
		Fields: []models.Field{},
	}
	return e.client.SaveStructure(ctx, remote.SaveStructureRequest{
		Groups:      []models.Group{group},
		CurrentDate: date,
	})
}

// Save serializes the current groups plus any tombstones to the boundary. On
// success the snapshot is replaced with the server's returned tree and the
// tombstone set and dirty flag are cleared. On failure all local state is left
// untouched so the call can be retried without data loss.
func (e *Editor) Save(ctx context.Context) (*models.Journal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.journal == nil {
		return nil, e.fail(ErrNoStructure)
	}
	if e.historical {
		return nil, e.fail(ErrHistorical)
	}

	req := remote.SaveStructureRequest{
		Groups:      e.journal.Groups,
		CurrentDate: utils.Today(),
	}
	if !e.deleted.IsEmpty() {
		deleted := e.deleted
		req.DeletedElements = &deleted
	}

	saved, err := e.client.SaveStructure(ctx, req)
	if err != nil {
		return nil, e.fail(fmt.Errorf("failed to save structure: %w", err))
	}
	e.adopt(saved)
	e.lastErr = nil
	return saved, nil
}

// adopt replaces the snapshot and resets per-save bookkeeping. Caller holds mu.
func (e *Editor) adopt(journal *models.Journal) {
	e.journal = journal
	e.historical = !journal.IsActive
	e.deleted = models.DeletedElements{}
	e.savedHash = treeHash(journal.Groups)
	e.dirty = false
}

// mutable guards every mutating operation. Caller holds mu.
func (e *Editor) mutable() error {
	if e.journal == nil {
		return ErrNoStructure
	}
	if e.historical {
		return ErrHistorical
	}
	return nil
}

// recomputeDirty derives the dirty flag from the tree hash and pending
// tombstones. Caller holds mu.
func (e *Editor) recomputeDirty() {
	e.dirty = !e.deleted.IsEmpty() || treeHash(e.journal.Groups) != e.savedHash
}

// treeHash fingerprints the group tree for change detection.
func treeHash(groups []models.Group) uint64 {
	h, err := hashstructure.Hash(groups, hashstructure.FormatV2, nil)
	if err != nil {
		return 0
	}
	return h
}

// AddGroup appends a new group at the end of the tree.
func (e *Editor) AddGroup(name string) (models.Group, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutable(); err != nil {
		return models.Group{}, e.fail(err)
	}

	group := models.Group{
		ID:     uuid.NewString(),
		Name:   name,
		Order:  len(e.journal.Groups),
		Fields: []models.Field{},
	}
	e.journal.Groups = append(e.journal.Groups, group)
	e.recomputeDirty()
	e.lastErr = nil
	return group, nil
}

// AddField creates a field with its mandatory CHECK type and inserts it into
// the group at targetIndex (clamped; nil appends). All sibling fields are
// reindexed to their array positions afterwards.
func (e *Editor) AddField(groupID, name string, targetIndex *int) (models.Field, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutable(); err != nil {
		return models.Field{}, e.fail(err)
	}

	group := e.findGroup(groupID)
	if group == nil {
		return models.Field{}, e.fail(fmt.Errorf("%w: %s", ErrGroupNotFound, groupID))
	}

	fieldID := uuid.NewString()
	field := models.Field{
		ID:      fieldID,
		GroupID: groupID,
		Name:    name,
		Types: []models.FieldType{{
			ID:      uuid.NewString(),
			FieldID: fieldID,
			Kind:    models.KindCheck,
			Order:   checkTypeOrder,
		}},
	}

	idx := len(group.Fields)
	if targetIndex != nil {
		idx = clamp(*targetIndex, 0, len(group.Fields))
	}
	group.Fields = append(group.Fields, models.Field{})
	copy(group.Fields[idx+1:], group.Fields[idx:])
	group.Fields[idx] = field
	reindexFields(group)

	e.recomputeDirty()
	e.lastErr = nil
	return group.Fields[idx], nil
}

// AddFieldType appends a new typed way of recording the field. CHECK types can
// never be added by hand; every field already owns exactly one. A nil order
// appends; the type collection is then re-sorted and reindexed densely.
func (e *Editor) AddFieldType(fieldID string, kind models.Kind, description string, opts models.DataOptions, order *int) (models.FieldType, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutable(); err != nil {
		return models.FieldType{}, e.fail(err)
	}

	if kind == models.KindCheck {
		return models.FieldType{}, e.fail(ErrCheckProtected)
	}
	if err := opts.Validate(kind); err != nil {
		return models.FieldType{}, e.fail(err)
	}

	_, field := e.findField(fieldID)
	if field == nil {
		return models.FieldType{}, e.fail(fmt.Errorf("%w: %s", ErrFieldNotFound, fieldID))
	}

	ord := len(field.Types)
	if order != nil {
		ord = *order
	}
	fieldType := models.FieldType{
		ID:          uuid.NewString(),
		FieldID:     fieldID,
		Kind:        kind,
		Description: description,
		Options:     opts,
		Order:       ord,
	}
	field.Types = append(field.Types, fieldType)
	reindexTypes(field)

	e.recomputeDirty()
	e.lastErr = nil
	for i := range field.Types {
		if field.Types[i].ID == fieldType.ID {
			return field.Types[i], nil
		}
	}
	return fieldType, nil
}

// GroupUpdate is a partial update for a group; nil members are left untouched.
type GroupUpdate struct {
	Name               *string
	CollapsedByDefault *bool
}

// FieldUpdate is a partial update for a field.
type FieldUpdate struct {
	Name *string
}

// FieldTypeUpdate is a partial update for a field type. Kind changes are only
// legal between non-CHECK kinds and must leave the options valid.
type FieldTypeUpdate struct {
	Kind        *models.Kind
	Description *string
	Options     *models.DataOptions
}

// UpdateGroup shallow-merges upd into the named group.
func (e *Editor) UpdateGroup(id string, upd GroupUpdate) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutable(); err != nil {
		return e.fail(err)
	}

	group := e.findGroup(id)
	if group == nil {
		return e.fail(fmt.Errorf("%w: %s", ErrGroupNotFound, id))
	}
	if upd.Name != nil {
		group.Name = *upd.Name
	}
	if upd.CollapsedByDefault != nil {
		group.CollapsedByDefault = *upd.CollapsedByDefault
	}
	e.recomputeDirty()
	e.lastErr = nil
	return nil
}

// UpdateField shallow-merges upd into the named field.
func (e *Editor) UpdateField(id string, upd FieldUpdate) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutable(); err != nil {
		return e.fail(err)
	}

	_, field := e.findField(id)
	if field == nil {
		return e.fail(fmt.Errorf("%w: %s", ErrFieldNotFound, id))
	}
	if upd.Name != nil {
		field.Name = *upd.Name
	}
	e.recomputeDirty()
	e.lastErr = nil
	return nil
}

// UpdateFieldType shallow-merges upd into the named field type. Changing the
// kind of a CHECK type, or changing any type into a CHECK, is rejected.
func (e *Editor) UpdateFieldType(id string, upd FieldTypeUpdate) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutable(); err != nil {
		return e.fail(err)
	}

	_, fieldType, _ := e.findFieldType(id)
	if fieldType == nil {
		return e.fail(fmt.Errorf("%w: %s", ErrFieldTypeNotFound, id))
	}

	if upd.Kind != nil && *upd.Kind != fieldType.Kind {
		if fieldType.Kind == models.KindCheck || *upd.Kind == models.KindCheck {
			return e.fail(ErrCheckProtected)
		}
	}

	kind := fieldType.Kind
	if upd.Kind != nil {
		kind = *upd.Kind
	}
	opts := fieldType.Options
	if upd.Options != nil {
		opts = *upd.Options
	}
	if err := opts.Validate(kind); err != nil {
		return e.fail(err)
	}

	fieldType.Kind = kind
	fieldType.Options = opts
	if upd.Description != nil {
		fieldType.Description = *upd.Description
	}
	e.recomputeDirty()
	e.lastErr = nil
	return nil
}

// RemoveGroup removes the group and everything under it, reindexes the
// remaining groups, and records the removed ids as tombstones.
func (e *Editor) RemoveGroup(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutable(); err != nil {
		return e.fail(err)
	}

	idx := -1
	for i := range e.journal.Groups {
		if e.journal.Groups[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return e.fail(fmt.Errorf("%w: %s", ErrGroupNotFound, id))
	}

	group := e.journal.Groups[idx]
	e.deleted.Groups = append(e.deleted.Groups, group.ID)
	for _, field := range group.Fields {
		e.deleted.Fields = append(e.deleted.Fields, field.ID)
		for _, fieldType := range field.Types {
			e.deleted.FieldTypes = append(e.deleted.FieldTypes, fieldType.ID)
		}
	}

	e.journal.Groups = append(e.journal.Groups[:idx], e.journal.Groups[idx+1:]...)
	reindexGroups(e.journal)
	e.recomputeDirty()
	e.lastErr = nil
	return nil
}

// RemoveField removes the field and its types, reindexes its siblings, and
// records tombstones for the field and every type under it.
func (e *Editor) RemoveField(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutable(); err != nil {
		return e.fail(err)
	}

	group, field := e.findField(id)
	if field == nil {
		return e.fail(fmt.Errorf("%w: %s", ErrFieldNotFound, id))
	}

	e.deleted.Fields = append(e.deleted.Fields, field.ID)
	for _, fieldType := range field.Types {
		e.deleted.FieldTypes = append(e.deleted.FieldTypes, fieldType.ID)
	}

	idx := -1
	for i := range group.Fields {
		if group.Fields[i].ID == id {
			idx = i
			break
		}
	}
	group.Fields = append(group.Fields[:idx], group.Fields[idx+1:]...)
	reindexFields(group)
	e.recomputeDirty()
	e.lastErr = nil
	return nil
}

// RemoveFieldType removes a non-CHECK field type, reindexes the remaining
// types, and records a tombstone. Removing the CHECK type is rejected outright:
// the tree is left untouched and no tombstone is added.
func (e *Editor) RemoveFieldType(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutable(); err != nil {
		return e.fail(err)
	}

	field, fieldType, idx := e.findFieldType(id)
	if fieldType == nil {
		return e.fail(fmt.Errorf("%w: %s", ErrFieldTypeNotFound, id))
	}
	if fieldType.Kind == models.KindCheck {
		return e.fail(ErrCheckProtected)
	}

	e.deleted.FieldTypes = append(e.deleted.FieldTypes, fieldType.ID)
	field.Types = append(field.Types[:idx], field.Types[idx+1:]...)
	reindexTypes(field)
	e.recomputeDirty()
	e.lastErr = nil
	return nil
}

// ReorderGroup moves a group to newIndex (clamped) and reindexes every group.
// Removing the target first and splicing it back in makes the operation
// idempotent regardless of move direction.
func (e *Editor) ReorderGroup(id string, newIndex int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutable(); err != nil {
		return e.fail(err)
	}

	idx := -1
	for i := range e.journal.Groups {
		if e.journal.Groups[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return e.fail(fmt.Errorf("%w: %s", ErrGroupNotFound, id))
	}

	e.journal.Groups = splice(e.journal.Groups, idx, newIndex)
	reindexGroups(e.journal)
	e.recomputeDirty()
	e.lastErr = nil
	return nil
}

// ReorderField moves a field among its siblings and reindexes them all.
func (e *Editor) ReorderField(id string, newIndex int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutable(); err != nil {
		return e.fail(err)
	}

	group, field := e.findField(id)
	if field == nil {
		return e.fail(fmt.Errorf("%w: %s", ErrFieldNotFound, id))
	}

	idx := -1
	for i := range group.Fields {
		if group.Fields[i].ID == id {
			idx = i
			break
		}
	}
	group.Fields = splice(group.Fields, idx, newIndex)
	reindexFields(group)
	e.recomputeDirty()
	e.lastErr = nil
	return nil
}

// ReorderFieldType moves a field type among its siblings and reindexes them.
func (e *Editor) ReorderFieldType(id string, newIndex int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutable(); err != nil {
		return e.fail(err)
	}

	field, fieldType, idx := e.findFieldType(id)
	if fieldType == nil {
		return e.fail(fmt.Errorf("%w: %s", ErrFieldTypeNotFound, id))
	}

	field.Types = splice(field.Types, idx, newIndex)
	for i := range field.Types {
		field.Types[i].Order = i
	}
	e.recomputeDirty()
	e.lastErr = nil
	return nil
}

// findGroup returns a pointer into the live tree. Caller holds mu.
func (e *Editor) findGroup(id string) *models.Group {
	for i := range e.journal.Groups {
		if e.journal.Groups[i].ID == id {
			return &e.journal.Groups[i]
		}
	}
	return nil
}

// findField locates a field anywhere in the tree. Caller holds mu.
func (e *Editor) findField(id string) (*models.Group, *models.Field) {
	for i := range e.journal.Groups {
		group := &e.journal.Groups[i]
		for j := range group.Fields {
			if group.Fields[j].ID == id {
				return group, &group.Fields[j]
			}
		}
	}
	return nil, nil
}

// findFieldType locates a field type anywhere in the tree along with its owning
// field and slice index. Caller holds mu.
func (e *Editor) findFieldType(id string) (*models.Field, *models.FieldType, int) {
	for i := range e.journal.Groups {
		group := &e.journal.Groups[i]
		for j := range group.Fields {
			field := &group.Fields[j]
			for k := range field.Types {
				if field.Types[k].ID == id {
					return field, &field.Types[k], k
				}
			}
		}
	}
	return nil, nil, -1
}

// splice removes the element at from and reinserts it at to (clamped).
func splice[T any](items []T, from, to int) []T {
	item := items[from]
	items = append(items[:from], items[from+1:]...)
	to = clamp(to, 0, len(items))
	items = append(items, item)
	copy(items[to+1:], items[to:])
	items[to] = item
	return items
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func reindexGroups(journal *models.Journal) {
	for i := range journal.Groups {
		journal.Groups[i].Order = i
	}
}

func reindexFields(group *models.Group) {
	for i := range group.Fields {
		group.Fields[i].Order = i
	}
}

// reindexTypes restores dense 0..n-1 orders by the types' current sort
// position, so the auto-CHECK's deliberately high initial order keeps it last.
func reindexTypes(field *models.Field) {
	sort.SliceStable(field.Types, func(i, j int) bool {
		return field.Types[i].Order < field.Types[j].Order
	})
	for i := range field.Types {
		field.Types[i].Order = i
	}
}
