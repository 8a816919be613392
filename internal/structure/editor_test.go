package structure

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/julianstephens/fieldbook/internal/models"
	"github.com/julianstephens/fieldbook/internal/remote"
)

// fakeClient is an in-memory boundary for editor tests. Saves echo the request
// back as the active structure, like the real server does.
type fakeClient struct {
	journal   *models.Journal
	getErr    error
	saveErr   error
	saveCalls int
	lastSave  remote.SaveStructureRequest
}

func (f *fakeClient) GetStructure(ctx context.Context, date string) (*models.Journal, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.journal, nil
}

func (f *fakeClient) SaveStructure(ctx context.Context, req remote.SaveStructureRequest) (*models.Journal, error) {
	f.saveCalls++
	f.lastSave = req
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.journal = &models.Journal{
		StructureID: uuid.NewString(),
		IsActive:    true,
		Groups:      req.Groups,
	}
	return f.journal, nil
}

func (f *fakeClient) GetEntry(ctx context.Context, date string) (*models.JournalEntry, error) {
	return nil, remote.ErrNotFound
}

func (f *fakeClient) SaveEntry(ctx context.Context, entry *models.JournalEntry) (*models.JournalEntry, error) {
	return entry, nil
}

func (f *fakeClient) GetActions(ctx context.Context) ([]models.Action, error) {
	return nil, nil
}

func (f *fakeClient) CreateAction(ctx context.Context, req remote.CreateActionRequest) (*models.Action, error) {
	return nil, nil
}

func (f *fakeClient) RemoveAction(ctx context.Context, id string) error { return nil }

func (f *fakeClient) RegisterAction(ctx context.Context, req remote.RegisterActionRequest) error {
	return nil
}

func (f *fakeClient) ReorderAction(ctx context.Context, req remote.ReorderActionRequest) error {
	return nil
}

func newTestEditor(t *testing.T) (*Editor, *fakeClient) {
	t.Helper()
	client := &fakeClient{getErr: remote.ErrNotFound}
	editor := NewEditor(client)
	if err := editor.Refresh(context.Background(), "today"); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	return editor, client
}

func TestRefresh_BootstrapsDefaultStructureForToday(t *testing.T) {
	editor, client := newTestEditor(t)

	journal := editor.Journal()
	if journal == nil {
		t.Fatal("expected a journal after bootstrap")
	}
	if len(journal.Groups) != 1 {
		t.Fatalf("expected one default group, got %d", len(journal.Groups))
	}
	if journal.Groups[0].Name != "General" {
		t.Errorf("expected default group named General, got %q", journal.Groups[0].Name)
	}
	if client.saveCalls != 1 {
		t.Errorf("expected bootstrap to persist once, saved %d times", client.saveCalls)
	}
	if editor.Dirty() {
		t.Error("freshly bootstrapped structure should not be dirty")
	}
}

// stallingClient stalls its first GetStructure call until released; later
// calls respond immediately with the newer journal.
type stallingClient struct {
	fakeClient
	mu      sync.Mutex
	served  int
	older   *models.Journal
	newer   *models.Journal
	entered chan struct{}
	release chan struct{}
}

func (c *stallingClient) GetStructure(ctx context.Context, date string) (*models.Journal, error) {
	c.mu.Lock()
	first := c.served == 0
	c.served++
	c.mu.Unlock()
	if first {
		c.entered <- struct{}{}
		<-c.release
		return c.older, nil
	}
	return c.newer, nil
}

func TestRefresh_SupersededFetchIsDiscarded(t *testing.T) {
	client := &stallingClient{
		older:   &models.Journal{StructureID: "old", IsActive: true},
		newer:   &models.Journal{StructureID: "new", IsActive: true},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	editor := NewEditor(client)

	// First refresh goes out and stalls mid-flight.
	firstErr := make(chan error, 1)
	go func() { firstErr <- editor.Refresh(context.Background(), "today") }()
	<-client.entered

	// A second refresh is issued and completes while the first is in flight.
	if err := editor.Refresh(context.Background(), "today"); err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}
	if got := editor.Journal().StructureID; got != "new" {
		t.Fatalf("second refresh should adopt the newer snapshot, have %q", got)
	}

	// Releasing the stalled response must not revert the newer snapshot.
	close(client.release)
	if err := <-firstErr; !errors.Is(err, ErrStaleResponse) {
		t.Fatalf("expected ErrStaleResponse from the superseded fetch, got %v", err)
	}
	if got := editor.Journal().StructureID; got != "new" {
		t.Errorf("stale response overwrote the snapshot: have structure %q", got)
	}
}

func TestRefresh_MissingHistoricalDateIsTerminal(t *testing.T) {
	client := &fakeClient{getErr: remote.ErrNotFound}
	editor := NewEditor(client)

	err := editor.Refresh(context.Background(), "2020-01-15")
	if err == nil {
		t.Fatal("expected an error for a missing past date")
	}
	if client.saveCalls != 0 {
		t.Errorf("a missing past date must not bootstrap, saved %d times", client.saveCalls)
	}
	if editor.Journal() != nil {
		t.Error("no journal should be loaded after a failed refresh")
	}
}

func TestRefresh_RejectsMalformedDate(t *testing.T) {
	editor := NewEditor(&fakeClient{})
	err := editor.Refresh(context.Background(), "2025-13-40")
	if !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestAddField_AttachesCheckTypeLast(t *testing.T) {
	editor, _ := newTestEditor(t)
	groupID := editor.Journal().Groups[0].ID

	field, err := editor.AddField(groupID, "Water", nil)
	if err != nil {
		t.Fatalf("AddField failed: %v", err)
	}
	if len(field.Types) != 1 {
		t.Fatalf("expected exactly one type on a new field, got %d", len(field.Types))
	}
	check := field.CheckType()
	if check == nil {
		t.Fatal("new field is missing its CHECK type")
	}
	if check.Order != checkTypeOrder {
		t.Errorf("expected CHECK order %d at creation, got %d", checkTypeOrder, check.Order)
	}

	// Adding another type collapses orders densely and keeps CHECK last.
	_, err = editor.AddFieldType(field.ID, models.KindNumber, "glasses", models.DataOptions{
		Numeric: &models.NumericOptions{Min: 0, Max: 12, Step: 1},
	}, nil)
	if err != nil {
		t.Fatalf("AddFieldType failed: %v", err)
	}

	got := editor.Index().Field(field.ID)
	if len(got.Types) != 2 {
		t.Fatalf("expected 2 types, got %d", len(got.Types))
	}
	for i, fieldType := range got.Types {
		if fieldType.Order != i {
			t.Errorf("type order not dense at %d: got %d", i, fieldType.Order)
		}
	}
	if got.Types[len(got.Types)-1].Kind != models.KindCheck {
		t.Error("CHECK type should still sort last after the first type add")
	}
}

func TestAddField_InsertsAtTargetIndex(t *testing.T) {
	editor, _ := newTestEditor(t)
	groupID := editor.Journal().Groups[0].ID

	first, _ := editor.AddField(groupID, "Sleep", nil)
	second, _ := editor.AddField(groupID, "Water", nil)

	idx := 1
	middle, err := editor.AddField(groupID, "Mood", &idx)
	if err != nil {
		t.Fatalf("AddField with index failed: %v", err)
	}

	group := editor.Journal().Groups[0]
	wantOrder := []string{first.ID, middle.ID, second.ID}
	for i, id := range wantOrder {
		if group.Fields[i].ID != id {
			t.Fatalf("field %d: expected %s, got %s", i, id, group.Fields[i].ID)
		}
		if group.Fields[i].Order != i {
			t.Errorf("field %d order not dense: got %d", i, group.Fields[i].Order)
		}
	}
}

func TestAddFieldType_RejectsCheck(t *testing.T) {
	editor, _ := newTestEditor(t)
	groupID := editor.Journal().Groups[0].ID
	field, _ := editor.AddField(groupID, "Water", nil)

	_, err := editor.AddFieldType(field.ID, models.KindCheck, "", models.DataOptions{}, nil)
	if !errors.Is(err, ErrCheckProtected) {
		t.Fatalf("expected ErrCheckProtected, got %v", err)
	}
	if got := editor.Index().Field(field.ID); len(got.Types) != 1 {
		t.Errorf("rejected add must not change the tree, have %d types", len(got.Types))
	}
}

func TestAddFieldType_ValidatesOptionsAgainstKind(t *testing.T) {
	editor, _ := newTestEditor(t)
	groupID := editor.Journal().Groups[0].ID
	field, _ := editor.AddField(groupID, "Mood", nil)

	_, err := editor.AddFieldType(field.ID, models.KindCustomScale, "", models.DataOptions{}, nil)
	if err == nil {
		t.Fatal("CUSTOM_SCALE without labels should be rejected")
	}

	_, err = editor.AddFieldType(field.ID, models.KindCustomScale, "", models.DataOptions{
		Scale: &models.ScaleOptions{Labels: []string{"low", "ok", "high"}},
	}, nil)
	if err != nil {
		t.Fatalf("valid CUSTOM_SCALE rejected: %v", err)
	}
}

func TestRemoveFieldType_CheckIsProtected(t *testing.T) {
	editor, _ := newTestEditor(t)
	groupID := editor.Journal().Groups[0].ID
	field, _ := editor.AddField(groupID, "Water", nil)
	checkID := field.Types[0].ID

	editor.Save(context.Background())

	err := editor.RemoveFieldType(checkID)
	if !errors.Is(err, ErrCheckProtected) {
		t.Fatalf("expected ErrCheckProtected, got %v", err)
	}
	if got := editor.Index().FieldType(field.ID, checkID); got == nil {
		t.Error("CHECK type must survive a rejected removal")
	}
	deleted := editor.Deleted()
	if len(deleted.FieldTypes) != 0 {
		t.Errorf("rejected removal must not add tombstones, got %v", deleted.FieldTypes)
	}
}

func TestUpdateFieldType_CheckCannotBeRetyped(t *testing.T) {
	editor, _ := newTestEditor(t)
	groupID := editor.Journal().Groups[0].ID
	field, _ := editor.AddField(groupID, "Water", nil)
	checkID := field.Types[0].ID
	number, _ := editor.AddFieldType(field.ID, models.KindNumber, "", models.DataOptions{}, nil)

	kind := models.KindNumber
	if err := editor.UpdateFieldType(checkID, FieldTypeUpdate{Kind: &kind}); !errors.Is(err, ErrCheckProtected) {
		t.Fatalf("expected ErrCheckProtected retyping CHECK away, got %v", err)
	}

	kind = models.KindCheck
	if err := editor.UpdateFieldType(number.ID, FieldTypeUpdate{Kind: &kind}); !errors.Is(err, ErrCheckProtected) {
		t.Fatalf("expected ErrCheckProtected retyping into CHECK, got %v", err)
	}
}

func TestRemove_AccumulatesTombstonesAndClearsOnSave(t *testing.T) {
	editor, client := newTestEditor(t)
	groupID := editor.Journal().Groups[0].ID

	group, _ := editor.AddGroup("Habits")
	field, _ := editor.AddField(group.ID, "Reading", nil)
	pages, _ := editor.AddFieldType(field.ID, models.KindNumber, "pages", models.DataOptions{}, nil)
	other, _ := editor.AddField(groupID, "Water", nil)
	if _, err := editor.Save(context.Background()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := editor.RemoveFieldType(pages.ID); err != nil {
		t.Fatalf("RemoveFieldType failed: %v", err)
	}
	if err := editor.RemoveField(other.ID); err != nil {
		t.Fatalf("RemoveField failed: %v", err)
	}
	if err := editor.RemoveGroup(group.ID); err != nil {
		t.Fatalf("RemoveGroup failed: %v", err)
	}

	deleted := editor.Deleted()
	if len(deleted.Groups) != 1 || deleted.Groups[0] != group.ID {
		t.Errorf("expected group tombstone %s, got %v", group.ID, deleted.Groups)
	}
	// Removing the group tombstones its surviving field too.
	if len(deleted.Fields) != 2 {
		t.Errorf("expected 2 field tombstones, got %v", deleted.Fields)
	}
	// pages explicitly, then other's CHECK, then field's CHECK via the group.
	if len(deleted.FieldTypes) != 3 {
		t.Errorf("expected 3 field type tombstones, got %v", deleted.FieldTypes)
	}
	if !editor.Dirty() {
		t.Error("pending tombstones must mark the editor dirty")
	}

	if _, err := editor.Save(context.Background()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if client.lastSave.DeletedElements == nil {
		t.Fatal("save request should carry the tombstone set")
	}
	if !editor.Deleted().IsEmpty() {
		t.Error("tombstones must clear after a successful save")
	}
	if editor.Dirty() {
		t.Error("editor must be clean after a successful save")
	}
}

func TestSave_FailureKeepsLocalState(t *testing.T) {
	editor, client := newTestEditor(t)
	group, _ := editor.AddGroup("Habits")
	if err := editor.RemoveGroup(group.ID); err != nil {
		t.Fatalf("RemoveGroup failed: %v", err)
	}

	client.saveErr = errors.New("boundary unavailable")
	if _, err := editor.Save(context.Background()); err == nil {
		t.Fatal("expected save to fail")
	}

	if !editor.Dirty() {
		t.Error("failed save must leave the editor dirty")
	}
	if editor.Deleted().IsEmpty() {
		t.Error("failed save must keep the tombstone set for retry")
	}
}

func TestReorder_DenseAndIdempotent(t *testing.T) {
	editor, _ := newTestEditor(t)
	groupID := editor.Journal().Groups[0].ID
	a, _ := editor.AddField(groupID, "A", nil)
	b, _ := editor.AddField(groupID, "B", nil)
	c, _ := editor.AddField(groupID, "C", nil)

	if err := editor.ReorderField(c.ID, 0); err != nil {
		t.Fatalf("ReorderField failed: %v", err)
	}
	// Same move again is a no-op.
	if err := editor.ReorderField(c.ID, 0); err != nil {
		t.Fatalf("repeated ReorderField failed: %v", err)
	}

	fields := editor.Journal().Groups[0].Fields
	want := []string{c.ID, a.ID, b.ID}
	for i, id := range want {
		if fields[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, fields[i].ID)
		}
		if fields[i].Order != i {
			t.Errorf("position %d: order not dense, got %d", i, fields[i].Order)
		}
	}
}

func TestReorder_ClampsOutOfRangeIndex(t *testing.T) {
	editor, _ := newTestEditor(t)
	groupID := editor.Journal().Groups[0].ID
	a, _ := editor.AddField(groupID, "A", nil)
	b, _ := editor.AddField(groupID, "B", nil)

	if err := editor.ReorderField(a.ID, 99); err != nil {
		t.Fatalf("ReorderField failed: %v", err)
	}
	fields := editor.Journal().Groups[0].Fields
	if fields[0].ID != b.ID || fields[1].ID != a.ID {
		t.Error("out-of-range index should clamp to the end")
	}

	if err := editor.ReorderField(a.ID, -5); err != nil {
		t.Fatalf("ReorderField failed: %v", err)
	}
	if editor.Journal().Groups[0].Fields[0].ID != a.ID {
		t.Error("negative index should clamp to the front")
	}
}

func TestReorderGroup_ReindexesAllSiblings(t *testing.T) {
	editor, _ := newTestEditor(t)
	second, _ := editor.AddGroup("Habits")
	third, _ := editor.AddGroup("Health")

	if err := editor.ReorderGroup(third.ID, 0); err != nil {
		t.Fatalf("ReorderGroup failed: %v", err)
	}
	groups := editor.Journal().Groups
	if groups[0].ID != third.ID || groups[2].ID != second.ID {
		t.Errorf("unexpected group order after move: %s, %s, %s", groups[0].Name, groups[1].Name, groups[2].Name)
	}
	for i := range groups {
		if groups[i].Order != i {
			t.Errorf("group %d order not dense: got %d", i, groups[i].Order)
		}
	}
}

func TestDirty_NoOpEditStaysClean(t *testing.T) {
	editor, _ := newTestEditor(t)
	group, _ := editor.AddGroup("Habits")
	if _, err := editor.Save(context.Background()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	name := "Habits"
	if err := editor.UpdateGroup(group.ID, GroupUpdate{Name: &name}); err != nil {
		t.Fatalf("UpdateGroup failed: %v", err)
	}
	if editor.Dirty() {
		t.Error("renaming a group to its current name should not dirty the tree")
	}

	name = "Routines"
	editor.UpdateGroup(group.ID, GroupUpdate{Name: &name})
	if !editor.Dirty() {
		t.Error("a real rename must dirty the tree")
	}

	name = "Habits"
	editor.UpdateGroup(group.ID, GroupUpdate{Name: &name})
	if editor.Dirty() {
		t.Error("reverting an edit should return the tree to clean")
	}
}

func TestHistorical_SnapshotIsReadOnly(t *testing.T) {
	client := &fakeClient{journal: &models.Journal{
		StructureID: "old",
		IsActive:    false,
		Groups: []models.Group{{
			ID:   "g1",
			Name: "General",
		}},
	}}
	editor := NewEditor(client)
	if err := editor.Refresh(context.Background(), "2024-03-10"); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if !editor.Historical() {
		t.Fatal("inactive snapshot should be historical")
	}

	if _, err := editor.AddGroup("Habits"); !errors.Is(err, ErrHistorical) {
		t.Errorf("AddGroup on historical: expected ErrHistorical, got %v", err)
	}
	if err := editor.RemoveGroup("g1"); !errors.Is(err, ErrHistorical) {
		t.Errorf("RemoveGroup on historical: expected ErrHistorical, got %v", err)
	}
	if _, err := editor.Save(context.Background()); !errors.Is(err, ErrHistorical) {
		t.Errorf("Save on historical: expected ErrHistorical, got %v", err)
	}
}

func TestEditor_OperationsWithoutStructure(t *testing.T) {
	editor := NewEditor(&fakeClient{})
	if _, err := editor.AddGroup("Habits"); !errors.Is(err, ErrNoStructure) {
		t.Errorf("expected ErrNoStructure, got %v", err)
	}
	if _, err := editor.Save(context.Background()); !errors.Is(err, ErrNoStructure) {
		t.Errorf("expected ErrNoStructure, got %v", err)
	}
}

func TestEditor_NotFoundErrors(t *testing.T) {
	editor, _ := newTestEditor(t)

	if _, err := editor.AddField("missing", "Water", nil); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("expected ErrGroupNotFound, got %v", err)
	}
	if _, err := editor.AddFieldType("missing", models.KindNumber, "", models.DataOptions{}, nil); !errors.Is(err, ErrFieldNotFound) {
		t.Errorf("expected ErrFieldNotFound, got %v", err)
	}
	if err := editor.RemoveFieldType("missing"); !errors.Is(err, ErrFieldTypeNotFound) {
		t.Errorf("expected ErrFieldTypeNotFound, got %v", err)
	}
	if err := editor.LastError(); !errors.Is(err, ErrFieldTypeNotFound) {
		t.Errorf("LastError should hold the latest failure, got %v", err)
	}

	if _, err := editor.AddGroup("Habits"); err != nil {
		t.Fatalf("AddGroup failed: %v", err)
	}
	if err := editor.LastError(); err != nil {
		t.Errorf("LastError should clear after a success, got %v", err)
	}
}

func TestEditor_TrackingScenario(t *testing.T) {
	// One realistic session: build a small tracker, save, reshape it, save again.
	editor, client := newTestEditor(t)

	habits, _ := editor.AddGroup("Habits")
	water, _ := editor.AddField(habits.ID, "Water", nil)
	editor.AddFieldType(water.ID, models.KindNumber, "glasses", models.DataOptions{
		Numeric: &models.NumericOptions{Min: 0, Max: 12, Step: 1, Unit: "glasses"},
	}, nil)
	sleep, _ := editor.AddField(habits.ID, "Sleep", nil)
	editor.AddFieldType(sleep.ID, models.KindTimeSelect, "bedtime", models.DataOptions{}, nil)

	if _, err := editor.Save(context.Background()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Reshape: sleep first, then drop water entirely.
	if err := editor.ReorderField(sleep.ID, 0); err != nil {
		t.Fatalf("ReorderField failed: %v", err)
	}
	if err := editor.RemoveField(water.ID); err != nil {
		t.Fatalf("RemoveField failed: %v", err)
	}
	if _, err := editor.Save(context.Background()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Water's field id and both its type ids must have gone over as tombstones.
	if got := len(client.lastSave.DeletedElements.Fields); got != 1 {
		t.Errorf("expected 1 field tombstone, got %d", got)
	}
	if got := len(client.lastSave.DeletedElements.FieldTypes); got != 2 {
		t.Errorf("expected 2 field type tombstones, got %d", got)
	}

	group := editor.Index().Group(habits.ID)
	if group == nil || len(group.Fields) != 1 || group.Fields[0].ID != sleep.ID {
		t.Fatal("expected only the sleep field to remain in Habits")
	}
	if group.Fields[0].Order != 0 {
		t.Errorf("surviving field should reindex to 0, got %d", group.Fields[0].Order)
	}
}
