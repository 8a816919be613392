package actions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/julianstephens/fieldbook/internal/models"
	"github.com/julianstephens/fieldbook/internal/utils"
)

func newTestRegistrar(t *testing.T, client *fakeClient, delay time.Duration) (*Registrar, *Registry) {
	t.Helper()
	registry := newTestRegistry(t, client)
	return NewRegistrar(registry, client, delay), registry
}

func TestTrigger_RejectsInvalidAction(t *testing.T) {
	client := &fakeClient{actions: []models.Action{
		{ID: "a-broken", FieldID: "f-removed", Option: models.ActionOption{FieldTypeID: "x"}},
	}}
	registrar, _ := newTestRegistrar(t, client, time.Hour)

	err := registrar.Trigger(context.Background(), "a-broken", nil)
	if !errors.Is(err, ErrActionInvalid) {
		t.Fatalf("expected ErrActionInvalid, got %v", err)
	}
	if _, pending := registrar.Pending(); pending {
		t.Error("a rejected trigger must not leave a pending registration")
	}
}

func TestTrigger_RejectsUnknownAction(t *testing.T) {
	registrar, _ := newTestRegistrar(t, &fakeClient{}, time.Hour)
	err := registrar.Trigger(context.Background(), "missing", nil)
	if !errors.Is(err, ErrActionNotFound) {
		t.Fatalf("expected ErrActionNotFound, got %v", err)
	}
}

func TestTrigger_RejectsDailyAlreadyCompleted(t *testing.T) {
	one := 1.0
	client := &fakeClient{actions: []models.Action{{
		ID:                "a-daily",
		FieldID:           "f-water",
		IsDailyAction:     true,
		LastTriggeredDate: utils.Today(),
		Option:            models.ActionOption{FieldTypeID: "f-water-t", Increment: &one},
	}}}
	registrar, _ := newTestRegistrar(t, client, time.Hour)

	err := registrar.Trigger(context.Background(), "a-daily", nil)
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestTrigger_CustomActionRequiresValue(t *testing.T) {
	client := &fakeClient{actions: []models.Action{{
		ID:      "a-custom",
		FieldID: "f-water",
		Option:  models.ActionOption{FieldTypeID: "f-water-t", IsCustom: true},
	}}}
	registrar, _ := newTestRegistrar(t, client, time.Hour)

	err := registrar.Trigger(context.Background(), "a-custom", nil)
	if !errors.Is(err, ErrValueRequired) {
		t.Fatalf("expected ErrValueRequired, got %v", err)
	}

	value := 2.5
	if err := registrar.Trigger(context.Background(), "a-custom", &value); err != nil {
		t.Fatalf("custom trigger with a value failed: %v", err)
	}
	if err := registrar.Confirm(); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if len(client.registered) != 1 {
		t.Fatalf("expected 1 registration, got %d", len(client.registered))
	}
	if client.registered[0].Value == nil || *client.registered[0].Value != 2.5 {
		t.Error("custom registration must carry the supplied value")
	}
}

func TestTrigger_CheckToggleNeedsNoValue(t *testing.T) {
	// A toggle on a pure-CHECK field is created with no increment, so it comes
	// back custom; the boundary ignores any value on CHECK bindings.
	client := &fakeClient{actions: []models.Action{{
		ID:      "a-toggle",
		FieldID: "f-done",
		Option:  models.ActionOption{FieldTypeID: "f-done-check", IsCustom: true},
	}}}
	registrar, _ := newTestRegistrar(t, client, time.Hour)

	if err := registrar.Trigger(context.Background(), "a-toggle", nil); err != nil {
		t.Fatalf("CHECK toggle should trigger without a value: %v", err)
	}
	if err := registrar.Confirm(); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if len(client.registered) != 1 || client.registered[0].ID != "a-toggle" {
		t.Fatalf("expected one registration for a-toggle, got %v", client.registered)
	}
	if client.registered[0].Value != nil {
		t.Error("CHECK toggle must not invent a value")
	}
}

func TestTrigger_SecondTriggerBlockedWhilePending(t *testing.T) {
	one := 1.0
	client := &fakeClient{actions: []models.Action{
		{ID: "a1", FieldID: "f-water", Option: models.ActionOption{FieldTypeID: "f-water-t", Increment: &one}},
		{ID: "a2", FieldID: "f-sleep", Option: models.ActionOption{FieldTypeID: "f-sleep-t", Increment: &one}},
	}}
	registrar, _ := newTestRegistrar(t, client, time.Hour)

	if err := registrar.Trigger(context.Background(), "a1", nil); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}
	err := registrar.Trigger(context.Background(), "a2", nil)
	if !errors.Is(err, ErrRegistrationPending) {
		t.Fatalf("expected ErrRegistrationPending, got %v", err)
	}

	if pending, ok := registrar.Pending(); !ok || pending.ID != "a1" {
		t.Error("the first trigger should still be the pending one")
	}
}

func TestCancel_DiscardsWithoutSideEffect(t *testing.T) {
	one := 1.0
	client := &fakeClient{actions: []models.Action{
		{ID: "a1", FieldID: "f-water", Option: models.ActionOption{FieldTypeID: "f-water-t", Increment: &one}},
	}}
	registrar, _ := newTestRegistrar(t, client, 20*time.Millisecond)

	if err := registrar.Trigger(context.Background(), "a1", nil); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}
	if err := registrar.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	// Even after the original countdown would have elapsed, nothing commits.
	time.Sleep(60 * time.Millisecond)
	if len(client.registered) != 0 {
		t.Errorf("canceled registration must not reach the boundary, got %d", len(client.registered))
	}
	if _, pending := registrar.Pending(); pending {
		t.Error("Cancel should clear the pending slot")
	}

	if err := registrar.Cancel(); !errors.Is(err, ErrNothingPending) {
		t.Errorf("expected ErrNothingPending, got %v", err)
	}
}

func TestConfirm_CommitsImmediately(t *testing.T) {
	one := 2.0
	client := &fakeClient{actions: []models.Action{{
		ID:            "a1",
		FieldID:       "f-water",
		IsDailyAction: true,
		Option:        models.ActionOption{FieldTypeID: "f-water-t", Increment: &one},
	}}}
	registrar, registry := newTestRegistrar(t, client, time.Hour)

	if err := registrar.Trigger(context.Background(), "a1", nil); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}
	if err := registrar.Confirm(); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	if len(client.registered) != 1 || client.registered[0].ID != "a1" {
		t.Fatalf("expected one registration for a1, got %v", client.registered)
	}

	// The daily action is now stamped and cannot trigger again today.
	action, _ := registry.Get("a1")
	if !registry.CompletedToday(action.Action) {
		t.Error("daily action should be marked triggered after commit")
	}
	if err := registrar.Trigger(context.Background(), "a1", nil); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("expected ErrAlreadyRegistered after commit, got %v", err)
	}

	if err := registrar.Confirm(); !errors.Is(err, ErrNothingPending) {
		t.Errorf("expected ErrNothingPending, got %v", err)
	}
}

func TestCountdown_AutoCommits(t *testing.T) {
	one := 1.0
	client := &fakeClient{actions: []models.Action{
		{ID: "a1", FieldID: "f-water", Option: models.ActionOption{FieldTypeID: "f-water-t", Increment: &one}},
	}}
	registrar, _ := newTestRegistrar(t, client, 15*time.Millisecond)

	results := make(chan RegistrationResult, 1)
	registrar.OnResult = func(r RegistrationResult) { results <- r }

	if err := registrar.Trigger(context.Background(), "a1", nil); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	select {
	case result := <-results:
		if result.Err != nil {
			t.Fatalf("countdown commit failed: %v", result.Err)
		}
		if result.ActionID != "a1" {
			t.Errorf("expected result for a1, got %s", result.ActionID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("countdown never committed")
	}

	if len(client.registered) != 1 {
		t.Errorf("expected exactly one registration, got %d", len(client.registered))
	}
	if _, pending := registrar.Pending(); pending {
		t.Error("pending slot should clear after the countdown commits")
	}
}

func TestCountdown_SurvivesCallerCancellation(t *testing.T) {
	one := 1.0
	client := &fakeClient{actions: []models.Action{
		{ID: "a1", FieldID: "f-water", Option: models.ActionOption{FieldTypeID: "f-water-t", Increment: &one}},
	}}
	registrar, _ := newTestRegistrar(t, client, 15*time.Millisecond)

	results := make(chan RegistrationResult, 1)
	registrar.OnResult = func(r RegistrationResult) { results <- r }

	ctx, cancel := context.WithCancel(context.Background())
	if err := registrar.Trigger(ctx, "a1", nil); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}
	cancel()

	select {
	case result := <-results:
		if result.Err != nil {
			t.Fatalf("commit should not inherit the trigger call's cancellation: %v", result.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("countdown never committed")
	}
}
