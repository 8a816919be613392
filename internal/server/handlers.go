package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/julianstephens/fieldbook/internal/logger"
	"github.com/julianstephens/fieldbook/internal/models"
	"github.com/julianstephens/fieldbook/internal/remote"
	"github.com/julianstephens/fieldbook/internal/storage"
	"github.com/julianstephens/fieldbook/internal/structure"
	"github.com/julianstephens/fieldbook/internal/utils"
)

type handler struct {
	store storage.Provider
}

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "error", err)
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// storeError maps storage errors onto HTTP responses.
func storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	logger.Error("storage failure", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// dateParam extracts and validates the ?date= query parameter.
func dateParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := r.URL.Query().Get("date")
	if !utils.ValidDay(date) {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return "", false
	}
	return date, true
}

func (h *handler) getStructure(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	journal, err := h.store.GetStructure(date)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, journal)
}

func (h *handler) saveStructure(w http.ResponseWriter, r *http.Request) {
	var req remote.SaveStructureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if !utils.ValidDay(req.CurrentDate) {
		writeError(w, http.StatusBadRequest, "current_date must be YYYY-MM-DD")
		return
	}

	deleted := models.DeletedElements{}
	if req.DeletedElements != nil {
		deleted = *req.DeletedElements
	}
	journal, err := h.store.SaveStructure(req.CurrentDate, req.Groups, deleted)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, journal)
}

func (h *handler) getEntry(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	entry, err := h.store.GetEntry(date)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *handler) saveEntry(w http.ResponseWriter, r *http.Request) {
	var entry models.JournalEntry
	if err := decodeJSON(r, &entry); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if !utils.ValidDay(entry.Date) {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	saved, err := h.store.SaveEntry(entry)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *handler) listActions(w http.ResponseWriter, _ *http.Request) {
	actions, err := h.store.GetActions()
	if err != nil {
		storeError(w, err)
		return
	}
	if actions == nil {
		actions = []models.Action{}
	}
	writeJSON(w, http.StatusOK, actions)
}

func (h *handler) createAction(w http.ResponseWriter, r *http.Request) {
	var req remote.CreateActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Name == "" || req.FieldID == "" || req.FieldTypeID == "" {
		writeError(w, http.StatusBadRequest, "name, field_id and field_type_id are required")
		return
	}

	existing, err := h.store.GetActions()
	if err != nil {
		storeError(w, err)
		return
	}

	action := models.Action{
		ID:            uuid.NewString(),
		Name:          req.Name,
		FieldID:       req.FieldID,
		IsDailyAction: req.IsDailyAction,
		Order:         len(existing),
		Option: models.ActionOption{
			FieldTypeID: req.FieldTypeID,
			Increment:   req.Increment,
			IsCustom:    req.Increment == nil,
		},
	}
	if err := h.store.AddAction(action); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

func (h *handler) removeAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(r, &req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if err := h.store.DeleteAction(req.ID); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *handler) reorderAction(w http.ResponseWriter, r *http.Request) {
	var req remote.ReorderActionRequest
	if err := decodeJSON(r, &req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if _, err := h.store.ReorderAction(req.ID, req.Order); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// registerAction applies a triggered action's effect against today's entry:
// the binding is re-checked against today's structure, the increment (or CHECK
// toggle) lands on the bound value, and daily actions get their trigger date
// stamped.
func (h *handler) registerAction(w http.ResponseWriter, r *http.Request) {
	var req remote.RegisterActionRequest
	if err := decodeJSON(r, &req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	action, err := h.store.GetAction(req.ID)
	if err != nil {
		storeError(w, err)
		return
	}

	today := utils.Today()
	if action.CompletedOn(today) {
		writeError(w, http.StatusConflict, "daily action already registered today")
		return
	}

	journal, err := h.store.GetStructure(today)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusConflict, "no structure effective today")
			return
		}
		storeError(w, err)
		return
	}

	idx := structure.NewIndex(&journal)
	field := idx.Field(action.FieldID)
	if field == nil {
		writeError(w, http.StatusConflict, "action is bound to a deleted field")
		return
	}
	fieldType := idx.FieldType(action.FieldID, action.Option.FieldTypeID)
	if fieldType == nil {
		writeError(w, http.StatusConflict, "action is bound to a deleted field type")
		return
	}

	entry, err := h.store.GetEntry(today)
	if errors.Is(err, storage.ErrNotFound) {
		entry = models.JournalEntry{Date: today}
	} else if err != nil {
		storeError(w, err)
		return
	}

	value := entry.ValueFor(action.FieldID, action.Option.FieldTypeID)
	if value == nil {
		entry.Values = append(entry.Values, models.FieldValue{
			GroupID:     field.GroupID,
			FieldID:     action.FieldID,
			FieldTypeID: action.Option.FieldTypeID,
		})
		value = &entry.Values[len(entry.Values)-1]
	}

	if fieldType.Kind == models.KindCheck {
		if value.Value != 0 {
			value.Value = 0
		} else {
			value.Value = 1
		}
		value.Filled = value.Value != 0
	} else {
		increment := action.Option.Increment
		if action.Option.IsCustom {
			increment = req.Value
		}
		if increment == nil {
			writeError(w, http.StatusBadRequest, "custom action requires a value")
			return
		}
		value.Value += *increment
		value.Filled = true
	}

	if _, err := h.store.SaveEntry(entry); err != nil {
		storeError(w, err)
		return
	}

	if action.IsDailyAction {
		action.LastTriggeredDate = today
		if err := h.store.UpdateAction(action); err != nil {
			storeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
