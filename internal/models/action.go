package models

// ActionOption binds an action to one field type and describes what a trigger
// applies. A nil Increment means the action is custom: the operator supplies the
// value at registration time.
type ActionOption struct {
	FieldTypeID string   `json:"field_type_id"`
	Increment   *float64 `json:"increment,omitempty"`
	IsCustom    bool     `json:"is_custom"`
}

// Action is a flat record for one-tap data entry against a single
// (field, field type) pair. Actions reference the schema tree by id only and
// must be revalidated whenever the tree changes.
type Action struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	FieldID           string       `json:"field_id"`
	IsDailyAction     bool         `json:"is_daily_action"`
	LastTriggeredDate string       `json:"last_triggered_date,omitempty"` // YYYY-MM-DD
	Order             int          `json:"order"`
	Option            ActionOption `json:"option"`
}

// CompletedOn reports whether a daily action has already been registered on the
// given day. Pure function of the action's own fields plus the supplied date.
func (a Action) CompletedOn(day string) bool {
	return a.IsDailyAction && a.LastTriggeredDate == day
}
