package models

// FieldValue is one recorded value within a day's entry, keyed by the full
// (group, field, field type) path.
type FieldValue struct {
	GroupID     string  `json:"group_id"`
	FieldID     string  `json:"field_id"`
	FieldTypeID string  `json:"field_type_id"`
	Value       float64 `json:"value"`
	Filled      bool    `json:"filled"`
}

// JournalEntry holds everything recorded for a single day. CHECK values toggle
// between 0 and 1; numeric kinds accumulate increments.
type JournalEntry struct {
	Date   string       `json:"date"` // YYYY-MM-DD
	Values []FieldValue `json:"values"`
}

// ValueFor returns the entry's value for the given field type, or nil.
func (e *JournalEntry) ValueFor(fieldID, fieldTypeID string) *FieldValue {
	for i := range e.Values {
		if e.Values[i].FieldID == fieldID && e.Values[i].FieldTypeID == fieldTypeID {
			return &e.Values[i]
		}
	}
	return nil
}
