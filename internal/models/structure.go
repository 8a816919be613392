package models

import (
	"fmt"
	"time"
)

// Kind identifies how a field type captures its value.
type Kind string

const (
	KindCheck            Kind = "CHECK"
	KindNumber           Kind = "NUMBER"
	KindNumberNavigation Kind = "NUMBER_NAVIGATION"
	KindTimeSelect       Kind = "TIME_SELECT"
	KindRange            Kind = "RANGE"
	KindSeverity         Kind = "SEVERITY"
	KindCustomScale      Kind = "CUSTOM_SCALE"
)

// Kinds lists every valid Kind.
var Kinds = []Kind{
	KindCheck,
	KindNumber,
	KindNumberNavigation,
	KindTimeSelect,
	KindRange,
	KindSeverity,
	KindCustomScale,
}

// NumericOptions parameterizes NUMBER, NUMBER_NAVIGATION, TIME_SELECT, RANGE and
// SEVERITY field types.
type NumericOptions struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
	Unit string  `json:"unit,omitempty"`
}

// ScaleOptions parameterizes CUSTOM_SCALE field types.
type ScaleOptions struct {
	Labels []string `json:"labels"`
}

// DataOptions is the per-kind payload of a field type. Exactly the variant
// matching the owning type's Kind may be set; CHECK carries none.
type DataOptions struct {
	Numeric *NumericOptions `json:"numeric,omitempty"`
	Scale   *ScaleOptions   `json:"scale,omitempty"`
}

// Validate checks that the options set on o match the given kind. The switch is
// exhaustive over Kinds so a new kind cannot be added without deciding its payload.
func (o DataOptions) Validate(kind Kind) error {
	switch kind {
	case KindCheck:
		if o.Numeric != nil || o.Scale != nil {
			return fmt.Errorf("kind %s carries no data options", kind)
		}
	case KindNumber, KindNumberNavigation, KindTimeSelect, KindRange, KindSeverity:
		if o.Scale != nil {
			return fmt.Errorf("kind %s does not take scale options", kind)
		}
		if o.Numeric != nil && o.Numeric.Step < 0 {
			return fmt.Errorf("kind %s: step must not be negative", kind)
		}
	case KindCustomScale:
		if o.Numeric != nil {
			return fmt.Errorf("kind %s does not take numeric options", kind)
		}
		if o.Scale == nil || len(o.Scale.Labels) == 0 {
			return fmt.Errorf("kind %s requires at least one scale label", kind)
		}
	default:
		return fmt.Errorf("unknown field type kind: %q", kind)
	}
	return nil
}

// FieldType is a leaf of the schema tree: one way of recording a value against
// its owning field.
type FieldType struct {
	ID          string      `json:"id"`
	FieldID     string      `json:"field_id"`
	Kind        Kind        `json:"kind"`
	Description string      `json:"description,omitempty"`
	Options     DataOptions `json:"data_options"`
	Order       int         `json:"order"`
}

// Field is a named thing to track. Every field carries exactly one CHECK type,
// attached at creation and never removable or retypeable.
type Field struct {
	ID      string      `json:"id"`
	GroupID string      `json:"group_id"`
	Name    string      `json:"name"`
	Order   int         `json:"order"`
	Types   []FieldType `json:"field_types"`
}

// CheckType returns the field's mandatory CHECK type, or nil if the field is
// malformed.
func (f *Field) CheckType() *FieldType {
	for i := range f.Types {
		if f.Types[i].Kind == KindCheck {
			return &f.Types[i]
		}
	}
	return nil
}

// Group is an ordered collection of fields.
type Group struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Order              int     `json:"order"`
	CollapsedByDefault bool    `json:"collapsed_by_default"`
	Fields             []Field `json:"fields"`
}

// Journal is one version of the schema tree. Versions are keyed by the date they
// take effect; fetching a past date may return a historical, read-only snapshot
// (IsActive false).
type Journal struct {
	StructureID   string    `json:"structure_id"`
	IsActive      bool      `json:"is_active"`
	EffectiveFrom time.Time `json:"effective_from"`
	Groups        []Group   `json:"groups"`
}

// DeletedElements is the tombstone set: every id removed locally since the last
// successful save, so the backend can tell "explicitly deleted" from "never
// existed".
type DeletedElements struct {
	Groups     []string `json:"groups,omitempty"`
	Fields     []string `json:"fields,omitempty"`
	FieldTypes []string `json:"field_types,omitempty"`
}

// IsEmpty reports whether no deletions are pending.
func (d DeletedElements) IsEmpty() bool {
	return len(d.Groups) == 0 && len(d.Fields) == 0 && len(d.FieldTypes) == 0
}
