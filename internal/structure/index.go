package structure

import "github.com/julianstephens/fieldbook/internal/models"

// Index is a normalized, id-keyed view of one schema tree snapshot. It turns
// the action registry's revalidation pass into O(actions) map lookups instead
// of repeated tree walks. An Index is a pure read view: it is rebuilt from a
// snapshot and never mutated.
type Index struct {
	Groups map[string]*models.Group
	Fields map[string]*models.Field
	Types  map[string]*models.FieldType
}

// NewIndex builds lookup maps over the journal. A nil journal yields a nil
// Index, which every lookup treats as "structure unavailable".
func NewIndex(journal *models.Journal) *Index {
	if journal == nil {
		return nil
	}
	idx := &Index{
		Groups: make(map[string]*models.Group),
		Fields: make(map[string]*models.Field),
		Types:  make(map[string]*models.FieldType),
	}
	for i := range journal.Groups {
		group := &journal.Groups[i]
		idx.Groups[group.ID] = group
		for j := range group.Fields {
			field := &group.Fields[j]
			idx.Fields[field.ID] = field
			for k := range field.Types {
				idx.Types[field.Types[k].ID] = &field.Types[k]
			}
		}
	}
	return idx
}

// Group looks up a group by id.
func (idx *Index) Group(id string) *models.Group {
	if idx == nil {
		return nil
	}
	return idx.Groups[id]
}

// Field looks up a field by id.
func (idx *Index) Field(id string) *models.Field {
	if idx == nil {
		return nil
	}
	return idx.Fields[id]
}

// FieldType looks up a field type by id, scoped to the given field: an action
// bound to a type that has moved to another field is still broken.
func (idx *Index) FieldType(fieldID, typeID string) *models.FieldType {
	if idx == nil {
		return nil
	}
	fieldType, ok := idx.Types[typeID]
	if !ok || fieldType.FieldID != fieldID {
		return nil
	}
	return fieldType
}
