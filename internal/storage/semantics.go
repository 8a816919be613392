package storage

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/fieldbook/internal/constants"
	"github.com/julianstephens/fieldbook/internal/models"
)

func parseDay(s string) (time.Time, error) {
	return time.Parse(constants.DateFormat, s)
}

func newVersionID() string {
	return uuid.NewString()
}

// version is one stored structure revision.
type version struct {
	ID            string
	EffectiveFrom string // YYYY-MM-DD
	Groups        []models.Group
}

// resolveVersion picks the version effective on the given date: the one with
// the greatest effective-from not after it. The second return is false when no
// version applies. Versions need not be passed sorted.
func resolveVersion(versions []version, date string) (version, bool) {
	var best version
	found := false
	for _, v := range versions {
		if v.EffectiveFrom > date {
			continue
		}
		if !found || v.EffectiveFrom > best.EffectiveFrom {
			best = v
			found = true
		}
	}
	return best, found
}

// latestEffectiveFrom returns the newest version date, or "" when empty.
func latestEffectiveFrom(versions []version) string {
	latest := ""
	for _, v := range versions {
		if v.EffectiveFrom > latest {
			latest = v.EffectiveFrom
		}
	}
	return latest
}

// toJournal materializes a stored version as the API's journal shape.
// is_active is true only for the newest version overall.
func toJournal(v version, latest string) models.Journal {
	effectiveFrom, _ := parseDay(v.EffectiveFrom)
	return models.Journal{
		StructureID:   v.ID,
		IsActive:      v.EffectiveFrom == latest,
		EffectiveFrom: effectiveFrom,
		Groups:        v.Groups,
	}
}

// scrubEntry drops every value that references a tombstoned group, field or
// field type, so stored entries never point at deleted schema leaves.
func scrubEntry(entry models.JournalEntry, deleted models.DeletedElements) models.JournalEntry {
	if deleted.IsEmpty() {
		return entry
	}
	dead := make(map[string]bool, len(deleted.Groups)+len(deleted.Fields)+len(deleted.FieldTypes))
	for _, id := range deleted.Groups {
		dead[id] = true
	}
	for _, id := range deleted.Fields {
		dead[id] = true
	}
	for _, id := range deleted.FieldTypes {
		dead[id] = true
	}

	kept := entry.Values[:0:0]
	for _, value := range entry.Values {
		if dead[value.GroupID] || dead[value.FieldID] || dead[value.FieldTypeID] {
			continue
		}
		kept = append(kept, value)
	}
	entry.Values = kept
	return entry
}

// shiftActions moves the identified action to the requested order using a
// minimal shift: only actions strictly between the old and new positions move,
// each by one. The input is reordered in place and returned sorted.
func shiftActions(actions []models.Action, id string, order int) ([]models.Action, bool) {
	sort.SliceStable(actions, func(i, j int) bool { return actions[i].Order < actions[j].Order })

	from := -1
	for i := range actions {
		if actions[i].ID == id {
			from = i
			break
		}
	}
	if from < 0 {
		return actions, false
	}

	if order < 0 {
		order = 0
	}
	if order > len(actions)-1 {
		order = len(actions) - 1
	}

	switch {
	case order > from:
		for i := from + 1; i <= order; i++ {
			actions[i].Order--
		}
	case order < from:
		for i := order; i < from; i++ {
			actions[i].Order++
		}
	}
	actions[from].Order = order

	sort.SliceStable(actions, func(i, j int) bool { return actions[i].Order < actions[j].Order })
	return actions, true
}
