package utils

import (
	"regexp"
	"time"

	"github.com/julianstephens/fieldbook/internal/constants"
)

// dayPattern matches calendar dates in strict YYYY-MM-DD form. Anything else is
// rejected locally and never sent over the wire.
var dayPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`)

// ValidDay reports whether s is a well-formed YYYY-MM-DD date string.
func ValidDay(s string) bool {
	return dayPattern.MatchString(s)
}

// Today returns today's date string (YYYY-MM-DD) in the system timezone.
func Today() string {
	return time.Now().Format(constants.DateFormat)
}

// ResolveDay maps the empty string and the literal "today" to today's date and
// returns any other input unchanged.
func ResolveDay(s string) string {
	if s == "" || s == "today" {
		return Today()
	}
	return s
}
