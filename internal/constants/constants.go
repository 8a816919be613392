package constants

import "time"

const (
	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// DefaultGroupName is the name of the group auto-created for a brand-new journal
	DefaultGroupName = "General"

	// DefaultServerURL is the synchronization endpoint the CLI talks to unless overridden
	DefaultServerURL = "http://localhost:8642"

	// RegistrationDelay is how long a triggered action stays pending before it
	// auto-commits
	RegistrationDelay = 3 * time.Second
)
