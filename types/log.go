package types

import "time"

// LogEntry represents a request audit entry to be stored in the database.
type LogEntry struct {
	ID           uint
	Method       string
	URL          string
	SessionID    string
	ServiceName  string
	RequestBody  string
	ResponseBody string
	StatusCode   int
	CreatedAt    time.Time
}
