package logging

// LogEntry represents a structured log record with fields relevant to an
// evolutionary run.
type LogEntry struct {
	// Standard fields
	Time     int64
	Severity Severity
	Message  string
	File     string
	Line     int
	Function string

	// Run-specific fields
	RunID       string // Identifier of the run that produced the entry
	Generation  int    // Generation/batch counter at log time
	Evaluations uint64 // Global evaluation count at log time

	// General structured data
	Fields map[string]interface{}
}
