package server

import "time"

// MetricsCollector is an optional hook for exporting server metrics to
// systems like Prometheus or StatsD.
//
// Methods are called synchronously from session goroutines and must be
// non-blocking; dispatch expensive work asynchronously. The server
// checks for a nil collector before every call.
type MetricsCollector interface {
	// RecordCommand records one command execution. cmd is the canonical
	// command name ("login", "download", ...).
	RecordCommand(cmd string, success bool, duration time.Duration)

	// RecordTransfer records one data-channel transfer. operation is
	// "upload" or "download".
	RecordTransfer(operation string, bytes int64, duration time.Duration)

	// RecordConnection records a connection attempt. reason gives
	// context ("accepted", "limit_reached").
	RecordConnection(accepted bool, reason string)

	// RecordAuthentication records a login attempt for the given user.
	RecordAuthentication(success bool, user string)
}
