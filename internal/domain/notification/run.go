// internal/domain/notification/run.go
package notification

import "time"

// Run is the execution record of one dispatch pass, with its aggregate counts.
// Attempted counts every candidate pair; Sent+Failed+Suppressed equals
// Attempted unless the run aborted early.
type Run struct {
	ID         string
	Trigger    Trigger
	RuleIDs    []string // rules the run was restricted to, empty for all enabled rules
	StartedAt  time.Time
	FinishedAt time.Time
	Attempted  int
	Sent       int
	Failed     int
	Suppressed int
	Error      string // set when the run aborted
}
