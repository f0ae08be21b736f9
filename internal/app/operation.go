package app

import "time"

// Invocation tracks one run of a CLI command. Its ID tags every log line the
// run writes; the service journals the individual repository operations.
type Invocation struct {
	ID        string
	Command   string
	StartedAt time.Time
	Status    string // "success" or "error"
}

// NewInvocation creates an invocation of command starting at now.
func NewInvocation(command string, now time.Time) *Invocation {
	now = now.UTC()
	return &Invocation{
		ID:        now.Format("20060102T150405Z"),
		Command:   command,
		StartedAt: now,
		Status:    "success",
	}
}

// Fail marks the invocation as failed when err is non-nil and returns err.
func (inv *Invocation) Fail(err error) error {
	if err != nil {
		inv.Status = "error"
	}
	return err
}

// Elapsed returns the time since the invocation started.
func (inv *Invocation) Elapsed(now time.Time) time.Duration {
	return now.Sub(inv.StartedAt)
}
