package probe

import "time"

// Outcome classifies the result of a single probe.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeTimeout Outcome = "timeout"
	OutcomeError   Outcome = "error"
)

// Result is the classified outcome of one probe of one target. Results are
// append-only: once written to the store they are never mutated, and
// (Target, ProbedAt) identifies a result uniquely.
type Result struct {
	Target   string
	ProbedAt time.Time // probe start, UTC
	Outcome  Outcome
	Latency  time.Duration // meaningful for success and failure only
	Detail   string
}
