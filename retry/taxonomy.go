// Package retry implements the Retry Scheduler (spec §4.4 — C4):
// classifying terminal call outcomes, deciding retryability, computing
// the next attempt time with full-jitter backoff, and pushing
// contacts back onto their waitlist without violating dial
// idempotency.
package retry

import "time"

// FailureKind is the terminal-outcome taxonomy of spec §4.4 (distinct
// from the broader error taxonomy of §7 — this one governs retry
// policy specifically).
type FailureKind string

const (
	NoAnswer         FailureKind = "no_answer"
	Busy             FailureKind = "busy"
	Voicemail        FailureKind = "voicemail"
	NetworkError     FailureKind = "network_error"
	CallRejected     FailureKind = "call_rejected"
	InvalidNumber    FailureKind = "invalid_number"
	ComplianceBlock  FailureKind = "blocked"
)

// Policy is one row of the failure taxonomy table.
type Policy struct {
	Retryable   bool
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	Cap         time.Duration
}

// policies is keyed by FailureKind. Voicemail's retryability is
// conditional on the campaign's excludeVoicemail flag and is resolved
// in Scheduler.Handle, not here.
var policies = map[FailureKind]Policy{
	NoAnswer:        {Retryable: true, MaxAttempts: 3, BaseDelay: 5 * time.Minute, Multiplier: 2, Cap: 0},
	Busy:            {Retryable: true, MaxAttempts: 3, BaseDelay: 2 * time.Minute, Multiplier: 2, Cap: 0},
	Voicemail:       {Retryable: true, MaxAttempts: 2, BaseDelay: 30 * time.Minute, Multiplier: 2, Cap: 0},
	NetworkError:    {Retryable: true, MaxAttempts: 5, BaseDelay: 10 * time.Second, Multiplier: 2, Cap: 10 * time.Minute},
	CallRejected:    {Retryable: true, MaxAttempts: 2, BaseDelay: 15 * time.Minute, Multiplier: 1, Cap: 0},
	InvalidNumber:   {Retryable: false},
	ComplianceBlock: {Retryable: false},
}

// PolicyFor returns the taxonomy row for kind. Unknown kinds are
// treated as non-retryable — a new failure kind must be named here
// deliberately, never default to retrying.
func PolicyFor(kind FailureKind) Policy {
	if p, ok := policies[kind]; ok {
		return p
	}
	return Policy{Retryable: false}
}
