package leasestore

import "github.com/cockroachdb/errors"

// Priority is a waitlist class. Only two exist; there is no ordering
// between campaigns, only within one.
type Priority string

const (
	High   Priority = "H"
	Normal Priority = "N"
)

func (p Priority) waitlistSuffix() string {
	if p == High {
		return "high"
	}
	return "normal"
}

// ErrNoCapacity is returned by AcquirePre when the campaign's lease set
// is already at its limit; callers treat this as "subscribe and retry",
// never as a failure.
var ErrNoCapacity = errors.New("leasestore: no capacity")

// ErrTokenMismatch means the caller's fencing token no longer matches
// what is stored: either the lease already expired and was reclaimed,
// or the caller is stale (e.g. a worker that lost ownership).
var ErrTokenMismatch = errors.New("leasestore: token mismatch")

// PromotedEntry is one contact that reserve_and_promote committed to a
// reservation, tagged with the waitlist it was popped from so a later
// push-back (janitor reap or forced release before acquire_pre) can
// restore the right priority class.
type PromotedEntry struct {
	ContactID string
	Priority  Priority
}

// PromotionResult is the return of reserve_and_promote (spec §4.3).
type PromotionResult struct {
	Promoted []PromotedEntry
	// Seq is the new promote-gate sequence number, 0 if nothing was
	// promoted this call.
	Seq int64
}

// Progress mirrors the GET /campaigns/{id}/progress response shape
// (spec §6).
type Progress struct {
	Inflight     int64
	Reserved     int64
	QueuedHigh   int64
	QueuedNormal int64
}

// JanitorReapReport summarizes one janitor_scan invocation.
type JanitorReapReport struct {
	OrphanedReservations int64
}

// ErrStateMismatch is returned by CompareAndSetState when the stored
// campaign state does not match the caller's expected value — either
// another worker already transitioned it, or the caller's view is stale.
var ErrStateMismatch = errors.New("leasestore: campaign state mismatch")
