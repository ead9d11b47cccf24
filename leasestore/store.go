package leasestore

import (
	"context"
	"time"
)

// Store is the Lease Store contract (spec §4.1 / C1). Two
// implementations exist: RedisStore for production, backed by the Lua
// scripts in scripts.go, and MemoryStore, a mutex-guarded in-process
// double used by package tests that do not need a live Redis.
type Store interface {
	// AcquirePre admits member as a pre-dial lease if the campaign is
	// under its limit. Returns ErrNoCapacity if not.
	AcquirePre(ctx context.Context, campaignID, callID, token string, ttl time.Duration) error

	// AcquireFromReservation converts an already-reserved ledger entry
	// into a pre-dial lease, consuming one unit of reserved.
	AcquireFromReservation(ctx context.Context, campaignID, callID, token, contactID string, priority Priority, ttl time.Duration) error

	// Release frees member if token matches, optionally waking
	// subscribers of the campaign's slot-available channel.
	Release(ctx context.Context, campaignID, member, token string, publish bool) error

	// Renew extends a live lease's TTL, CAS-gated on token.
	Renew(ctx context.Context, campaignID, member, token string, ttl time.Duration) error

	// Promote moves callID from a pre-dial to an active lease.
	Promote(ctx context.Context, campaignID, callID, token string, activeTTL time.Duration) error

	// ReserveAndPromote runs the admission batch algorithm (spec §4.3).
	ReserveAndPromote(ctx context.Context, campaignID string, maxBatch int, reserveTTL, gateTTL time.Duration, now time.Time) (PromotionResult, error)

	// JanitorScan reaps orphaned reservations older than orphanAge.
	JanitorScan(ctx context.Context, campaignID string, now time.Time, orphanAge time.Duration) (JanitorReapReport, error)

	// Enqueue pushes a contact id onto the tail of its priority
	// waitlist (used by Campaign Lifecycle and the Retry Scheduler).
	Enqueue(ctx context.Context, campaignID, contactID string, priority Priority) error

	// EnqueueFront pushes a contact id onto the head of its priority
	// waitlist (used for push-back where ordering must be preserved
	// outside of the reserve_and_promote script itself).
	EnqueueFront(ctx context.Context, campaignID, contactID string, priority Priority) error

	// SetLimit writes the authoritative concurrency limit for admission.
	SetLimit(ctx context.Context, campaignID string, limit int) error

	// Limit reads the concurrency limit written by SetLimit, used by
	// the Invariant Monitor to check I1 against live Redis counters
	// rather than durable-store state that may be stale.
	Limit(ctx context.Context, campaignID string) (int, error)

	// Progress reports the counters behind GET /campaigns/{id}/progress.
	Progress(ctx context.Context, campaignID string) (Progress, error)

	// SetPaused toggles the level-triggered pause flag dispatchers poll.
	SetPaused(ctx context.Context, campaignID string, paused bool) error
	Paused(ctx context.Context, campaignID string) (bool, error)

	// SetColdStart sets the cold-start marker, which lapses after ttl
	// (MemoryStore ignores ttl and keeps it set); nothing clears it early.
	SetColdStart(ctx context.Context, campaignID string, ttl time.Duration) error
	ColdStart(ctx context.Context, campaignID string) (bool, error)

	// CircuitOpen reports whether the carrier circuit breaker marker is set.
	CircuitOpen(ctx context.Context, campaignID string) (bool, error)
	SetCircuitOpen(ctx context.Context, campaignID string, ttl time.Duration) error

	// CheckAndSetDialIdempotency returns true if a dial was already
	// recorded for (contactID, bucket); otherwise it records one and
	// returns false. bucket is typically now.Unix() / windowSeconds.
	CheckAndSetDialIdempotency(ctx context.Context, contactID string, bucket int64, ttl time.Duration) (bool, error)

	// SubscribeSlotAvailable returns a channel of slot-available
	// notifications for campaignID; ready is closed once the
	// subscription is confirmed. Used by the Dispatcher to wake
	// immediately on release instead of polling.
	SubscribeSlotAvailable(ctx context.Context, campaignID string, ready chan<- struct{}) (<-chan []byte, error)

	// SetState unconditionally writes the Redis-mirrored campaign
	// state (spec §4.6), used to seed a brand-new campaign and by the
	// Reconciler to resync Redis from the durable status.
	SetState(ctx context.Context, campaignID, state string) error

	// CompareAndSetState performs the CAS-on-state transition spec
	// §4.6 requires: it only writes next if the stored value is
	// exactly expected, returning ErrStateMismatch otherwise.
	CompareAndSetState(ctx context.Context, campaignID, expected, next string) error

	// State reads the Redis-mirrored campaign state.
	State(ctx context.Context, campaignID string) (string, error)

	// Members lists every current lease-set member (pre-dial and
	// active), used by the janitor, the Invariant Monitor and the
	// operator API's redis-state view.
	Members(ctx context.Context, campaignID string) ([]string, error)

	// LeaseExists reports whether member's lease key is still live.
	LeaseExists(ctx context.Context, campaignID, member string) (bool, error)

	// ForceRelease removes member from the leases set and deletes its
	// lease key unconditionally (no token CAS), used when the janitor
	// finds a leases-set member whose lease key already expired.
	ForceRelease(ctx context.Context, campaignID, member string) error

	// ReservedLedgerCount returns the reservation ledger's
	// cardinality, compared against the reserved counter for
	// invariant I3.
	ReservedLedgerCount(ctx context.Context, campaignID string) (int64, error)

	// WaitlistSnapshot returns the full contents of one priority
	// waitlist in order, used by the Compactor and Invariant Monitor.
	WaitlistSnapshot(ctx context.Context, campaignID string, priority Priority) ([]string, error)

	// ReplaceWaitlist atomically overwrites one priority waitlist
	// with ids, used by the Compactor after deduplication/trimming.
	ReplaceWaitlist(ctx context.Context, campaignID string, priority Priority, ids []string) error
}
