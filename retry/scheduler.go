package retry

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/dialfleet/dispatch-core/leasestore"
	"github.com/dialfleet/dispatch-core/xrand"
)

// AttemptRecorder persists the retry-chain audit trail (spec §4.4 "a
// retry job records {...} in the durable store"). Implemented by the
// durable package; kept as a narrow interface here so retry does not
// import durable.
type AttemptRecorder interface {
	RecordRetryAttempt(ctx context.Context, attempt Attempt) error
}

// ContactRetryState persists the contact's own running retry count and
// next-scheduled-dial time (spec §3 Contact.retryCount/nextRetryAt),
// distinct from AttemptRecorder's audit trail: nothing reads the audit
// trail back before the next Handle call, so MaxAttempts enforcement
// needs its own durable state. Implemented by the durable package;
// kept as a narrow interface here so retry does not import durable.
type ContactRetryState interface {
	UpdateContactRetry(ctx context.Context, campaignID, contactID string, retryCount int, nextRetryAt time.Time) error
}

// Attempt is one row of the retry-chain audit trail.
type Attempt struct {
	OriginalCallID string
	ContactID      string
	AttemptNumber  int
	ScheduledFor   time.Time
	FailureKind    FailureKind
	Status         string
}

const idempotencyWindow = 5 * time.Minute

// Scheduler decides whether a terminal outcome is retryable and, if
// so, computes nextRetryAt and enqueues the delayed job.
type Scheduler struct {
	queue    *Queue
	store    leasestore.Store
	recorder AttemptRecorder
	contacts ContactRetryState
}

func NewScheduler(queue *Queue, store leasestore.Store, recorder AttemptRecorder) *Scheduler {
	return &Scheduler{queue: queue, store: store, recorder: recorder}
}

// WithContactRetryState attaches contacts so Handle persists the
// contact's retry count/nextRetryAt alongside the delay-queue job. A
// Scheduler without one still schedules retries but cannot enforce
// MaxAttempts beyond what the caller threads through Outcome.AttemptNumber
// itself.
func (s *Scheduler) WithContactRetryState(contacts ContactRetryState) *Scheduler {
	s.contacts = contacts
	return s
}

// Outcome is what a Dispatcher reports back after a call ends.
type Outcome struct {
	CampaignID       string
	ContactID        string
	OriginalCallID   string
	Priority         leasestore.Priority
	Kind             FailureKind
	AttemptNumber    int // attempts already made, before this one
	ExcludeVoicemail bool
}

// Handle classifies outcome and either schedules a retry or reports
// the contact as terminally failed (retried == false). It does not
// itself place the dial; it only decides if/when a future attempt
// should happen.
func (s *Scheduler) Handle(ctx context.Context, now time.Time, outcome Outcome) (retried bool, nextRetryAt time.Time, err error) {
	policy := PolicyFor(outcome.Kind)
	retryable := policy.Retryable
	if outcome.Kind == Voicemail && outcome.ExcludeVoicemail {
		retryable = false
	}
	if !retryable || outcome.AttemptNumber >= policy.MaxAttempts {
		return false, time.Time{}, s.record(ctx, outcome, now, "exhausted")
	}

	delayCap := policy.Cap
	if delayCap <= 0 {
		// No configured cap means the full-jitter window is bounded
		// only by the worst-case backoff at MaxAttempts, not infinity.
		delayCap = policy.BaseDelay << policy.MaxAttempts
	}
	delay := xrand.FullJitter(policy.BaseDelay, delayCap, outcome.AttemptNumber)
	nextRetryAt = now.Add(delay)

	job := DelayedJob{
		ContactID:     outcome.ContactID,
		Priority:      outcome.Priority,
		FailureKind:   outcome.Kind,
		AttemptNumber: outcome.AttemptNumber + 1,
	}
	if err := s.queue.Schedule(ctx, outcome.CampaignID, job, nextRetryAt); err != nil {
		return false, time.Time{}, errors.Errorf("schedule retry: %w", err)
	}

	if s.contacts != nil {
		if err := s.contacts.UpdateContactRetry(ctx, outcome.CampaignID, outcome.ContactID, job.AttemptNumber, nextRetryAt); err != nil {
			return true, nextRetryAt, errors.Errorf("persist contact retry state: %w", err)
		}
	}

	if err := s.record(ctx, outcome, nextRetryAt, "scheduled"); err != nil {
		return true, nextRetryAt, err
	}
	return true, nextRetryAt, nil
}

func (s *Scheduler) record(ctx context.Context, outcome Outcome, when time.Time, status string) error {
	if s.recorder == nil {
		return nil
	}
	return s.recorder.RecordRetryAttempt(ctx, Attempt{
		OriginalCallID: outcome.OriginalCallID,
		ContactID:      outcome.ContactID,
		AttemptNumber:  outcome.AttemptNumber + 1,
		ScheduledFor:   when,
		FailureKind:    outcome.Kind,
		Status:         status,
	})
}

// CheckIdempotent reports whether a dial for contactID was already
// issued within the current idempotency window (spec §4.4 "before
// enqueue, check dial idempotency key").
func (s *Scheduler) CheckIdempotent(ctx context.Context, contactID string, now time.Time, ttl time.Duration) (duplicate bool, err error) {
	bucket := now.Unix() / int64(idempotencyWindow.Seconds())
	return s.store.CheckAndSetDialIdempotency(ctx, contactID, bucket, ttl)
}
