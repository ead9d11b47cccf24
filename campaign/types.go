// Package campaign implements the Campaign Lifecycle (spec §4.6 — C6):
// the {draft, scheduled, active, paused, completed, cancelled, failed}
// state machine that drives when contacts get loaded into the Lease
// Store's waitlists and when dispatch is allowed to drain them.
package campaign

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/dialfleet/dispatch-core/leasestore"
)

// State is one node of the campaign lifecycle state machine (spec §4.6).
type State string

const (
	Draft     State = "draft"
	Scheduled State = "scheduled"
	Active    State = "active"
	Paused    State = "paused"
	Completed State = "completed"
	Cancelled State = "cancelled"
	Failed    State = "failed"
)

// Campaign is the durable Campaign entity (spec §3).
type Campaign struct {
	ID           string
	Limit        int
	Status       State
	PriorityMode string
	AgentRef     string
	PhonePoolRef string
	ScheduledFor *time.Time
	// ExcludeVoicemail governs whether a voicemail-classified outcome is
	// retryable at all (spec §4.4, §9 Open Question 3).
	ExcludeVoicemail bool
}

// ContactRecord is the durable Contact entity (spec §3), as seen by
// the lifecycle machine (loading pending contacts, checking for
// completion).
type ContactRecord struct {
	ID          string
	CampaignID  string
	PhoneNumber string
	Priority    leasestore.Priority
	Status      string
	// RetryCount is how many dispatch attempts have already been made
	// against this contact (spec §3 Contact.retryCount).
	RetryCount int
}

// Contact status values (spec §3 Contact.status enum).
const (
	ContactPending   = "pending"
	ContactQueued    = "queued"
	ContactCalling   = "calling"
	ContactCompleted = "completed"
	ContactFailed    = "failed"
	ContactVoicemail = "voicemail"
	ContactSkipped   = "skipped"
)

// Repository is the durable-store surface the lifecycle machine needs.
// Implemented by the durable package; kept narrow here so this package
// does not import durable (spec §6 durable-store contract: upsert-by-id,
// find-by-id, update-status, list-by-campaign-and-status).
type Repository interface {
	UpsertCampaign(ctx context.Context, c Campaign) error
	FindCampaign(ctx context.Context, campaignID string) (Campaign, error)
	// UpdateCampaignStatus is idempotent on state: setting a campaign to
	// the status it already has is a no-op success, not an error, matching
	// spec §6 "update-status (idempotent on state + version)".
	UpdateCampaignStatus(ctx context.Context, campaignID string, next State) error
	ListContactsByStatus(ctx context.Context, campaignID string, statuses ...string) ([]ContactRecord, error)
}

// ErrInvalidTransition is returned when the requested transition is not
// legal from the campaign's current state (spec §6 "returns 409 if not
// scheduled|draft").
var ErrInvalidTransition = errors.New("campaign: invalid state transition")
