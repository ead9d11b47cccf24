// Package durable is the MySQL-backed adapter for the durable-store
// contract named throughout spec §6: upsert-by-id, find-by-id,
// update-status, list-by-campaign-and-status, update-on-terminal-outcome.
// It is grounded on the teacher's `mysql` query builder (generics over
// `db`-tagged structs, SelectFrom/InsertFrom/UpdateFrom) the same way
// mysql's own tests exercise a `users` table.
//
// Every component that needs durable storage (campaign.Repository,
// janitor.DurableContacts, retry.AttemptRecorder,
// dispatcher.CallLogRecorder, janitor/invariant's CampaignLister) gets
// its own narrow facade type here backed by one shared *Store, because
// campaign.Repository.ListContactsByStatus and
// janitor.DurableContacts.ListContactsByStatus share a method name but
// return different element types — Go cannot satisfy both with one
// method, so the two facades each carry their own version.
package durable

import (
	"database/sql"
	"time"

	"github.com/dialfleet/dispatch-core/leasestore"
)

const (
	campaignsTable     = "campaigns"
	contactsTable      = "contacts"
	callLogsTable      = "call_logs"
	retryAttemptsTable = "retry_attempts"
)

// campaignRow is the campaigns table row shape (spec §3 Campaign).
type campaignRow struct {
	ID               string       `db:"id"`
	CampaignLimit    int          `db:"limit_count"`
	Status           string       `db:"status"`
	PriorityMode     string       `db:"priority_mode"`
	AgentRef         string       `db:"agent_ref"`
	PhonePoolRef     string       `db:"phone_pool_ref"`
	ScheduledFor     sql.NullTime `db:"scheduled_for"`
	ExcludeVoicemail bool         `db:"exclude_voicemail"`
}

// contactRow is the contacts table row shape (spec §3 Contact).
// PhoneNumber is stored encrypted at rest; Store en/decrypts it at the
// boundary so every caller above this package still sees plaintext.
// RetryCount/NextRetryAt are the durable half of the retry taxonomy
// (spec §3 Contact.retryCount/nextRetryAt, §4.4 MaxAttempts
// enforcement) — the delay queue alone cannot carry this across a
// worker restart, since Queue.Drain only forwards the contact id and
// priority onto the waitlist.
type contactRow struct {
	ID          string       `db:"id"`
	CampaignID  string       `db:"campaign_id"`
	PhoneNumber []byte       `db:"phone_number"`
	Priority    string       `db:"priority"`
	Status      string       `db:"status"`
	RetryCount  int          `db:"retry_count"`
	NextRetryAt sql.NullTime `db:"next_retry_at"`
}

func (r contactRow) priority() leasestore.Priority { return leasestore.Priority(r.Priority) }

// callLogRow is the call_logs table row shape (spec §6 "update on
// terminal outcome").
type callLogRow struct {
	ID          int64     `db:"id"`
	CampaignID  string    `db:"campaign_id"`
	ContactID   string    `db:"contact_id"`
	CallID      string    `db:"call_id"`
	CarrierID   string    `db:"carrier_id"`
	FinalStatus string    `db:"final_status"`
	FailureKind string    `db:"failure_kind"`
	StartedAt   time.Time `db:"started_at"`
	EndedAt     time.Time `db:"ended_at"`
}

// retryAttemptRow is the retry_attempts audit-trail table row shape
// (spec §4.4 "a retry job records {...} in the durable store").
type retryAttemptRow struct {
	ID             int64     `db:"id"`
	OriginalCallID string    `db:"original_call_id"`
	ContactID      string    `db:"contact_id"`
	AttemptNumber  int       `db:"attempt_number"`
	ScheduledFor   time.Time `db:"scheduled_for"`
	FailureKind    string    `db:"failure_kind"`
	Status         string    `db:"status"`
}
