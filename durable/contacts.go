package durable

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/dialfleet/dispatch-core/dispatcher"
	"github.com/dialfleet/dispatch-core/janitor"
	"github.com/dialfleet/dispatch-core/leasestore"
	"github.com/dialfleet/dispatch-core/mysql"
)

// ContactStore satisfies janitor.DurableContacts and backs httpapi's
// bulk contact-add endpoint (spec §6 "POST /campaigns/{id}/contacts").
// It is a distinct type from CampaignRepository because
// janitor.DurableContacts.ListContactsByStatus returns []janitor.ContactRef
// while campaign.Repository's returns []campaign.ContactRecord — the
// same method name with two different return types can't live on one
// type in Go, so each interface gets its own facade over the shared
// Store.
type ContactStore struct {
	store *Store
}

// NewContactStore builds a ContactStore over store.
func NewContactStore(store *Store) *ContactStore {
	return &ContactStore{store: store}
}

// NewContact is one row of a bulk contact-add request.
type NewContact struct {
	ID          string
	CampaignID  string
	PhoneNumber string
	Priority    leasestore.Priority
}

// AddContacts inserts a batch of contacts in ContactPending status
// (spec §6 "bulk add; E.164 validated" — validation itself is
// httpapi's job, this just persists already-validated rows).
func (c *ContactStore) AddContacts(ctx context.Context, contacts []NewContact) error {
	for _, nc := range contacts {
		cipher, err := c.store.encryptPhone(nc.PhoneNumber)
		if err != nil {
			return errors.Errorf("encrypt phone for contact %s: %w", nc.ID, err)
		}

		_, err = mysql.InsertFrom(contactsTable).
			Values(&mysql.InsertCond{Arg: []any{
				nc.ID, nc.CampaignID, cipher, string(nc.Priority), contactStatusPending,
				0,   // retry_count starts at zero
				nil, // next_retry_at: unset until the first retry is scheduled
			}}).
			Exec(ctx, c.store.db())
		if err != nil {
			return errors.Errorf("insert contact %s: %w", nc.ID, err)
		}
	}
	return nil
}

const contactStatusPending = "pending"

// ListContactsByStatus returns the minimal ContactRef shape the
// Reconciler cross-checks against Redis lease-set/waitlist membership.
func (c *ContactStore) ListContactsByStatus(ctx context.Context, campaignID string, statuses ...string) ([]janitor.ContactRef, error) {
	rows, err := c.store.listContactRows(ctx, campaignID, statuses...)
	if err != nil {
		return nil, err
	}

	out := make([]janitor.ContactRef, 0, len(rows))
	for _, row := range rows {
		out = append(out, janitor.ContactRef{
			ID:       row.ID,
			Status:   row.Status,
			Priority: row.priority(),
		})
	}
	return out, nil
}

// FindContact resolves contactID to the decrypted E.164 number and
// current retry count the Dispatcher needs before it can place a call
// (spec §4.2 step 5, §3 Contact.retryCount) — satisfies
// dispatcher.ContactLookup.
func (c *ContactStore) FindContact(ctx context.Context, campaignID, contactID string) (dispatcher.ContactInfo, error) {
	row, err := mysql.SelectFrom[contactRow](contactsTable).
		Where(mysql.And(
			mysql.Eq("id", contactID),
			mysql.Eq("campaign_id", campaignID),
		)).
		Fetch(ctx, c.store.db())
	if err != nil {
		return dispatcher.ContactInfo{}, errors.Errorf("find contact %s: %w", contactID, err)
	}

	phone, err := c.store.decryptPhone(row.PhoneNumber)
	if err != nil {
		return dispatcher.ContactInfo{}, err
	}

	return dispatcher.ContactInfo{
		PhoneNumber: phone,
		RetryCount:  row.RetryCount,
	}, nil
}

// UpdateContactRetry persists the retry count and next-scheduled-dial
// time a retry.Scheduler computes for contactID (spec §3
// Contact.retryCount/nextRetryAt) — satisfies retry.ContactRetryState.
func (c *ContactStore) UpdateContactRetry(ctx context.Context, campaignID, contactID string, retryCount int, nextRetryAt time.Time) error {
	_, err := mysql.UpdateFrom(contactsTable).
		Set(
			mysql.UpdateCond{Set: "retry_count", Arg: retryCount},
			mysql.UpdateCond{Set: "next_retry_at", Arg: sql.NullTime{Time: nextRetryAt, Valid: !nextRetryAt.IsZero()}},
		).
		Where(mysql.And(
			mysql.Eq("id", contactID),
			mysql.Eq("campaign_id", campaignID),
		)).
		Exec(ctx, c.store.db())
	if err != nil {
		return errors.Errorf("update retry state for contact %s: %w", contactID, err)
	}
	return nil
}

// MarkTerminal sets contactID's status to a terminal value (completed,
// failed, voicemail, skipped), as the Reconciler does when it finds a
// stuck "calling" row with no matching Redis lease.
func (c *ContactStore) MarkTerminal(ctx context.Context, campaignID, contactID, status string) error {
	_, err := mysql.UpdateFrom(contactsTable).
		Set(mysql.UpdateCond{Set: "status", Arg: status}).
		Where(mysql.And(
			mysql.Eq("id", contactID),
			mysql.Eq("campaign_id", campaignID),
		)).
		Exec(ctx, c.store.db())
	if err != nil {
		return errors.Errorf("mark contact %s terminal: %w", contactID, err)
	}
	return nil
}
