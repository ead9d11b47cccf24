// Package janitor implements the three background consistency loops of
// spec §4.5 (C5): Janitor (reap orphaned reservations), Compactor
// (dedup/trim waitlists), and Reconciler (durable-vs-Redis sync). Each
// loop elects a per-campaign leader via rediscore.OwnershipLock so only
// one worker process runs a given campaign's loop at a time, which is
// what lets the loop bodies themselves stay unscripted (plain Go over
// leasestore.Store calls) instead of needing Lua-level atomicity.
package janitor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dialfleet/dispatch-core/leasestore"
	"github.com/dialfleet/dispatch-core/rediscore"
)

// CampaignLister supplies the set of campaigns a loop should visit each
// tick. Kept narrow so this package does not import campaign or durable.
type CampaignLister interface {
	ListActiveCampaignIDs(ctx context.Context) ([]string, error)
}

// ContactRef is the minimal durable-contact shape the Reconciler needs
// to cross-check against Redis lease-set membership and waitlists.
type ContactRef struct {
	ID       string
	Status   string
	Priority leasestore.Priority
}

// DurableContacts is the narrow durable-store surface the Reconciler
// reads from; implemented by the durable package.
type DurableContacts interface {
	ListContactsByStatus(ctx context.Context, campaignID string, statuses ...string) ([]ContactRef, error)
	MarkTerminal(ctx context.Context, campaignID, contactID, status string) error
}

// CampaignFailer is the narrow campaign-lifecycle surface the
// Reconciler uses to force a campaign to failed when it finds
// irreparable drift; implemented by campaign.Machine.
type CampaignFailer interface {
	Fail(ctx context.Context, campaignID, reason string) error
}

// CampaignStatusReader reads the durable campaign status the
// Reconciler treats as ground truth (spec §7 "durable state wins");
// implemented by campaign.Machine/Repository.
type CampaignStatusReader interface {
	DurableStatus(ctx context.Context, campaignID string) (string, error)
}

const ownerTTL = 45 * time.Second

// acquireOwner tries to become the elected worker for (campaignID,
// role) for this tick. Returns (nil, false) if another worker already
// holds it; the caller should just skip this campaign this round.
func acquireOwner(ctx context.Context, client *rediscore.Client, campaignID, role string) (*rediscore.OwnershipLock, bool, error) {
	lock := rediscore.NewOwnershipLock(client, "campaign:{"+campaignID+"}:owner:"+role, ownerTTL)
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return nil, false, err
	}
	return lock, ok, nil
}

func fieldLogger(log *logrus.Entry, component string) *logrus.Entry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return log.WithField("component", component)
}
