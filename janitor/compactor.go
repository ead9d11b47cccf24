package janitor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dialfleet/dispatch-core/leasestore"
	"github.com/dialfleet/dispatch-core/rediscore"
)

// maxWaitlistLen caps a single priority waitlist: after dedup, the
// Compactor drops every entry past this length, duplicates or not. A
// waitlist below this length is only deduplicated, keeping the order of
// first occurrence.
const maxWaitlistLen = 250_000

// Compactor deduplicates and trims each campaign's priority waitlists
// (spec §4.5 "Compactor"). Duplicates can appear when a retry
// scheduler re-enqueues a contact_id that a push-back from
// reserve_and_promote had already restored to the same list.
type Compactor struct {
	client *rediscore.Client
	store  leasestore.Store
	lister CampaignLister
	log    *logrus.Entry
}

func NewCompactor(client *rediscore.Client, store leasestore.Store, lister CampaignLister, log *logrus.Entry) *Compactor {
	return &Compactor{client: client, store: store, lister: lister, log: fieldLogger(log, "compactor")}
}

func (c *Compactor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Compactor) tick(ctx context.Context) {
	campaignIDs, err := c.lister.ListActiveCampaignIDs(ctx)
	if err != nil {
		c.log.WithError(err).Warn("list active campaigns failed")
		return
	}
	for _, campaignID := range campaignIDs {
		c.compactCampaign(ctx, campaignID)
	}
}

func (c *Compactor) compactCampaign(ctx context.Context, campaignID string) {
	lock, owned, err := acquireOwner(ctx, c.client, campaignID, "compactor")
	if err != nil {
		c.log.WithError(err).WithField("campaign_id", campaignID).Warn("acquire owner failed")
		return
	}
	if !owned {
		return
	}
	defer lock.Release(ctx)

	for _, priority := range []leasestore.Priority{leasestore.High, leasestore.Normal} {
		c.compactWaitlist(ctx, campaignID, priority)
	}
}

func (c *Compactor) compactWaitlist(ctx context.Context, campaignID string, priority leasestore.Priority) {
	ids, err := c.store.WaitlistSnapshot(ctx, campaignID, priority)
	if err != nil {
		c.log.WithError(err).WithField("campaign_id", campaignID).Warn("waitlist snapshot failed")
		return
	}

	seen := make(map[string]bool, len(ids))
	deduped := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		deduped = append(deduped, id)
	}
	if len(deduped) > maxWaitlistLen {
		deduped = deduped[:maxWaitlistLen]
	}
	if len(deduped) == len(ids) {
		return
	}

	if err := c.store.ReplaceWaitlist(ctx, campaignID, priority, deduped); err != nil {
		c.log.WithError(err).WithField("campaign_id", campaignID).Warn("replace waitlist failed")
		return
	}
	c.log.WithFields(logrus.Fields{
		"campaign_id": campaignID,
		"priority":    priority,
		"before":      len(ids),
		"after":       len(deduped),
	}).Info("compacted waitlist")
}
