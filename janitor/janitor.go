package janitor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dialfleet/dispatch-core/leasestore"
	"github.com/dialfleet/dispatch-core/rediscore"
)

// Janitor reaps reservation-ledger entries that outlived their
// reservation TTL (spec §4.1 janitor_scan, §4.5 "Janitor"), and heals a
// second failure mode the ledger scan alone cannot see: a leases-set
// member whose lease key has already expired (e.g. the process that
// held it crashed between SADD and a crash-proof release). That
// second check is why this loop, not just the Lua script, needs to
// run at all.
type Janitor struct {
	client    *rediscore.Client
	store     leasestore.Store
	lister    CampaignLister
	orphanAge time.Duration
	log       *logrus.Entry
}

func NewJanitor(client *rediscore.Client, store leasestore.Store, lister CampaignLister, orphanAge time.Duration, log *logrus.Entry) *Janitor {
	return &Janitor{client: client, store: store, lister: lister, orphanAge: orphanAge, log: fieldLogger(log, "janitor")}
}

// Run ticks every interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			j.tick(ctx, now)
		}
	}
}

func (j *Janitor) tick(ctx context.Context, now time.Time) {
	campaignIDs, err := j.lister.ListActiveCampaignIDs(ctx)
	if err != nil {
		j.log.WithError(err).Warn("list active campaigns failed")
		return
	}
	for _, campaignID := range campaignIDs {
		j.sweepCampaign(ctx, campaignID, now)
	}
}

// SweepNow runs one janitor pass for a single campaign on demand (spec
// §6 "POST /maintenance/cleanup-slots/{id}"), bypassing the
// ListActiveCampaignIDs fan-out the periodic tick uses since the
// operator already named the campaign.
func (j *Janitor) SweepNow(ctx context.Context, campaignID string) error {
	j.sweepCampaign(ctx, campaignID, time.Now())
	return nil
}

func (j *Janitor) sweepCampaign(ctx context.Context, campaignID string, now time.Time) {
	lock, owned, err := acquireOwner(ctx, j.client, campaignID, "janitor")
	if err != nil {
		j.log.WithError(err).WithField("campaign_id", campaignID).Warn("acquire owner failed")
		return
	}
	if !owned {
		return
	}
	defer lock.Release(ctx)

	report, err := j.store.JanitorScan(ctx, campaignID, now, j.orphanAge)
	if err != nil {
		j.log.WithError(err).WithField("campaign_id", campaignID).Warn("janitor scan failed")
		return
	}
	if report.OrphanedReservations > 0 {
		j.log.WithFields(logrus.Fields{
			"campaign_id": campaignID,
			"reaped":      report.OrphanedReservations,
		}).Info("reaped orphaned reservations")
	}

	j.reapDeadLeases(ctx, campaignID)
}

// reapDeadLeases finds members still in the leases set whose lease key
// has already expired, and force-releases them. A lease key only ever
// expires out from under its member when a holder crashed without
// releasing (spec §4.5 "the leases set and individual lease keys may
// drift if a process dies mid-operation").
func (j *Janitor) reapDeadLeases(ctx context.Context, campaignID string) {
	members, err := j.store.Members(ctx, campaignID)
	if err != nil {
		j.log.WithError(err).WithField("campaign_id", campaignID).Warn("members failed")
		return
	}
	for _, member := range members {
		exists, err := j.store.LeaseExists(ctx, campaignID, member)
		if err != nil {
			j.log.WithError(err).WithFields(logrus.Fields{"campaign_id": campaignID, "member": member}).Warn("lease exists check failed")
			continue
		}
		if exists {
			continue
		}
		if err := j.store.ForceRelease(ctx, campaignID, member); err != nil {
			j.log.WithError(err).WithFields(logrus.Fields{"campaign_id": campaignID, "member": member}).Warn("force release failed")
			continue
		}
		j.log.WithFields(logrus.Fields{"campaign_id": campaignID, "member": member}).Info("reaped desynced lease-set member")
	}
}
