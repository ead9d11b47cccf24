package retry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dialfleet/dispatch-core/rediscore"
)

// drainBatchLimit bounds how many due jobs one drain tick claims per
// campaign, so a campaign with a large backlog of simultaneously-due
// retries cannot monopolize a tick at the expense of other campaigns.
const drainBatchLimit = 500

// CampaignLister supplies the set of campaigns to drain each tick.
// Kept narrow so this package does not import durable or campaign.
type CampaignLister interface {
	ListActiveCampaignIDs(ctx context.Context) ([]string, error)
}

// Drainer periodically fires due retry jobs back onto their campaign's
// waitlist (spec §4.4 "a delayed job that eventually LPUSHes the
// contact back"). Like janitor's loops, it elects a per-campaign owner
// via rediscore.OwnershipLock so only one worker drains a given
// campaign's delay queue per tick.
type Drainer struct {
	client *rediscore.Client
	queue  *Queue
	lister CampaignLister
	log    *logrus.Entry
}

func NewDrainer(client *rediscore.Client, queue *Queue, lister CampaignLister, log *logrus.Entry) *Drainer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Drainer{client: client, queue: queue, lister: lister, log: log.WithField("component", "retry-drainer")}
}

func (d *Drainer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			d.tick(ctx, now)
		}
	}
}

func (d *Drainer) tick(ctx context.Context, now time.Time) {
	campaignIDs, err := d.lister.ListActiveCampaignIDs(ctx)
	if err != nil {
		d.log.WithError(err).Warn("list active campaigns failed")
		return
	}
	for _, campaignID := range campaignIDs {
		d.drainCampaign(ctx, campaignID, now)
	}
}

func (d *Drainer) drainCampaign(ctx context.Context, campaignID string, now time.Time) {
	lock := rediscore.NewOwnershipLock(d.client, "campaign:{"+campaignID+"}:owner:retry-drainer", 30*time.Second)
	owned, err := lock.Acquire(ctx)
	if err != nil {
		d.log.WithError(err).WithField("campaign_id", campaignID).Warn("acquire owner failed")
		return
	}
	if !owned {
		return
	}
	defer lock.Release(ctx)

	fired, err := d.queue.Drain(ctx, campaignID, now, drainBatchLimit)
	if err != nil {
		d.log.WithError(err).WithField("campaign_id", campaignID).Warn("drain failed")
		return
	}
	if len(fired) > 0 {
		d.log.WithFields(logrus.Fields{"campaign_id": campaignID, "fired": len(fired)}).Info("fired due retry jobs")
	}
}
