package janitor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dialfleet/dispatch-core/campaign"
	"github.com/dialfleet/dispatch-core/leasestore"
	"github.com/dialfleet/dispatch-core/rediscore"
)

// Reconciler is the durable-vs-Redis sync loop (spec §4.5 "Reconciler",
// §7 "durable state wins"). It runs on its own interval and, per spec,
// also runs once eagerly on process cold start: a crashed worker can
// leave contacts stuck at status "calling" in the durable store with no
// Redis lease backing them at all, and only a full pass notices that.
type Reconciler struct {
	client   *rediscore.Client
	store    leasestore.Store
	lister   CampaignLister
	contacts DurableContacts
	status   CampaignStatusReader
	failer   CampaignFailer
	log      *logrus.Entry
}

func NewReconciler(client *rediscore.Client, store leasestore.Store, lister CampaignLister, contacts DurableContacts, status CampaignStatusReader, failer CampaignFailer, log *logrus.Entry) *Reconciler {
	return &Reconciler{client: client, store: store, lister: lister, contacts: contacts, status: status, failer: failer, log: fieldLogger(log, "reconciler")}
}

func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs one full reconciliation pass over every active
// campaign. Called directly for the cold-start pass, and by Run on
// every subsequent tick.
func (r *Reconciler) RunOnce(ctx context.Context) {
	campaignIDs, err := r.lister.ListActiveCampaignIDs(ctx)
	if err != nil {
		r.log.WithError(err).Warn("list active campaigns failed")
		return
	}
	for _, campaignID := range campaignIDs {
		r.reconcileCampaign(ctx, campaignID)
	}
}

func (r *Reconciler) reconcileCampaign(ctx context.Context, campaignID string) {
	lock, owned, err := acquireOwner(ctx, r.client, campaignID, "reconciler")
	if err != nil {
		r.log.WithError(err).WithField("campaign_id", campaignID).Warn("acquire owner failed")
		return
	}
	if !owned {
		return
	}
	defer lock.Release(ctx)

	r.reconcileState(ctx, campaignID)
	r.reconcileCallingContacts(ctx, campaignID)
}

// reconcileState overwrites the Redis-mirrored campaign state with the
// durable store's status whenever the two disagree. It is an
// unconditional write rather than a CAS because the caller already
// holds exclusive ownership of this campaign's reconciliation loop, and
// durable state wins by definition (spec §7).
func (r *Reconciler) reconcileState(ctx context.Context, campaignID string) {
	durable, err := r.status.DurableStatus(ctx, campaignID)
	if err != nil {
		r.log.WithError(err).WithField("campaign_id", campaignID).Warn("read durable status failed")
		return
	}
	redisState, err := r.store.State(ctx, campaignID)
	if err != nil {
		r.log.WithError(err).WithField("campaign_id", campaignID).Warn("read redis state failed")
		return
	}
	if durable == "" || durable == redisState {
		return
	}
	if err := r.store.SetState(ctx, campaignID, durable); err != nil {
		r.log.WithError(err).WithField("campaign_id", campaignID).Warn("sync redis state failed")
		if r.failer != nil {
			_ = r.failer.Fail(ctx, campaignID, "reconciler could not sync redis state to durable status")
		}
		return
	}
	r.log.WithFields(logrus.Fields{"campaign_id": campaignID, "from": redisState, "to": durable}).Info("resynced redis state from durable store")
}

// reconcileCallingContacts requeues any contact the durable store still
// considers "calling" with no worker left to finish it. Because the
// reconciler owns this campaign exclusively while it runs, it's safe to
// treat every such contact as orphaned rather than cross-checking
// individual lease membership, which the Lease Store does not index by
// contact id for active leases.
func (r *Reconciler) reconcileCallingContacts(ctx context.Context, campaignID string) {
	stuck, err := r.contacts.ListContactsByStatus(ctx, campaignID, campaign.ContactCalling)
	if err != nil {
		r.log.WithError(err).WithField("campaign_id", campaignID).Warn("list calling contacts failed")
		return
	}
	for _, contact := range stuck {
		if err := r.contacts.MarkTerminal(ctx, campaignID, contact.ID, campaign.ContactPending); err != nil {
			r.log.WithError(err).WithFields(logrus.Fields{"campaign_id": campaignID, "contact_id": contact.ID}).Warn("mark pending failed")
			continue
		}
		if err := r.store.Enqueue(ctx, campaignID, contact.ID, contact.Priority); err != nil {
			r.log.WithError(err).WithFields(logrus.Fields{"campaign_id": campaignID, "contact_id": contact.ID}).Warn("re-enqueue failed")
			continue
		}
		r.log.WithFields(logrus.Fields{"campaign_id": campaignID, "contact_id": contact.ID}).Info("reconciled orphaned calling contact back to pending")
	}
}
