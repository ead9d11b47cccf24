package campaign

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/dialfleet/dispatch-core/leasestore"
)

// legalTransitions enumerates the edges of the spec §4.6 state machine.
var legalTransitions = map[State]map[State]bool{
	Draft:     {Scheduled: true, Active: true, Cancelled: true},
	Scheduled: {Active: true, Cancelled: true},
	Active:    {Paused: true, Completed: true, Cancelled: true, Failed: true},
	Paused:    {Active: true, Cancelled: true, Failed: true},
}

// Machine drives Campaign Lifecycle transitions (spec §4.6 — C6),
// keeping the durable Repository and the Lease Store's Redis-mirrored
// state in lockstep: the durable write is the commit, the Redis write
// makes the transition visible to the Dispatcher and Admission
// Controller without a read against MySQL on every poll.
type Machine struct {
	repo  Repository
	store leasestore.Store
	log   *logrus.Entry
}

func NewMachine(repo Repository, store leasestore.Store, log *logrus.Entry) *Machine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Machine{repo: repo, store: store, log: log}
}

// Create registers a brand-new campaign in draft and seeds its Redis
// mirror (limit, state) so admission has something to read even before
// it is ever scheduled or started.
func (m *Machine) Create(ctx context.Context, c Campaign) error {
	c.Status = Draft
	if err := m.repo.UpsertCampaign(ctx, c); err != nil {
		return errors.Errorf("campaign: create upsert: %w", err)
	}
	if err := m.store.SetLimit(ctx, c.ID, c.Limit); err != nil {
		return errors.Errorf("campaign: create set limit: %w", err)
	}
	if err := m.store.SetState(ctx, c.ID, string(Draft)); err != nil {
		return errors.Errorf("campaign: create set state: %w", err)
	}
	return nil
}

// Start transitions draft or scheduled to active (spec §6 POST
// /campaigns/{id}/start), marks cold start, clears the pause flag and
// loads every pending contact into its priority waitlist.
func (m *Machine) Start(ctx context.Context, campaignID string, coldStartTTL, dialIdempotencyWindow int64) error {
	c, err := m.repo.FindCampaign(ctx, campaignID)
	if err != nil {
		return errors.Errorf("campaign: start find: %w", err)
	}
	if !legalTransitions[c.Status][Active] {
		return errors.Wrapf(ErrInvalidTransition, "campaign %s: %s -> active", campaignID, c.Status)
	}

	if err := m.store.CompareAndSetState(ctx, campaignID, string(c.Status), string(Active)); err != nil {
		return errors.Errorf("campaign: start cas state: %w", err)
	}
	if err := m.repo.UpdateCampaignStatus(ctx, campaignID, Active); err != nil {
		return errors.Errorf("campaign: start update durable status: %w", err)
	}
	if err := m.store.SetPaused(ctx, campaignID, false); err != nil {
		return errors.Errorf("campaign: start clear pause: %w", err)
	}
	if coldStartTTL > 0 {
		if err := m.store.SetColdStart(ctx, campaignID, time.Duration(coldStartTTL)*time.Second); err != nil {
			return errors.Errorf("campaign: start set cold start: %w", err)
		}
	}

	pending, err := m.repo.ListContactsByStatus(ctx, campaignID, ContactPending)
	if err != nil {
		return errors.Errorf("campaign: start list pending: %w", err)
	}
	for _, contact := range pending {
		if err := m.store.Enqueue(ctx, campaignID, contact.ID, contact.Priority); err != nil {
			return errors.Errorf("campaign: start enqueue %s: %w", contact.ID, err)
		}
	}
	m.log.WithFields(logrus.Fields{"campaign_id": campaignID, "loaded": len(pending)}).Info("campaign started")
	return nil
}

// Pause transitions active to paused (spec §6 POST .../pause): sets the
// level-triggered pause flag the Dispatcher polls before every
// ReserveAndPromote call.
func (m *Machine) Pause(ctx context.Context, campaignID string) error {
	return m.transition(ctx, campaignID, Active, Paused, func() error {
		return m.store.SetPaused(ctx, campaignID, true)
	})
}

// Resume transitions paused to active (spec §6 POST .../resume).
func (m *Machine) Resume(ctx context.Context, campaignID string) error {
	return m.transition(ctx, campaignID, Paused, Active, func() error {
		return m.store.SetPaused(ctx, campaignID, false)
	})
}

// Cancel moves a campaign to cancelled from any non-terminal state
// (spec §6 POST .../cancel). It sets the pause flag so any dispatcher
// still running this campaign stops admitting, but leaves already
// in-flight leases for the janitor/dispatcher to drain naturally.
func (m *Machine) Cancel(ctx context.Context, campaignID string) error {
	c, err := m.repo.FindCampaign(ctx, campaignID)
	if err != nil {
		return errors.Errorf("campaign: cancel find: %w", err)
	}
	if c.Status == Completed || c.Status == Cancelled || c.Status == Failed {
		return errors.Wrapf(ErrInvalidTransition, "campaign %s: %s -> cancelled", campaignID, c.Status)
	}
	if err := m.store.CompareAndSetState(ctx, campaignID, string(c.Status), string(Cancelled)); err != nil {
		return errors.Errorf("campaign: cancel cas state: %w", err)
	}
	if err := m.repo.UpdateCampaignStatus(ctx, campaignID, Cancelled); err != nil {
		return errors.Errorf("campaign: cancel update durable status: %w", err)
	}
	return m.store.SetPaused(ctx, campaignID, true)
}

// Fail force-transitions to failed from any state, used by the
// Reconciler when it finds a campaign whose durable and Redis state
// have diverged beyond repair (spec §7).
func (m *Machine) Fail(ctx context.Context, campaignID, reason string) error {
	cur, err := m.store.State(ctx, campaignID)
	if err != nil {
		return errors.Errorf("campaign: fail read state: %w", err)
	}
	if err := m.store.CompareAndSetState(ctx, campaignID, cur, string(Failed)); err != nil {
		return errors.Errorf("campaign: fail cas state: %w", err)
	}
	if err := m.repo.UpdateCampaignStatus(ctx, campaignID, Failed); err != nil {
		return errors.Errorf("campaign: fail update durable status: %w", err)
	}
	m.log.WithFields(logrus.Fields{"campaign_id": campaignID, "reason": reason}).Warn("campaign forced to failed")
	return nil
}

// CheckCompletion transitions active to completed once no contact is
// left pending/queued/calling and the waitlists and reservation ledger
// are empty. Intended to be polled by the Reconciler, not called
// per-dispatch.
func (m *Machine) CheckCompletion(ctx context.Context, campaignID string) (bool, error) {
	c, err := m.repo.FindCampaign(ctx, campaignID)
	if err != nil {
		return false, errors.Errorf("campaign: completion find: %w", err)
	}
	if c.Status != Active {
		return false, nil
	}

	outstanding, err := m.repo.ListContactsByStatus(ctx, campaignID, ContactPending, ContactQueued, ContactCalling)
	if err != nil {
		return false, errors.Errorf("campaign: completion list outstanding: %w", err)
	}
	if len(outstanding) > 0 {
		return false, nil
	}
	progress, err := m.store.Progress(ctx, campaignID)
	if err != nil {
		return false, errors.Errorf("campaign: completion progress: %w", err)
	}
	if progress.Inflight > 0 || progress.Reserved > 0 || progress.QueuedHigh > 0 || progress.QueuedNormal > 0 {
		return false, nil
	}

	if err := m.store.CompareAndSetState(ctx, campaignID, string(Active), string(Completed)); err != nil {
		if errors.Is(err, leasestore.ErrStateMismatch) {
			return false, nil
		}
		return false, errors.Errorf("campaign: completion cas state: %w", err)
	}
	if err := m.repo.UpdateCampaignStatus(ctx, campaignID, Completed); err != nil {
		return false, errors.Errorf("campaign: completion update durable status: %w", err)
	}
	return true, nil
}

// DurableStatus returns the durable store's current status for
// campaignID, treated as ground truth by the Reconciler (spec §7
// "durable state wins").
func (m *Machine) DurableStatus(ctx context.Context, campaignID string) (string, error) {
	c, err := m.repo.FindCampaign(ctx, campaignID)
	if err != nil {
		return "", errors.Errorf("campaign: durable status: %w", err)
	}
	return string(c.Status), nil
}

func (m *Machine) transition(ctx context.Context, campaignID string, from, to State, sideEffect func() error) error {
	if !legalTransitions[from][to] {
		return errors.Wrapf(ErrInvalidTransition, "campaign %s: %s -> %s", campaignID, from, to)
	}
	if err := m.store.CompareAndSetState(ctx, campaignID, string(from), string(to)); err != nil {
		return errors.Errorf("campaign: transition cas state: %w", err)
	}
	if err := m.repo.UpdateCampaignStatus(ctx, campaignID, to); err != nil {
		return errors.Errorf("campaign: transition update durable status: %w", err)
	}
	if sideEffect != nil {
		return sideEffect()
	}
	return nil
}
