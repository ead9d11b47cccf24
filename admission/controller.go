// Package admission implements the Admission Controller (spec §4.3 —
// C3): the two-phase reservation/promotion orchestration layered over
// the Lease Store's reserve_and_promote script, plus the Dispatcher
// guard checks (pause, circuit breaker, cold start) that must pass
// before a reservation batch is even attempted.
package admission

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/dialfleet/dispatch-core/dconfig"
	"github.com/dialfleet/dispatch-core/leasestore"
)

// ErrCampaignBlocked is returned by Reserve when the campaign is
// paused, cold-starting, or its carrier circuit breaker is open — the
// caller should sleep and retry, exactly like a zero-grant result.
var ErrCampaignBlocked = errors.New("admission: campaign blocked")

// Grant is one contact promoted out of a waitlist and committed to a
// reservation: a callId and fencing token are minted here so the
// Dispatcher can move straight to acquire_from_reservation without a
// second round trip to decide naming.
type Grant struct {
	ContactID string
	Priority  leasestore.Priority
	CallID    string
	Token     string
	Seq       int64
}

// Controller runs reserve_and_promote batches for one campaign at a
// time; it holds no per-campaign state itself (the fairness counter
// and promotion gate live in Redis) so one Controller safely serves
// every campaign a worker dispatches.
type Controller struct {
	store leasestore.Store
	cfg   dconfig.Dispatch
}

func NewController(store leasestore.Store, cfg dconfig.Dispatch) *Controller {
	return &Controller{store: store, cfg: cfg}
}

// Reserve attempts to admit up to maxBatch contacts for campaignID. An
// empty, nil-error result means the waitlists were empty or capacity
// was fully consumed; the caller (Dispatcher) should subscribe to
// slot-available and/or back off, per spec §4.2 step 2.
func (c *Controller) Reserve(ctx context.Context, campaignID string, maxBatch int) ([]Grant, error) {
	blocked, err := c.isBlocked(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrCampaignBlocked
	}

	result, err := c.store.ReserveAndPromote(ctx, campaignID, maxBatch, c.cfg.ReservationTTL(), c.cfg.GateTTL(), time.Now())
	if err != nil {
		return nil, errors.Errorf("reserve batch: %w", err)
	}

	grants := make([]Grant, 0, len(result.Promoted))
	for _, entry := range result.Promoted {
		grants = append(grants, Grant{
			ContactID: entry.ContactID,
			Priority:  entry.Priority,
			CallID:    uuid.New().String(),
			Token:     uuid.New().String(),
			Seq:       result.Seq,
		})
	}
	return grants, nil
}

// isBlocked checks the guard conditions spec §4.2 step 1 lists before
// a Dispatcher is allowed to call the Admission Controller at all.
func (c *Controller) isBlocked(ctx context.Context, campaignID string) (bool, error) {
	paused, err := c.store.Paused(ctx, campaignID)
	if err != nil {
		return false, errors.Errorf("check paused: %w", err)
	}
	if paused {
		return true, nil
	}

	coldstart, err := c.store.ColdStart(ctx, campaignID)
	if err != nil {
		return false, errors.Errorf("check coldstart: %w", err)
	}
	if coldstart {
		return true, nil
	}

	cbOpen, err := c.store.CircuitOpen(ctx, campaignID)
	if err != nil {
		return false, errors.Errorf("check circuit breaker: %w", err)
	}
	return cbOpen, nil
}

// AcquirePreDial converts one grant into a pre-dial lease (spec §4.2
// step 3): this is what actually consumes the reservation.
func (c *Controller) AcquirePreDial(ctx context.Context, campaignID string, g Grant) error {
	if err := c.store.AcquireFromReservation(ctx, campaignID, g.CallID, g.Token, g.ContactID, g.Priority, c.cfg.PreDialTTL()); err != nil {
		return errors.Errorf("acquire pre-dial for %s: %w", g.ContactID, err)
	}
	return nil
}

// Abandon gives up a grant without ever having called
// acquire_from_reservation — used when a Dispatcher decides not to
// pursue a grant (e.g. it lost campaign ownership mid-batch). The
// ledger entry is left for the janitor to reap after orphanAge rather
// than reversed here, matching spec §4.5's "janitor restores
// reservations" design rather than inventing a second push-back path.
func (c *Controller) Abandon(_ context.Context, _ string, _ Grant) {}
