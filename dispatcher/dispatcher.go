package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/dialfleet/dispatch-core/admission"
	"github.com/dialfleet/dispatch-core/carrier"
	"github.com/dialfleet/dispatch-core/channel"
	"github.com/dialfleet/dispatch-core/dconfig"
	"github.com/dialfleet/dispatch-core/leasestore"
	"github.com/dialfleet/dispatch-core/retry"
	"github.com/dialfleet/dispatch-core/xrand"
)

// maxConsecutiveTransientErrors bounds how many times in a row the
// main loop retries a Redis transport error before voluntarily
// relinquishing campaign ownership (spec §7 "after N failures, the
// dispatcher voluntarily relinquishes ownership").
const maxConsecutiveTransientErrors = 5

// Dispatcher runs the per-campaign dispatch loop described in spec
// §4.2. One process hosts one Dispatcher per campaign it currently
// owns; ownership itself is established by the caller (see the janitor
// package's OwnershipLock use) before Run is invoked.
type Dispatcher struct {
	campaignID       string
	store            leasestore.Store
	admission        *admission.Controller
	carrier          carrier.Client
	contacts         ContactLookup
	signalBus        SignalBus
	retrySched       *retry.Scheduler
	callLog          CallLogRecorder
	cfg              dconfig.Dispatch
	fromNumber       string
	excludeVoicemail bool
	maxBatch         int

	wg sync.WaitGroup
}

type Config struct {
	Store            leasestore.Store
	Admission        *admission.Controller
	Carrier          carrier.Client
	Contacts         ContactLookup
	SignalBus        SignalBus
	RetryScheduler   *retry.Scheduler
	CallLog          CallLogRecorder
	Dispatch         dconfig.Dispatch
	FromNumber       string
	ExcludeVoicemail bool
	MaxBatch         int
}

func New(campaignID string, cfg Config) *Dispatcher {
	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = cfg.Dispatch.LimitDefault
	}
	return &Dispatcher{
		campaignID:       campaignID,
		store:            cfg.Store,
		admission:        cfg.Admission,
		carrier:          cfg.Carrier,
		contacts:         cfg.Contacts,
		signalBus:        cfg.SignalBus,
		retrySched:       cfg.RetryScheduler,
		callLog:          cfg.CallLog,
		cfg:              cfg.Dispatch,
		fromNumber:       cfg.FromNumber,
		excludeVoicemail: cfg.ExcludeVoicemail,
		maxBatch:         maxBatch,
	}
}

// Run executes the dispatch loop until ctx is cancelled or ownership
// is voluntarily relinquished after repeated transient failures.
func (d *Dispatcher) Run(ctx context.Context) error {
	log := logrus.WithField("campaign", d.campaignID)
	consecutiveErrors := 0

	for {
		if ctx.Err() != nil {
			d.wg.Wait()
			return ctx.Err()
		}

		grants, err := d.admission.Reserve(ctx, d.campaignID, d.maxBatch)
		if errors.Is(err, admission.ErrCampaignBlocked) {
			d.sleep(ctx, d.pollBackoff(0))
			continue
		}
		if err != nil {
			consecutiveErrors++
			log.WithError(err).WithField("consecutive_errors", consecutiveErrors).Warn("reserve batch failed")
			if consecutiveErrors >= maxConsecutiveTransientErrors {
				d.wg.Wait()
				return errors.Errorf("relinquishing ownership of %s after repeated errors: %w", d.campaignID, err)
			}
			d.sleep(ctx, d.pollBackoff(consecutiveErrors))
			continue
		}
		consecutiveErrors = 0

		if len(grants) == 0 {
			d.waitForSlot(ctx)
			continue
		}

		for _, g := range grants {
			g := g
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				d.runAttempt(ctx, g)
			}()
		}
	}
}

// waitForSlot subscribes to slot-available and races it against a
// bounded timer, re-looping on whichever fires first (spec §4.2 step 2).
func (d *Dispatcher) waitForSlot(ctx context.Context) {
	subCtx, cancel := context.WithTimeout(ctx, d.pollBackoff(0))
	defer cancel()

	ready := make(chan struct{})
	events, err := d.store.SubscribeSlotAvailable(subCtx, d.campaignID, ready)
	if err != nil {
		// Redis pressure: fall back to a pure timer.
		<-subCtx.Done()
		return
	}

	signal := make(chan struct{})
	go func() {
		defer close(signal)
		select {
		case <-events:
		case <-subCtx.Done():
		}
	}()

	<-channel.Or(signal, subCtx.Done())
}

// pollBackoff is first-attempt-jittered, bounded exponential backoff
// (spec §4.1 "poll with bounded exponential backoff capped at 30s,
// first-attempt jitter 0-2s").
func (d *Dispatcher) pollBackoff(consecutiveErrors int) time.Duration {
	base := 2 * time.Second
	ceiling := 30 * time.Second
	delay := base << consecutiveErrors
	if delay <= 0 || delay > ceiling {
		delay = ceiling
	}
	if consecutiveErrors == 0 {
		delay = xrand.JitterAround(delay, 2*time.Second)
	}
	return delay
}

func (d *Dispatcher) sleep(ctx context.Context, dur time.Duration) {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
