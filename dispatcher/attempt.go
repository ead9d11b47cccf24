package dispatcher

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/dialfleet/dispatch-core/admission"
	"github.com/dialfleet/dispatch-core/carrier"
	"github.com/dialfleet/dispatch-core/leasestore"
	"github.com/dialfleet/dispatch-core/retry"
)

// runAttempt drives one Dispatch Attempt through its full lease
// lifecycle (spec §4.2 steps 3-8). It never returns an error to the
// caller: every failure path resolves to a release plus an optional
// retry-scheduler hand-off, since one bad attempt must never take down
// the campaign's dispatch loop.
func (d *Dispatcher) runAttempt(ctx context.Context, grant admission.Grant) {
	log := logrus.WithFields(logrus.Fields{
		"campaign": d.campaignID,
		"contact":  grant.ContactID,
		"call":     grant.CallID,
	})
	state := StatePromoting
	startedAt := time.Now()

	if err := d.admission.AcquirePreDial(ctx, d.campaignID, grant); err != nil {
		log.WithError(err).Warn("failed to acquire pre-dial lease from reservation")
		return
	}

	preMember := leasestore.PreMember(grant.CallID)
	released := false
	release := func(publish bool) {
		if released {
			return
		}
		released = true
		if err := d.store.Release(ctx, d.campaignID, preMember, grant.Token, publish); err != nil && !errors.Is(err, leasestore.ErrTokenMismatch) {
			log.WithError(err).Warn("release failed")
		}
	}
	defer release(true)

	state = StateDialing

	now := time.Now()
	dup, err := d.retrySched.CheckIdempotent(ctx, grant.ContactID, now, d.cfg.DialIdempotencyTTL())
	if err != nil {
		log.WithError(err).Warn("idempotency check failed")
		return
	}
	if dup {
		log.Debug("dial skipped: idempotency dedup hit")
		return
	}

	contact, err := d.contacts.FindContact(ctx, d.campaignID, grant.ContactID)
	if err != nil {
		log.WithError(err).Warn("contact lookup failed")
		return
	}

	dialResult, err := d.carrier.Dial(ctx, carrier.DialSpec{
		From:          d.fromNumber,
		To:            contact.PhoneNumber,
		CorrelationID: grant.CallID,
		AppRef:        d.campaignID,
	})
	if err != nil {
		kind := classifyDialError(err)
		d.scheduleRetry(ctx, grant, "", kind, contact.RetryCount, log)
		return
	}

	// Renew once on carrier-accept so the pre-dial lease can outlive
	// its initial short TTL up to the gate window (spec §4.2 step 6).
	renewTTL := d.cfg.GateTTL()
	if max := d.cfg.PreDialMax(); renewTTL > max {
		renewTTL = max
	}
	if err := d.store.Renew(ctx, d.campaignID, preMember, grant.Token, renewTTL); err != nil {
		log.WithError(err).Warn("pre-dial renew failed")
		return
	}
	state = StateRinging

	events, err := d.signalBus.Subscribe(ctx, grant.CallID)
	if err != nil {
		log.WithError(err).Warn("signal bus subscribe failed")
		return
	}

	if !d.awaitAnswer(ctx, events, log) {
		// Forced release: no answer within the pre-dial max budget.
		d.scheduleRetry(ctx, grant, dialResult.CarrierID, retry.NoAnswer, contact.RetryCount, log)
		return
	}

	activeMember := leasestore.ActiveMember(grant.CallID)
	if err := d.store.Promote(ctx, d.campaignID, grant.CallID, grant.Token, d.cfg.ActiveLeaseTTL()); err != nil {
		log.WithError(err).Warn("promote to active lease failed")
		return
	}
	state = StateActive
	preMember = activeMember // release() below now targets the active member

	reason := d.awaitHangup(ctx, events, activeMember, grant.Token, log)
	state = StateEnding

	endedAt := time.Now()
	kind, ok := classifyHangup(reason)
	finalStatus := dialResult.InitialStatus
	if ok {
		finalStatus = carrier.StatusCompleted
	} else {
		finalStatus = carrier.StatusFailed
	}

	if d.callLog != nil {
		_ = d.callLog.RecordCallLog(ctx, CallLogEntry{
			CampaignID:  d.campaignID,
			ContactID:   grant.ContactID,
			CallID:      grant.CallID,
			CarrierID:   dialResult.CarrierID,
			FinalStatus: finalStatus,
			FailureKind: kind,
			StartedAt:   startedAt,
			EndedAt:     endedAt,
		})
	}

	release(true)
	state = StateReleased

	if !ok {
		d.scheduleRetry(ctx, grant, dialResult.CarrierID, kind, contact.RetryCount, log)
	}
	_ = state
}

// scheduleRetry hands the outcome to the retry scheduler. attemptsMade
// is the contact's current retry count (spec §3 Contact.retryCount),
// resolved alongside its phone number so MaxAttempts (spec §4.4) is
// enforced against the contact's real attempt history rather than
// always starting from zero.
func (d *Dispatcher) scheduleRetry(ctx context.Context, grant admission.Grant, carrierID string, kind retry.FailureKind, attemptsMade int, log *logrus.Entry) {
	_, _, err := d.retrySched.Handle(ctx, time.Now(), retry.Outcome{
		CampaignID:       d.campaignID,
		ContactID:        grant.ContactID,
		OriginalCallID:   carrierID,
		Priority:         grant.Priority,
		Kind:             kind,
		AttemptNumber:    attemptsMade,
		ExcludeVoicemail: d.excludeVoicemail,
	})
	if err != nil {
		log.WithError(err).Warn("retry scheduling failed")
	}
}

// awaitAnswer blocks until an answer event arrives or the pre-dial
// max budget elapses (spec §4.2 step 7 "failure to promote within 45s
// of reservation => forced release").
func (d *Dispatcher) awaitAnswer(ctx context.Context, events <-chan SignalEvent, log *logrus.Entry) bool {
	deadline := time.NewTimer(d.cfg.PreDialMax())
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			log.Debug("forced release: no answer within pre-dial budget")
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			if ev.Kind == SignalAnswer {
				return true
			}
		}
	}
}

// awaitHangup blocks until a hangup event arrives, renewing the active
// lease on media-active signals so a long call never lapses its TTL.
func (d *Dispatcher) awaitHangup(ctx context.Context, events <-chan SignalEvent, activeMember, token string, log *logrus.Entry) string {
	for {
		select {
		case <-ctx.Done():
			return "hangup"
		case ev, ok := <-events:
			if !ok {
				return "hangup"
			}
			switch ev.Kind {
			case SignalMediaActive:
				if err := d.store.Renew(ctx, d.campaignID, activeMember, token, d.cfg.ActiveLeaseTTL()); err != nil && !errors.Is(err, leasestore.ErrTokenMismatch) {
					log.WithError(err).Debug("active lease renew failed")
				}
			case SignalHangup:
				return ev.Reason
			}
		}
	}
}
