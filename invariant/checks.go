package invariant

import (
	"context"
	"fmt"
	"time"

	"github.com/dialfleet/dispatch-core/leasestore"
)

// checkCapacity asserts I1: inflight + reserved must never exceed the
// campaign's concurrency limit (spec §4.3 "the central safety
// property the whole design exists to enforce").
func (m *Monitor) checkCapacity(ctx context.Context, campaignID string, now time.Time) (Violation, bool) {
	limit, err := m.store.Limit(ctx, campaignID)
	if err != nil {
		m.log.WithError(err).WithField("campaign_id", campaignID).Warn("read limit failed")
		return Violation{}, false
	}
	progress, err := m.store.Progress(ctx, campaignID)
	if err != nil {
		m.log.WithError(err).WithField("campaign_id", campaignID).Warn("read progress failed")
		return Violation{}, false
	}
	if progress.Inflight+progress.Reserved > int64(limit) {
		return Violation{
			CampaignID: campaignID,
			Invariant:  "I1-capacity",
			Detail:     fmt.Sprintf("inflight=%d reserved=%d limit=%d", progress.Inflight, progress.Reserved, limit),
			At:         now,
		}, true
	}
	return Violation{}, false
}

// checkLeaseKeysExist asserts I2: every member in the leases set has a
// live lease key (the janitor reaps this, so a violation here means
// the janitor is behind or down, not that self-healing is needed).
func (m *Monitor) checkLeaseKeysExist(ctx context.Context, campaignID string, now time.Time) (Violation, bool) {
	members, err := m.store.Members(ctx, campaignID)
	if err != nil {
		m.log.WithError(err).WithField("campaign_id", campaignID).Warn("read members failed")
		return Violation{}, false
	}
	for i, member := range sample(members, sampleRate) {
		exists, err := m.store.LeaseExists(ctx, campaignID, member)
		if err != nil {
			m.log.WithError(err).WithField("campaign_id", campaignID).Warn("lease exists check failed")
			continue
		}
		if !exists {
			return Violation{
				CampaignID: campaignID,
				Invariant:  "I2-dangling-member",
				Detail:     fmt.Sprintf("member %q in leases set with no lease key (sampled index %d)", member, i),
				At:         now,
			}, true
		}
	}
	return Violation{}, false
}

// checkLedgerMatchesReserved asserts I3: the reservation ledger's
// cardinality must equal the reserved counter (they are incremented
// together by reserve_and_promote and decremented together by
// acquire_from_reservation/janitor_scan; any drift means one path
// updated one without the other).
func (m *Monitor) checkLedgerMatchesReserved(ctx context.Context, campaignID string, now time.Time) (Violation, bool) {
	ledgerCount, err := m.store.ReservedLedgerCount(ctx, campaignID)
	if err != nil {
		m.log.WithError(err).WithField("campaign_id", campaignID).Warn("read ledger count failed")
		return Violation{}, false
	}
	progress, err := m.store.Progress(ctx, campaignID)
	if err != nil {
		m.log.WithError(err).WithField("campaign_id", campaignID).Warn("read progress failed")
		return Violation{}, false
	}
	if ledgerCount != progress.Reserved {
		return Violation{
			CampaignID: campaignID,
			Invariant:  "I3-ledger-drift",
			Detail:     fmt.Sprintf("ledger=%d reserved_counter=%d", ledgerCount, progress.Reserved),
			At:         now,
		}, true
	}
	return Violation{}, false
}

// checkWaitlistDisjointFromLeases asserts I4: a contact id must never
// appear in more than one priority waitlist at once, which would mean
// it could be promoted twice out of the same reserve_and_promote batch
// (push-back and a retry re-enqueue racing are the two paths that
// could cause this without the Compactor's dedup pass running first).
func (m *Monitor) checkWaitlistDisjointFromLeases(ctx context.Context, campaignID string, now time.Time) (Violation, bool) {
	high, err := m.store.WaitlistSnapshot(ctx, campaignID, leasestore.High)
	if err != nil {
		m.log.WithError(err).WithField("campaign_id", campaignID).Warn("waitlist snapshot failed")
		return Violation{}, false
	}
	normal, err := m.store.WaitlistSnapshot(ctx, campaignID, leasestore.Normal)
	if err != nil {
		m.log.WithError(err).WithField("campaign_id", campaignID).Warn("waitlist snapshot failed")
		return Violation{}, false
	}

	seen := make(map[string]bool, len(high))
	for _, contactID := range sample(high, sampleRate) {
		seen[contactID] = true
	}
	for _, contactID := range sample(normal, sampleRate) {
		if seen[contactID] {
			return Violation{
				CampaignID: campaignID,
				Invariant:  "I4-duplicate-across-waitlists",
				Detail:     fmt.Sprintf("contact %q present in both high and normal waitlists", contactID),
				At:         now,
			}, true
		}
	}
	return Violation{}, false
}

func sample(ids []string, max int) []string {
	if len(ids) <= max {
		return ids
	}
	return ids[:max]
}
