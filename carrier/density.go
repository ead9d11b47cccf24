package carrier

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/dialfleet/dispatch-core/leasestore"
)

// DensityTracker observes dial outcomes across all workers via a
// Redis sliding window and opens the campaign's shared circuit-breaker
// marker (spec §3 "Circuit breaker... opens after a configured failure
// density in a 60s window") independent of any one worker's local
// gobreaker state.
type DensityTracker struct {
	store     leasestore.Store
	window    time.Duration
	threshold float64 // failure fraction, e.g. 0.5 for 50%
	minSample int
	ttl       time.Duration
}

func NewDensityTracker(store leasestore.Store, window time.Duration, threshold float64, minSample int, openTTL time.Duration) *DensityTracker {
	return &DensityTracker{store: store, window: window, threshold: threshold, minSample: minSample, ttl: openTTL}
}

// Observe is a (failures, total) sample for campaignID over the
// tracker's window, typically computed by the caller from its own
// recent-outcome ring buffer; if the failure density crosses the
// configured threshold, the shared circuit marker opens.
func (d *DensityTracker) Observe(ctx context.Context, campaignID string, failures, total int) error {
	if total < d.minSample {
		return nil
	}
	if float64(failures)/float64(total) < d.threshold {
		return nil
	}
	if err := d.store.SetCircuitOpen(ctx, campaignID, d.ttl); err != nil {
		return errors.Errorf("open circuit for %s: %w", campaignID, err)
	}
	return nil
}
