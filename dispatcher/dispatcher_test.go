package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialfleet/dispatch-core/admission"
	"github.com/dialfleet/dispatch-core/carrier"
	"github.com/dialfleet/dispatch-core/dconfig"
	"github.com/dialfleet/dispatch-core/leasestore"
	"github.com/dialfleet/dispatch-core/rediscore"
	"github.com/dialfleet/dispatch-core/retry"
)

type stubCarrier struct {
	result carrier.DialResult
	err    error
}

func (s *stubCarrier) Dial(context.Context, carrier.DialSpec) (carrier.DialResult, error) {
	return s.result, s.err
}
func (s *stubCarrier) Hangup(context.Context, string) error               { return nil }
func (s *stubCarrier) GetStatus(context.Context, string) (carrier.Status, error) { return "", nil }

// fakeContactLookup resolves contact ids from an in-memory map, standing
// in for the durable contact store in tests that never touch MySQL.
type fakeContactLookup struct {
	contacts map[string]ContactInfo
}

func newFakeContactLookup() *fakeContactLookup {
	return &fakeContactLookup{contacts: make(map[string]ContactInfo)}
}

func (f *fakeContactLookup) set(contactID, phoneNumber string, retryCount int) {
	f.contacts[contactID] = ContactInfo{PhoneNumber: phoneNumber, RetryCount: retryCount}
}

func (f *fakeContactLookup) FindContact(_ context.Context, _, contactID string) (ContactInfo, error) {
	info, ok := f.contacts[contactID]
	if !ok {
		return ContactInfo{}, errors.New("fakeContactLookup: unknown contact " + contactID)
	}
	return info, nil
}

type scriptedSignalBus struct {
	mu     sync.Mutex
	events map[string]chan SignalEvent
}

func newScriptedSignalBus() *scriptedSignalBus {
	return &scriptedSignalBus{events: make(map[string]chan SignalEvent)}
}

func (b *scriptedSignalBus) Subscribe(_ context.Context, correlationID string) (<-chan SignalEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan SignalEvent, 4)
	b.events[correlationID] = ch
	return ch, nil
}

func (b *scriptedSignalBus) send(correlationID string, ev SignalEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.events[correlationID]; ok {
		ch <- ev
	}
}

func newTestDispatcher(t *testing.T, campaignID string, stub *stubCarrier, bus *scriptedSignalBus) (*Dispatcher, leasestore.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client := rediscore.NewFromClient(raw)
	store := leasestore.NewRedisStore(client)
	cfg := dconfig.Default()

	ctrl := admission.NewController(store, cfg)
	queue := retry.NewQueue(client, store)
	sched := retry.NewScheduler(queue, store, nil)

	contacts := newFakeContactLookup()
	contacts.set("contact-1", "+15550000001", 0)

	d := New(campaignID, Config{
		Store:          store,
		Admission:      ctrl,
		Carrier:        stub,
		Contacts:       contacts,
		SignalBus:      bus,
		RetryScheduler: sched,
		Dispatch:       cfg,
		MaxBatch:       2,
	})
	return d, store
}

func TestRunAttempt_HappyPathPromotesAndReleases(t *testing.T) {
	ctx := context.Background()
	bus := newScriptedSignalBus()
	stub := &stubCarrier{result: carrier.DialResult{CarrierID: "carrier-1", InitialStatus: carrier.StatusQueued}}
	d, store := newTestDispatcher(t, "c1", stub, bus)

	require.NoError(t, store.SetLimit(ctx, "c1", 1))
	require.NoError(t, store.Enqueue(ctx, "c1", "contact-1", leasestore.High))

	grants, err := d.admission.Reserve(ctx, "c1", 1)
	require.NoError(t, err)
	require.Len(t, grants, 1)

	done := make(chan struct{})
	go func() {
		d.runAttempt(ctx, grants[0])
		close(done)
	}()

	// Give runAttempt a moment to subscribe before sending events.
	time.Sleep(20 * time.Millisecond)
	bus.send(grants[0].CallID, SignalEvent{CorrelationID: grants[0].CallID, Kind: SignalAnswer})
	time.Sleep(10 * time.Millisecond)
	bus.send(grants[0].CallID, SignalEvent{CorrelationID: grants[0].CallID, Kind: SignalHangup, Reason: "hangup"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runAttempt did not complete")
	}

	progress, err := store.Progress(ctx, "c1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, progress.Inflight)
	assert.EqualValues(t, 0, progress.Reserved)
}

func TestRunAttempt_NoAnswerSchedulesRetry(t *testing.T) {
	ctx := context.Background()
	bus := newScriptedSignalBus()
	stub := &stubCarrier{result: carrier.DialResult{CarrierID: "carrier-1", InitialStatus: carrier.StatusQueued}}
	d, store := newTestDispatcher(t, "c1", stub, bus)
	d.cfg.PreDialMaxSec = 0 // force the answer wait to expire immediately

	require.NoError(t, store.SetLimit(ctx, "c1", 1))
	require.NoError(t, store.Enqueue(ctx, "c1", "contact-1", leasestore.High))

	grants, err := d.admission.Reserve(ctx, "c1", 1)
	require.NoError(t, err)
	require.Len(t, grants, 1)

	d.runAttempt(ctx, grants[0])

	progress, err := store.Progress(ctx, "c1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, progress.Inflight)
}

func TestRunAttempt_DialErrorReleasesAndSchedulesRetry(t *testing.T) {
	ctx := context.Background()
	bus := newScriptedSignalBus()
	stub := &stubCarrier{err: carrier.ErrServerError}
	d, store := newTestDispatcher(t, "c1", stub, bus)

	require.NoError(t, store.SetLimit(ctx, "c1", 1))
	require.NoError(t, store.Enqueue(ctx, "c1", "contact-1", leasestore.High))

	grants, err := d.admission.Reserve(ctx, "c1", 1)
	require.NoError(t, err)
	require.Len(t, grants, 1)

	d.runAttempt(ctx, grants[0])

	progress, err := store.Progress(ctx, "c1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, progress.Inflight)
	assert.EqualValues(t, 0, progress.QueuedHigh, "the network_error retry sits in the delay queue and re-enqueues only once it fires; the slot itself is released immediately")
}
