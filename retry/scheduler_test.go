package retry

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialfleet/dispatch-core/leasestore"
	"github.com/dialfleet/dispatch-core/rediscore"
)

type recordedAttempt struct {
	attempts []Attempt
}

func (r *recordedAttempt) RecordRetryAttempt(_ context.Context, a Attempt) error {
	r.attempts = append(r.attempts, a)
	return nil
}

func newTestScheduler(t *testing.T) (*Scheduler, *Queue, leasestore.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client := rediscore.NewFromClient(raw)
	store := leasestore.NewRedisStore(client)
	queue := NewQueue(client, store)
	return NewScheduler(queue, store, &recordedAttempt{}), queue, store
}

func TestHandle_SchedulesRetryableFailure(t *testing.T) {
	ctx := context.Background()
	sched, queue, store := newTestScheduler(t)
	require.NoError(t, store.SetLimit(ctx, "c1", 5))

	now := time.Now()
	retried, nextAt, err := sched.Handle(ctx, now, Outcome{
		CampaignID:     "c1",
		ContactID:      "contact-1",
		OriginalCallID: "call-1",
		Priority:       leasestore.High,
		Kind:           NoAnswer,
		AttemptNumber:  0,
	})
	require.NoError(t, err)
	assert.True(t, retried)
	assert.True(t, nextAt.After(now))

	fired, err := queue.Drain(ctx, "c1", nextAt.Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, "contact-1", fired[0].ContactID)
	assert.Equal(t, 1, fired[0].AttemptNumber)

	progress, err := store.Progress(ctx, "c1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, progress.QueuedHigh)
}

type recordedContactRetry struct {
	campaignID  string
	contactID   string
	retryCount  int
	nextRetryAt time.Time
}

type fakeContactRetryState struct {
	calls []recordedContactRetry
}

func (f *fakeContactRetryState) UpdateContactRetry(_ context.Context, campaignID, contactID string, retryCount int, nextRetryAt time.Time) error {
	f.calls = append(f.calls, recordedContactRetry{campaignID, contactID, retryCount, nextRetryAt})
	return nil
}

func TestHandle_PersistsContactRetryState(t *testing.T) {
	ctx := context.Background()
	sched, _, store := newTestScheduler(t)
	require.NoError(t, store.SetLimit(ctx, "c1", 5))

	contacts := &fakeContactRetryState{}
	sched.WithContactRetryState(contacts)

	now := time.Now()
	retried, nextAt, err := sched.Handle(ctx, now, Outcome{
		CampaignID:     "c1",
		ContactID:      "contact-1",
		OriginalCallID: "call-1",
		Priority:       leasestore.High,
		Kind:           NoAnswer,
		AttemptNumber:  1,
	})
	require.NoError(t, err)
	assert.True(t, retried)

	require.Len(t, contacts.calls, 1)
	assert.Equal(t, "c1", contacts.calls[0].campaignID)
	assert.Equal(t, "contact-1", contacts.calls[0].contactID)
	assert.Equal(t, 2, contacts.calls[0].retryCount)
	assert.Equal(t, nextAt, contacts.calls[0].nextRetryAt)
}

func TestHandle_NonRetryableFailsImmediately(t *testing.T) {
	ctx := context.Background()
	sched, _, _ := newTestScheduler(t)

	retried, _, err := sched.Handle(ctx, time.Now(), Outcome{
		CampaignID: "c1",
		ContactID:  "contact-1",
		Kind:       InvalidNumber,
	})
	require.NoError(t, err)
	assert.False(t, retried)
}

func TestHandle_ExhaustedAttemptsStop(t *testing.T) {
	ctx := context.Background()
	sched, _, _ := newTestScheduler(t)

	retried, _, err := sched.Handle(ctx, time.Now(), Outcome{
		CampaignID:    "c1",
		ContactID:     "contact-1",
		Kind:          Busy,
		AttemptNumber: 3,
	})
	require.NoError(t, err)
	assert.False(t, retried)
}

func TestHandle_VoicemailRespectsExcludeFlag(t *testing.T) {
	ctx := context.Background()
	sched, _, _ := newTestScheduler(t)

	retried, _, err := sched.Handle(ctx, time.Now(), Outcome{
		CampaignID:       "c1",
		ContactID:        "contact-1",
		Kind:             Voicemail,
		ExcludeVoicemail: true,
	})
	require.NoError(t, err)
	assert.False(t, retried)
}

func TestCheckIdempotent_DedupsWithinWindow(t *testing.T) {
	ctx := context.Background()
	sched, _, _ := newTestScheduler(t)

	now := time.Now()
	dup, err := sched.CheckIdempotent(ctx, "contact-1", now, 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = sched.CheckIdempotent(ctx, "contact-1", now.Add(time.Second), 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, dup)
}
