package leasestore

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialfleet/dispatch-core/rediscore"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(rediscore.NewFromClient(raw)), mr
}

func TestAcquirePre_RespectsLimit(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.SetLimit(ctx, "c1", 1))
	require.NoError(t, store.AcquirePre(ctx, "c1", "call-a", "tok-a", 20*time.Second))

	err := store.AcquirePre(ctx, "c1", "call-b", "tok-b", 20*time.Second)
	assert.ErrorIs(t, err, ErrNoCapacity)
}

func TestReleaseThenAcquirePre_RoundTrips(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.SetLimit(ctx, "c1", 1))
	require.NoError(t, store.AcquirePre(ctx, "c1", "call-a", "tok-a", 20*time.Second))
	require.NoError(t, store.Release(ctx, "c1", PreMember("call-a"), "tok-a", true))

	assert.NoError(t, store.AcquirePre(ctx, "c1", "call-b", "tok-b", 20*time.Second))
}

func TestRelease_TokenMismatchIsRejected(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.SetLimit(ctx, "c1", 1))
	require.NoError(t, store.AcquirePre(ctx, "c1", "call-a", "tok-a", 20*time.Second))

	err := store.Release(ctx, "c1", PreMember("call-a"), "wrong-token", false)
	assert.ErrorIs(t, err, ErrTokenMismatch)
}

func TestPromote_MovesPreDialToActive(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.SetLimit(ctx, "c1", 1))
	require.NoError(t, store.AcquirePre(ctx, "c1", "call-a", "tok-a", 20*time.Second))
	require.NoError(t, store.Promote(ctx, "c1", "call-a", "tok-a", 3*time.Minute))

	progress, err := store.Progress(ctx, "c1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, progress.Inflight)

	// Promoting again must fail: the pre-dial key is gone.
	err = store.Promote(ctx, "c1", "call-a", "tok-a", 3*time.Minute)
	assert.ErrorIs(t, err, ErrTokenMismatch)
}

func TestReserveAndPromote_NeverExceedsLimit(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.SetLimit(ctx, "c1", 3))
	for i := 0; i < 10; i++ {
		require.NoError(t, store.Enqueue(ctx, "c1", contactID(i), High))
	}

	result, err := store.ReserveAndPromote(ctx, "c1", 5, 70*time.Second, 20*time.Second, time.Now())
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Promoted), 3)
	assert.NotZero(t, result.Seq)

	progress, err := store.Progress(ctx, "c1")
	require.NoError(t, err)
	assert.EqualValues(t, len(result.Promoted), progress.Reserved)
	assert.EqualValues(t, 10-len(result.Promoted), progress.QueuedHigh)
}

func TestReserveAndPromote_EmptyWaitlistsReturnZero(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	require.NoError(t, store.SetLimit(ctx, "c1", 3))

	result, err := store.ReserveAndPromote(ctx, "c1", 5, 70*time.Second, 20*time.Second, time.Now())
	require.NoError(t, err)
	assert.Empty(t, result.Promoted)
	assert.Zero(t, result.Seq)
}

func TestReserveAndPromote_FairnessFavorsHighThreeToOne(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	require.NoError(t, store.SetLimit(ctx, "c1", 1000))

	for i := 0; i < 100; i++ {
		require.NoError(t, store.Enqueue(ctx, "c1", contactID(i), High))
		require.NoError(t, store.Enqueue(ctx, "c1", "n-"+contactID(i), Normal))
	}

	var normalCount, totalCount int
	for batch := 0; batch < 20; batch++ {
		result, err := store.ReserveAndPromote(ctx, "c1", 10, 70*time.Second, 20*time.Second, time.Now())
		require.NoError(t, err)
		for _, p := range result.Promoted {
			totalCount++
			if p.Priority == Normal {
				normalCount++
			}
		}
	}

	// P3: normal share should sit near 25% (guaranteed floor 22%) under a
	// saturated queue of both classes.
	assert.GreaterOrEqual(t, totalCount, 1)
	ratio := float64(normalCount) / float64(totalCount)
	assert.GreaterOrEqual(t, ratio, 0.18)
	assert.LessOrEqual(t, ratio, 0.40)
}

func TestJanitorScan_RestoresOrphanedReservations(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	require.NoError(t, store.SetLimit(ctx, "c1", 2))
	require.NoError(t, store.Enqueue(ctx, "c1", "contact-1", High))
	require.NoError(t, store.Enqueue(ctx, "c1", "contact-2", Normal))

	past := time.Now().Add(-2 * time.Minute)
	result, err := store.ReserveAndPromote(ctx, "c1", 2, 70*time.Second, 20*time.Second, past)
	require.NoError(t, err)
	require.Len(t, result.Promoted, 2)

	report, err := store.JanitorScan(ctx, "c1", time.Now(), 60*time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 2, report.OrphanedReservations)

	progress, err := store.Progress(ctx, "c1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, progress.Reserved)
	assert.EqualValues(t, 1, progress.QueuedHigh)
	assert.EqualValues(t, 1, progress.QueuedNormal)

	mr.FastForward(time.Second) // keep miniredis' clock ticking for TTL-based assertions elsewhere
}

func TestCheckAndSetDialIdempotency_DedupsWithinBucket(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	dup, err := store.CheckAndSetDialIdempotency(ctx, "contact-1", 100, 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = store.CheckAndSetDialIdempotency(ctx, "contact-1", 100, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, dup)
}

func contactID(i int) string {
	return "contact-" + strconv.Itoa(i)
}
