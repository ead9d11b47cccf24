package leasestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_AcquirePreRespectsLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.SetLimit(ctx, "c1", 1))
	require.NoError(t, store.AcquirePre(ctx, "c1", "call-a", "tok-a", time.Second))

	err := store.AcquirePre(ctx, "c1", "call-b", "tok-b", time.Second)
	assert.ErrorIs(t, err, ErrNoCapacity)
}

func TestMemoryStore_ReserveAndPromoteRespectsCapacity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.SetLimit(ctx, "c1", 2))
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Enqueue(ctx, "c1", "contact", High))
	}

	result, err := store.ReserveAndPromote(ctx, "c1", 5, time.Minute, time.Second, time.Now())
	require.NoError(t, err)
	assert.Len(t, result.Promoted, 2)

	progress, err := store.Progress(ctx, "c1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, progress.QueuedHigh)
	assert.EqualValues(t, 2, progress.Reserved)
}
