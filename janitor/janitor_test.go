package janitor

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/dialfleet/dispatch-core/leasestore"
	"github.com/dialfleet/dispatch-core/rediscore"
)

type fakeLister struct{ ids []string }

func (f fakeLister) ListActiveCampaignIDs(_ context.Context) ([]string, error) { return f.ids, nil }

func newTestClient(t *testing.T) *rediscore.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return rediscore.NewFromClient(raw)
}

func TestJanitor_ReapsDesyncedLease(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := rediscore.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	store := leasestore.NewRedisStore(client)

	if err := store.SetLimit(ctx, "camp-1", 5); err != nil {
		t.Fatalf("set limit: %v", err)
	}
	if err := store.AcquirePre(ctx, "camp-1", "call-1", "token-1", 50*time.Millisecond); err != nil {
		t.Fatalf("acquire pre: %v", err)
	}
	mr.FastForward(100 * time.Millisecond) // miniredis TTLs advance only via FastForward

	members, err := store.Members(ctx, "camp-1")
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("expected 1 member before sweep, got %d", len(members))
	}

	j := NewJanitor(client, store, fakeLister{ids: []string{"camp-1"}}, time.Minute, nil)
	j.tick(ctx, time.Now())

	members, err = store.Members(ctx, "camp-1")
	if err != nil {
		t.Fatalf("members after sweep: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("expected desynced member to be reaped, got %v", members)
	}
}

func TestCompactor_DedupsWaitlist(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	store := leasestore.NewRedisStore(client)

	for _, id := range []string{"c1", "c2", "c1", "c3", "c2"} {
		if err := store.Enqueue(ctx, "camp-1", id, leasestore.Normal); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	c := NewCompactor(client, store, fakeLister{ids: []string{"camp-1"}}, nil)
	c.tick(ctx)

	snapshot, err := store.WaitlistSnapshot(ctx, "camp-1", leasestore.Normal)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snapshot) != 3 {
		t.Fatalf("expected 3 deduped entries, got %v", snapshot)
	}
}
