package retry

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/dialfleet/dispatch-core/leasestore"
	"github.com/dialfleet/dispatch-core/rediscore"
)

func delayedQueueKey(campaignID string) string {
	return fmt.Sprintf("campaign:{%s}:retry:delayed", campaignID)
}

// popDueScript atomically claims every delayed-job member due at or
// before now, up to limit, so two workers racing the same tick never
// both claim the same job (spec scenario 6 "duplicate dial under
// retry" relies on this plus the idempotency key as a second guard).
var popDueScript = redis.NewScript(`
local members = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, ARGV[2])
if #members > 0 then
    redis.call("ZREM", KEYS[1], unpack(members))
end
return members
`)

// DelayedJob is one pending retry, serialized as a ZSET member string
// "<priority>|<attempt>|<kind>|<contactID>" (contactID last since it
// is the only field that may itself contain arbitrary characters).
type DelayedJob struct {
	ContactID     string
	Priority      leasestore.Priority
	FailureKind   FailureKind
	AttemptNumber int
}

func (j DelayedJob) encode() string {
	return fmt.Sprintf("%s|%d|%s|%s", j.Priority, j.AttemptNumber, j.FailureKind, j.ContactID)
}

func decodeJob(s string) (DelayedJob, error) {
	parts := strings.SplitN(s, "|", 4)
	if len(parts) != 4 {
		return DelayedJob{}, errors.Errorf("retry: malformed delayed job member %q", s)
	}
	attempt, err := strconv.Atoi(parts[1])
	if err != nil {
		return DelayedJob{}, errors.Errorf("retry: malformed attempt number in %q: %w", s, err)
	}
	return DelayedJob{
		Priority:      leasestore.Priority(parts[0]),
		AttemptNumber: attempt,
		FailureKind:   FailureKind(parts[2]),
		ContactID:     parts[3],
	}, nil
}

// Queue is the Redis-backed delay queue a scheduled retry sits in
// between classification and re-enqueue onto a waitlist.
type Queue struct {
	client *rediscore.Client
	store  leasestore.Store
}

func NewQueue(client *rediscore.Client, store leasestore.Store) *Queue {
	return &Queue{client: client, store: store}
}

// Schedule adds job to campaignID's delay queue, due at dueAt.
func (q *Queue) Schedule(ctx context.Context, campaignID string, job DelayedJob, dueAt time.Time) error {
	return q.client.Raw().ZAdd(ctx, delayedQueueKey(campaignID), redis.Z{
		Score:  float64(dueAt.UnixMilli()),
		Member: job.encode(),
	}).Err()
}

// Drain claims every job due at or before now (bounded by limit) and
// pushes each contact back onto its priority waitlist, ready for the
// next reserve_and_promote batch. It returns the jobs it fired so the
// caller can log/record them against the durable store.
func (q *Queue) Drain(ctx context.Context, campaignID string, now time.Time, limit int64) ([]DelayedJob, error) {
	res, err := q.client.EvalShaOrLoad(ctx, popDueScript, []string{delayedQueueKey(campaignID)}, now.UnixMilli(), limit)
	if err != nil {
		return nil, errors.Errorf("drain retry queue: %w", err)
	}

	raw, _ := res.([]interface{})
	fired := make([]DelayedJob, 0, len(raw))
	for _, item := range raw {
		s, _ := item.(string)
		job, err := decodeJob(s)
		if err != nil {
			continue
		}
		if err := q.store.EnqueueFront(ctx, campaignID, job.ContactID, job.Priority); err != nil {
			return fired, errors.Errorf("requeue %s: %w", job.ContactID, err)
		}
		fired = append(fired, job)
	}
	return fired, nil
}
