package leasestore

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/dialfleet/dispatch-core/rediscore"
)

// RedisStore is the production Store, one Lua script per operation,
// all keys for a campaign hash-tagged onto a single cluster slot.
type RedisStore struct {
	client *rediscore.Client
	pubsub *rediscore.PubSub
}

func NewRedisStore(client *rediscore.Client) *RedisStore {
	return &RedisStore{
		client: client,
		pubsub: rediscore.NewPubSub(client),
	}
}

func (s *RedisStore) AcquirePre(ctx context.Context, campaignID, callID, token string, ttl time.Duration) error {
	member := PreMember(callID)
	res, err := s.client.EvalShaOrLoad(ctx, acquirePreScript,
		[]string{leasesKey(campaignID), leaseKey(campaignID, member), limitKey(campaignID)},
		member, token, ttl.Milliseconds())
	if err != nil {
		return errors.Errorf("acquire_pre: %w", err)
	}
	granted, _ := res.(string)
	if granted == "" {
		return ErrNoCapacity
	}
	return nil
}

func (s *RedisStore) AcquireFromReservation(ctx context.Context, campaignID, callID, token, contactID string, priority Priority, ttl time.Duration) error {
	member := PreMember(callID)
	ledgerEntry := string(priority) + ":" + contactID
	_, err := s.client.EvalShaOrLoad(ctx, acquireFromReservationScript,
		[]string{leasesKey(campaignID), leaseKey(campaignID, member), reservedKey(campaignID), reservedLedgerKey(campaignID)},
		member, token, ttl.Milliseconds(), ledgerEntry)
	if err != nil {
		return errors.Errorf("acquire_from_reservation: %w", err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, campaignID, member, token string, publish bool) error {
	channel := ""
	if publish {
		channel = slotAvailableChannel(campaignID)
	}
	res, err := s.client.EvalShaOrLoad(ctx, releaseScript,
		[]string{leasesKey(campaignID), leaseKey(campaignID, member)},
		member, token, channel)
	if err != nil {
		return errors.Errorf("release: %w", err)
	}
	if n, _ := res.(int64); n == 0 {
		return ErrTokenMismatch
	}
	return nil
}

func (s *RedisStore) Renew(ctx context.Context, campaignID, member, token string, ttl time.Duration) error {
	res, err := s.client.EvalShaOrLoad(ctx, renewLeaseScript,
		[]string{leaseKey(campaignID, member)}, token, ttl.Milliseconds())
	if err != nil {
		return errors.Errorf("renew: %w", err)
	}
	if n, _ := res.(int64); n == 0 {
		return ErrTokenMismatch
	}
	return nil
}

func (s *RedisStore) Promote(ctx context.Context, campaignID, callID, token string, activeTTL time.Duration) error {
	preMember := PreMember(callID)
	activeMember := ActiveMember(callID)
	res, err := s.client.EvalShaOrLoad(ctx, promoteScript,
		[]string{leasesKey(campaignID), leaseKey(campaignID, preMember), leaseKey(campaignID, activeMember)},
		preMember, activeMember, token, activeTTL.Milliseconds())
	if err != nil {
		return errors.Errorf("promote: %w", err)
	}
	if n, _ := res.(int64); n == 0 {
		return ErrTokenMismatch
	}
	return nil
}

func (s *RedisStore) ReserveAndPromote(ctx context.Context, campaignID string, maxBatch int, reserveTTL, gateTTL time.Duration, now time.Time) (PromotionResult, error) {
	res, err := s.client.EvalShaOrLoad(ctx, reserveAndPromoteScript,
		[]string{
			waitlistKey(campaignID, "high"),
			waitlistKey(campaignID, "normal"),
			limitKey(campaignID),
			leasesKey(campaignID),
			reservedKey(campaignID),
			reservedLedgerKey(campaignID),
			promoteGateSeqKey(campaignID),
			promoteGateKey(campaignID),
			fairnessKey(campaignID),
		},
		maxBatch, reserveTTL.Milliseconds(), gateTTL.Milliseconds(), now.UnixMilli(), (5 * time.Minute).Milliseconds())
	if err != nil {
		return PromotionResult{}, errors.Errorf("reserve_and_promote: %w", err)
	}

	fields, ok := res.([]interface{})
	if !ok || len(fields) != 3 {
		return PromotionResult{}, errors.Errorf("reserve_and_promote: unexpected script reply shape")
	}

	toPromote, _ := fields[0].(int64)
	seq, _ := fields[1].(int64)
	raw, _ := fields[2].([]interface{})

	promoted := make([]PromotedEntry, 0, len(raw))
	for _, item := range raw {
		entry, _ := item.(string)
		if len(entry) < 3 {
			continue
		}
		priority := Priority(entry[:1])
		promoted = append(promoted, PromotedEntry{ContactID: entry[2:], Priority: priority})
	}

	_ = toPromote // implied by len(promoted); kept for clarity when reading script traces
	return PromotionResult{Promoted: promoted, Seq: seq}, nil
}

func (s *RedisStore) JanitorScan(ctx context.Context, campaignID string, now time.Time, orphanAge time.Duration) (JanitorReapReport, error) {
	res, err := s.client.EvalShaOrLoad(ctx, janitorScanScript,
		[]string{reservedLedgerKey(campaignID), reservedKey(campaignID), waitlistKey(campaignID, "high"), waitlistKey(campaignID, "normal")},
		now.UnixMilli(), orphanAge.Milliseconds())
	if err != nil {
		return JanitorReapReport{}, errors.Errorf("janitor_scan: %w", err)
	}
	reaped, _ := res.(int64)
	return JanitorReapReport{OrphanedReservations: reaped}, nil
}

func (s *RedisStore) Enqueue(ctx context.Context, campaignID, contactID string, priority Priority) error {
	return s.client.Raw().RPush(ctx, waitlistKey(campaignID, priority.waitlistSuffix()), contactID).Err()
}

func (s *RedisStore) EnqueueFront(ctx context.Context, campaignID, contactID string, priority Priority) error {
	return s.client.Raw().LPush(ctx, waitlistKey(campaignID, priority.waitlistSuffix()), contactID).Err()
}

func (s *RedisStore) SetLimit(ctx context.Context, campaignID string, limit int) error {
	return s.client.Raw().Set(ctx, limitKey(campaignID), limit, 0).Err()
}

func (s *RedisStore) Limit(ctx context.Context, campaignID string) (int, error) {
	n, err := s.client.Raw().Get(ctx, limitKey(campaignID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Errorf("limit: %w", err)
	}
	return n, nil
}

func (s *RedisStore) Progress(ctx context.Context, campaignID string) (Progress, error) {
	pipe := s.client.Raw().Pipeline()
	inflight := pipe.SCard(ctx, leasesKey(campaignID))
	reserved := pipe.Get(ctx, reservedKey(campaignID))
	queuedHigh := pipe.LLen(ctx, waitlistKey(campaignID, "high"))
	queuedNormal := pipe.LLen(ctx, waitlistKey(campaignID, "normal"))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Progress{}, errors.Errorf("progress: %w", err)
	}
	reservedVal, _ := reserved.Int64()
	return Progress{
		Inflight:     inflight.Val(),
		Reserved:     reservedVal,
		QueuedHigh:   queuedHigh.Val(),
		QueuedNormal: queuedNormal.Val(),
	}, nil
}

func (s *RedisStore) SetPaused(ctx context.Context, campaignID string, paused bool) error {
	if !paused {
		return s.client.Raw().Del(ctx, pausedKey(campaignID)).Err()
	}
	return s.client.Raw().Set(ctx, pausedKey(campaignID), "1", 0).Err()
}

func (s *RedisStore) Paused(ctx context.Context, campaignID string) (bool, error) {
	return s.exists(ctx, pausedKey(campaignID))
}

func (s *RedisStore) SetColdStart(ctx context.Context, campaignID string, ttl time.Duration) error {
	return s.client.Raw().Set(ctx, coldstartKey(campaignID), "1", ttl).Err()
}

func (s *RedisStore) ColdStart(ctx context.Context, campaignID string) (bool, error) {
	return s.exists(ctx, coldstartKey(campaignID))
}

func (s *RedisStore) CircuitOpen(ctx context.Context, campaignID string) (bool, error) {
	return s.exists(ctx, circuitBreakerKey(campaignID))
}

func (s *RedisStore) SetCircuitOpen(ctx context.Context, campaignID string, ttl time.Duration) error {
	return s.client.Raw().Set(ctx, circuitBreakerKey(campaignID), "1", ttl).Err()
}

func (s *RedisStore) CheckAndSetDialIdempotency(ctx context.Context, contactID string, bucket int64, ttl time.Duration) (bool, error) {
	key := dialIdempotencyKey(contactID, bucket)
	ok, err := s.client.Raw().SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, errors.Errorf("dial idempotency check: %w", err)
	}
	// SetNX true means WE set it (first dial); false means it already existed (dup).
	return !ok, nil
}

func (s *RedisStore) SubscribeSlotAvailable(ctx context.Context, campaignID string, ready chan<- struct{}) (<-chan []byte, error) {
	return s.pubsub.Subscribe(ctx, slotAvailableChannel(campaignID), ready)
}

func (s *RedisStore) SetState(ctx context.Context, campaignID, state string) error {
	return s.client.Raw().Set(ctx, campaignStateKey(campaignID), state, 0).Err()
}

func (s *RedisStore) CompareAndSetState(ctx context.Context, campaignID, expected, next string) error {
	res, err := s.client.EvalShaOrLoad(ctx, casStateScript, []string{campaignStateKey(campaignID)}, expected, next)
	if err != nil {
		return errors.Errorf("compare-and-set state: %w", err)
	}
	if n, _ := res.(int64); n == 0 {
		return ErrStateMismatch
	}
	return nil
}

func (s *RedisStore) State(ctx context.Context, campaignID string) (string, error) {
	v, err := s.client.Raw().Get(ctx, campaignStateKey(campaignID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errors.Errorf("get state: %w", err)
	}
	return v, nil
}

func (s *RedisStore) Members(ctx context.Context, campaignID string) ([]string, error) {
	members, err := s.client.Raw().SMembers(ctx, leasesKey(campaignID)).Result()
	if err != nil {
		return nil, errors.Errorf("members: %w", err)
	}
	return members, nil
}

func (s *RedisStore) LeaseExists(ctx context.Context, campaignID, member string) (bool, error) {
	return s.exists(ctx, leaseKey(campaignID, member))
}

func (s *RedisStore) ForceRelease(ctx context.Context, campaignID, member string) error {
	pipe := s.client.Raw().Pipeline()
	pipe.SRem(ctx, leasesKey(campaignID), member)
	pipe.Del(ctx, leaseKey(campaignID, member))
	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return errors.Errorf("force release %s: %w", member, err)
	}
	return nil
}

func (s *RedisStore) ReservedLedgerCount(ctx context.Context, campaignID string) (int64, error) {
	n, err := s.client.Raw().ZCard(ctx, reservedLedgerKey(campaignID)).Result()
	if err != nil {
		return 0, errors.Errorf("reserved ledger count: %w", err)
	}
	return n, nil
}

func (s *RedisStore) WaitlistSnapshot(ctx context.Context, campaignID string, priority Priority) ([]string, error) {
	ids, err := s.client.Raw().LRange(ctx, waitlistKey(campaignID, priority.waitlistSuffix()), 0, -1).Result()
	if err != nil {
		return nil, errors.Errorf("waitlist snapshot: %w", err)
	}
	return ids, nil
}

func (s *RedisStore) ReplaceWaitlist(ctx context.Context, campaignID string, priority Priority, ids []string) error {
	key := waitlistKey(campaignID, priority.waitlistSuffix())
	pipe := s.client.Raw().TxPipeline()
	pipe.Del(ctx, key)
	if len(ids) > 0 {
		members := make([]interface{}, len(ids))
		for i, id := range ids {
			members[i] = id
		}
		pipe.RPush(ctx, key, members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Errorf("replace waitlist: %w", err)
	}
	return nil
}

func (s *RedisStore) exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Raw().Exists(ctx, key).Result()
	if err != nil {
		return false, errors.Errorf("exists %s: %w", key, err)
	}
	return n > 0, nil
}
