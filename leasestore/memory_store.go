package leasestore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store double for unit tests of packages
// that depend on leasestore.Store but don't need Lua-script fidelity
// (the Redis-backed paths get their own tests against miniredis). It
// reproduces the token-CAS and capacity-accounting semantics with a
// mutex instead of a Lua script.
type MemoryStore struct {
	mu sync.Mutex

	limits    map[string]int
	leases    map[string]map[string]string // campaignID -> member -> token
	reserved  map[string]int
	ledger    map[string][]PromotedEntry
	waitlists map[string]map[Priority][]string
	fairness  map[string]int
	seq       map[string]int64
	paused    map[string]bool
	coldstart map[string]bool
	cb        map[string]bool
	idemp     map[string]bool
	state     map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		limits:    make(map[string]int),
		leases:    make(map[string]map[string]string),
		reserved:  make(map[string]int),
		ledger:    make(map[string][]PromotedEntry),
		waitlists: make(map[string]map[Priority][]string),
		fairness:  make(map[string]int),
		seq:       make(map[string]int64),
		paused:    make(map[string]bool),
		coldstart: make(map[string]bool),
		cb:        make(map[string]bool),
		idemp:     make(map[string]bool),
		state:     make(map[string]string),
	}
}

func (m *MemoryStore) leasesFor(campaignID string) map[string]string {
	if m.leases[campaignID] == nil {
		m.leases[campaignID] = make(map[string]string)
	}
	return m.leases[campaignID]
}

func (m *MemoryStore) waitlistFor(campaignID string) map[Priority][]string {
	if m.waitlists[campaignID] == nil {
		m.waitlists[campaignID] = make(map[Priority][]string)
	}
	return m.waitlists[campaignID]
}

func (m *MemoryStore) AcquirePre(_ context.Context, campaignID, callID, token string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	leases := m.leasesFor(campaignID)
	if len(leases) >= m.limits[campaignID] {
		return ErrNoCapacity
	}
	leases[PreMember(callID)] = token
	return nil
}

func (m *MemoryStore) AcquireFromReservation(_ context.Context, campaignID, callID, token, contactID string, priority Priority, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.leasesFor(campaignID)[PreMember(callID)] = token
	if m.reserved[campaignID] > 0 {
		m.reserved[campaignID]--
	}
	m.removeLedgerEntry(campaignID, contactID, priority)
	return nil
}

func (m *MemoryStore) removeLedgerEntry(campaignID, contactID string, priority Priority) {
	entries := m.ledger[campaignID]
	for i, e := range entries {
		if e.ContactID == contactID && e.Priority == priority {
			m.ledger[campaignID] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

func (m *MemoryStore) Release(_ context.Context, campaignID, member, token string, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	leases := m.leasesFor(campaignID)
	if leases[member] != token {
		return ErrTokenMismatch
	}
	delete(leases, member)
	return nil
}

func (m *MemoryStore) Renew(_ context.Context, campaignID, member, token string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.leasesFor(campaignID)[member] != token {
		return ErrTokenMismatch
	}
	return nil
}

func (m *MemoryStore) Promote(_ context.Context, campaignID, callID, token string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	leases := m.leasesFor(campaignID)
	pre := PreMember(callID)
	if leases[pre] != token {
		return ErrTokenMismatch
	}
	delete(leases, pre)
	leases[ActiveMember(callID)] = token
	return nil
}

func (m *MemoryStore) ReserveAndPromote(_ context.Context, campaignID string, maxBatch int, _, _ time.Duration, now time.Time) (PromotionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fairness[campaignID]++
	wl := m.waitlistFor(campaignID)

	var popped []PromotedEntry
	popN := func(priority Priority, n int) int {
		list := wl[priority]
		count := 0
		for count < n && len(list) > 0 {
			popped = append(popped, PromotedEntry{ContactID: list[0], Priority: priority})
			list = list[1:]
			count++
		}
		wl[priority] = list
		return count
	}

	fill := func(first, second Priority, firstN int) {
		popN(first, firstN)
		for len(popped) < maxBatch {
			before := len(popped)
			popN(second, maxBatch-len(popped))
			if len(popped) >= maxBatch {
				break
			}
			popN(first, maxBatch-len(popped))
			if len(popped) == before {
				break
			}
		}
	}

	if m.fairness[campaignID]%4 != 0 {
		highTarget := (maxBatch*3 + 3) / 4
		fill(High, Normal, highTarget)
	} else {
		fill(Normal, High, 1)
	}

	leases := m.leasesFor(campaignID)
	available := m.limits[campaignID] - len(leases) - m.reserved[campaignID]
	if available < 0 {
		available = 0
	}

	toPromote := len(popped)
	if toPromote > available {
		toPromote = available
	}

	promoted := popped[:toPromote]
	extras := popped[toPromote:]

	if toPromote > 0 {
		m.reserved[campaignID] += toPromote
		m.ledger[campaignID] = append(m.ledger[campaignID], promoted...)
		m.seq[campaignID]++
	}

	for i := len(extras) - 1; i >= 0; i-- {
		e := extras[i]
		wl[e.Priority] = append([]string{e.ContactID}, wl[e.Priority]...)
	}

	return PromotionResult{Promoted: append([]PromotedEntry{}, promoted...), Seq: m.seq[campaignID]}, nil
}

func (m *MemoryStore) JanitorScan(_ context.Context, campaignID string, now time.Time, orphanAge time.Duration) (JanitorReapReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// MemoryStore does not track per-entry age; tests that need
	// orphan-aging semantics exercise RedisStore against miniredis.
	_ = now
	_ = orphanAge
	return JanitorReapReport{}, nil
}

func (m *MemoryStore) Enqueue(_ context.Context, campaignID, contactID string, priority Priority) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wl := m.waitlistFor(campaignID)
	wl[priority] = append(wl[priority], contactID)
	return nil
}

func (m *MemoryStore) EnqueueFront(_ context.Context, campaignID, contactID string, priority Priority) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wl := m.waitlistFor(campaignID)
	wl[priority] = append([]string{contactID}, wl[priority]...)
	return nil
}

func (m *MemoryStore) SetLimit(_ context.Context, campaignID string, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits[campaignID] = limit
	return nil
}

func (m *MemoryStore) Limit(_ context.Context, campaignID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limits[campaignID], nil
}

func (m *MemoryStore) Progress(_ context.Context, campaignID string) (Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wl := m.waitlistFor(campaignID)
	return Progress{
		Inflight:     int64(len(m.leasesFor(campaignID))),
		Reserved:     int64(m.reserved[campaignID]),
		QueuedHigh:   int64(len(wl[High])),
		QueuedNormal: int64(len(wl[Normal])),
	}, nil
}

func (m *MemoryStore) SetPaused(_ context.Context, campaignID string, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused[campaignID] = paused
	return nil
}

func (m *MemoryStore) Paused(_ context.Context, campaignID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused[campaignID], nil
}

func (m *MemoryStore) SetColdStart(_ context.Context, campaignID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coldstart[campaignID] = true
	return nil
}

func (m *MemoryStore) ColdStart(_ context.Context, campaignID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.coldstart[campaignID], nil
}

func (m *MemoryStore) CircuitOpen(_ context.Context, campaignID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cb[campaignID], nil
}

func (m *MemoryStore) SetCircuitOpen(_ context.Context, campaignID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cb[campaignID] = true
	return nil
}

func (m *MemoryStore) CheckAndSetDialIdempotency(_ context.Context, contactID string, bucket int64, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := dialIdempotencyKey(contactID, bucket)
	if m.idemp[key] {
		return true, nil
	}
	m.idemp[key] = true
	return false, nil
}

func (m *MemoryStore) SubscribeSlotAvailable(ctx context.Context, _ string, ready chan<- struct{}) (<-chan []byte, error) {
	if ready != nil {
		close(ready)
	}
	ch := make(chan []byte)
	go func() {
		<-ctx.Done()
	}()
	return ch, nil
}

func (m *MemoryStore) SetState(_ context.Context, campaignID, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[campaignID] = state
	return nil
}

func (m *MemoryStore) CompareAndSetState(_ context.Context, campaignID, expected, next string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state[campaignID] != expected {
		return ErrStateMismatch
	}
	m.state[campaignID] = next
	return nil
}

func (m *MemoryStore) State(_ context.Context, campaignID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state[campaignID], nil
}

func (m *MemoryStore) Members(_ context.Context, campaignID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.leasesFor(campaignID)))
	for member := range m.leasesFor(campaignID) {
		out = append(out, member)
	}
	return out, nil
}

func (m *MemoryStore) LeaseExists(_ context.Context, campaignID, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.leasesFor(campaignID)[member]
	return ok, nil
}

func (m *MemoryStore) ForceRelease(_ context.Context, campaignID, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.leasesFor(campaignID), member)
	return nil
}

func (m *MemoryStore) ReservedLedgerCount(_ context.Context, campaignID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.ledger[campaignID])), nil
}

func (m *MemoryStore) WaitlistSnapshot(_ context.Context, campaignID string, priority Priority) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wl := m.waitlistFor(campaignID)
	out := make([]string, len(wl[priority]))
	copy(out, wl[priority])
	return out, nil
}

func (m *MemoryStore) ReplaceWaitlist(_ context.Context, campaignID string, priority Priority, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wl := m.waitlistFor(campaignID)
	cp := make([]string, len(ids))
	copy(cp, ids)
	wl[priority] = cp
	return nil
}
