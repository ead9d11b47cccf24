package main

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dialfleet/dispatch-core/dispatcher"
	"github.com/dialfleet/dispatch-core/rediscore"
)

// campaignLister supplies the set of campaigns currently eligible for
// dispatch; satisfied by *durable.CampaignLister.
type campaignLister interface {
	ListActiveCampaignIDs(ctx context.Context) ([]string, error)
}

// dispatcherSupervisor owns the "one process hosts one Dispatcher per
// active campaign it owns" rule of spec §4.2: it polls the active
// campaign set, claims per-campaign ownership via rediscore.OwnershipLock
// the same way janitor's loops do, and starts/stops a dispatcher.Dispatcher
// goroutine as ownership is won or lost.
type dispatcherSupervisor struct {
	client    *rediscore.Client
	lister    campaignLister
	build     func(campaignID string) *dispatcher.Dispatcher
	ownerTTL  time.Duration
	log       *logrus.Entry

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

func newDispatcherSupervisor(client *rediscore.Client, lister campaignLister, build func(string) *dispatcher.Dispatcher, ownerTTL time.Duration, log *logrus.Entry) *dispatcherSupervisor {
	return &dispatcherSupervisor{
		client:   client,
		lister:   lister,
		build:    build,
		ownerTTL: ownerTTL,
		log:      log.WithField("component", "dispatcher-supervisor"),
		running:  make(map[string]context.CancelFunc),
	}
}

// Run polls the active campaign set every interval until ctx is
// cancelled, claiming ownership of newly-seen campaigns and letting
// dispatcher.Dispatcher.Run itself decide when to relinquish a campaign
// it already holds (spec §7 "after N failures, the dispatcher
// voluntarily relinquishes ownership").
func (s *dispatcherSupervisor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			return
		case <-ticker.C:
			s.reconcile(ctx)
		}
	}
}

func (s *dispatcherSupervisor) reconcile(ctx context.Context) {
	campaignIDs, err := s.lister.ListActiveCampaignIDs(ctx)
	if err != nil {
		s.log.WithError(err).Warn("list active campaigns failed")
		return
	}

	wanted := make(map[string]bool, len(campaignIDs))
	for _, id := range campaignIDs {
		wanted[id] = true
		s.claim(ctx, id)
	}

	s.mu.Lock()
	for id, cancel := range s.running {
		if !wanted[id] {
			cancel()
			delete(s.running, id)
		}
	}
	s.mu.Unlock()
}

func (s *dispatcherSupervisor) claim(ctx context.Context, campaignID string) {
	s.mu.Lock()
	_, already := s.running[campaignID]
	s.mu.Unlock()
	if already {
		return
	}

	lock := rediscore.NewOwnershipLock(s.client, "campaign:{"+campaignID+"}:owner:dispatcher", s.ownerTTL)
	owned, err := lock.Acquire(ctx)
	if err != nil {
		s.log.WithError(err).WithField("campaign_id", campaignID).Warn("acquire dispatcher ownership failed")
		return
	}
	if !owned {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.running[campaignID] = cancel
	s.mu.Unlock()

	d := s.build(campaignID)
	go s.hold(runCtx, cancel, lock, campaignID, d)
}

// hold renews the ownership lock in the background while d.Run blocks,
// and cancels runCtx (which Run observes on its next loop iteration) the
// moment renewal fails, so a preempted worker stops dispatching promptly
// rather than racing the new owner.
func (s *dispatcherSupervisor) hold(runCtx context.Context, cancel context.CancelFunc, lock *rediscore.OwnershipLock, campaignID string, d *dispatcher.Dispatcher) {
	renewInterval := s.ownerTTL / 3
	if renewInterval <= 0 {
		renewInterval = time.Second
	}

	go func() {
		ticker := time.NewTicker(renewInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := lock.Renew(runCtx); err != nil {
					s.log.WithError(err).WithField("campaign_id", campaignID).Warn("lost dispatcher ownership, relinquishing")
					cancel()
					return
				}
			}
		}
	}()

	if err := d.Run(runCtx); err != nil {
		s.log.WithError(err).WithField("campaign_id", campaignID).Warn("dispatcher loop exited")
	}

	cancel()
	_ = lock.Release(context.Background())

	s.mu.Lock()
	delete(s.running, campaignID)
	s.mu.Unlock()
}

func (s *dispatcherSupervisor) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cancel := range s.running {
		cancel()
		delete(s.running, id)
	}
}
