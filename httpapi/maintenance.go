package httpapi

import (
	"net/http"

	"github.com/dialfleet/dispatch-core/leasestore"
)

// redisStateResponse is the raw lease/reservation snapshot GET
// /maintenance/redis-state/{id} returns (spec §6 "operator tool").
type redisStateResponse struct {
	Limit          int      `json:"limit"`
	Leases         []string `json:"leases"`
	Reserved       int64    `json:"reserved"`
	ReservedLedger int64    `json:"reservedLedgerCount"`
	WaitlistHigh   []string `json:"waitlistHigh"`
	WaitlistNormal []string `json:"waitlistNormal"`
	Paused         bool     `json:"paused"`
	ColdStart      bool     `json:"coldStart"`
	CircuitOpen    bool     `json:"circuitOpen"`
	State          string   `json:"state"`
}

// handleRedisState implements GET /maintenance/redis-state/{id}: a raw
// dump of every Redis-resident field spec §3 defines, for operators
// debugging a stuck campaign without shelling into redis-cli directly.
func (s *Server) handleRedisState(w http.ResponseWriter, r *http.Request) {
	id := campaignID(r)
	ctx := r.Context()

	limit, err := s.store.Limit(ctx, id)
	if err != nil {
		s.writeMaintenanceErr(w, id, "read limit", err)
		return
	}
	progress, err := s.store.Progress(ctx, id)
	if err != nil {
		s.writeMaintenanceErr(w, id, "read progress", err)
		return
	}
	members, err := s.store.Members(ctx, id)
	if err != nil {
		s.writeMaintenanceErr(w, id, "read members", err)
		return
	}
	ledgerCount, err := s.store.ReservedLedgerCount(ctx, id)
	if err != nil {
		s.writeMaintenanceErr(w, id, "read ledger count", err)
		return
	}
	waitlistHigh, err := s.store.WaitlistSnapshot(ctx, id, leasestore.High)
	if err != nil {
		s.writeMaintenanceErr(w, id, "read high waitlist", err)
		return
	}
	waitlistNormal, err := s.store.WaitlistSnapshot(ctx, id, leasestore.Normal)
	if err != nil {
		s.writeMaintenanceErr(w, id, "read normal waitlist", err)
		return
	}
	paused, err := s.store.Paused(ctx, id)
	if err != nil {
		s.writeMaintenanceErr(w, id, "read paused flag", err)
		return
	}
	coldStart, err := s.store.ColdStart(ctx, id)
	if err != nil {
		s.writeMaintenanceErr(w, id, "read cold-start flag", err)
		return
	}
	circuitOpen, err := s.store.CircuitOpen(ctx, id)
	if err != nil {
		s.writeMaintenanceErr(w, id, "read circuit breaker", err)
		return
	}
	state, err := s.store.State(ctx, id)
	if err != nil {
		s.writeMaintenanceErr(w, id, "read state", err)
		return
	}

	writeOK(w, http.StatusOK, redisStateResponse{
		Limit:          limit,
		Leases:         members,
		Reserved:       progress.Reserved,
		ReservedLedger: ledgerCount,
		WaitlistHigh:   waitlistHigh,
		WaitlistNormal: waitlistNormal,
		Paused:         paused,
		ColdStart:      coldStart,
		CircuitOpen:    circuitOpen,
		State:          state,
	})
}

// handleCleanupSlots implements POST /maintenance/cleanup-slots/{id}
// (spec §6 "invoke janitor on demand").
func (s *Server) handleCleanupSlots(w http.ResponseWriter, r *http.Request) {
	id := campaignID(r)
	if err := s.janitor.SweepNow(r.Context(), id); err != nil {
		s.writeMaintenanceErr(w, id, "sweep", err)
		return
	}
	writeOK(w, http.StatusOK, map[string]string{"id": id, "status": "swept"})
}

func (s *Server) writeMaintenanceErr(w http.ResponseWriter, id, step string, err error) {
	s.log.WithError(err).WithField("campaign_id", id).Warn("maintenance " + step + " failed")
	writeErr(w, http.StatusInternalServerError, codeInternal, "maintenance "+step+" failed")
}
