package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"

	"github.com/dialfleet/dispatch-core/campaign"
	"github.com/dialfleet/dispatch-core/durable"
)

func campaignID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

// handleStart implements POST /campaigns/{id}/start (spec §6): "activate;
// returns 409 if not scheduled|draft".
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id := campaignID(r)
	err := s.lifecycle.Start(r.Context(), id, s.cfg.ColdStartTTLSec, s.cfg.DialIdempotencyTTL)
	if s.writeLifecycleErr(w, id, err) {
		return
	}
	writeOK(w, http.StatusOK, map[string]string{"id": id, "status": string(campaign.Active)})
}

// handlePause implements POST /campaigns/{id}/pause.
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	id := campaignID(r)
	err := s.lifecycle.Pause(r.Context(), id)
	if s.writeLifecycleErr(w, id, err) {
		return
	}
	writeOK(w, http.StatusOK, map[string]string{"id": id, "status": string(campaign.Paused)})
}

// handleResume implements POST /campaigns/{id}/resume.
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	id := campaignID(r)
	err := s.lifecycle.Resume(r.Context(), id)
	if s.writeLifecycleErr(w, id, err) {
		return
	}
	writeOK(w, http.StatusOK, map[string]string{"id": id, "status": string(campaign.Active)})
}

// handleCancel implements POST /campaigns/{id}/cancel.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := campaignID(r)
	err := s.lifecycle.Cancel(r.Context(), id)
	if s.writeLifecycleErr(w, id, err) {
		return
	}
	writeOK(w, http.StatusOK, map[string]string{"id": id, "status": string(campaign.Cancelled)})
}

// writeLifecycleErr maps a campaign.Machine transition error onto the
// envelope, returning true if it wrote a response (caller should
// return immediately).
func (s *Server) writeLifecycleErr(w http.ResponseWriter, id string, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, campaign.ErrInvalidTransition) {
		writeErr(w, http.StatusConflict, codeInvalidState, err.Error())
		return true
	}
	s.log.WithError(err).WithField("campaign_id", id).Warn("lifecycle operation failed")
	writeErr(w, http.StatusInternalServerError, codeInternal, "lifecycle operation failed")
	return true
}

// handleAddContacts implements POST /campaigns/{id}/contacts (spec §6
// "bulk add; E.164 validated").
func (s *Server) handleAddContacts(w http.ResponseWriter, r *http.Request) {
	id := campaignID(r)

	var req bulkContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, codeInvalidRequest, "malformed request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeErr(w, http.StatusBadRequest, codeInvalidRequest, formatValidationErrors(err))
		return
	}

	rows := make([]durable.NewContact, 0, len(req.Contacts))
	for _, c := range req.Contacts {
		rows = append(rows, durable.NewContact{
			ID:          c.ID,
			CampaignID:  id,
			PhoneNumber: c.PhoneNumber,
			Priority:    c.priority(),
		})
	}

	if err := s.contacts.AddContacts(r.Context(), rows); err != nil {
		s.log.WithError(err).WithField("campaign_id", id).Warn("add contacts failed")
		writeErr(w, http.StatusInternalServerError, codeInternal, "failed to add contacts")
		return
	}
	writeOK(w, http.StatusCreated, map[string]int{"added": len(rows)})
}

// progressResponse is the shape GET /campaigns/{id}/progress returns
// (spec §6): "{inflight, reserved, queuedHigh, queuedNormal, completed,
// failed}".
type progressResponse struct {
	Inflight     int64 `json:"inflight"`
	Reserved     int64 `json:"reserved"`
	QueuedHigh   int64 `json:"queuedHigh"`
	QueuedNormal int64 `json:"queuedNormal"`
	Completed    int64 `json:"completed"`
	Failed       int64 `json:"failed"`
}

// handleProgress implements GET /campaigns/{id}/progress.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := campaignID(r)
	ctx := r.Context()

	p, err := s.store.Progress(ctx, id)
	if err != nil {
		s.log.WithError(err).WithField("campaign_id", id).Warn("read progress failed")
		writeErr(w, http.StatusInternalServerError, codeInternal, "failed to read progress")
		return
	}

	completed, err := s.repo.ListContactsByStatus(ctx, id, campaign.ContactCompleted, campaign.ContactVoicemail, campaign.ContactSkipped)
	if err != nil {
		s.log.WithError(err).WithField("campaign_id", id).Warn("count completed failed")
		writeErr(w, http.StatusInternalServerError, codeInternal, "failed to read progress")
		return
	}
	failed, err := s.repo.ListContactsByStatus(ctx, id, campaign.ContactFailed)
	if err != nil {
		s.log.WithError(err).WithField("campaign_id", id).Warn("count failed failed")
		writeErr(w, http.StatusInternalServerError, codeInternal, "failed to read progress")
		return
	}

	writeOK(w, http.StatusOK, progressResponse{
		Inflight:     p.Inflight,
		Reserved:     p.Reserved,
		QueuedHigh:   p.QueuedHigh,
		QueuedNormal: p.QueuedNormal,
		Completed:    int64(len(completed)),
		Failed:       int64(len(failed)),
	})
}
