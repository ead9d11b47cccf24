package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/dialfleet/dispatch-core/campaign"
	"github.com/dialfleet/dispatch-core/durable"
	"github.com/dialfleet/dispatch-core/janitor"
	"github.com/dialfleet/dispatch-core/leasestore"
)

// ContactAdder is the narrow bulk-insert surface httpapi needs from the
// durable store; implemented by *durable.ContactStore.
type ContactAdder interface {
	AddContacts(ctx context.Context, contacts []durable.NewContact) error
}

// Server wires the six Operator API endpoints of spec §6 onto a
// gorilla/mux router. It holds no state of its own beyond the
// collaborators every handler needs.
type Server struct {
	lifecycle *campaign.Machine
	repo      campaign.Repository
	store     leasestore.Store
	janitor   *janitor.Janitor
	contacts  ContactAdder
	cfg       Config
	log       *logrus.Entry
}

// Config carries the TTLs handlers need but that the spec treats as
// process-wide configuration (spec §6 "Configuration"), rather than
// per-request input.
type Config struct {
	ColdStartTTLSec    int64
	DialIdempotencyTTL int64
}

func NewServer(lifecycle *campaign.Machine, repo campaign.Repository, store leasestore.Store, j *janitor.Janitor, contacts ContactAdder, cfg Config, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		lifecycle: lifecycle,
		repo:      repo,
		store:     store,
		janitor:   j,
		contacts:  contacts,
		cfg:       cfg,
		log:       log.WithField("component", "httpapi"),
	}
}

// Router builds the mux.Router exposing every endpoint named in spec
// §6. It is returned rather than served directly so callers (cmd/
// entrypoints, tests) control the *http.Server lifecycle themselves.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/campaigns/{id}/start", s.handleStart).Methods(http.MethodPost)
	r.HandleFunc("/campaigns/{id}/pause", s.handlePause).Methods(http.MethodPost)
	r.HandleFunc("/campaigns/{id}/resume", s.handleResume).Methods(http.MethodPost)
	r.HandleFunc("/campaigns/{id}/cancel", s.handleCancel).Methods(http.MethodPost)
	r.HandleFunc("/campaigns/{id}/contacts", s.handleAddContacts).Methods(http.MethodPost)
	r.HandleFunc("/campaigns/{id}/progress", s.handleProgress).Methods(http.MethodGet)

	r.HandleFunc("/maintenance/redis-state/{id}", s.handleRedisState).Methods(http.MethodGet)
	r.HandleFunc("/maintenance/cleanup-slots/{id}", s.handleCleanupSlots).Methods(http.MethodPost)

	return r
}
