// Package dispatcher implements the Dispatcher (spec §4.2 — C2): the
// long-running per-campaign loop that pops contacts through the
// Admission Controller, places calls via the Carrier Client, and walks
// each dispatch attempt through its lease lifecycle.
package dispatcher

import (
	"context"
	"time"

	"github.com/dialfleet/dispatch-core/carrier"
	"github.com/dialfleet/dispatch-core/retry"
)

// AttemptState is one state of the per-attempt machine spec §4.2 names:
// Idle -> Promoting -> Dialing -> Ringing -> Active -> Ending -> Released.
type AttemptState int

const (
	StateIdle AttemptState = iota
	StatePromoting
	StateDialing
	StateRinging
	StateActive
	StateEnding
	StateReleased
)

func (s AttemptState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePromoting:
		return "promoting"
	case StateDialing:
		return "dialing"
	case StateRinging:
		return "ringing"
	case StateActive:
		return "active"
	case StateEnding:
		return "ending"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// SignalEvent is a normalized voice-pipeline event (spec §6 "answer,
// media-active, hangup(reason)"). The dispatcher depends only on this
// narrow shape so it can be tested without the concrete signalbus
// transport.
type SignalEvent struct {
	CorrelationID string
	Kind          SignalKind
	Reason        string
	At            time.Time
}

type SignalKind string

const (
	SignalAnswer      SignalKind = "answer"
	SignalMediaActive SignalKind = "media-active"
	SignalHangup      SignalKind = "hangup"
)

// SignalBus is the subset of the voice pipeline signal bus the
// dispatcher needs: a per-attempt event stream keyed by correlation id
// (the callId).
type SignalBus interface {
	Subscribe(ctx context.Context, correlationID string) (<-chan SignalEvent, error)
}

// ContactInfo is the durable-contact shape a dispatch attempt needs
// before it can dial: the decrypted E.164 number (carrier.DialSpec.To
// is never a contact id) and how many attempts have already been made
// against this contact (spec §3 Contact.phoneNumber/retryCount).
type ContactInfo struct {
	PhoneNumber string
	RetryCount  int
}

// ContactLookup resolves a contact id to the durable fields a dispatch
// attempt needs (spec §4.2 step 5). Implemented by durable.ContactStore;
// kept as a narrow interface here so dispatcher does not import durable.
type ContactLookup interface {
	FindContact(ctx context.Context, campaignID, contactID string) (ContactInfo, error)
}

// CallLogRecorder persists terminal outcomes to the durable store
// (spec §6 durable store contract "update on terminal outcome").
type CallLogRecorder interface {
	RecordCallLog(ctx context.Context, entry CallLogEntry) error
}

// CallLogEntry is what gets written when a dispatch attempt ends.
type CallLogEntry struct {
	CampaignID    string
	ContactID     string
	CallID        string
	CarrierID     string
	FinalStatus   carrier.Status
	FailureKind   retry.FailureKind
	StartedAt     time.Time
	EndedAt       time.Time
}
