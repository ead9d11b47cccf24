// Package carrier models the external Carrier Client contract (spec
// §6/§9): a polymorphic capability set {dial, hangup, getStatus,
// onWebhook} that concrete carrier providers implement as tagged
// variants, plus an HTTP adapter and a campaign-level failure-density
// circuit breaker feeding the Lease Store's shared `cb` marker.
package carrier

import (
	"context"
	"time"
)

// DialSpec is the opaque request the Dispatcher hands to a provider.
type DialSpec struct {
	From          string
	To            string // E.164
	CallerID      string
	AppRef        string
	CorrelationID string // the callId, threaded through webhooks and signal-bus events
}

// Status is a carrier-reported call status.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusNoAnswer   Status = "no-answer"
	StatusBusy       Status = "busy"
	StatusCanceled   Status = "canceled"
)

// DialResult is the success shape of Dial (spec §6 "dial(dialSpec) ->
// {carrierId, initialStatus}").
type DialResult struct {
	CarrierID     string
	InitialStatus Status
}

// WebhookEvent is a normalized carrier webhook callback.
type WebhookEvent struct {
	CorrelationID string
	Status        Status
	ReceivedAt    time.Time
}

// Client is the capability set spec §9 asks providers to implement as
// tagged variants rather than through deep inheritance.
type Client interface {
	Dial(ctx context.Context, spec DialSpec) (DialResult, error)
	Hangup(ctx context.Context, correlationID string) error
	GetStatus(ctx context.Context, correlationID string) (Status, error)
}

// WebhookTranslator turns a provider-specific webhook payload into a
// normalized WebhookEvent; HTTP adapters register one per provider.
type WebhookTranslator interface {
	Translate(payload []byte) (WebhookEvent, error)
}
