// Package signalbus gives the abstract "voice pipeline signal bus" of
// spec §6 a concrete wire encoding: one Redis Pub/Sub channel per call
// correlation id, carrying frames built the same way the teacher's
// `tcp` package frames a connection-oriented message (fixed header +
// pluggable parser/compressor/crypter), just published over
// `rediscore.PubSub` instead of a raw socket. The spec says media
// bytes are out of scope — only the {answer, media-active, hangup}
// event stream — but that stream still needs a shape, which is what
// this package supplies.
package signalbus

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/dialfleet/dispatch-core/dispatcher"
	"github.com/dialfleet/dispatch-core/rediscore"
	"github.com/dialfleet/dispatch-core/tcp"
	"github.com/dialfleet/dispatch-core/xcrypt"
)

// format is the 3-byte tag every signalbus frame carries, checked by
// tcp.NewMessageFromByte against cross-talk from unrelated Pub/Sub
// traffic on a shared Redis instance.
const format = "SIG"

// eventKind is the only tcp.TcpMessage.Kind value this package emits;
// the actual event taxonomy (answer/media-active/hangup) lives in the
// JSON body, not the frame header.
const eventKind int8 = 1

// noopCrypter is the zero-value crypter.Crypter used when a Bus is
// built without a key: frames still go through the same pack/unpack
// pipeline, just without encryption. Voice-pipeline signal events
// carry no PII (call/contact ids are opaque), so this is an
// acceptable default for local/dev deployments; production
// deployments should pass a real xcrypt.Aes.
type noopCrypter struct{}

func (noopCrypter) EnCrypt(plainText []byte) ([]byte, error) { return plainText, nil }
func (noopCrypter) DeCrypt(cipherText []byte) ([]byte, error) { return cipherText, nil }

// wireEvent is the JSON body of a signalbus frame. CorrelationID is
// not included: the Pub/Sub channel name already scopes it, and the
// Subscribe side fills it in from the subscription context.
type wireEvent struct {
	Kind   dispatcher.SignalKind `json:"kind"`
	Reason string                `json:"reason"`
	At     int64                 `json:"at"` // unix nanos
}

// Bus implements dispatcher.SignalBus over Redis Pub/Sub.
type Bus struct {
	pubsub *rediscore.PubSub
	crypt  crypter.Crypter
	log    *logrus.Entry
}

// NewBus builds a Bus over client. crypt may be nil, in which case
// frames are packed unencrypted (see noopCrypter).
func NewBus(client *rediscore.Client, crypt crypter.Crypter, log *logrus.Entry) *Bus {
	if crypt == nil {
		crypt = noopCrypter{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Bus{
		pubsub: rediscore.NewPubSub(client),
		crypt:  crypt,
		log:    log.WithField("component", "signalbus"),
	}
}

func channelFor(correlationID string) string {
	return "call:{" + correlationID + "}:signal"
}

// Publish packs a SignalEvent into a frame and publishes it on
// correlationID's channel. Called by whatever sits at the edge of the
// voice pipeline (an onWebhook handler, a SIP event adapter, ...) —
// out of scope for this module, but this is the method it would call.
func (b *Bus) Publish(ctx context.Context, correlationID string, kind dispatcher.SignalKind, reason string, atUnixNano int64) error {
	msg := tcp.NewMessage(format, eventKind, tcp.JSON, tcp.None, b.crypt)
	if err := msg.PackWriteBody(wireEvent{Kind: kind, Reason: reason, At: atUnixNano}); err != nil {
		return errors.Errorf("pack signal event for %s: %w", correlationID, err)
	}
	if err := b.pubsub.Publish(ctx, channelFor(correlationID), msg.ToByte()); err != nil {
		return errors.Errorf("publish signal event for %s: %w", correlationID, err)
	}
	return nil
}

// Subscribe satisfies dispatcher.SignalBus: it returns a channel of
// decoded SignalEvents for correlationID, closing it once ctx is
// cancelled or the underlying Pub/Sub subscription ends. Frames that
// fail to decode are logged and dropped rather than closing the
// stream, since one malformed frame should not blind the dispatcher
// to the rest of the call's events.
func (b *Bus) Subscribe(ctx context.Context, correlationID string) (<-chan dispatcher.SignalEvent, error) {
	raw, err := b.pubsub.Subscribe(ctx, channelFor(correlationID), nil)
	if err != nil {
		return nil, errors.Errorf("subscribe signal channel for %s: %w", correlationID, err)
	}

	out := make(chan dispatcher.SignalEvent, 1)
	go func() {
		defer close(out)
		for payload := range raw {
			event, err := b.decode(correlationID, payload)
			if err != nil {
				b.log.WithError(err).WithField("correlation_id", correlationID).Warn("dropping undecodable signal frame")
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) decode(correlationID string, payload []byte) (dispatcher.SignalEvent, error) {
	msg, err := tcp.NewMessageFromByte(format, payload, b.crypt)
	if err != nil {
		return dispatcher.SignalEvent{}, err
	}

	var wire wireEvent
	if err := msg.UnpackReadBody(&wire); err != nil {
		return dispatcher.SignalEvent{}, err
	}

	return dispatcher.SignalEvent{
		CorrelationID: correlationID,
		Kind:          wire.Kind,
		Reason:        wire.Reason,
		At:            time.Unix(0, wire.At),
	}, nil
}
