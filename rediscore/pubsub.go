package rediscore

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// PubSub wraps Redis Pub/Sub for the "slot-available" wake-up channel
// (spec §4.1): releasing a lease publishes on campaign:{id}:slot-available
// so idle promoters wake immediately instead of waiting out their poll
// backoff. Adapted from valley-pkg's PubSubService.
type PubSub struct {
	client *Client
}

func NewPubSub(client *Client) *PubSub {
	return &PubSub{client: client}
}

// Publish marshals event as JSON and publishes it on channel.
func (p *PubSub) Publish(ctx context.Context, channel string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Errorf("marshal pubsub event: %w", err)
	}
	return p.client.raw.Publish(ctx, channel, payload).Err()
}

// Subscribe blocks delivering raw message payloads on the returned channel
// until ctx is cancelled. ready is closed once the subscription is
// confirmed, so callers can avoid a race between "start waiting" and
// "first publish".
func (p *PubSub) Subscribe(ctx context.Context, channel string, ready chan<- struct{}) (<-chan []byte, error) {
	sub := p.client.raw.Subscribe(ctx, channel)

	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, errors.Errorf("subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 1)
	go func() {
		defer close(out)
		defer sub.Close()

		if ready != nil {
			close(ready)
		}

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				logrus.WithField("channel", channel).Trace("pubsub message received")
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
