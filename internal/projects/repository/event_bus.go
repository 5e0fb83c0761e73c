package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bizconsole/console-backend/internal/logging"
	"github.com/bizconsole/console-backend/internal/projects/domain"
)

const (
	eventChannelPrefix = "console:events:" // Pub/Sub channel for directory events: console:events:{owner_uid}
	subscriberBuffer   = 32
)

// EventBus carries incremental directory events between API instances over Redis Pub/Sub.
type EventBus struct {
	client *redis.Client
}

func NewEventBus(client *redis.Client) *EventBus {
	return &EventBus{client: client}
}

// Publish sends ev to every subscriber of its owner.
func (b *EventBus) Publish(ctx context.Context, ev domain.Event) error {
	if ev.OwnerUID == "" {
		return fmt.Errorf("%w: event owner required", domain.ErrInvalid)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel(ev.OwnerUID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe streams the owner's events until ctx is done or the returned
// cancel is called. The subscription is confirmed before Subscribe returns.
func (b *EventBus) Subscribe(ctx context.Context, ownerUID string) (<-chan domain.Event, func(), error) {
	ps := b.client.Subscribe(ctx, b.channel(ownerUID))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan domain.Event, subscriberBuffer)
	logger := logging.NewLogger(ctx).Named("event_bus")

	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev domain.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.LogWarnf("subscribe", "owner=%s dropping malformed event: %v", ownerUID, err)
					continue
				}
				ev.OwnerUID = ownerUID
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, cancel, nil
}

func (b *EventBus) channel(ownerUID string) string {
	return fmt.Sprintf("%s%s", eventChannelPrefix, ownerUID)
}
