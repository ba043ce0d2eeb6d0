package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-lifecycle/internal/config"
	"github.com/stemsi/exstem-lifecycle/internal/model"
)

// EventBus fans exam lifecycle events out through Redis pub/sub so every
// replica can push them to its connected clients.
type EventBus struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewEventBus creates a new EventBus.
func NewEventBus(rdb *redis.Client, log zerolog.Logger) *EventBus {
	return &EventBus{rdb: rdb, log: log.With().Str("component", "event_bus").Logger()}
}

// Publish sends an event on the exam's channel.
func (b *EventBus) Publish(ctx context.Context, event model.ExamEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	channel := config.CacheKey.ExamEventsChannel(event.ExamID.String())
	return b.rdb.Publish(ctx, channel, payload).Err()
}

// Subscription is a live stream of one exam's events.
type Subscription struct {
	Events <-chan model.ExamEvent
	pubsub *redis.PubSub
}

// Close stops the subscription; Events is closed afterwards.
func (s *Subscription) Close() error {
	return s.pubsub.Close()
}

// Subscribe listens on the exam's channel until ctx ends or Close is called.
// It returns once Redis has confirmed the subscription.
func (b *EventBus) Subscribe(ctx context.Context, examID uuid.UUID) (*Subscription, error) {
	pubsub := b.rdb.Subscribe(ctx, config.CacheKey.ExamEventsChannel(examID.String()))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe exam events: %w", err)
	}

	out := make(chan model.ExamEvent, 16)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var event model.ExamEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.log.Warn().Err(err).Str("channel", msg.Channel).Msg("Dropping malformed event")
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return &Subscription{Events: out, pubsub: pubsub}, nil
}
