// Package redis fans negotiation events out to other server instances over Redis pub/sub.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/haggle-hub/haggle-hub/internal/domain/notification"
)

// DefaultPrefix namespaces the pub/sub channels.
const DefaultPrefix = "haggle:"

// Envelope is the wire form of a published event.
type Envelope struct {
	Channel   string          `json:"channel"`
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	Published time.Time       `json:"publishedAt"`
}

// Publisher implements notification.Publisher with Redis PUBLISH.
type Publisher struct {
	client *redis.Client
	prefix string
}

var _ notification.Publisher = (*Publisher)(nil)

// NewPublisher creates a publisher for the Redis server at addr.
func NewPublisher(addr, password string, db int, prefix string) *Publisher {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewPublisherWithClient(rdb, prefix)
}

// NewPublisherWithClient wraps an existing client.
func NewPublisherWithClient(client *redis.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Publisher{client: client, prefix: prefix}
}

// Topic is the Redis channel an event channel maps to.
func (p *Publisher) Topic(channel string) string {
	return p.prefix + channel
}

func (p *Publisher) Publish(ctx context.Context, channel, event string, payload json.RawMessage) error {
	body, err := json.Marshal(Envelope{
		Channel:   channel,
		Event:     event,
		Payload:   payload,
		Published: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := p.client.Publish(ctx, p.Topic(channel), body).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Ping checks the server is reachable.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
