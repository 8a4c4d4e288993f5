package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_Topic(t *testing.T) {
	p := NewPublisher("localhost:6379", "", 0, "")
	defer p.Close()
	assert.Equal(t, "haggle:offer:1", p.Topic("offer:1"))

	custom := NewPublisher("localhost:6379", "", 0, "market:")
	defer custom.Close()
	assert.Equal(t, "market:item:2", custom.Topic("item:2"))
}

func TestPublisher_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	p := NewPublisherWithClient(client, "")
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := p.Publish(ctx, "offer:1", "offer.created", json.RawMessage(`{}`))
	assert.ErrorContains(t, err, "redis publish")
}

// Requires a running Redis; skipped otherwise.
func TestPublisher_Integration(t *testing.T) {
	p := NewPublisher("localhost:6379", "", 0, "test:")
	defer p.Close()
	ctx := context.Background()
	if err := p.Ping(ctx); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}

	sub := p.client.Subscribe(ctx, p.Topic("offer:42"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, p.Publish(ctx, "offer:42", "offer.accepted", json.RawMessage(`{"status":"AWAITING_COMPLETION"}`)))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
	assert.Equal(t, "offer:42", env.Channel)
	assert.Equal(t, "offer.accepted", env.Event)
	assert.JSONEq(t, `{"status":"AWAITING_COMPLETION"}`, string(env.Payload))
}
