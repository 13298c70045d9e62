package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStreamPublisherRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	pub, err := NewRedisStreamPublisher(client, RedisStreamConfig{Stream: "bookex:events"})
	require.NoError(t, err)

	ev := New(SwapAccepted, "swap-1", "owner-1", map[string]string{"transaction_id": "tx-1"})
	require.NoError(t, pub.Publish(ctx, ev))

	msgs, err := client.XRange(ctx, "bookex:events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	got, err := DecodeStreamEvent(msgs[0])
	require.NoError(t, err)
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, SwapAccepted, got.Type)
	assert.Equal(t, "swap-1", got.Subject)
	assert.Equal(t, "owner-1", got.ActorID)
	assert.Equal(t, "tx-1", got.Data["transaction_id"])
	assert.True(t, ev.OccurredAt.Equal(got.OccurredAt))
}

func TestNewRedisStreamPublisherRequiresStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	_, err := NewRedisStreamPublisher(client, RedisStreamConfig{Stream: " "})
	assert.Error(t, err)
	_, err = NewRedisStreamPublisher(nil, RedisStreamConfig{Stream: "s"})
	assert.Error(t, err)
}

func TestDecodeStreamEventRejectsMissingType(t *testing.T) {
	_, err := DecodeStreamEvent(redis.XMessage{ID: "1-0", Values: map[string]any{"event_id": "x"}})
	assert.Error(t, err)
}

func TestAMQPMessage(t *testing.T) {
	ev := New(PaymentVerified, "pay-1", "seller-1", nil)
	msg, err := amqpMessage(ev)
	require.NoError(t, err)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, PaymentVerified, msg.Type)
	assert.Equal(t, ev.ID, msg.MessageId)

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "pay-1", decoded.Subject)
}

type recordingPublisher struct {
	events []Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingPublisher) Close() error { return r.err }

func TestFanoutPublishesToAll(t *testing.T) {
	boom := errors.New("boom")
	ok := &recordingPublisher{}
	failing := &recordingPublisher{err: boom}
	f := Fanout{ok, failing, NopPublisher{}}

	err := f.Publish(context.Background(), New(BookDeleted, "book-1", "u-1", nil))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, ok.events, 1)
	assert.Len(t, failing.events, 1)
	assert.ErrorIs(t, f.Close(), boom)
}
