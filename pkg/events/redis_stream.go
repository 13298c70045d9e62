package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStreamConfig configures a RedisStreamPublisher.
type RedisStreamConfig struct {
	Stream string
	MaxLen int64
}

// RedisStreamPublisher appends events to a capped Redis stream.
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamPublisher builds a publisher on an existing client. The
// client is owned by the caller.
func NewRedisStreamPublisher(client *redis.Client, cfg RedisStreamConfig) (*RedisStreamPublisher, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("event stream required")
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: maxLen}, nil
}

// Publish XADDs the event, trimming the stream to roughly maxLen entries.
func (p *RedisStreamPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("encode event data: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"event_id":    ev.ID,
			"type":        ev.Type,
			"subject":     ev.Subject,
			"actor_id":    ev.ActorID,
			"data":        string(data),
			"occurred_at": ev.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// Close is a no-op; the client belongs to the caller.
func (p *RedisStreamPublisher) Close() error { return nil }

// DecodeStreamEvent rebuilds an Event from a stream entry.
func DecodeStreamEvent(msg redis.XMessage) (Event, error) {
	field := func(name string) string {
		v, _ := msg.Values[name].(string)
		return v
	}
	ev := Event{
		ID:      field("event_id"),
		Type:    field("type"),
		Subject: field("subject"),
		ActorID: field("actor_id"),
	}
	if ev.ID == "" || ev.Type == "" {
		return Event{}, fmt.Errorf("stream entry %s: missing event id or type", msg.ID)
	}
	if raw := field("data"); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &ev.Data); err != nil {
			return Event{}, fmt.Errorf("decode event data: %w", err)
		}
	}
	if raw := field("occurred_at"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Event{}, fmt.Errorf("decode occurred_at: %w", err)
		}
		ev.OccurredAt = t
	}
	return ev, nil
}
