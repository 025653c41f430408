package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NoteUpdatedChannel carries one message per accepted and persisted note save.
const NoteUpdatedChannel = "notes:updated"

// NoteSaved is published after a note update has been persisted.
type NoteSaved struct {
	DocumentID string    `json:"documentId"`
	UserID     string    `json:"userId"`
	UpdatedBy  string    `json:"updatedBy"`
	Title      *string   `json:"title,omitempty"`
	SavedAt    time.Time `json:"savedAt"`
}

type Publisher interface {
	PublishNoteSaved(ctx context.Context, event NoteSaved) error
}

// NopPublisher drops every event. Used when Redis is not configured.
type NopPublisher struct{}

func (NopPublisher) PublishNoteSaved(context.Context, NoteSaved) error { return nil }

type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(redisAddr string) *RedisPublisher {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	return NewRedisPublisherWithClient(rdb)
}

func NewRedisPublisherWithClient(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: NoteUpdatedChannel}
}

// Ping checks that Redis is reachable.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

func (p *RedisPublisher) PublishNoteSaved(ctx context.Context, event NoteSaved) error {
	if event.SavedAt.IsZero() {
		event.SavedAt = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal note saved event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish note saved event: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
