// Package redis publishes badge unlock events on a Redis pub/sub channel so
// other processes (a push gateway, a companion app) can celebrate them.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/habitforge/habitforge/internal/domain"
)

// DefaultChannel is used when Config.Channel is empty.
const DefaultChannel = "habitforge:badges"

// Config holds Redis connection configuration.
type Config struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Channel  string `toml:"channel"`
}

// Publisher implements domain.BadgeSink over Redis PUBLISH.
type Publisher struct {
	client  goredis.UniversalClient
	channel string
}

// NewPublisher connects lazily; the first publish dials.
func NewPublisher(cfg Config) *Publisher {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		MaxRetries:   1,
	})
	return NewPublisherWithClient(client, cfg.Channel)
}

// NewPublisherWithClient wraps an existing client.
func NewPublisherWithClient(client goredis.UniversalClient, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel}
}

// Channel returns the pub/sub channel name.
func (p *Publisher) Channel() string { return p.channel }

// PublishBadge sends one event as JSON.
func (p *Publisher) PublishBadge(ctx context.Context, ev domain.BadgeUnlocked) error {
	payload, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", p.channel, err)
	}
	return nil
}

// Ping checks connectivity.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// EncodeEvent is the wire format of a published event.
func EncodeEvent(ev domain.BadgeUnlocked) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode badge event: %w", err)
	}
	return b, nil
}

// DecodeEvent parses a message received on the channel.
func DecodeEvent(payload []byte) (domain.BadgeUnlocked, error) {
	var ev domain.BadgeUnlocked
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, fmt.Errorf("decode badge event: %w", err)
	}
	return ev, nil
}
