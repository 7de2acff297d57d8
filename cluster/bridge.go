// Package cluster lets several relay instances behave as one registry by
// forwarding dispatches over a Redis pub/sub channel. Delivery stays
// best-effort: a message lost in transit is simply not delivered.
package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"locshare-relay/domain"
	"locshare-relay/protocol"
)

const publishTimeout = 2 * time.Second

type message struct {
	Origin   string          `json:"origin"`
	Dispatch domain.Dispatch `json:"dispatch"`
}

type Bridge struct {
	rdb      *redis.Client
	channel  string
	instance string
	registry domain.Registry
}

func New(rdb *redis.Client, channel string, r domain.Registry) *Bridge {
	return &Bridge{
		rdb:      rdb,
		channel:  channel,
		instance: uuid.NewString(),
		registry: r,
	}
}

// Connect dials Redis at url and checks it is reachable.
func Connect(ctx context.Context, url, channel string, r domain.Registry) (*Bridge, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(rdb, channel, r), nil
}

func (b *Bridge) Instance() string { return b.instance }

func (b *Bridge) Publish(ctx context.Context, d domain.Dispatch) error {
	data, err := b.encode(d)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := b.rdb.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", b.channel, err)
	}
	return nil
}

// Run consumes the channel until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.channel, err)
	}
	slog.Info("cluster bridge subscribed", "channel", b.channel, "instance", b.instance)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("cluster subscription closed")
			}
			b.apply([]byte(msg.Payload))
		}
	}
}

func (b *Bridge) Close() error {
	return b.rdb.Close()
}

func (b *Bridge) encode(d domain.Dispatch) ([]byte, error) {
	data, err := json.Marshal(message{Origin: b.instance, Dispatch: d})
	if err != nil {
		return nil, fmt.Errorf("encode dispatch: %w", err)
	}
	return data, nil
}

// apply delivers a dispatch published by another instance to local connections.
func (b *Bridge) apply(data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("invalid cluster message", "error", err)
		return
	}
	if msg.Origin == b.instance {
		return
	}
	n := protocol.Deliver(msg.Dispatch, b.registry)
	slog.Debug("cluster dispatch applied", "origin", msg.Origin, "kind", msg.Dispatch.Envelope.Kind, "recipients", n)
}
