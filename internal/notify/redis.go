package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"swapledger/internal/indexer"
)

// DefaultChannel is the Pub/Sub channel reset notifications are sent on.
const DefaultChannel = "swapledger:reset"

// Publisher sends reset notifications to Redis Pub/Sub so the pending-state
// consumer can rebuild its view from the mempool tier.
type Publisher struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewPublisher connects to addr and checks the connection.
func NewPublisher(ctx context.Context, addr, channel string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := newPublisher(addr, channel, logger)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.client.Ping(pingCtx).Err(); err != nil {
		p.client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	logger.Info("connected to redis", zap.String("addr", addr), zap.String("channel", p.channel))
	return p, nil
}

func newPublisher(addr, channel string, logger *zap.Logger) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     4,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return &Publisher{client: rdb, channel: channel, logger: logger}
}

func (p *Publisher) Close() error {
	return p.client.Close()
}

// NotifyReset publishes ev. Delivery is best effort; errors are logged.
func (p *Publisher) NotifyReset(ctx context.Context, ev indexer.ResetEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("encode reset notification", zap.Error(err))
		return
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Warn("publish reset notification",
			zap.String("channel", p.channel),
			zap.Error(err))
	}
}
