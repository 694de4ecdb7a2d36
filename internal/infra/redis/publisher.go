package redis

import (
	"context"
	"fmt"

	"github.com/vietddude/pricewatch/internal/infra/storage"
)

// DefaultAlertChannel is the channel prefix alerts are published under.
const DefaultAlertChannel = "pricewatch:alerts"

// Publisher publishes classified reports on a per-feed pub/sub channel.
type Publisher struct {
	client *Client
	prefix string
}

// NewPublisher creates a publisher. Channels are named "<prefix>:<feed>".
func NewPublisher(client *Client, prefix string) *Publisher {
	return &Publisher{client: client, prefix: prefix}
}

// Name identifies the sink in logs and metrics.
func (p *Publisher) Name() string {
	return "redis"
}

// Send publishes rec as JSON.
func (p *Publisher) Send(ctx context.Context, rec *storage.ReportRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := p.client.rdb.Publish(ctx, alertsChannel(p.prefix, rec.Feed), data).Err(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}
