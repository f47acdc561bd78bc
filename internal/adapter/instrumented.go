package adapter

import (
	"context"
	"time"

	"unifiedai/internal/metrics"
	"unifiedai/pkg/aitypes"
)

// instrumentedClient records every Send in a metrics collector.
type instrumentedClient struct {
	aitypes.CompatibleClient
	provider  string
	collector *metrics.Collector
}

// Instrument wraps client so that each Send is counted and timed. A nil collector
// returns client unchanged.
func Instrument(client aitypes.CompatibleClient, collector *metrics.Collector, provider string) aitypes.CompatibleClient {
	if collector == nil || client == nil {
		return client
	}
	return &instrumentedClient{CompatibleClient: client, provider: provider, collector: collector}
}

// Send implements aitypes.CompatibleClient.
func (c *instrumentedClient) Send(ctx context.Context, history []aitypes.ChatMessage) (string, error) {
	start := time.Now()
	reply, err := c.CompatibleClient.Send(ctx, history)
	c.collector.RecordRequest(c.provider, c.APIType(), err, time.Since(start))
	return reply, err
}
