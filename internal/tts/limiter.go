package tts

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type limitedClient struct {
	limiter *rate.Limiter
	client  Client
}

// NewLimitedClient makes c wait for a token from l before each synthesis.
// A nil limiter returns c unchanged.
func NewLimitedClient(l *rate.Limiter, c Client) Client {
	if l == nil {
		return c
	}
	return &limitedClient{
		limiter: l,
		client:  c,
	}
}

func (c *limitedClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return c.client.Synthesize(ctx, text)
}
