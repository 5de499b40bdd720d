package tts

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"
)

// DefaultTimeout bounds a session from connection open to the final frame.
const DefaultTimeout = 10 * time.Second

// XfyunClient implements the Client interface using xfyun's websocket API.
type XfyunClient struct {
	creds    Credentials
	endpoint string
	business Business
	timeout  time.Duration
	dialer   Dialer
	now      func() time.Time
	logger   *log.Logger
}

// XfyunConfig holds configuration for the xfyun client.
type XfyunConfig struct {
	Credentials Credentials
	Endpoint    string        // defaults to DefaultEndpoint
	Business    *Business     // defaults to DefaultBusiness()
	Timeout     time.Duration // defaults to DefaultTimeout
	Dialer      Dialer        // defaults to gorilla/websocket's DefaultDialer
	Now         func() time.Time
	Logger      *log.Logger
}

// NewXfyunClient creates a client bound to one set of credentials.
func NewXfyunClient(cfg XfyunConfig) *XfyunClient {
	c := &XfyunClient{
		creds:    cfg.Credentials,
		endpoint: cfg.Endpoint,
		business: DefaultBusiness(),
		timeout:  cfg.Timeout,
		dialer:   cfg.Dialer,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if cfg.Business != nil {
		c.business = *cfg.Business
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.dialer == nil {
		c.dialer = NewWebsocketDialer(nil)
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard, "", 0)
	}
	return c
}

// Synthesize signs a connection URL, runs one streaming session and returns
// the concatenated audio in arrival order.
func (c *XfyunClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	request, err := buildRequest(c.creds.AppID, c.business, text)
	if err != nil {
		return nil, err
	}

	target, err := Sign(c.endpoint, c.creds, c.now())
	if err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}

	conn, err := c.dialer.Dial(ctx, target.URL)
	if err != nil {
		return nil, err
	}
	c.logger.Printf("xfyun: connected to %s (voice=%s)", target.Host, c.business.Vcn)

	s := &session{conn: conn, timeout: c.timeout}
	audio, err := s.run(ctx, request)
	if err != nil {
		return nil, err
	}
	c.logger.Printf("xfyun: received %d bytes of audio", len(audio))
	return audio, nil
}
