package app

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lukasbauer/xftts/internal/httpapi"
	"github.com/lukasbauer/xftts/internal/metrics"
	"github.com/lukasbauer/xftts/internal/tts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

type App struct {
	cfg      Config
	logger   *log.Logger
	registry *prometheus.Registry
	limiter  *rate.Limiter // nil when unlimited
	dialer   tts.Dialer    // shared across requests
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	if cfg.TTSTimeout <= 0 {
		return nil, errors.New("TTS_TIMEOUT must be positive")
	}
	if u, err := url.Parse(cfg.XFEndpoint); err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid XF_ENDPOINT %q", cfg.XFEndpoint)
	}

	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.TTSRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.TTSRateLimit), cfg.TTSRateBurst)
	}

	// One dialer for all sessions; the handshake is bounded separately from the session timeout.
	dialer := tts.NewWebsocketDialer(&websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		NetDialContext:   (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		HandshakeTimeout: 5 * time.Second,
	})

	return &App{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		limiter:  limiter,
		dialer:   dialer,
	}, nil
}

// NewSynthesizer builds the client for one request's credentials.
func (a *App) NewSynthesizer(creds tts.Credentials) tts.Client {
	business := a.cfg.Business()
	client := tts.NewXfyunClient(tts.XfyunConfig{
		Credentials: creds,
		Endpoint:    a.cfg.XFEndpoint,
		Business:    &business,
		Timeout:     a.cfg.TTSTimeout,
		Dialer:      a.dialer,
		Logger:      a.logger,
	})
	return tts.NewLimitedClient(a.limiter, client)
}

func (a *App) Router() http.Handler {
	routerCfg := httpapi.RouterConfig{
		Credentials:    tts.CredentialsFromEnv,
		NewSynthesizer: a.NewSynthesizer,
		MetricsHandler: promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
	}
	return httpapi.NewRouter(routerCfg, a.logger)
}
