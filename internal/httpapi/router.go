package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/lukasbauer/xftts/internal/tts"
)

type RouterConfig struct {
	// Credentials is called once per synthesis request. Defaults to tts.CredentialsFromEnv.
	Credentials func() tts.Credentials

	// NewSynthesizer builds the vendor client for one request's credentials.
	// Defaults to an xfyun client with default settings.
	NewSynthesizer func(tts.Credentials) tts.Client

	// MetricsHandler serves GET /metrics. Nil disables the route.
	MetricsHandler http.Handler
}

type Router struct {
	cfg    RouterConfig
	logger *log.Logger
	mux    *http.ServeMux
}

func NewRouter(cfg RouterConfig, logger *log.Logger) http.Handler {
	if cfg.Credentials == nil {
		cfg.Credentials = tts.CredentialsFromEnv
	}
	if cfg.NewSynthesizer == nil {
		cfg.NewSynthesizer = func(creds tts.Credentials) tts.Client {
			return tts.NewXfyunClient(tts.XfyunConfig{Credentials: creds, Logger: logger})
		}
	}

	r := &Router{
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	r.routes()
	return withRequestID(withSentryRecovery(withCORS(r.mux)))
}

func (r *Router) routes() {
	// Health check
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)

	if r.cfg.MetricsHandler != nil {
		r.mux.Handle("GET /metrics", r.cfg.MetricsHandler)
	}

	// No method in the pattern: the handler answers other methods with a JSON 405.
	r.mux.Handle("/api/tts", withRequestMetrics(http.HandlerFunc(r.handleSynthesize)))
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.Scope().SetTag("request_id", requestIDFrom(req.Context()))
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
			}
		}()
		next.ServeHTTP(w, req)
	})
}

// withCORS allows any origin to POST. Preflight requests end here with an empty 200.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, req)
	})
}

type ctxKey int

const requestIDKey ctxKey = iota

const maxRequestIDLen = 64

// withRequestID tags every request with an ID, reusing a sane X-Request-ID from the caller.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get("X-Request-ID")
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), requestIDKey, id)))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		if c < '!' || c > '~' {
			return false
		}
	}
	return true
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetTag("request_id", requestIDFrom(req.Context()))
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
