package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lukasbauer/xftts/internal/metrics"
	"github.com/lukasbauer/xftts/internal/tts"
)

const maxRequestBodyBytes = 1 << 20

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type synthesisRequest struct {
	Text *string `json:"text"`
}

var (
	errTextRequired = errors.New("request must include a non-empty text field")
	errInvalidBody  = errors.New("request body must be a JSON object with a string text field")
)

// handleSynthesize turns {"text": "..."} into audio/mpeg from xfyun.
func (r *Router) handleSynthesize(w http.ResponseWriter, req *http.Request) {
	reqID := requestIDFrom(req.Context())

	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "only POST requests are supported"})
		return
	}

	text, err := decodeSynthesisRequest(w, req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	creds := r.cfg.Credentials()
	if !creds.Complete() {
		// Only env var names are logged, the client gets a generic message.
		r.logger.Printf("[%s] tts: server configuration error: missing %s", reqID, strings.Join(creds.Missing(), ", "))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "server configuration error"})
		return
	}

	audio, err := r.synthesize(req.Context(), creds, text)
	if err != nil {
		r.logger.Printf("[%s] tts: synthesis failed: %v", reqID, err)
		if !errors.Is(err, context.Canceled) {
			captureError(req, err, "tts synthesis failed")
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "speech synthesis failed",
			Details: err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	if _, err := w.Write(audio); err != nil {
		r.logger.Printf("[%s] tts: write response: %v", reqID, err)
	}
}

func decodeSynthesisRequest(w http.ResponseWriter, req *http.Request) (string, error) {
	var body synthesisRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxRequestBodyBytes)).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return "", errTextRequired
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return "", errInvalidBody
	}
	if body.Text == nil || strings.TrimSpace(*body.Text) == "" {
		return "", errTextRequired
	}
	return *body.Text, nil
}

func (r *Router) synthesize(ctx context.Context, creds tts.Credentials, text string) ([]byte, error) {
	metrics.RecordSessionStart()
	start := time.Now()

	audio, err := r.cfg.NewSynthesizer(creds).Synthesize(ctx, text)

	metrics.RecordSessionEnd(outcomeOf(err), time.Since(start).Seconds(), len(audio))
	return audio, err
}

func outcomeOf(err error) string {
	var vendorErr *tts.VendorError
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.As(err, &vendorErr):
		return metrics.OutcomeVendorError
	case errors.Is(err, tts.ErrTimeout):
		return metrics.OutcomeTimeout
	case errors.Is(err, tts.ErrNoAudio):
		return metrics.OutcomeNoAudio
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeTransportError
	}
}

// statusWriter remembers the status code written through it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func withRequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, req)
		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		metrics.RecordRequest(strconv.Itoa(sw.status))
	})
}
