package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegister_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second Register() error: %v", err)
	}
}

func TestRecordSession(t *testing.T) {
	beforeActive := testutil.ToFloat64(sessionsActive)
	beforeSuccess := testutil.ToFloat64(synthesesTotal.WithLabelValues(OutcomeSuccess))
	beforeBytes := testutil.ToFloat64(audioBytesTotal)

	RecordSessionStart()
	if got := testutil.ToFloat64(sessionsActive); got != beforeActive+1 {
		t.Errorf("sessions_active = %v, want %v", got, beforeActive+1)
	}

	RecordSessionEnd(OutcomeSuccess, 0.5, 1024)
	if got := testutil.ToFloat64(sessionsActive); got != beforeActive {
		t.Errorf("sessions_active = %v, want %v", got, beforeActive)
	}
	if got := testutil.ToFloat64(synthesesTotal.WithLabelValues(OutcomeSuccess)); got != beforeSuccess+1 {
		t.Errorf("syntheses_total{success} = %v, want %v", got, beforeSuccess+1)
	}
	if got := testutil.ToFloat64(audioBytesTotal); got != beforeBytes+1024 {
		t.Errorf("audio_bytes_total = %v, want %v", got, beforeBytes+1024)
	}
}

func TestRecordRequest(t *testing.T) {
	before := testutil.ToFloat64(requestsTotal.WithLabelValues("405"))
	RecordRequest("405")
	if got := testutil.ToFloat64(requestsTotal.WithLabelValues("405")); got != before+1 {
		t.Errorf("http_requests_total{405} = %v, want %v", got, before+1)
	}
}
