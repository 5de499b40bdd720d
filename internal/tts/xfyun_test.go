package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeDialer hands out a prepared conn and remembers the URL it was asked for.
type fakeDialer struct {
	conn *fakeConn
	err  error
	url  string
}

func (d *fakeDialer) Dial(_ context.Context, url string) (Conn, error) {
	d.url = url
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

func TestNewXfyunClient_Defaults(t *testing.T) {
	c := NewXfyunClient(XfyunConfig{Credentials: testCredentials()})

	if c.endpoint != DefaultEndpoint {
		t.Errorf("endpoint = %q, want %q", c.endpoint, DefaultEndpoint)
	}
	if c.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", c.timeout, DefaultTimeout)
	}
	if c.business != DefaultBusiness() {
		t.Errorf("business = %+v, want defaults", c.business)
	}
	if c.dialer == nil || c.now == nil || c.logger == nil {
		t.Error("dialer, now and logger should be defaulted")
	}
}

func TestXfyunClient_SynthesizeWithFakeDialer(t *testing.T) {
	conn := newFakeConn(audioFrame("A", 1), audioFrame("B", 1), `{"code":0,"data":{"status":2}}`)
	dialer := &fakeDialer{conn: conn}
	business := DefaultBusiness()
	business.Vcn = "xiaoyan"

	c := NewXfyunClient(XfyunConfig{
		Credentials: testCredentials(),
		Business:    &business,
		Dialer:      dialer,
		Now:         func() time.Time { return signTime },
	})

	audio, err := c.Synthesize(context.Background(), "你好")
	if err != nil {
		t.Fatalf("Synthesize() error: %v", err)
	}
	if string(audio) != "AB" {
		t.Errorf("audio = %q, want %q", audio, "AB")
	}

	want, _ := Sign(DefaultEndpoint, testCredentials(), signTime)
	if dialer.url != want.URL {
		t.Errorf("dialed %q, want %q", dialer.url, want.URL)
	}

	writes := conn.writes()
	if len(writes) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(writes))
	}
	var req synthesisRequest
	if err := json.Unmarshal(writes[0], &req); err != nil {
		t.Fatalf("request is not JSON: %v", err)
	}
	if req.Common.AppID != "test-app" {
		t.Errorf("app_id = %q, want %q", req.Common.AppID, "test-app")
	}
	if req.Business.Vcn != "xiaoyan" {
		t.Errorf("vcn = %q, want %q", req.Business.Vcn, "xiaoyan")
	}
}

func TestXfyunClient_DialError(t *testing.T) {
	dialErr := errors.New("connection refused")
	c := NewXfyunClient(XfyunConfig{
		Credentials: testCredentials(),
		Dialer:      &fakeDialer{err: dialErr},
	})

	_, err := c.Synthesize(context.Background(), "hi")
	if !errors.Is(err, dialErr) {
		t.Errorf("Synthesize() error = %v, want %v", err, dialErr)
	}
}

func TestXfyunClient_TimeoutClosesConn(t *testing.T) {
	conn := newFakeConn()
	c := NewXfyunClient(XfyunConfig{
		Credentials: testCredentials(),
		Dialer:      &fakeDialer{conn: conn},
		Timeout:     30 * time.Millisecond,
	})

	_, err := c.Synthesize(context.Background(), "hi")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Synthesize() error = %v, want ErrTimeout", err)
	}
	if conn.closeCount() != 1 {
		t.Errorf("Close called %d times, want 1", conn.closeCount())
	}
}

// newVendorServer runs a websocket endpoint that answers every session with frames.
func newVendorServer(t *testing.T, frames []string, gotRequest chan<- synthesisRequest) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("authorization") == "" || q.Get("date") == "" || q.Get("host") == "" {
			http.Error(w, `{"message":"missing authorization"}`, http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req synthesisRequest
		if err := json.Unmarshal(msg, &req); err == nil && gotRequest != nil {
			gotRequest <- req
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Wait for the client to hang up.
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsEndpoint(srv *httptest.Server) string {
	return "ws://" + strings.TrimPrefix(srv.URL, "http://") + "/v2/tts"
}

func TestXfyunClient_EndToEnd(t *testing.T) {
	gotRequest := make(chan synthesisRequest, 1)
	srv := newVendorServer(t, []string{
		audioFrame("chunk-1|", 1),
		audioFrame("chunk-2|", 1),
		audioFrame("chunk-3", 2),
	}, gotRequest)

	c := NewXfyunClient(XfyunConfig{
		Credentials: testCredentials(),
		Endpoint:    wsEndpoint(srv),
		Timeout:     2 * time.Second,
	})

	audio, err := c.Synthesize(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Synthesize() error: %v", err)
	}
	if string(audio) != "chunk-1|chunk-2|chunk-3" {
		t.Errorf("audio = %q", audio)
	}

	req := <-gotRequest
	if req.Data.Text != base64.StdEncoding.EncodeToString([]byte("hello world")) {
		t.Errorf("data.text = %q", req.Data.Text)
	}
	if req.Data.Status != 2 {
		t.Errorf("data.status = %d, want 2", req.Data.Status)
	}
}

func TestXfyunClient_EndToEndVendorError(t *testing.T) {
	srv := newVendorServer(t, []string{`{"code":11200,"message":"licc limit","sid":"x"}`}, nil)

	c := NewXfyunClient(XfyunConfig{
		Credentials: testCredentials(),
		Endpoint:    wsEndpoint(srv),
		Timeout:     2 * time.Second,
	})

	_, err := c.Synthesize(context.Background(), "hi")
	var vendorErr *VendorError
	if !errors.As(err, &vendorErr) {
		t.Fatalf("Synthesize() error = %v, want *VendorError", err)
	}
	if vendorErr.Code != 11200 {
		t.Errorf("Code = %d, want 11200", vendorErr.Code)
	}
}

func TestWebsocketDialer_HandshakeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"HMAC signature does not match"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewWebsocketDialer(nil).Dial(context.Background(), wsEndpoint(srv))
	if err == nil {
		t.Fatal("expected handshake error")
	}
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Errorf("error = %v, want ErrBadHandshake", err)
	}
	if !strings.Contains(err.Error(), "HMAC signature does not match") {
		t.Errorf("error = %q, want the vendor's message", err.Error())
	}
}
