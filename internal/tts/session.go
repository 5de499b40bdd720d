package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the part of *websocket.Conn a session needs.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens a streaming connection to a signed URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// maxHandshakeBody caps how much of a rejected handshake response is kept in errors.
const maxHandshakeBody = 512

type websocketDialer struct {
	dialer *websocket.Dialer
}

// NewWebsocketDialer returns a Dialer backed by gorilla/websocket.
// A nil dialer uses websocket.DefaultDialer.
func NewWebsocketDialer(d *websocket.Dialer) Dialer {
	if d == nil {
		d = websocket.DefaultDialer
	}
	return websocketDialer{dialer: d}
}

func (w websocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := w.dialer.DialContext(ctx, url, nil)
	if err != nil {
		// xfyun explains auth failures (bad signature, clock skew) in the handshake body.
		if resp != nil && resp.Body != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxHandshakeBody))
			if msg := strings.TrimSpace(string(body)); msg != "" {
				return nil, fmt.Errorf("failed to connect to xfyun: %w (%s: %s)", err, resp.Status, msg)
			}
			return nil, fmt.Errorf("failed to connect to xfyun: %w (%s)", err, resp.Status)
		}
		return nil, fmt.Errorf("failed to connect to xfyun: %w", err)
	}
	return conn, nil
}

// readEvent is one outcome of the reader goroutine.
type readEvent struct {
	frame frame
	err   error
}

// session drives one connection from open to a single terminal outcome.
type session struct {
	conn      Conn
	timeout   time.Duration
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
	})
}

// run sends request and collects audio until the final frame, a vendor error,
// a transport error, the timeout or ctx cancellation, whichever comes first.
// The connection is closed and the reader joined before run returns.
func (s *session) run(ctx context.Context, request []byte) ([]byte, error) {
	done := make(chan struct{})
	defer func() {
		close(done)
		s.close()
		s.wg.Wait()
	}()

	// The timeout covers the session only, not the dial.
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	if err := s.conn.WriteMessage(websocket.TextMessage, request); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	events := make(chan readEvent)
	s.wg.Add(1)
	go s.readLoop(done, events)

	var chunks [][]byte
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, ErrTimeout
		case ev := <-events:
			if ev.err != nil {
				return nil, ev.err
			}
			switch ev.frame.kind {
			case frameVendorError:
				return nil, ev.frame.err
			case frameAudio:
				if len(ev.frame.audio) > 0 {
					chunks = append(chunks, ev.frame.audio)
				}
			case frameFinal:
				if len(ev.frame.audio) > 0 {
					chunks = append(chunks, ev.frame.audio)
				}
				if len(chunks) == 0 {
					return nil, ErrNoAudio
				}
				return bytes.Join(chunks, nil), nil
			}
		}
	}
}

// readLoop reads frames until a terminal one or an error, handing each to events.
func (s *session) readLoop(done <-chan struct{}, events chan<- readEvent) {
	defer s.wg.Done()

	send := func(ev readEvent) bool {
		select {
		case events <- ev:
			return true
		case <-done:
			return false
		}
	}

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				err = fmt.Errorf("%w: %v", ErrUnexpectedClose, closeErr)
			} else {
				err = fmt.Errorf("read error: %w", err)
			}
			send(readEvent{err: err})
			return
		}

		f, err := decodeFrame(msg)
		if !send(readEvent{frame: f, err: err}) {
			return
		}
		if err != nil || f.kind != frameAudio {
			return
		}
	}
}
