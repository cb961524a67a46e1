package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/atelierhq/realtime/internal/protocol"
)

// requestError is a non-2xx response from a poll endpoint.
type requestError struct {
	StatusCode int
	Message    string
}

func (e *requestError) Error() string {
	return fmt.Sprintf("poll api error %d: %s", e.StatusCode, e.Message)
}

// lpHandshake is the handshake response payload.
type lpHandshake struct {
	SessionID string `json:"sessionId"`
}

// lpTransport is a long-poll session. The server holds GET /poll/events
// open until events arrive (or answers 204 as a heartbeat); outbound
// envelopes go through POST /poll/send.
type lpTransport struct {
	base      string
	token     string
	sessionID string
	opts      Options
	logger    *slog.Logger
	client    *http.Client

	messages  chan protocol.Envelope
	closed    chan Disconnect
	done      chan struct{}
	closeOnce sync.Once
	cancel    context.CancelFunc

	mu       sync.Mutex
	shutdown bool
}

// DialLongPoll performs the long-poll handshake against the service
// endpoint. A 401 or 403 response maps to ErrAuthRejected.
func DialLongPoll(ctx context.Context, endpoint, token string, opts Options, logger *slog.Logger) (Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	t := &lpTransport{
		base:     httpURL(endpoint) + "/poll",
		token:    token,
		opts:     opts,
		logger:   logger,
		client:   &http.Client{},
		messages: make(chan protocol.Envelope, opts.BufferSize),
		closed:   make(chan Disconnect, 1),
		done:     make(chan struct{}),
	}

	hctx, cancel := context.WithTimeout(ctx, opts.HandshakeTimeout)
	defer cancel()

	body, _, err := t.doRequest(hctx, http.MethodPost, t.base, nil)
	if err != nil {
		return nil, fmt.Errorf("longpoll handshake: %w", err)
	}

	var hs lpHandshake
	if err := json.Unmarshal(body, &hs); err != nil {
		return nil, fmt.Errorf("longpoll handshake: decode response: %w", err)
	}
	if hs.SessionID == "" {
		return nil, errors.New("longpoll handshake: no session id")
	}
	t.sessionID = hs.SessionID

	pollCtx, pollCancel := context.WithCancel(context.Background())
	t.cancel = pollCancel
	go t.pollLoop(pollCtx)

	logger.Debug("longpoll session established", "endpoint", endpoint, "session", hs.SessionID)

	return t, nil
}

// Send posts one envelope to the session's send endpoint.
func (t *lpTransport) Send(env protocol.Envelope) error {
	select {
	case <-t.done:
		return ErrAlreadyClosed
	default:
	}

	data, err := env.Encode()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.opts.WriteTimeout)
	defer cancel()

	sendURL := t.base + "/send?session=" + url.QueryEscape(t.sessionID)
	if _, _, err := t.doRequest(ctx, http.MethodPost, sendURL, data); err != nil {
		return fmt.Errorf("longpoll send: %w", err)
	}
	return nil
}

// Messages returns the inbound envelope stream.
func (t *lpTransport) Messages() <-chan protocol.Envelope {
	return t.messages
}

// Closed returns the terminal disconnect channel.
func (t *lpTransport) Closed() <-chan Disconnect {
	return t.closed
}

// Mode identifies this transport.
func (t *lpTransport) Mode() Mode {
	return ModeLongPoll
}

// Close tears the session down locally.
func (t *lpTransport) Close() error {
	t.mu.Lock()
	if t.shutdown {
		t.mu.Unlock()
		return nil
	}
	t.shutdown = true
	t.mu.Unlock()

	close(t.done)
	t.cancel()
	t.deliverClose(Disconnect{Reason: ReasonClientClose})

	// Best effort: tell the server the session is gone
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	t.doRequest(ctx, http.MethodDelete, t.base+"?session="+url.QueryEscape(t.sessionID), nil)

	return nil
}

func (t *lpTransport) deliverClose(d Disconnect) {
	t.closeOnce.Do(func() {
		t.closed <- d
	})
}

// pollLoop fetches event batches until the session ends.
func (t *lpTransport) pollLoop(ctx context.Context) {
	defer close(t.messages)

	eventsURL := t.base + "/events?session=" + url.QueryEscape(t.sessionID)

	var failures int
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pctx, cancel := context.WithTimeout(ctx, t.opts.PollTimeout)
		body, status, err := t.doRequest(pctx, http.MethodGet, eventsURL, nil)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}

			// 410 means the server retired the session deliberately; a
			// rejected credential mid-session amounts to the same thing.
			var reqErr *requestError
			if errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusGone {
				t.deliverClose(Disconnect{Reason: ReasonServerClose})
				return
			}
			if errors.Is(err, ErrAuthRejected) {
				t.deliverClose(Disconnect{Reason: ReasonServerClose, Err: err})
				return
			}

			failures++
			if failures >= t.opts.PollRetryLimit {
				t.deliverClose(Disconnect{Reason: ReasonTransportClose, Err: err})
				return
			}

			t.logger.Debug("poll failed, retrying", "attempt", failures, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(t.opts.PollRetryDelay):
			}
			continue
		}
		failures = 0

		if status == http.StatusNoContent || len(body) == 0 {
			continue
		}

		var envs []protocol.Envelope
		if err := json.Unmarshal(body, &envs); err != nil {
			t.logger.Warn("dropping malformed poll batch", "error", err)
			continue
		}

		for _, env := range envs {
			select {
			case t.messages <- env:
			case <-ctx.Done():
				return
			}
		}
	}
}

// doRequest performs one HTTP request with auth and status classification.
func (t *lpTransport) doRequest(ctx context.Context, method, rawURL string, payload []byte) ([]byte, int, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, resp.StatusCode, fmt.Errorf("%w: status %d", ErrAuthRejected, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, resp.StatusCode, &requestError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
		}
	}

	return body, resp.StatusCode, nil
}
