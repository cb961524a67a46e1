package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// autoDialer tries WebSocket first and falls back to long-poll.
type autoDialer struct {
	opts   Options
	logger *slog.Logger
}

// NewDialer returns the production Dialer. It dials WebSocket first; if
// that handshake fails for any reason other than an auth rejection, it
// retries the same endpoint over long-poll.
func NewDialer(opts Options, logger *slog.Logger) Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &autoDialer{
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

// Dial negotiates a session.
func (d *autoDialer) Dial(ctx context.Context, endpoint, token string) (Transport, error) {
	tr, wsErr := DialWebSocket(ctx, endpoint, token, d.opts, d.logger.With("transport", "websocket"))
	if wsErr == nil {
		return tr, nil
	}

	// A rejected credential will not get better over another transport.
	if errors.Is(wsErr, ErrAuthRejected) || ctx.Err() != nil {
		return nil, wsErr
	}

	d.logger.Debug("websocket dial failed, trying longpoll", "error", wsErr)

	tr, lpErr := DialLongPoll(ctx, endpoint, token, d.opts, d.logger.With("transport", "longpoll"))
	if lpErr != nil {
		return nil, fmt.Errorf("websocket: %v; longpoll: %w", wsErr, lpErr)
	}
	return tr, nil
}
