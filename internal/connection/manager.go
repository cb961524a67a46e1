package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atelierhq/realtime/internal/metrics"
	"github.com/atelierhq/realtime/internal/protocol"
	"github.com/atelierhq/realtime/internal/transport"
)

// Manager owns one realtime session: it dials, watches the session for
// drops, reconnects with linear backoff, fans inbound events out to
// subscribers, and guards outbound sends behind the connected check.
//
// Every session is tagged with a generation number. Connect, Disconnect,
// and Close bump the generation; goroutines belonging to an older
// generation find out when they next touch the manager and stand down
// without mutating state.
type Manager struct {
	cfg    Config
	dialer transport.Dialer
	logger *slog.Logger

	mu         sync.Mutex
	phase      Phase
	lastErr    error
	attempt    int
	tr         transport.Transport
	retryTimer *time.Timer
	gen        uint64
	closed     bool

	onMessage    *handlerList[protocol.ChatMessage]
	onTyping     *handlerList[protocol.TypingSignal]
	onPresence   *handlerList[protocol.PresenceSignal]
	onError      *handlerList[error]
	onConnect    *handlerList[struct{}]
	onDisconnect *handlerList[string]
}

// NewManager creates a Manager. A nil dialer selects the production
// WebSocket dialer with long-poll fallback; a nil logger selects
// slog.Default(). With cfg.AutoConnect set the manager dials before
// returning, so subscribers registered afterwards may miss the first
// connect notification.
func NewManager(cfg Config, dialer transport.Dialer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	if dialer == nil {
		dialer = transport.NewDialer(transport.DefaultOptions(), logger)
	}

	m := &Manager{
		cfg:          cfg,
		dialer:       dialer,
		logger:       logger.With("component", "connection"),
		phase:        PhaseIdle,
		onMessage:    newHandlerList[protocol.ChatMessage](),
		onTyping:     newHandlerList[protocol.TypingSignal](),
		onPresence:   newHandlerList[protocol.PresenceSignal](),
		onError:      newHandlerList[error](),
		onConnect:    newHandlerList[struct{}](),
		onDisconnect: newHandlerList[string](),
	}

	if cfg.AutoConnect {
		m.Connect()
	}

	return m
}

// Phase returns the current lifecycle phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// IsConnected reports whether the session is live.
func (m *Manager) IsConnected() bool {
	return m.Phase() == PhaseConnected
}

// IsConnecting reports whether a handshake is in flight.
func (m *Manager) IsConnecting() bool {
	return m.Phase() == PhaseConnecting
}

// LastError returns the most recent failure diagnostic. It is nil after
// a successful connect, a Disconnect, or before any failure.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Connect establishes the session. While a session is already live it is
// a no-op; in every other phase it abandons whatever was pending (stale
// transport, in-flight dial, armed retry timer), resets the retry
// budget, and dials fresh. Connect returns immediately; the handshake
// runs in the background and reports through the connect or error
// subscribers.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	if m.cfg.AuthToken == "" {
		m.lastErr = ErrTokenRequired
		m.mu.Unlock()
		m.logger.Warn("connect refused", "error", ErrTokenRequired)
		m.onError.dispatch(ErrTokenRequired, m.logger)
		return
	}

	if m.phase == PhaseConnected && m.tr != nil {
		m.mu.Unlock()
		return
	}

	m.cancelRetryLocked()
	m.gen++
	gen := m.gen

	if old := m.tr; old != nil {
		m.tr = nil
		go old.Close()
	}

	m.setPhaseLocked(PhaseConnecting)
	m.lastErr = nil
	m.attempt = 0
	m.mu.Unlock()

	go m.dial(gen)
}

// Disconnect tears the session down and resets the manager to Idle. Any
// pending reconnect is cancelled and the retry budget and last error are
// cleared. No subscribers fire; the caller asked for the teardown and
// does not need to be told about it. Safe to call repeatedly.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.cancelRetryLocked()
	tr := m.tr
	m.tr = nil
	m.setPhaseLocked(PhaseIdle)
	m.lastErr = nil
	m.attempt = 0
	m.mu.Unlock()

	if tr != nil {
		tr.Close()
		m.logger.Info("disconnected")
	}
}

// Close disconnects and permanently retires the manager. Further
// Connect calls are refused.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.gen++
	m.cancelRetryLocked()
	tr := m.tr
	m.tr = nil
	m.setPhaseLocked(PhaseIdle)
	m.lastErr = nil
	m.attempt = 0
	m.mu.Unlock()

	if tr != nil {
		tr.Close()
	}
	m.logger.Info("connection manager closed")
	return nil
}

// JoinProject subscribes this client to a project's event scope.
func (m *Manager) JoinProject(projectID string) {
	m.send(protocol.EventJoinProject, projectID)
}

// LeaveProject removes this client from a project's event scope.
func (m *Manager) LeaveProject(projectID string) {
	m.send(protocol.EventLeaveProject, projectID)
}

// SendChatMessage sends one chat message into a project. An empty
// msgType defaults to text. Each call is stamped with a fresh client
// message ID so the sender can correlate the server's ack.
func (m *Manager) SendChatMessage(projectID, body string, msgType protocol.MessageType, meta *protocol.MessageMetadata) {
	if msgType == "" {
		msgType = protocol.MessageText
	}
	m.send(protocol.EventChatMessage, protocol.OutgoingMessage{
		ProjectID:       projectID,
		Message:         body,
		Type:            msgType,
		Metadata:        meta,
		ClientMessageID: uuid.NewString(),
	})
}

// StartTyping signals that this client began typing in a project.
func (m *Manager) StartTyping(projectID string) {
	m.send(protocol.EventTypingStart, protocol.ProjectRef{ProjectID: projectID})
}

// StopTyping signals that this client stopped typing in a project.
func (m *Manager) StopTyping(projectID string) {
	m.send(protocol.EventTypingStop, protocol.ProjectRef{ProjectID: projectID})
}

// UpdatePresence announces this client's availability within a project.
func (m *Manager) UpdatePresence(projectID string, status protocol.PresenceStatus) {
	m.send(protocol.EventPresenceUpdate, protocol.PresenceUpdate{
		ProjectID: projectID,
		Status:    status,
	})
}

// OnMessage subscribes to inbound chat messages. The returned closure
// removes exactly this subscription; calling it more than once is
// harmless.
func (m *Manager) OnMessage(fn func(protocol.ChatMessage)) func() {
	return m.onMessage.add(fn)
}

// OnTyping subscribes to typing start/stop signals.
func (m *Manager) OnTyping(fn func(protocol.TypingSignal)) func() {
	return m.onTyping.add(fn)
}

// OnPresence subscribes to presence changes.
func (m *Manager) OnPresence(fn func(protocol.PresenceSignal)) func() {
	return m.onPresence.add(fn)
}

// OnError subscribes to failure diagnostics as they occur.
func (m *Manager) OnError(fn func(error)) func() {
	return m.onError.add(fn)
}

// OnConnect subscribes to successful session establishment, including
// reconnects.
func (m *Manager) OnConnect(fn func()) func() {
	return m.onConnect.add(func(struct{}) { fn() })
}

// OnDisconnect subscribes to involuntary session drops. The callback
// receives the transport's close reason.
func (m *Manager) OnDisconnect(fn func(reason string)) func() {
	return m.onDisconnect.add(fn)
}

// send performs one guarded outbound write. Anything other than a live
// session means the event is dropped silently; nothing is queued.
func (m *Manager) send(event string, payload any) {
	m.mu.Lock()
	tr := m.tr
	connected := m.phase == PhaseConnected
	m.mu.Unlock()

	if !connected || tr == nil {
		metrics.SendsDropped.WithLabelValues(event).Inc()
		m.logger.Debug("dropping outbound event, not connected", "event", event)
		return
	}

	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		m.logger.Warn("failed to encode outbound event", "event", event, "error", err)
		return
	}

	if err := tr.Send(env); err != nil {
		// The session's own drop detection handles the fallout.
		metrics.SendFailures.WithLabelValues(event).Inc()
		m.logger.Warn("failed to send event", "event", event, "error", err)
		return
	}

	metrics.EventsSent.WithLabelValues(event).Inc()
}

// dial performs one handshake for the given session generation.
func (m *Manager) dial(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HandshakeTimeout)
	defer cancel()

	tr, err := m.dialer.Dial(ctx, m.cfg.Endpoint, m.cfg.AuthToken)

	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		if err == nil {
			tr.Close()
		}
		return
	}

	if err != nil {
		metrics.HandshakeFailures.Inc()
		diag := fmt.Errorf("Connection error: %w", err)
		m.lastErr = diag
		m.setPhaseLocked(PhaseFailed)
		faults := append([]error{diag}, m.scheduleRetryLocked()...)
		m.mu.Unlock()

		m.logger.Warn("handshake failed", "endpoint", m.cfg.Endpoint, "error", err)
		for _, f := range faults {
			m.onError.dispatch(f, m.logger)
		}
		return
	}

	m.tr = tr
	m.setPhaseLocked(PhaseConnected)
	m.attempt = 0
	m.lastErr = nil
	m.mu.Unlock()

	metrics.ConnectsTotal.Inc()
	m.logger.Info("connected", "mode", tr.Mode(), "endpoint", m.cfg.Endpoint)
	m.onConnect.dispatch(struct{}{}, m.logger)

	go m.readLoop(gen, tr)
}

// readLoop pumps one session's inbound events until the session ends.
func (m *Manager) readLoop(gen uint64, tr transport.Transport) {
	for {
		select {
		case env, ok := <-tr.Messages():
			if !ok {
				// Stream ended; the terminal disconnect follows.
				m.handleDrop(gen, <-tr.Closed())
				return
			}
			m.dispatchEnvelope(gen, env)

		case d := <-tr.Closed():
			m.handleDrop(gen, d)
			return
		}
	}
}

// handleDrop processes a session's terminal disconnect.
func (m *Manager) handleDrop(gen uint64, d transport.Disconnect) {
	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		return
	}
	if d.Reason == transport.ReasonClientClose {
		// Local closes bump the generation before closing, so a
		// client-close for the live generation cannot happen.
		m.mu.Unlock()
		return
	}

	tr := m.tr
	m.tr = nil
	m.setPhaseLocked(PhaseDisconnected)
	metrics.DisconnectsTotal.WithLabelValues(string(d.Reason)).Inc()

	var faults []error
	if d.ServerInitiated() {
		m.lastErr = ErrServerDisconnect
		m.setPhaseLocked(PhaseFailed)
		faults = []error{ErrServerDisconnect}
	} else {
		faults = m.scheduleRetryLocked()
	}
	m.mu.Unlock()

	if tr != nil {
		// Stops the dead transport's remaining goroutines.
		go tr.Close()
	}

	m.logger.Warn("session dropped", "reason", d.Reason, "error", d.Err)
	m.onDisconnect.dispatch(string(d.Reason), m.logger)
	for _, f := range faults {
		m.onError.dispatch(f, m.logger)
	}
}

// scheduleRetryLocked arms the next reconnect timer under the linear
// backoff rule: attempt n waits n times the base delay. When the budget
// is spent it parks the manager in Failed and returns the diagnostic for
// the caller to dispatch. Callers hold mu.
func (m *Manager) scheduleRetryLocked() []error {
	if m.attempt >= m.cfg.MaxReconnectAttempts {
		m.lastErr = ErrRetriesExhausted
		m.setPhaseLocked(PhaseFailed)
		m.logger.Warn("reconnect budget exhausted", "attempts", m.attempt)
		return []error{ErrRetriesExhausted}
	}

	m.attempt++
	delay := time.Duration(m.attempt) * m.cfg.ReconnectBaseDelay
	gen := m.gen

	metrics.ReconnectAttempts.Inc()
	m.logger.Info("scheduling reconnect", "attempt", m.attempt, "delay", delay)

	m.retryTimer = time.AfterFunc(delay, func() {
		m.redial(gen)
	})
	return nil
}

// redial runs when a retry timer fires.
func (m *Manager) redial(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		return
	}
	m.retryTimer = nil
	m.setPhaseLocked(PhaseConnecting)
	m.mu.Unlock()

	m.dial(gen)
}

func (m *Manager) cancelRetryLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}

func (m *Manager) setPhaseLocked(p Phase) {
	m.phase = p
	metrics.ConnectionPhase.Set(float64(p))
}
