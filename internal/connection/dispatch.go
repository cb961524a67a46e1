package connection

import (
	"errors"

	"github.com/atelierhq/realtime/internal/metrics"
	"github.com/atelierhq/realtime/internal/protocol"
)

// dispatchEnvelope routes one inbound event to its subscriber registry.
// Malformed payloads are logged and dropped without disturbing the
// session; unknown events are ignored.
func (m *Manager) dispatchEnvelope(gen uint64, env protocol.Envelope) {
	m.mu.Lock()
	stale := gen != m.gen || m.closed
	m.mu.Unlock()
	if stale {
		return
	}

	metrics.EventsReceived.WithLabelValues(env.Event).Inc()

	switch env.Event {
	case protocol.EventChatMessage:
		var msg protocol.ChatMessage
		if err := env.Decode(&msg); err != nil {
			m.warnParse(env.Event, err)
			return
		}
		m.onMessage.dispatch(msg, m.logger)

	case protocol.EventUserTyping, protocol.EventUserStoppedTyping:
		var sig protocol.TypingSignal
		if err := env.Decode(&sig); err != nil {
			m.warnParse(env.Event, err)
			return
		}
		// The event name is authoritative; the payload's own flag is
		// not trusted.
		sig.IsTyping = env.Event == protocol.EventUserTyping
		m.onTyping.dispatch(sig, m.logger)

	case protocol.EventUserPresence:
		var sig protocol.PresenceSignal
		if err := env.Decode(&sig); err != nil {
			m.warnParse(env.Event, err)
			return
		}
		m.onPresence.dispatch(sig, m.logger)

	case protocol.EventError:
		var se protocol.ServerError
		if err := env.Decode(&se); err != nil {
			m.warnParse(env.Event, err)
			return
		}
		fault := errors.New(se.Message)
		m.mu.Lock()
		if gen == m.gen && !m.closed {
			m.lastErr = fault
		}
		m.mu.Unlock()
		m.logger.Warn("server reported error", "message", se.Message)
		m.onError.dispatch(fault, m.logger)

	case protocol.EventJoinedProject:
		var ack protocol.ProjectAck
		if err := env.Decode(&ack); err != nil {
			m.warnParse(env.Event, err)
			return
		}
		m.logger.Debug("joined project", "project_id", ack.ProjectID)

	case protocol.EventLeftProject:
		var ack protocol.ProjectAck
		if err := env.Decode(&ack); err != nil {
			m.warnParse(env.Event, err)
			return
		}
		m.logger.Debug("left project", "project_id", ack.ProjectID)

	case protocol.EventMessageSent:
		var ack protocol.MessageAck
		if err := env.Decode(&ack); err != nil {
			m.warnParse(env.Event, err)
			return
		}
		m.logger.Debug("message acknowledged", "message_id", ack.ID)

	default:
		m.logger.Debug("ignoring unknown event", "event", env.Event)
	}
}

func (m *Manager) warnParse(event string, err error) {
	metrics.ParseFailures.WithLabelValues(event).Inc()
	m.logger.Warn("dropping malformed payload", "event", event, "error", err)
}
