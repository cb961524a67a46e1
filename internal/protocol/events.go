package protocol

// Inbound event names.
const (
	EventChatMessage       = "chat-message"
	EventUserTyping        = "user-typing"
	EventUserStoppedTyping = "user-stopped-typing"
	EventUserPresence      = "user-presence"
	EventJoinedProject     = "joined-project"
	EventLeftProject       = "left-project"
	EventMessageSent       = "message-sent"
	EventError             = "error"
)

// Outbound event names. EventChatMessage is used in both directions.
const (
	EventJoinProject    = "join-project"
	EventLeaveProject   = "leave-project"
	EventTypingStart    = "typing-start"
	EventTypingStop     = "typing-stop"
	EventPresenceUpdate = "presence-update"
)
