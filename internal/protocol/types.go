package protocol

import "time"

// MessageType classifies a chat message body.
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageFile   MessageType = "file"
	MessageLink   MessageType = "link"
	MessageSystem MessageType = "system"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageFile, MessageLink, MessageSystem:
		return true
	}
	return false
}

// ChatMessage is the payload of an inbound chat-message event.
type ChatMessage struct {
	ID          string      `json:"id"`
	ProjectID   string      `json:"projectId"`
	SenderID    string      `json:"senderId"`
	SenderEmail string      `json:"senderEmail,omitempty"`
	SenderRole  string      `json:"senderRole,omitempty"`
	Message     string      `json:"message"`
	Type        MessageType `json:"type"`

	// Thread linkage
	ParentMessageID    string `json:"parentMessageId,omitempty"`
	ThreadID           string `json:"threadId,omitempty"`
	ThreadTitle        string `json:"threadTitle,omitempty"`
	ThreadDepth        int    `json:"threadDepth,omitempty"`
	ThreadPosition     int    `json:"threadPosition,omitempty"`
	IsThreadRoot       bool   `json:"isThreadRoot,omitempty"`
	ThreadMessageCount int    `json:"threadMessageCount,omitempty"`

	Metadata  *MessageMetadata `json:"metadata,omitempty"`
	Persona   *PersonaRef      `json:"persona,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// MessageMetadata carries the typed attachments a message may have.
// Each variant has its own shape; a message sets only the variants that
// apply to it.
type MessageMetadata struct {
	File         *FileRef      `json:"file,omitempty"`
	Link         *LinkRef      `json:"link,omitempty"`
	Milestone    *MilestoneRef `json:"milestone,omitempty"`
	Artifact     *ArtifactRef  `json:"artifact,omitempty"`
	AIResponseMs int64         `json:"aiResponseMs,omitempty"`
	Sentiment    *float64      `json:"sentimentScore,omitempty"`
}

// FileRef describes a file attachment.
type FileRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size,omitempty"`
	Mime string `json:"mimeType,omitempty"`
}

// LinkRef describes a shared link.
type LinkRef struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// MilestoneRef points at a project milestone.
type MilestoneRef struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// ArtifactRef points at a project artifact (document, design, export).
type ArtifactRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Kind string `json:"kind,omitempty"`
}

// PersonaRef attributes a message to an assistant persona.
type PersonaRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// TypingSignal is the payload of user-typing and user-stopped-typing
// events. IsTyping is set by the receiver from the event name rather than
// trusted from the payload.
type TypingSignal struct {
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail,omitempty"`
	ProjectID string `json:"projectId"`
	IsTyping  bool   `json:"isTyping"`
}

// PresenceStatus is a collaborator's availability.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceOffline PresenceStatus = "offline"
)

// Valid reports whether s is a known presence status.
func (s PresenceStatus) Valid() bool {
	switch s {
	case PresenceOnline, PresenceAway, PresenceOffline:
		return true
	}
	return false
}

// PresenceSignal is the payload of an inbound user-presence event.
type PresenceSignal struct {
	UserID    string         `json:"userId"`
	UserEmail string         `json:"userEmail,omitempty"`
	ProjectID string         `json:"projectId"`
	Status    PresenceStatus `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
}

// ProjectAck is the payload of joined-project and left-project events.
type ProjectAck struct {
	ProjectID string `json:"projectId"`
}

// MessageAck is the payload of a message-sent event, carrying the
// server-assigned message ID.
type MessageAck struct {
	ID string `json:"id"`
}

// ServerError is the payload of an inbound error event.
type ServerError struct {
	Message string `json:"message"`
}

// OutgoingMessage is the payload of an outbound chat-message event.
// ClientMessageID is generated locally so acks can be correlated in logs;
// servers that ignore it lose nothing.
type OutgoingMessage struct {
	ProjectID       string           `json:"projectId"`
	Message         string           `json:"message"`
	Type            MessageType      `json:"type"`
	Metadata        *MessageMetadata `json:"metadata,omitempty"`
	ClientMessageID string           `json:"clientMessageId,omitempty"`
}

// ProjectRef is the payload of typing-start and typing-stop events.
type ProjectRef struct {
	ProjectID string `json:"projectId"`
}

// PresenceUpdate is the payload of an outbound presence-update event.
type PresenceUpdate struct {
	ProjectID string         `json:"projectId"`
	Status    PresenceStatus `json:"status"`
}
