// Package inbox holds the UI-facing conversation state: the summary list,
// per-conversation message lists, the composer and transient notices.
package inbox

import "time"

// DeliveryStatus tracks a message from the local composer to the server.
type DeliveryStatus string

const (
	StatusSending DeliveryStatus = "sending"
	StatusSent    DeliveryStatus = "sent"
	StatusFailed  DeliveryStatus = "failed"
)

// TempIDPrefix marks client-generated message ids.
const TempIDPrefix = "tmp-"

// Person is a resolved message author.
type Person struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Participant is the external party of a conversation as the backend knows it.
// ID is empty until identity resolution maps the participant to an internal record.
type Participant struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name,omitempty"`
	ProfileURL string `json:"profileUrl,omitempty"`
	RefID      string `json:"refId,omitempty"`
	PublicID   string `json:"publicId,omitempty"`
	AvatarURL  string `json:"avatarUrl,omitempty"`
}

type Conversation struct {
	ID                 string      `json:"id"`
	Participant        Participant `json:"participant"`
	LastMessagePreview string      `json:"lastMessagePreview,omitempty"`
	Unread             bool        `json:"unread"`
	LastActivityAt     time.Time   `json:"lastActivityAt"`
	Starred            bool        `json:"starred"`
	CreatedAt          time.Time   `json:"createdAt"`
}

type Attachment struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType,omitempty"`
	URL      string `json:"url,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

type Reaction struct {
	Emoji   string `json:"emoji"`
	ActorID string `json:"actorId,omitempty"`
}

// Message is the canonical transcript entry. Optimistic messages carry a
// TempID and StatusSending until the server confirms them.
type Message struct {
	ID             string         `json:"id,omitempty"`
	TempID         string         `json:"tempId,omitempty"`
	ConversationID string         `json:"conversationId"`
	Sender         Person         `json:"sender"`
	Body           string         `json:"body"`
	CreatedAt      time.Time      `json:"createdAt"`
	DisplayTime    string         `json:"-"`
	Status         DeliveryStatus `json:"status,omitempty"`
	Attachments    []Attachment   `json:"attachments,omitempty"`
	Reactions      []Reaction     `json:"reactions,omitempty"`
}

// Key returns the permanent id, or the temporary id for an unconfirmed message.
func (m Message) Key() string {
	if m.ID != "" {
		return m.ID
	}
	return m.TempID
}

// Preview returns the summary line shown in the conversation list.
func (m Message) Preview() string {
	if m.Body != "" {
		return m.Body
	}
	switch n := len(m.Attachments); {
	case n == 1:
		return "[attachment] " + m.Attachments[0].Name
	case n > 1:
		return "[attachments]"
	}
	return ""
}
