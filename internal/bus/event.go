package bus

import "time"

// Event represents a notification published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds. Subscribers filter by prefix ("inbox.", "outbox.", ...).
const (
	KindConversationUpdated = "inbox.conversation_updated"
	KindMessageAppended     = "inbox.message_appended"
	KindMessageConfirmed    = "inbox.message_confirmed"
	KindScrollLatest        = "inbox.scroll_latest"
	KindSendAck             = "outbox.send_ack"
	KindSendFailed          = "outbox.send_failed"
	KindStatusChanged       = "status.changed"
	KindIdentityResolved    = "identity.resolved"
)

// MessageRef identifies a message inside a conversation.
type MessageRef struct {
	ConversationID string
	MessageID      string
	TempID         string
}

// SendFailure is the payload of KindSendFailed.
type SendFailure struct {
	ConversationID string
	TempID         string
	Err            error
}
