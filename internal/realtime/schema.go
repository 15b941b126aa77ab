// Package realtime receives push events and fans them out to subscribers.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/inboxsync/internal/inbox"
	"github.com/tidwall/gjson"
)

// Envelope is one frame of the push channel.
type Envelope struct {
	Type    string          `json:"type"`
	Version int             `json:"version,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

const (
	TypeMessageNew = "message.new"
	TypePing       = "ping"
)

// CurrentVersion is the payload schema this client speaks natively. Frames
// without a version are treated as version 1.
const CurrentVersion = 2

var (
	ErrNoConversation     = errors.New("event has no conversation id")
	ErrUnsupportedVersion = errors.New("unsupported event version")
)

// fields lists, per payload field, the JSON paths tried in order.
type fields struct {
	ID           []string
	TempID       []string
	Conversation []string
	Sender       []string
	SenderName   []string
	Text         []string
	CreatedAt    []string
	Attachments  []string
	Reactions    []string
}

var schemas = map[int]fields{
	1: {
		ID:           []string{"id", "message_id", "messageId"},
		TempID:       []string{"tempId", "temp_id", "clientId"},
		Conversation: []string{"conversationId", "conversation_id", "chatId", "chat_id", "threadId", "conversation.id"},
		Sender:       []string{"sender.id", "sender_id", "senderId", "sender"},
		SenderName:   []string{"sender.name", "sender_name", "senderName"},
		Text:         []string{"text", "body", "content"},
		CreatedAt:    []string{"created_at", "createdAt", "timestamp"},
		Attachments:  []string{"attachments"},
		Reactions:    []string{"reactions"},
	},
	2: {
		ID:           []string{"id"},
		TempID:       []string{"temp_id"},
		Conversation: []string{"conversation_id"},
		Sender:       []string{"sender.id"},
		SenderName:   []string{"sender.name"},
		Text:         []string{"text"},
		CreatedAt:    []string{"created_at"},
		Attachments:  []string{"attachments"},
		Reactions:    []string{"reactions"},
	},
}

// MessageEvent is a normalized message.new payload.
type MessageEvent struct {
	ID             string
	TempID         string
	ConversationID string
	SenderID       string
	SenderName     string
	Text           string
	CreatedAt      time.Time
	Attachments    []inbox.Attachment
	Reactions      []inbox.Reaction
}

// DecodeMessage normalizes a message.new payload of the given schema version.
// Returns ErrNoConversation when no conversation id can be found.
func DecodeMessage(payload []byte, version int) (MessageEvent, error) {
	if version == 0 {
		version = 1
	}
	f, ok := schemas[version]
	if !ok {
		return MessageEvent{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	if !gjson.ValidBytes(payload) {
		return MessageEvent{}, fmt.Errorf("decode message event: invalid json")
	}
	root := gjson.ParseBytes(payload)

	ev := MessageEvent{
		ID:             first(root, f.ID),
		TempID:         first(root, f.TempID),
		ConversationID: first(root, f.Conversation),
		SenderID:       first(root, f.Sender),
		SenderName:     first(root, f.SenderName),
		Text:           first(root, f.Text),
		CreatedAt:      timestamp(lookup(root, f.CreatedAt)),
	}
	if ev.ConversationID == "" {
		return MessageEvent{}, ErrNoConversation
	}
	if r := lookup(root, f.Attachments); r.IsArray() {
		if err := json.Unmarshal([]byte(r.Raw), &ev.Attachments); err != nil {
			return MessageEvent{}, fmt.Errorf("decode attachments: %w", err)
		}
	}
	if r := lookup(root, f.Reactions); r.IsArray() {
		if err := json.Unmarshal([]byte(r.Raw), &ev.Reactions); err != nil {
			return MessageEvent{}, fmt.Errorf("decode reactions: %w", err)
		}
	}
	return ev, nil
}

// lookup returns the first path that holds a non-empty scalar or array.
func lookup(root gjson.Result, paths []string) gjson.Result {
	for _, p := range paths {
		r := root.Get(p)
		switch {
		case !r.Exists(), r.Type == gjson.Null:
			continue
		case r.Type == gjson.String && strings.TrimSpace(r.Str) == "":
			continue
		case r.IsObject():
			continue
		}
		return r
	}
	return gjson.Result{}
}

func first(root gjson.Result, paths []string) string {
	r := lookup(root, paths)
	if !r.Exists() || r.IsArray() {
		return ""
	}
	return strings.TrimSpace(r.String())
}

// timestamp accepts RFC 3339 strings and unix seconds or milliseconds.
func timestamp(r gjson.Result) time.Time {
	switch r.Type {
	case gjson.Number:
		n := r.Int()
		if n > 1e12 {
			return time.UnixMilli(n).UTC()
		}
		return time.Unix(n, 0).UTC()
	case gjson.String:
		if t, err := time.Parse(time.RFC3339Nano, r.Str); err == nil {
			return t
		}
	}
	return time.Time{}
}
