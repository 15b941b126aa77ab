package realtime

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeMessageV2(t *testing.T) {
	payload := []byte(`{
		"id": "m1",
		"temp_id": "tmp-1",
		"conversation_id": "c1",
		"sender": {"id": "u1", "name": "Ada"},
		"text": "hello",
		"created_at": "2024-03-01T10:00:00Z",
		"attachments": [{"name": "a.pdf", "size": 12}],
		"reactions": [{"emoji": "+1", "actorId": "u2"}]
	}`)
	ev, err := DecodeMessage(payload, 2)
	if err != nil {
		t.Fatal(err)
	}
	if ev.ID != "m1" || ev.TempID != "tmp-1" || ev.ConversationID != "c1" {
		t.Errorf("ids = %+v", ev)
	}
	if ev.SenderID != "u1" || ev.SenderName != "Ada" || ev.Text != "hello" {
		t.Errorf("content = %+v", ev)
	}
	if !ev.CreatedAt.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v", ev.CreatedAt)
	}
	if len(ev.Attachments) != 1 || ev.Attachments[0].Size != 12 || len(ev.Reactions) != 1 {
		t.Errorf("attachments/reactions = %+v %+v", ev.Attachments, ev.Reactions)
	}
}

func TestDecodeMessageV2IgnoresLegacyAliases(t *testing.T) {
	_, err := DecodeMessage([]byte(`{"chatId":"c1","text":"x"}`), 2)
	if !errors.Is(err, ErrNoConversation) {
		t.Errorf("err = %v, want ErrNoConversation", err)
	}
}

func TestDecodeMessageV1AliasPrecedence(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"conversationId wins", `{"conversationId":"a","conversation_id":"b","chatId":"c"}`, "a"},
		{"snake case", `{"conversation_id":"b","chatId":"c"}`, "b"},
		{"chatId", `{"chatId":"c","chat_id":"d"}`, "c"},
		{"chat_id", `{"chat_id":"d","threadId":"e"}`, "d"},
		{"threadId", `{"threadId":"e","conversation":{"id":"f"}}`, "e"},
		{"nested", `{"conversation":{"id":"f"}}`, "f"},
		{"empty alias skipped", `{"conversationId":"","chatId":"c"}`, "c"},
		{"numeric id", `{"chat_id":42}`, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeMessage([]byte(tt.payload), 0)
			if err != nil {
				t.Fatal(err)
			}
			if ev.ConversationID != tt.want {
				t.Errorf("ConversationID = %q, want %q", ev.ConversationID, tt.want)
			}
		})
	}
}

func TestDecodeMessageV1Fields(t *testing.T) {
	ev, err := DecodeMessage([]byte(`{"chatId":"c1","tempId":"tmp-2","sender":"u9","body":"hi","timestamp":1709287200000}`), 1)
	if err != nil {
		t.Fatal(err)
	}
	if ev.TempID != "tmp-2" || ev.SenderID != "u9" || ev.Text != "hi" {
		t.Errorf("event = %+v", ev)
	}
	if !ev.CreatedAt.Equal(time.UnixMilli(1709287200000)) {
		t.Errorf("CreatedAt = %v", ev.CreatedAt)
	}
}

func TestDecodeMessageRejects(t *testing.T) {
	if _, err := DecodeMessage([]byte(`{"text":"orphan"}`), 1); !errors.Is(err, ErrNoConversation) {
		t.Errorf("no conversation: err = %v", err)
	}
	if _, err := DecodeMessage([]byte(`{"conversation_id":"c"}`), 9); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("version 9: err = %v", err)
	}
	if _, err := DecodeMessage([]byte(`{`), 2); err == nil {
		t.Error("invalid json should fail")
	}
}

func TestTimestampSeconds(t *testing.T) {
	ev, err := DecodeMessage([]byte(`{"conversation_id":"c","created_at":1709287200}`), 2)
	if err != nil {
		t.Fatal(err)
	}
	if !ev.CreatedAt.Equal(time.Unix(1709287200, 0)) {
		t.Errorf("CreatedAt = %v", ev.CreatedAt)
	}
}
