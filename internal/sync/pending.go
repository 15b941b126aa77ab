package sync

import (
	"slices"

	"github.com/matheus3301/inboxsync/internal/bus"
	"github.com/matheus3301/inboxsync/internal/inbox"
)

// AppendPending adds an optimistic message to its conversation and moves the
// conversation to the top. The conversation does not become unread.
func (e *Engine) AppendPending(msg inbox.Message) {
	now := e.now()
	if msg.DisplayTime == "" {
		msg.DisplayTime = e.DisplayTime(msg.CreatedAt)
	}
	e.state.Update(func(v *inbox.View) {
		v.Messages[msg.ConversationID] = append(slices.Clone(v.Messages[msg.ConversationID]), msg)
		if i := v.Conversation(msg.ConversationID); i >= 0 {
			v.Conversations[i].LastMessagePreview = msg.Preview()
			v.Conversations[i].LastActivityAt = now
			v.SortConversations()
		}
	})
	e.bus.Emit(bus.KindMessageAppended, bus.MessageRef{ConversationID: msg.ConversationID, TempID: msg.TempID})
	if e.state.OpenID() == msg.ConversationID {
		e.bus.Emit(bus.KindScrollLatest, msg.ConversationID)
	}
}

// Confirm applies the server's direct response to a pending message. Returns
// false when the message is gone or was already confirmed by a push event.
func (e *Engine) Confirm(conversationID, tempID string, server inbox.Message) bool {
	if server.DisplayTime == "" && !server.CreatedAt.IsZero() {
		server.DisplayTime = e.DisplayTime(server.CreatedAt)
	}
	ok := false
	e.state.Update(func(v *inbox.View) {
		list := v.Messages[conversationID]
		i := slices.IndexFunc(list, func(m inbox.Message) bool { return m.TempID == tempID })
		if i < 0 || list[i].Status != inbox.StatusSending {
			return
		}
		list = slices.Clone(list)
		confirm(&list[i], server)
		v.Messages[conversationID] = list
		ok = true
	})
	out := Duplicate
	if ok {
		out = Confirmed
		e.bus.Emit(bus.KindMessageConfirmed, bus.MessageRef{ConversationID: conversationID, MessageID: server.ID, TempID: tempID})
	}
	e.recorder.Merge(string(out))
	return ok
}

// RemovePending deletes exactly the pending message with tempID. If the
// conversation preview still shows it, the preview falls back to the last
// remaining message.
func (e *Engine) RemovePending(conversationID, tempID string) bool {
	removed := false
	e.state.Update(func(v *inbox.View) {
		list := v.Messages[conversationID]
		i := slices.IndexFunc(list, func(m inbox.Message) bool { return m.TempID == tempID && m.ID == "" })
		if i < 0 {
			return
		}
		gone := list[i]
		list = slices.Delete(slices.Clone(list), i, i+1)
		v.Messages[conversationID] = list
		removed = true

		if c := v.Conversation(conversationID); c >= 0 && v.Conversations[c].LastMessagePreview == gone.Preview() {
			preview := ""
			if n := len(list); n > 0 {
				preview = list[n-1].Preview()
			}
			v.Conversations[c].LastMessagePreview = preview
		}
	})
	return removed
}
