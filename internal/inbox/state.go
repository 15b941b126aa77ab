package inbox

import (
	"slices"
	"sync"
)

// View is the mutable inbox state handed to State.Update closures.
type View struct {
	Conversations []Conversation
	Messages      map[string][]Message
	Loaded        map[string]bool
	OpenID        string
}

// Conversation returns the index of the conversation with id, or -1.
func (v *View) Conversation(id string) int {
	return slices.IndexFunc(v.Conversations, func(c Conversation) bool { return c.ID == id })
}

// SortConversations orders the summary list by LastActivityAt, newest first.
func (v *View) SortConversations() {
	SortByActivity(v.Conversations)
}

// SortByActivity sorts conversations by LastActivityAt descending. Ties keep
// their relative order.
func SortByActivity(list []Conversation) {
	slices.SortStableFunc(list, func(a, b Conversation) int {
		return b.LastActivityAt.Compare(a.LastActivityAt)
	})
}

// State owns the conversation summary list and the per-conversation message
// lists. Every write goes through Update so that each change is computed from
// the current state, never from a stale copy.
type State struct {
	mu sync.RWMutex
	v  View

	changed chan struct{}
}

// NewState creates an empty inbox.
func NewState() *State {
	return &State{
		v: View{
			Messages: make(map[string][]Message),
			Loaded:   make(map[string]bool),
		},
		changed: make(chan struct{}, 1),
	}
}

// Changed signals after every Update. The channel holds at most one pending signal.
func (s *State) Changed() <-chan struct{} {
	return s.changed
}

func (s *State) signal() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// Update runs fn with exclusive access to the state.
func (s *State) Update(fn func(v *View)) {
	s.mu.Lock()
	fn(&s.v)
	s.mu.Unlock()
	s.signal()
}

// Read runs fn with shared access. fn must not retain or modify v.
func (s *State) Read(fn func(v *View)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.v)
}

// SetConversations replaces the summary list.
func (s *State) SetConversations(list []Conversation) {
	s.Update(func(v *View) {
		v.Conversations = slices.Clone(list)
		v.SortConversations()
	})
}

// AppendConversations adds a further page to the summary list, skipping ids
// already present.
func (s *State) AppendConversations(list []Conversation) {
	s.Update(func(v *View) {
		for _, c := range list {
			if v.Conversation(c.ID) < 0 {
				v.Conversations = append(v.Conversations, c)
			}
		}
		v.SortConversations()
	})
}

// MergeConversations replaces the summaries whose ids appear in list and
// appends the rest. Summaries not in list are kept.
func (s *State) MergeConversations(list []Conversation) {
	s.Update(func(v *View) {
		for _, c := range list {
			if i := v.Conversation(c.ID); i >= 0 {
				v.Conversations[i] = c
			} else {
				v.Conversations = append(v.Conversations, c)
			}
		}
		v.SortConversations()
	})
}

// UpdateConversation applies fn to the conversation with id and re-sorts the
// list. Reports whether the conversation exists.
func (s *State) UpdateConversation(id string, fn func(c *Conversation)) bool {
	found := false
	s.Update(func(v *View) {
		i := v.Conversation(id)
		if i < 0 {
			return
		}
		found = true
		fn(&v.Conversations[i])
		v.SortConversations()
	})
	return found
}

// Conversations returns a copy of the summary list.
func (s *State) Conversations() []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.v.Conversations)
}

// Conversation returns the summary for id.
func (s *State) Conversation(id string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.v.Conversation(id)
	if i < 0 {
		return Conversation{}, false
	}
	return s.v.Conversations[i], true
}

// SetMessages replaces the message list of a conversation and marks it loaded.
func (s *State) SetMessages(conversationID string, msgs []Message) {
	s.Update(func(v *View) {
		v.Messages[conversationID] = slices.Clone(msgs)
		v.Loaded[conversationID] = true
	})
}

// Messages returns a copy of a conversation's message list.
func (s *State) Messages(conversationID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.v.Messages[conversationID])
}

// Loaded reports whether the message list of a conversation was ever loaded.
func (s *State) Loaded(conversationID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.Loaded[conversationID]
}

// Open marks a conversation as the one on screen and clears its unread flag.
func (s *State) Open(conversationID string) {
	s.Update(func(v *View) {
		v.OpenID = conversationID
		if i := v.Conversation(conversationID); i >= 0 {
			v.Conversations[i].Unread = false
		}
	})
}

// Close clears the open conversation.
func (s *State) Close() {
	s.Update(func(v *View) { v.OpenID = "" })
}

// OpenID returns the open conversation id, or "".
func (s *State) OpenID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.OpenID
}

// Reset drops everything. Used on logout.
func (s *State) Reset() {
	s.Update(func(v *View) {
		*v = View{
			Messages: make(map[string][]Message),
			Loaded:   make(map[string]bool),
		}
	})
}
