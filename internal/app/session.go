package app

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/inboxsync/internal/api"
	"github.com/matheus3301/inboxsync/internal/bus"
	"github.com/matheus3301/inboxsync/internal/cache"
	"github.com/matheus3301/inboxsync/internal/identity"
	"github.com/matheus3301/inboxsync/internal/inbox"
	"github.com/matheus3301/inboxsync/internal/optimistic"
	"github.com/matheus3301/inboxsync/internal/outbox"
	"github.com/matheus3301/inboxsync/internal/store"
	intsync "github.com/matheus3301/inboxsync/internal/sync"
	"github.com/matheus3301/inboxsync/internal/timeline"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrNoOpenConversation  = errors.New("no conversation is open")
	ErrUnknownConversation = errors.New("unknown conversation")
)

// messagePageSize is how many messages are loaded when a conversation opens.
const messagePageSize = 50

// Deps are the collaborators of a Session.
type Deps struct {
	fx.In

	Params   Params
	Client   *api.Client
	Cache    *cache.Store
	State    *inbox.State
	People   *inbox.People
	Resolver *identity.Resolver
	Engine   *intsync.Engine
	Sender   *outbox.Sender
	Prefs    *store.DB `optional:"true"`
	Flash    *inbox.Flash
	Bus      *bus.Bus
	Logger   *zap.Logger
}

// Session is what a front end talks to: open and close conversations, send,
// star, list and log out.
type Session struct {
	d        Deps
	composer inbox.Composer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSession(d Deps) *Session {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{d: d, ctx: ctx, cancel: cancel}
}

func (s *Session) State() *inbox.State       { return s.d.State }
func (s *Session) Composer() *inbox.Composer { return &s.composer }
func (s *Session) Flash() *inbox.Flash       { return s.d.Flash }
func (s *Session) Bus() *bus.Bus             { return s.d.Bus }

// Close cancels background work started by the session and waits for it.
func (s *Session) Close() {
	s.cancel()
	s.wg.Wait()
}

// OpenConversation makes id the open conversation, loads its messages unless
// they are already held, and starts resolving the participant's identity.
func (s *Session) OpenConversation(ctx context.Context, id string) error {
	if _, ok := s.d.State.Conversation(id); !ok {
		conv, err := s.d.Client.GetConversation(ctx, id)
		if err != nil {
			return s.fail("Could not open conversation", err)
		}
		s.d.State.AppendConversations([]inbox.Conversation{*conv})
		s.d.People.AddParticipants([]inbox.Conversation{*conv})
	}

	s.d.State.Open(id)
	if !s.d.State.Loaded(id) {
		msgs, err := s.messages(ctx, id)
		if err != nil {
			return s.fail("Could not load messages", err)
		}
		s.d.State.Update(func(v *inbox.View) {
			// Push events accepted while loading are kept.
			v.Messages[id] = mergeMessages(msgs, v.Messages[id])
			v.Loaded[id] = true
		})
	}
	s.d.Bus.Emit(bus.KindScrollLatest, id)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.ResolveIdentity(s.ctx, id)
	}()
	return nil
}

// ResolveIdentity maps the participant of a conversation to an internal
// record. It blocks until the probe finishes or ctx is done.
func (s *Session) ResolveIdentity(ctx context.Context, conversationID string) identity.Resolution {
	conv, ok := s.d.State.Conversation(conversationID)
	if !ok {
		return s.d.Resolver.Get(conversationID)
	}
	res := s.d.Resolver.Resolve(ctx, conversationID, identity.Ref{
		URL:      conv.Participant.ProfileURL,
		RefID:    conv.Participant.RefID,
		PublicID: conv.Participant.PublicID,
	})
	s.d.Logger.Debug("identity resolution",
		zap.String("conversation_id", conversationID),
		zap.String("state", string(res.State)),
	)
	return res
}

// messages returns the latest page of a conversation, from the session cache
// when possible.
func (s *Session) messages(ctx context.Context, id string) ([]inbox.Message, error) {
	key, err := cache.Key("messages", struct{ ConversationID string }{id})
	if err == nil {
		if v, ok := s.d.Cache.Get(key); ok {
			if msgs, ok := v.([]inbox.Message); ok {
				return msgs, nil
			}
		}
	}
	msgs, err := s.d.Client.ListMessages(ctx, id, "", messagePageSize)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		if msgs[i].DisplayTime == "" {
			msgs[i].DisplayTime = s.d.Engine.DisplayTime(msgs[i].CreatedAt)
		}
	}
	if key != "" {
		s.d.Cache.Set(key, msgs)
	}
	return msgs, nil
}

func mergeMessages(fetched, held []inbox.Message) []inbox.Message {
	out := slices.Clone(fetched)
	for _, m := range held {
		if !slices.ContainsFunc(out, func(o inbox.Message) bool {
			return (m.ID != "" && o.ID == m.ID) || (m.TempID != "" && o.TempID == m.TempID)
		}) {
			out = append(out, m)
		}
	}
	return out
}

// CloseConversation clears the open conversation. A miss in identity
// resolution is forgotten so the next open probes again; a match is kept.
func (s *Session) CloseConversation() {
	id := s.d.State.OpenID()
	s.d.State.Close()
	if id != "" {
		s.d.Resolver.Reset(id)
	}
}

// Identity returns the cached identity resolution of a conversation.
func (s *Session) Identity(conversationID string) identity.Resolution {
	return s.d.Resolver.Get(conversationID)
}

// Transcript returns the display rows of a conversation.
func (s *Session) Transcript(conversationID string, loc *time.Location) []timeline.Item {
	conv, _ := s.d.State.Conversation(conversationID)
	return timeline.Build(s.d.State.Messages(conversationID), timeline.Options{
		ConversationID: conversationID,
		SelfID:         s.d.Params.Self.ID,
		ParticipantID:  conv.Participant.ID,
		Location:       loc,
	})
}

// Send submits the composer to the open conversation.
func (s *Session) Send(ctx context.Context) (*inbox.Message, error) {
	id := s.d.State.OpenID()
	if id == "" {
		return nil, ErrNoOpenConversation
	}
	return s.d.Sender.Submit(ctx, id, &s.composer)
}

// ToggleStar flips the starred flag locally, then on the server. If the
// server refuses, the flag is put back.
func (s *Session) ToggleStar(ctx context.Context, id string) error {
	var (
		prev inbox.Conversation
		ok   bool
	)
	s.d.State.Update(func(v *inbox.View) {
		h := optimistic.New(
			func() []inbox.Conversation { return v.Conversations },
			func(list []inbox.Conversation) { v.Conversations = list },
			func(c inbox.Conversation) string { return c.ID },
		)
		prev, ok = h.Update(id, func(c *inbox.Conversation) { c.Starred = !c.Starred })
	})
	if !ok {
		return ErrUnknownConversation
	}

	if err := s.d.Client.SetStarred(ctx, id, !prev.Starred); err != nil {
		s.d.State.UpdateConversation(id, func(c *inbox.Conversation) { c.Starred = prev.Starred })
		return s.fail("Could not update star", err)
	}
	s.d.Cache.Invalidate("conversations:")
	s.d.Bus.Emit(bus.KindConversationUpdated, id)
	return nil
}

// Logout ends the session's view of the data: cache, inbox and identity
// matches are all dropped.
func (s *Session) Logout() {
	n := s.d.Cache.Len()
	s.d.Cache.Clear()
	s.d.State.Reset()
	s.d.Resolver.Clear()
	for _, p := range s.composer.Take().Previews {
		p.Release()
	}
	s.d.Logger.Info("session cleared", zap.Int("cache_entries", n))
}

func (s *Session) fail(notice string, err error) error {
	apiErr := api.AsError(err)
	s.d.Flash.Set(notice+": "+apiErr.Message, outbox.FlashDuration)
	s.d.Logger.Warn(notice, zap.Error(apiErr))
	return apiErr
}
