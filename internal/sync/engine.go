// Package sync merges push events and local sends into the inbox state.
package sync

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/matheus3301/inboxsync/internal/bus"
	"github.com/matheus3301/inboxsync/internal/inbox"
	"github.com/matheus3301/inboxsync/internal/realtime"
	"go.uber.org/zap"
)

// Outcome describes what Apply did with an event.
type Outcome string

const (
	Appended       Outcome = "appended"
	Confirmed      Outcome = "confirmed"
	NoConversation Outcome = "no_conversation"
	NotLoaded      Outcome = "not_loaded"
	Duplicate      Outcome = "duplicate"
	Malformed      Outcome = "malformed"
	Ignored        Outcome = "ignored"
)

// Recorder counts merge outcomes.
type Recorder interface {
	Merge(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) Merge(string) {}

// Engine applies push events to the inbox state strictly in arrival order.
type Engine struct {
	state    *inbox.State
	dir      inbox.Directory
	hub      *realtime.Hub
	bus      *bus.Bus
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time
	loc      *time.Location

	cancel context.CancelFunc
	sub    *realtime.Subscription
	done   chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the zone used for display times.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// NewEngine creates a new sync engine.
func NewEngine(state *inbox.State, dir inbox.Directory, hub *realtime.Hub, b *bus.Bus, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		state:    state,
		dir:      dir,
		hub:      hub,
		bus:      b,
		recorder: nopRecorder{},
		logger:   logger,
		now:      time.Now,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start subscribes to the push hub and applies events on one goroutine.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	events := make(chan realtime.Envelope, 256)
	e.done = make(chan struct{})

	e.sub = e.hub.Subscribe(func(env realtime.Envelope) {
		select {
		case events <- env:
		case <-ctx.Done():
		}
	})

	go func() {
		defer close(e.done)
		for {
			select {
			case env := <-events:
				e.HandleEnvelope(env)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop unsubscribes and waits for the apply loop to exit.
func (e *Engine) Stop() {
	if e.sub != nil {
		e.sub.Unsubscribe()
	}
	if e.cancel != nil {
		e.cancel()
		<-e.done
		e.cancel = nil
	}
}

// HandleEnvelope decodes one push frame and applies it.
func (e *Engine) HandleEnvelope(env realtime.Envelope) Outcome {
	if env.Type != realtime.TypeMessageNew {
		return Ignored
	}
	ev, err := realtime.DecodeMessage(env.Payload, env.Version)
	if err != nil {
		out := Malformed
		if errors.Is(err, realtime.ErrNoConversation) {
			out = NoConversation
		}
		e.logger.Debug("dropping push event", zap.String("outcome", string(out)), zap.Error(err))
		e.recorder.Merge(string(out))
		return out
	}
	return e.Apply(ev)
}

// Apply merges one normalized message event. Applying the same event twice
// leaves the state as applying it once.
func (e *Engine) Apply(ev realtime.MessageEvent) Outcome {
	if ev.ConversationID == "" {
		e.recorder.Merge(string(NoConversation))
		return NoConversation
	}
	// Without an id or temp id a redelivery cannot be recognized.
	if ev.ID == "" && ev.TempID == "" {
		e.logger.Debug("dropping push event without message id", zap.String("conversation_id", ev.ConversationID))
		e.recorder.Merge(string(Malformed))
		return Malformed
	}

	msg := e.normalize(ev)
	now := e.now()
	out := Appended
	var open bool

	e.state.Update(func(v *inbox.View) {
		open = v.OpenID == ev.ConversationID
		// The open conversation takes events before its history arrives;
		// the history load merges them and marks it loaded.
		if !v.Loaded[ev.ConversationID] && !open {
			out = NotLoaded
			return
		}

		list := v.Messages[ev.ConversationID]
		if ev.ID != "" && slices.ContainsFunc(list, func(m inbox.Message) bool { return m.ID == ev.ID }) {
			out = Duplicate
			return
		}
		if ev.TempID != "" {
			if i := slices.IndexFunc(list, func(m inbox.Message) bool { return m.TempID == ev.TempID }); i >= 0 {
				if list[i].Status != inbox.StatusSending || ev.ID == "" {
					out = Duplicate
					return
				}
				list = slices.Clone(list)
				confirm(&list[i], msg)
				v.Messages[ev.ConversationID] = list
				out = Confirmed
				return
			}
		}

		v.Messages[ev.ConversationID] = append(slices.Clone(list), msg)

		if i := v.Conversation(ev.ConversationID); i >= 0 {
			c := &v.Conversations[i]
			c.LastMessagePreview = msg.Preview()
			c.LastActivityAt = now
			if !open {
				c.Unread = true
			}
			v.SortConversations()
		}
	})

	e.recorder.Merge(string(out))
	switch out {
	case Appended:
		ref := bus.MessageRef{ConversationID: ev.ConversationID, MessageID: msg.ID, TempID: msg.TempID}
		e.bus.Emit(bus.KindMessageAppended, ref)
		e.bus.Emit(bus.KindConversationUpdated, ev.ConversationID)
		if open {
			e.bus.Emit(bus.KindScrollLatest, ev.ConversationID)
		}
	case Confirmed:
		e.bus.Emit(bus.KindMessageConfirmed, bus.MessageRef{ConversationID: ev.ConversationID, MessageID: msg.ID, TempID: msg.TempID})
	default:
		e.logger.Debug("push event dropped",
			zap.String("outcome", string(out)),
			zap.String("conversation_id", ev.ConversationID),
			zap.String("msg_id", ev.ID),
		)
	}
	return out
}

func (e *Engine) normalize(ev realtime.MessageEvent) inbox.Message {
	created := ev.CreatedAt
	if created.IsZero() {
		created = e.now()
	}
	sender := inbox.Person{ID: ev.SenderID, Name: ev.SenderName}
	if e.dir != nil {
		if p, ok := e.dir.Lookup(ev.SenderID); ok {
			if p.Name == "" {
				p.Name = ev.SenderName
			}
			sender = p
		}
	}
	if sender.Name == "" {
		sender.Name = ev.SenderID
	}
	return inbox.Message{
		ID:             ev.ID,
		TempID:         ev.TempID,
		ConversationID: ev.ConversationID,
		Sender:         sender,
		Body:           ev.Text,
		CreatedAt:      created,
		DisplayTime:    e.DisplayTime(created),
		Status:         inbox.StatusSent,
		Attachments:    ev.Attachments,
		Reactions:      ev.Reactions,
	}
}

// DisplayTime formats t as a wall clock time in the engine's zone.
func (e *Engine) DisplayTime(t time.Time) string {
	return t.In(e.loc).Format("15:04")
}

// confirm turns a pending message into its server-confirmed form in place.
func confirm(m *inbox.Message, server inbox.Message) {
	m.ID = server.ID
	m.Status = inbox.StatusSent
	if !server.CreatedAt.IsZero() {
		m.CreatedAt = server.CreatedAt
		m.DisplayTime = server.DisplayTime
	}
	if len(server.Attachments) > 0 {
		m.Attachments = server.Attachments
	}
	if len(server.Reactions) > 0 {
		m.Reactions = server.Reactions
	}
}
