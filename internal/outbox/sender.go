// Package outbox submits composed messages with an optimistic local echo.
package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/inboxsync/internal/api"
	"github.com/matheus3301/inboxsync/internal/bus"
	"github.com/matheus3301/inboxsync/internal/inbox"
	"go.uber.org/zap"
)

// ErrEmptyDraft is returned when there is nothing to send.
var ErrEmptyDraft = errors.New("nothing to send")

// FlashDuration is how long a send failure notice stays visible.
const FlashDuration = 5 * time.Second

// Transport delivers a message to the server.
type Transport interface {
	SendMessage(ctx context.Context, conversationID string, req api.SendRequest) (*inbox.Message, error)
}

// Timeline is where the pending message lives until the server answers.
type Timeline interface {
	AppendPending(msg inbox.Message)
	Confirm(conversationID, tempID string, server inbox.Message) bool
	RemovePending(conversationID, tempID string) bool
}

// Recorder counts send results.
type Recorder interface {
	Send(result string)
}

type nopRecorder struct{}

func (nopRecorder) Send(string) {}

// Sender submits the composer's draft to a conversation.
type Sender struct {
	transport Transport
	timeline  Timeline
	bus       *bus.Bus
	flash     *inbox.Flash
	recorder  Recorder
	logger    *zap.Logger

	self  inbox.Person
	now   func() time.Time
	newID func() string
}

// Option configures a Sender.
type Option func(*Sender)

// WithSelf sets the author of outgoing messages.
func WithSelf(p inbox.Person) Option {
	return func(s *Sender) { s.self = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Sender) { s.now = now }
}

func WithRecorder(r Recorder) Option {
	return func(s *Sender) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewSender creates a new outbox sender.
func NewSender(t Transport, tl Timeline, b *bus.Bus, flash *inbox.Flash, logger *zap.Logger, opts ...Option) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sender{
		transport: t,
		timeline:  tl,
		bus:       b,
		flash:     flash,
		recorder:  nopRecorder{},
		logger:    logger,
		now:       time.Now,
		newID:     func() string { return inbox.TempIDPrefix + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit takes the composer's draft, shows it as a sending message and
// delivers it. On failure the pending message is removed and the draft is
// put back into the composer unchanged.
func (s *Sender) Submit(ctx context.Context, conversationID string, c *inbox.Composer) (*inbox.Message, error) {
	draft := c.Take()
	if draft.Empty() {
		c.Restore(draft)
		return nil, ErrEmptyDraft
	}

	pending := inbox.Message{
		TempID:         s.newID(),
		ConversationID: conversationID,
		Sender:         s.self,
		Body:           draft.Text,
		CreatedAt:      s.now(),
		Status:         inbox.StatusSending,
		Attachments:    draft.Attachments,
	}
	s.timeline.AppendPending(pending)

	server, err := s.transport.SendMessage(ctx, conversationID, api.SendRequest{
		TempID:      pending.TempID,
		Body:        draft.Text,
		Attachments: draft.Attachments,
	})
	release(draft.Previews)

	if err != nil {
		apiErr := api.AsError(err)
		s.timeline.RemovePending(conversationID, pending.TempID)
		c.Restore(draft)
		if s.flash != nil {
			s.flash.Set("Send failed: "+apiErr.Message, FlashDuration)
		}
		s.recorder.Send("failed")
		s.logger.Warn("send failed",
			zap.String("conversation_id", conversationID),
			zap.String("temp_id", pending.TempID),
			zap.Error(apiErr),
		)
		s.bus.Emit(bus.KindSendFailed, bus.SendFailure{ConversationID: conversationID, TempID: pending.TempID, Err: apiErr})
		return nil, apiErr
	}

	confirmed := *server
	if confirmed.Sender.ID == "" {
		confirmed.Sender = s.self
	}
	if !s.timeline.Confirm(conversationID, pending.TempID, confirmed) {
		s.logger.Debug("send already confirmed by push", zap.String("temp_id", pending.TempID))
	}
	s.recorder.Send("sent")
	s.logger.Info("message sent",
		zap.String("conversation_id", conversationID),
		zap.String("temp_id", pending.TempID),
		zap.String("msg_id", confirmed.ID),
	)
	s.bus.Emit(bus.KindSendAck, bus.MessageRef{ConversationID: conversationID, MessageID: confirmed.ID, TempID: pending.TempID})
	return &confirmed, nil
}

func release(previews []inbox.Preview) {
	for _, p := range previews {
		p.Release()
	}
}
