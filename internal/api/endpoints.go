package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/matheus3301/inboxsync/internal/inbox"
)

// ListConversations calls the paginated list endpoint. The body is returned
// raw since the backend answers with either a bare array or a page object.
func (c *Client) ListConversations(ctx context.Context, q url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/conversations", q, nil)
}

// GetConversation calls the single-entity endpoint.
func (c *Client) GetConversation(ctx context.Context, id string) (*inbox.Conversation, error) {
	body, err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, err
	}
	conv, ok, err := decodeEnvelope[inbox.Conversation](body)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &Error{Message: errorMessage(body, http.StatusNotFound)}
	}
	return &conv, nil
}

// ListMessages returns the transcript of a conversation, oldest page first.
// before is a message id cursor; empty loads the latest page.
func (c *Client) ListMessages(ctx context.Context, conversationID, before string, limit int) ([]inbox.Message, error) {
	q := url.Values{}
	if before != "" {
		q.Set("before", before)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(conversationID)+"/messages", q, nil)
	if err != nil {
		return nil, err
	}
	msgs, ok, err := decodeEnvelope[[]inbox.Message](body)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &Error{Message: errorMessage(body, http.StatusNotFound)}
	}
	for i := range msgs {
		if msgs[i].ConversationID == "" {
			msgs[i].ConversationID = conversationID
		}
		if msgs[i].Status == "" {
			msgs[i].Status = inbox.StatusSent
		}
	}
	return msgs, nil
}

// SendRequest is the body of a message send.
type SendRequest struct {
	TempID      string             `json:"tempId"`
	Body        string             `json:"body"`
	Attachments []inbox.Attachment `json:"attachments,omitempty"`
}

// SendMessage posts a message. The returned message carries the
// server-assigned id and echoes the temporary id.
func (c *Client) SendMessage(ctx context.Context, conversationID string, req SendRequest) (*inbox.Message, error) {
	body, err := c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(conversationID)+"/messages", nil, req)
	if err != nil {
		return nil, err
	}
	msg, ok, err := decodeEnvelope[inbox.Message](body)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &Error{Message: errorMessage(body, http.StatusBadRequest)}
	}
	if msg.TempID == "" {
		msg.TempID = req.TempID
	}
	if msg.ConversationID == "" {
		msg.ConversationID = conversationID
	}
	return &msg, nil
}

// SetStarred flags or unflags a conversation.
func (c *Client) SetStarred(ctx context.Context, conversationID string, starred bool) error {
	_, err := c.do(ctx, http.MethodPut, "/conversations/"+url.PathEscape(conversationID)+"/star", nil,
		map[string]bool{"starred": starred})
	return err
}

type identityMatch struct {
	ID string `json:"id"`
}

// LookupIdentity asks whether candidate maps to an internal record. A missing
// record is reported as found=false with a nil error.
func (c *Client) LookupIdentity(ctx context.Context, candidate string) (id string, found bool, err error) {
	body, err := c.do(ctx, http.MethodGet, "/identities/lookup", url.Values{"key": {candidate}}, nil)
	if err != nil {
		if IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	match, ok, err := decodeEnvelope[identityMatch](body)
	if err != nil {
		return "", false, err
	}
	if !ok || match.ID == "" {
		return "", false, nil
	}
	return match.ID, true, nil
}
