package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, WithTokenSource(StaticToken("secret")))
}

func TestBearerTokenAndQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.URL.Query().Get("page"); got != "2" {
			t.Errorf("page = %q", got)
		}
		_, _ = w.Write([]byte(`[]`))
	})

	body, err := c.ListConversations(context.Background(), url.Values{"page": {"2"}})
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "[]" {
		t.Errorf("body = %s", body)
	}
}

func TestHTTPErrorBecomesTypedError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"string error", 400, `{"success":false,"error":"bad filter"}`, "bad filter"},
		{"object error", 422, `{"error":{"message":"limit too large"}}`, "limit too large"},
		{"message field", 403, `{"message":"forbidden here"}`, "forbidden here"},
		{"no body", 500, ``, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.ListConversations(context.Background(), nil)
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if apiErr.Status != tt.status || apiErr.Message != tt.message {
				t.Errorf("err = %+v, want {%q %d}", apiErr, tt.message, tt.status)
			}
		})
	}
}

func TestGetConversationEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversations/c1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"c1","starred":true,"lastActivityAt":"2024-03-01T10:00:00Z"}}`))
	})
	conv, err := c.GetConversation(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if conv.ID != "c1" || !conv.Starred {
		t.Errorf("conv = %+v", conv)
	}
	if !conv.LastActivityAt.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("LastActivityAt = %v", conv.LastActivityAt)
	}
}

func TestGetConversationUnsuccessful(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"gone"}`))
	})
	_, err := c.GetConversation(context.Background(), "c1")
	if AsError(err).Message != "gone" {
		t.Errorf("err = %v", err)
	}
}

func TestLookupIdentity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("key") {
		case "known":
			_, _ = w.Write([]byte(`{"success":true,"data":{"id":"rec-1"}}`))
		case "missing":
			_, _ = w.Write([]byte(`{"success":false}`))
		case "404":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	})
	ctx := context.Background()

	id, found, err := c.LookupIdentity(ctx, "known")
	if err != nil || !found || id != "rec-1" {
		t.Errorf("known = %q, %v, %v", id, found, err)
	}
	for _, key := range []string{"missing", "404"} {
		if _, found, err := c.LookupIdentity(ctx, key); found || err != nil {
			t.Errorf("%s = %v, %v, want not found without error", key, found, err)
		}
	}
	if _, _, err := c.LookupIdentity(ctx, "boom"); err == nil {
		t.Error("502 should be an error")
	}
}

func TestSendMessageEchoesTempID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var req SendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Body != "hello" || req.TempID != "tmp-1" {
			t.Errorf("req = %+v", req)
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"m9","body":"hello"}}`))
	})
	msg, err := c.SendMessage(context.Background(), "c1", SendRequest{TempID: "tmp-1", Body: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "m9" || msg.TempID != "tmp-1" || msg.ConversationID != "c1" {
		t.Errorf("msg = %+v", msg)
	}
}

func TestAsError(t *testing.T) {
	if AsError(nil) != nil {
		t.Error("AsError(nil) != nil")
	}
	if got := AsError(context.DeadlineExceeded); got.Message != "request timed out" {
		t.Errorf("deadline = %+v", got)
	}
	orig := &Error{Message: "x", Status: 418}
	wrapped := errors.Join(errors.New("ctx"), orig)
	if AsError(wrapped) != orig {
		t.Error("AsError should unwrap an existing *Error")
	}
}

func TestRateLimitHonoursContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	WithRateLimit(0.001)(c)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := c.ListConversations(ctx, nil); err != nil {
		t.Fatalf("first request should use the burst: %v", err)
	}
	if _, err := c.ListConversations(ctx, nil); err == nil {
		t.Error("second request should fail waiting for the limiter")
	}
}
