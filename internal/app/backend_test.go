package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/inboxsync/internal/api"
	"github.com/matheus3301/inboxsync/internal/bus"
	"github.com/matheus3301/inboxsync/internal/cache"
	"github.com/matheus3301/inboxsync/internal/config"
	"github.com/matheus3301/inboxsync/internal/identity"
	"github.com/matheus3301/inboxsync/internal/inbox"
	"github.com/matheus3301/inboxsync/internal/outbox"
	"github.com/matheus3301/inboxsync/internal/realtime"
	"github.com/matheus3301/inboxsync/internal/store"
	intsync "github.com/matheus3301/inboxsync/internal/sync"
	"go.uber.org/zap"
)

var (
	t0   = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	self = inbox.Person{ID: "me", Name: "Me"}
)

// backend is an in-memory stand-in for the REST API.
type backend struct {
	mu           sync.Mutex
	convs        []inbox.Conversation
	messages     map[string][]inbox.Message
	messageCalls int
	listCalls    int
	starCalls    []bool
	lookups      []string
	failSend     bool
	failStar     bool
}

func newBackend(n int) *backend {
	be := &backend{messages: make(map[string][]inbox.Message)}
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("c%d", i)
		be.convs = append(be.convs, inbox.Conversation{
			ID:             id,
			Participant:    inbox.Participant{ID: fmt.Sprintf("u%d", i), Name: fmt.Sprintf("Person %02d", i)},
			LastActivityAt: t0.Add(-time.Duration(i) * time.Minute),
			CreatedAt:      t0.Add(-time.Duration(i) * time.Hour),
		})
	}
	if n > 0 {
		be.convs[0].Participant.Name = "Ada"
		be.convs[0].Participant.ProfileURL = "https://example.com/in/ada"
		be.messages["c1"] = []inbox.Message{
			{ID: "m1", Sender: inbox.Person{ID: "u1"}, Body: "hi", CreatedAt: t0.Add(-2 * time.Minute)},
			{ID: "m2", Sender: self, Body: "hello", CreatedAt: t0.Add(-time.Minute)},
		}
	}
	return be
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (be *backend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /conversations", func(w http.ResponseWriter, r *http.Request) {
		be.mu.Lock()
		defer be.mu.Unlock()
		be.listCalls++
		writeJSON(w, http.StatusOK, be.convs)
	})
	mux.HandleFunc("GET /conversations/{id}", func(w http.ResponseWriter, r *http.Request) {
		be.mu.Lock()
		defer be.mu.Unlock()
		for _, c := range be.convs {
			if c.ID == r.PathValue("id") {
				writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": c})
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "conversation not found"})
	})
	mux.HandleFunc("GET /conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		be.mu.Lock()
		defer be.mu.Unlock()
		be.messageCalls++
		msgs := be.messages[r.PathValue("id")]
		if msgs == nil {
			msgs = []inbox.Message{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": msgs})
	})
	mux.HandleFunc("POST /conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		var req api.SendRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		be.mu.Lock()
		defer be.mu.Unlock()
		if be.failSend {
			writeJSON(w, http.StatusBadGateway, map[string]any{"error": map[string]string{"message": "upstream unavailable"}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": inbox.Message{
			ID: "srv-1", TempID: req.TempID, Body: req.Body, CreatedAt: t0,
		}})
	})
	mux.HandleFunc("PUT /conversations/{id}/star", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Starred bool }
		_ = json.NewDecoder(r.Body).Decode(&body)
		be.mu.Lock()
		defer be.mu.Unlock()
		be.starCalls = append(be.starCalls, body.Starred)
		if be.failStar {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "star failed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	})
	mux.HandleFunc("GET /identities/lookup", func(w http.ResponseWriter, r *http.Request) {
		be.mu.Lock()
		be.lookups = append(be.lookups, r.URL.Query().Get("key"))
		be.mu.Unlock()
		if r.URL.Query().Get("key") == "https://example.com/in/ada" {
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]string{"id": "crm-1"}})
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false})
	})
	return mux
}

func (be *backend) calls() int {
	be.mu.Lock()
	defer be.mu.Unlock()
	return be.messageCalls
}

func testConfig(baseURL string) *config.Config {
	cfg := config.Default()
	cfg.API.BaseURL = baseURL
	cfg.API.RequestsPerSecond = 0
	cfg.Query.SearchDebounce = config.Duration{}
	cfg.Query.PageLimit = 10
	return cfg
}

func newTestSession(t *testing.T, be *backend, opts ...func(*config.Config)) *Session {
	t.Helper()
	srv := httptest.NewServer(be.handler())
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL)
	for _, o := range opts {
		o(cfg)
	}
	logger := zap.NewNop()
	b := bus.New()
	client := api.New(srv.URL)
	state := inbox.NewState()
	people := inbox.NewPeople()
	resolver, err := identity.NewResolver(client, cfg.Identity.URLPattern, b, logger)
	if err != nil {
		t.Fatal(err)
	}
	engine := intsync.NewEngine(state, people, realtime.NewHub(), b, logger, intsync.WithLocation(time.UTC))
	flash := &inbox.Flash{}
	sender := outbox.NewSender(client, engine, b, flash, logger, outbox.WithSelf(self))
	db, err := store.OpenMigrated(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s := NewSession(Deps{
		Params:   Params{SessionName: "test", Config: cfg, Self: self},
		Client:   client,
		Cache:    cache.New(time.Minute),
		State:    state,
		People:   people,
		Resolver: resolver,
		Engine:   engine,
		Sender:   sender,
		Prefs:    db,
		Flash:    flash,
		Bus:      b,
		Logger:   logger,
	})
	t.Cleanup(s.Close)
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
