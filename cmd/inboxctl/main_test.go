package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	now := time.Now().UTC()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /conversations", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "c1", "participant": map[string]string{"name": "Ada"}, "lastMessagePreview": "see you", "unread": true, "lastActivityAt": now.Add(-time.Hour), "createdAt": now.Add(-48 * time.Hour)},
			{"id": "c2", "participant": map[string]string{"name": "Grace"}, "lastActivityAt": now.Add(-2 * time.Hour), "createdAt": now.Add(-24 * time.Hour)},
		})
	})
	mux.HandleFunc("GET /conversations/{id}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]any{"id": r.PathValue("id")}})
	})
	mux.HandleFunc("GET /conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": []any{}})
	})
	mux.HandleFunc("POST /conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ TempID, Body string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]any{"id": "srv-9", "tempId": req.TempID, "body": req.Body}})
	})
	mux.HandleFunc("GET /identities/lookup", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env-file", ""}, args...))
	err := root.Execute()
	return out.String(), err
}

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("INBOXSYNC_HOME", t.TempDir())
	t.Setenv("INBOXSYNC_API_URL", fakeAPI(t).URL)
}

func TestConversationsTable(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "conversations", "--sort", "name", "--order", "asc")
	if err != nil {
		t.Fatalf("conversations error = %v\n%s", err, out)
	}
	ada, grace := strings.Index(out, "Ada"), strings.Index(out, "Grace")
	if ada < 0 || grace < 0 || ada > grace {
		t.Errorf("output not sorted by name:\n%s", out)
	}
	if !strings.Contains(out, "1 hour ago") {
		t.Errorf("output missing relative time:\n%s", out)
	}
	if !strings.Contains(out, "2 total") {
		t.Errorf("output missing totals:\n%s", out)
	}
}

func TestConversationsFilterJSON(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "--json", "conversations", "--filter", "unread=true")
	if err != nil {
		t.Fatalf("conversations error = %v\n%s", err, out)
	}
	var page struct {
		Data  []struct{ ID string }
		Total int
	}
	if err := json.Unmarshal([]byte(out), &page); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, out)
	}
	if page.Total != 1 || page.Data[0].ID != "c1" {
		t.Errorf("page = %+v", page)
	}
}

func TestConversationsRejectsBadFilter(t *testing.T) {
	setupEnv(t)
	if _, err := run(t, "conversations", "--filter", "unread"); err == nil {
		t.Error("expected error for filter without value")
	}
}

func TestSend(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "send", "c1", "hello", "there")
	if err != nil {
		t.Fatalf("send error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "sent srv-9") {
		t.Errorf("output = %q", out)
	}
}

func TestResolveNotFound(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "resolve", "c1")
	if err != nil {
		t.Fatalf("resolve error = %v\n%s", err, out)
	}
	if strings.TrimSpace(out) != "not-found" {
		t.Errorf("output = %q", out)
	}
}

func TestMissingBaseURL(t *testing.T) {
	t.Setenv("INBOXSYNC_HOME", t.TempDir())
	t.Setenv("INBOXSYNC_API_URL", "")
	if _, err := run(t, "conversations"); err == nil || !strings.Contains(err.Error(), "no API base URL") {
		t.Errorf("error = %v", err)
	}
}

func TestParseFilters(t *testing.T) {
	f, err := parseFilters([]string{"status=open", "status=pending", "unread=true"})
	if err != nil {
		t.Fatal(err)
	}
	if len(f["status"]) != 2 || f["unread"][0] != "true" {
		t.Errorf("filters = %v", f)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello\nworld", 20); got != "hello world" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("truncate = %q", got)
	}
}
