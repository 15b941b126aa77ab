package session

import (
	"testing"

	"github.com/matheus3301/inboxsync/internal/config"
)

func TestResolvePrecedence(t *testing.T) {
	t.Setenv("INBOXSYNC_HOME", t.TempDir())

	name, cfg := Resolve("")
	if name != DefaultSessionName {
		t.Errorf("Resolve(\"\") without config = %q, want %q", name, DefaultSessionName)
	}
	if cfg == nil || cfg.Query.PageLimit != 20 {
		t.Errorf("missing config should fall back to defaults, got %+v", cfg)
	}

	saved := config.Default()
	saved.DefaultSession = "work"
	if err := config.Save(ConfigPath(), saved); err != nil {
		t.Fatal(err)
	}

	if name, _ := Resolve(""); name != "work" {
		t.Errorf("Resolve(\"\") = %q, want work (from config)", name)
	}
	if name, _ := Resolve("personal"); name != "personal" {
		t.Errorf("Resolve(personal) = %q, want flag override", name)
	}
}
