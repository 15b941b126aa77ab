package session

import "github.com/matheus3301/inboxsync/internal/config"

const DefaultSessionName = "main"

// Resolve determines the active session name and its configuration.
// Name precedence:
// 1. flagOverride (--session flag)
// 2. config.toml default_session
// 3. "main"
// A missing or unreadable config file yields config.Default().
func Resolve(flagOverride string) (string, *config.Config) {
	cfg, err := config.Load(ConfigPath())
	if err != nil {
		cfg = config.Default()
	}
	if flagOverride != "" {
		return flagOverride, cfg
	}
	if cfg.DefaultSession != "" {
		return cfg.DefaultSession, cfg
	}
	return DefaultSessionName, cfg
}
