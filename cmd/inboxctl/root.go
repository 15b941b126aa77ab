package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/matheus3301/inboxsync/internal/app"
	"github.com/matheus3301/inboxsync/internal/config"
	"github.com/matheus3301/inboxsync/internal/inbox"
	"github.com/matheus3301/inboxsync/internal/metrics"
	"github.com/matheus3301/inboxsync/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// globals are the persistent flags shared by every subcommand.
type globals struct {
	session string
	envFile string
	json    bool
	timeout time.Duration

	name string
	cfg  *config.Config
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "inboxctl",
		Short:         "Headless client for the inbox sync engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.load()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVar(&g.session, "session", "", "session name (overrides config default)")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file with INBOXSYNC_* variables")
	root.PersistentFlags().BoolVar(&g.json, "json", false, "output in JSON format")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 15*time.Second, "timeout for one-shot commands")

	root.AddCommand(
		newConversationsCmd(g),
		newFollowCmd(g),
		newSendCmd(g),
		newStarCmd(g),
		newResolveCmd(g),
	)
	return root
}

func (g *globals) load() error {
	if g.envFile != "" {
		if err := godotenv.Load(g.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", g.envFile, err)
		}
	}
	g.name, g.cfg = session.Resolve(g.session)
	if err := session.ValidateName(g.name); err != nil {
		return err
	}
	if url := os.Getenv("INBOXSYNC_API_URL"); url != "" {
		g.cfg.API.BaseURL = url
	}
	if url := os.Getenv("INBOXSYNC_REALTIME_URL"); url != "" {
		g.cfg.API.RealtimeURL = url
	}
	if g.cfg.API.BaseURL == "" {
		return fmt.Errorf("no API base URL: set api.base_url in %s or INBOXSYNC_API_URL", session.ConfigPath())
	}
	return nil
}

func (g *globals) params(follow bool, command string) app.Params {
	return app.Params{
		SessionName: g.name,
		Config:      g.cfg,
		Token:       config.Token(),
		Self:        inbox.Person{ID: os.Getenv("INBOXSYNC_SELF_ID"), Name: os.Getenv("INBOXSYNC_SELF_NAME")},
		Follow:      follow,
		Command:     command,
	}
}

// withSession starts the fx app for the duration of fn.
func (g *globals) withSession(ctx context.Context, follow bool, command string, fn func(ctx context.Context, s *app.Session, m *metrics.Metrics) error) error {
	var (
		sess *app.Session
		m    *metrics.Metrics
	)
	fxApp := fx.New(
		fx.NopLogger,
		app.Module(g.params(follow, command)),
		fx.Populate(&sess, &m),
	)
	if err := fxApp.Err(); err != nil {
		return err
	}
	if err := fxApp.Start(ctx); err != nil {
		return err
	}
	runErr := fn(ctx, sess, m)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fxApp.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (g *globals) oneShot(cmd *cobra.Command, fn func(ctx context.Context, s *app.Session) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
	defer cancel()
	return g.withSession(ctx, false, cmd.CommandPath(), func(ctx context.Context, s *app.Session, _ *metrics.Metrics) error {
		return fn(ctx, s)
	})
}
