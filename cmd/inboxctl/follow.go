package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/matheus3301/inboxsync/internal/app"
	"github.com/matheus3301/inboxsync/internal/bus"
	"github.com/matheus3301/inboxsync/internal/metrics"
	"github.com/matheus3301/inboxsync/internal/status"
	"github.com/spf13/cobra"
)

func newFollowCmd(g *globals) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "follow <conversation-id>",
		Short: "Print a conversation and every message merged into it until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.cfg.API.RealtimeURL == "" {
				return fmt.Errorf("no realtime URL: set api.realtime_url or INBOXSYNC_REALTIME_URL")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return g.withSession(ctx, true, cmd.CommandPath(), func(ctx context.Context, s *app.Session, m *metrics.Metrics) error {
				if metricsAddr != "" {
					srv, err := serveMetrics(metricsAddr, m)
					if err != nil {
						return err
					}
					defer func() { _ = srv.Close() }()
				}
				return follow(ctx, cmd, s, args[0])
			})
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	return cmd
}

func serveMetrics(addr string, m *metrics.Metrics) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	return srv, nil
}

func follow(ctx context.Context, cmd *cobra.Command, s *app.Session, id string) error {
	out := cmd.OutOrStdout()
	events, unsub := s.Bus().Subscribe("", 256)
	defer unsub()

	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := s.OpenConversation(openCtx, id)
	cancel()
	if err != nil {
		return err
	}
	writeTranscript(out, s.Transcript(id, time.Local))

	printed := make(map[string]bool)
	for _, m := range s.State().Messages(id) {
		printed[m.Key()] = true
	}

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case evt := <-events:
			switch evt.Kind {
			case bus.KindMessageAppended:
				ref, ok := evt.Payload.(bus.MessageRef)
				if !ok || ref.ConversationID != id {
					continue
				}
				for _, m := range s.State().Messages(id) {
					if !printed[m.Key()] {
						printed[m.Key()] = true
						writeMessage(out, m)
					}
				}
			case bus.KindStatusChanged:
				if change, ok := evt.Payload.(status.Change); ok {
					fmt.Fprintf(cmd.ErrOrStderr(), "realtime: %s\n", change.To)
				}
			case bus.KindIdentityResolved:
				if res := s.Identity(id); res.InternalID != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "participant matched record %s\n", res.InternalID)
				}
			}
		}
	}
}
