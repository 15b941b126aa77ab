package main

import (
	"context"
	"fmt"

	"github.com/matheus3301/inboxsync/internal/app"
	"github.com/matheus3301/inboxsync/internal/identity"
	"github.com/spf13/cobra"
)

func newResolveCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <conversation-id>",
		Short: "Match a conversation's participant to an internal record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.oneShot(cmd, func(ctx context.Context, s *app.Session) error {
				if err := s.OpenConversation(ctx, args[0]); err != nil {
					return err
				}
				res := s.ResolveIdentity(ctx, args[0])
				if g.json {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				switch res.State {
				case identity.Found:
					fmt.Fprintf(cmd.OutOrStdout(), "found %s (via %s)\n", res.InternalID, res.Candidate)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s\n", res.State)
				}
				return nil
			})
		},
	}
}
