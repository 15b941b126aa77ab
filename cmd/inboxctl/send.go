package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/matheus3301/inboxsync/internal/app"
	"github.com/spf13/cobra"
)

func newSendCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "send <conversation-id> <text>...",
		Short: "Send a message to a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.oneShot(cmd, func(ctx context.Context, s *app.Session) error {
				if err := s.OpenConversation(ctx, args[0]); err != nil {
					return err
				}
				s.Composer().SetText(strings.Join(args[1:], " "))
				msg, err := s.Send(ctx)
				if err != nil {
					return err
				}
				if g.json {
					return writeJSON(cmd.OutOrStdout(), msg)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", msg.ID)
				return nil
			})
		},
	}
}

func newStarCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "star <conversation-id>",
		Short: "Toggle the starred flag of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.oneShot(cmd, func(ctx context.Context, s *app.Session) error {
				if err := s.OpenConversation(ctx, args[0]); err != nil {
					return err
				}
				if err := s.ToggleStar(ctx, args[0]); err != nil {
					return err
				}
				c, _ := s.State().Conversation(args[0])
				if g.json {
					return writeJSON(cmd.OutOrStdout(), c)
				}
				word := "unstarred"
				if c.Starred {
					word = "starred"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", word, c.ID)
				return nil
			})
		},
	}
}
