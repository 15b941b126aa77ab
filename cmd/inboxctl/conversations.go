package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/inboxsync/internal/app"
	"github.com/matheus3301/inboxsync/internal/paging"
	"github.com/matheus3301/inboxsync/internal/query"
	"github.com/spf13/cobra"
)

func newConversationsCmd(g *globals) *cobra.Command {
	var (
		page    int
		limit   int
		search  string
		sortBy  string
		order   string
		filters []string
		more    int
	)
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List conversations",
		Example: `  inboxctl conversations --search ada --filter unread=true
  inboxctl conversations --sort name --order asc --limit 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := parseFilters(filters)
			if err != nil {
				return err
			}
			if order != "" && order != string(paging.Asc) && order != string(paging.Desc) {
				return fmt.Errorf("--order must be asc or desc")
			}
			return g.oneShot(cmd, func(ctx context.Context, s *app.Session) error {
				changed := make(chan struct{}, 1)
				list := s.Conversations(func(query.State[app.ConversationPage]) {
					select {
					case changed <- struct{}{}:
					default:
					}
				})
				defer list.Close()

				c := list.Controller
				if cmd.Flags().Changed("limit") {
					c.SetLimit(limit)
				}
				if sortBy != "" || order != "" {
					p := c.Params()
					if sortBy != "" {
						p.SortBy = sortBy
					}
					if order != "" {
						p.SortOrder = paging.Order(order)
					}
					c.SetSorting(p.SortBy, p.SortOrder)
				}
				if search != "" {
					c.SetSearch(search)
					c.FlushSearch()
				}
				if len(f) > 0 {
					c.SetFilters(f)
				}
				if page > 1 {
					c.SetPage(page)
				}

				st, err := settle(ctx, list, changed)
				if err != nil {
					return err
				}
				for i := 0; i < more && list.HasMore(); i++ {
					if _, err := list.LoadMore(ctx); err != nil {
						return err
					}
				}

				if g.json {
					if more > 0 {
						return writeJSON(cmd.OutOrStdout(), s.State().Conversations())
					}
					return writeJSON(cmd.OutOrStdout(), st.Data)
				}
				rows := st.Data.Data
				if more > 0 {
					rows = s.State().Conversations()
				}
				if err := writeConversations(cmd.OutOrStdout(), rows, time.Now()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\npage %d/%d, %d total\n", st.Data.Page, st.Data.TotalPages, st.Data.Total)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 20, "page size")
	cmd.Flags().StringVar(&search, "search", "", "search text")
	cmd.Flags().StringVar(&sortBy, "sort", "", "sort field (createdAt, lastActivityAt, name, ...)")
	cmd.Flags().StringVar(&order, "order", "", "sort order: asc or desc")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "filter as field=value (repeatable)")
	cmd.Flags().IntVar(&more, "more", 0, "load this many further pages into the inbox")
	return cmd
}

// settle waits until the list has a committed result for its current params.
func settle(ctx context.Context, list *app.ConversationList, changed <-chan struct{}) (query.State[app.ConversationPage], error) {
	for {
		st := list.State()
		if st.Err != nil {
			return st, st.Err
		}
		if st.HasData && !st.IsLoading && !st.IsRefetching {
			return st, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

func parseFilters(raw []string) (map[string][]string, error) {
	out := make(map[string][]string)
	for _, f := range raw {
		k, v, ok := strings.Cut(f, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid filter %q: want field=value", f)
		}
		out[k] = append(out[k], v)
	}
	return out, nil
}
