package app

import (
	"context"
	"sync"

	"github.com/matheus3301/inboxsync/internal/cache"
	"github.com/matheus3301/inboxsync/internal/inbox"
	"github.com/matheus3301/inboxsync/internal/paging"
	"github.com/matheus3301/inboxsync/internal/query"
	"go.uber.org/zap"
)

// ConversationsView names the conversation list in the prefs store.
const ConversationsView = "conversations"

// ConversationSchema reads conversation fields for local search, filter and sort.
var ConversationSchema = paging.Schema[inbox.Conversation]{
	Searchable: []string{"name", "preview"},
	Field:      conversationField,
}

func conversationField(c inbox.Conversation, name string) any {
	switch name {
	case "id":
		return c.ID
	case "name":
		return c.Participant.Name
	case "preview":
		return c.LastMessagePreview
	case "unread":
		return c.Unread
	case "starred":
		return c.Starred
	case "lastActivityAt":
		return c.LastActivityAt
	case "createdAt":
		return c.CreatedAt
	}
	return nil
}

// ConversationPage is one page of the conversation list.
type ConversationPage = paging.Page[inbox.Conversation]

// ConversationList is a paged, searchable view of conversations. The first
// page fetched for new params replaces the inbox summary list that push
// events update; periodic refetches of the same params are merged into it,
// keeping pages added by LoadMore and conversations opened directly.
type ConversationList struct {
	Controller *paging.Controller

	s      *Session
	query  *query.Query[paging.Params, ConversationPage]
	loader *paging.Loader[inbox.Conversation]

	mu        sync.Mutex
	synced    uint64
	syncedKey string
	refresh   bool
	onChange  func(query.State[ConversationPage])
	done      chan struct{}
	wg        sync.WaitGroup
}

// Conversations creates a list view. onChange, if set, is called from a
// background goroutine after every state change of the list.
func (s *Session) Conversations(onChange func(query.State[ConversationPage])) *ConversationList {
	cfg := s.d.Params.Config
	l := &ConversationList{s: s, onChange: onChange, done: make(chan struct{})}

	l.query = query.New(s.d.Cache, l.fetch, query.Options[paging.Params, ConversationPage]{
		Key: func(p paging.Params) (string, error) {
			return cache.Key("conversations", p)
		},
		RefetchInterval: cfg.Query.RefetchInterval.Duration,
	}, s.d.Logger.Named("conversations"))

	var prefs paging.Prefs
	if s.d.Prefs != nil {
		prefs = s.d.Prefs
	}
	l.Controller = paging.NewController(paging.ControllerOptions{
		Defaults:    paging.DefaultParams(cfg.Query.PageLimit),
		SearchDelay: cfg.Query.SearchDebounce.Duration,
		OnChange: func(p paging.Params) {
			l.loader.Reset()
			l.query.SetDeps(p)
		},
		View:   ConversationsView,
		Prefs:  prefs,
		Logger: s.d.Logger,
	})
	l.loader = paging.NewLoader(l.loadAfter)

	l.wg.Add(1)
	go l.watch()
	l.query.SetDeps(l.Controller.Effective())
	return l
}

func (l *ConversationList) fetch(ctx context.Context, p paging.Params) (ConversationPage, error) {
	body, err := l.s.d.Client.ListConversations(ctx, p.Values())
	if err != nil {
		return ConversationPage{}, err
	}
	return paging.DecodeList(body, p, ConversationSchema)
}

// loadAfter fetches the n-th page after the one the query shows.
func (l *ConversationList) loadAfter(ctx context.Context, n int) (ConversationPage, error) {
	p := l.Controller.Effective()
	p.Page += n
	return l.fetch(ctx, p)
}

func (l *ConversationList) watch() {
	defer l.wg.Done()
	for {
		select {
		case <-l.query.Changes():
			st := l.query.State()
			l.mu.Lock()
			fresh := st.HasData && !st.IsLoading && !st.IsRefetching && st.Epoch != l.synced
			replace := fresh && (l.refresh || st.Key != l.syncedKey)
			if fresh {
				l.synced = st.Epoch
				l.syncedKey = st.Key
				l.refresh = false
			}
			l.mu.Unlock()
			if fresh {
				l.s.d.People.AddParticipants(st.Data.Data)
				if replace {
					l.s.d.State.SetConversations(st.Data.Data)
				} else {
					l.s.d.State.MergeConversations(st.Data.Data)
				}
			}
			if l.onChange != nil {
				l.onChange(st)
			}
		case <-l.done:
			return
		}
	}
}

// State returns the current query state of the list.
func (l *ConversationList) State() query.State[ConversationPage] {
	return l.query.State()
}

// LoadMore appends the next page to the inbox summary list. It is a no-op
// while a load is running or when the list is exhausted.
func (l *ConversationList) LoadMore(ctx context.Context) (bool, error) {
	if st := l.query.State(); st.HasData && !st.Data.HasMore {
		return false, nil
	}
	before := len(l.loader.Items())
	loaded, err := l.loader.LoadMore(ctx)
	if err != nil {
		return false, l.s.fail("Could not load more conversations", err)
	}
	if loaded {
		items := l.loader.Items()
		l.s.d.People.AddParticipants(items[before:])
		l.s.d.State.AppendConversations(items[before:])
		l.s.d.Logger.Debug("loaded more conversations", zap.Int("count", len(items)-before))
	}
	return loaded, nil
}

// HasMore reports whether LoadMore can return anything.
func (l *ConversationList) HasMore() bool {
	if st := l.query.State(); st.HasData && !st.Data.HasMore {
		return false
	}
	return l.loader.HasMore()
}

// Refresh drops the cached page and fetches it again.
func (l *ConversationList) Refresh() {
	l.mu.Lock()
	l.refresh = true
	l.mu.Unlock()
	l.loader.Reset()
	l.query.Invalidate()
}

// Close stops the list. Pending fetches are discarded.
func (l *ConversationList) Close() {
	l.Controller.Close()
	l.query.Close()
	close(l.done)
	l.wg.Wait()
}
