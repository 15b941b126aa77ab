// Package identity maps external actor references to internal record ids.
//
// Results are kept per conversation for the whole session. A found result is
// never replaced by a later miss; a miss may be probed again.
package identity

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/matheus3301/inboxsync/internal/bus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// State of a conversation's resolution.
type State string

const (
	Unknown  State = "unknown"
	Checking State = "checking"
	Found    State = "found"
	NotFound State = "not-found"
)

// Resolution is the outcome for one conversation.
type Resolution struct {
	State      State
	InternalID string
	// Candidate is the key that matched.
	Candidate string
}

// Lookup probes one candidate key.
type Lookup interface {
	LookupIdentity(ctx context.Context, candidate string) (id string, found bool, err error)
}

// Resolved is the payload of bus.KindIdentityResolved.
type Resolved struct {
	ConversationID string
	Resolution
}

// Resolver caches identity resolutions per conversation.
type Resolver struct {
	mu      sync.Mutex
	entries map[string]Resolution
	group   singleflight.Group
	lookup  Lookup
	pattern *regexp.Regexp
	bus     *bus.Bus
	logger  *zap.Logger
}

// NewResolver creates a resolver. urlPattern's first capture group extracts
// an id from a profile URL; it may be empty.
func NewResolver(lookup Lookup, urlPattern string, b *bus.Bus, logger *zap.Logger) (*Resolver, error) {
	var re *regexp.Regexp
	if urlPattern != "" {
		var err error
		re, err = regexp.Compile(urlPattern)
		if err != nil {
			return nil, fmt.Errorf("compile identity url pattern: %w", err)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		entries: make(map[string]Resolution),
		lookup:  lookup,
		pattern: re,
		bus:     b,
		logger:  logger,
	}, nil
}

// Get returns the cached resolution without probing.
func (r *Resolver) Get(conversationID string) Resolution {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[conversationID]; ok {
		return e
	}
	return Resolution{State: Unknown}
}

// Candidates returns the lookup keys Resolve would try for ref.
func (r *Resolver) Candidates(ref Ref) []string {
	return Candidates(ref, r.pattern)
}

// Resolve probes the candidates of ref in order and stops at the first match.
// A found result is returned from the cache. Concurrent calls for the same
// conversation share one probe.
func (r *Resolver) Resolve(ctx context.Context, conversationID string, ref Ref) Resolution {
	if e := r.Get(conversationID); e.State == Found {
		return e
	}
	v, _, _ := r.group.Do(conversationID, func() (any, error) {
		r.mu.Lock()
		prev, had := r.entries[conversationID]
		if prev.State == Found {
			r.mu.Unlock()
			return prev, nil
		}
		r.entries[conversationID] = Resolution{State: Checking}
		r.mu.Unlock()

		res := r.probe(ctx, conversationID, r.Candidates(ref))

		r.mu.Lock()
		defer r.mu.Unlock()
		if cur := r.entries[conversationID]; cur.State == Found {
			return cur, nil
		}
		if res.State != Found && ctx.Err() != nil {
			// Cancelled probes leave no verdict.
			if had {
				r.entries[conversationID] = prev
			} else {
				delete(r.entries, conversationID)
			}
			return r.getLocked(conversationID), nil
		}
		r.entries[conversationID] = res
		if res.State == Found {
			r.bus.Emit(bus.KindIdentityResolved, Resolved{ConversationID: conversationID, Resolution: res})
		}
		return res, nil
	})
	return v.(Resolution)
}

func (r *Resolver) getLocked(conversationID string) Resolution {
	if e, ok := r.entries[conversationID]; ok {
		return e
	}
	return Resolution{State: Unknown}
}

func (r *Resolver) probe(ctx context.Context, conversationID string, candidates []string) Resolution {
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		id, found, err := r.lookup.LookupIdentity(ctx, c)
		if err != nil {
			r.logger.Debug("identity lookup failed",
				zap.String("conversation_id", conversationID),
				zap.String("candidate", c),
				zap.Error(err),
			)
			continue
		}
		if found {
			return Resolution{State: Found, InternalID: id, Candidate: c}
		}
	}
	return Resolution{State: NotFound}
}

// Reset forgets a conversation's miss so the next Resolve probes again.
// A found result is kept.
func (r *Resolver) Reset(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[conversationID].State != Found {
		delete(r.entries, conversationID)
	}
}

// Clear drops every resolution, found ones included. Called when the session ends.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.entries)
}

// MarkFound records a match learned outside a probe, for example after the
// user created the internal record.
func (r *Resolver) MarkFound(conversationID, internalID string) {
	res := Resolution{State: Found, InternalID: internalID}
	r.mu.Lock()
	r.entries[conversationID] = res
	r.mu.Unlock()
	r.bus.Emit(bus.KindIdentityResolved, Resolved{ConversationID: conversationID, Resolution: res})
}
