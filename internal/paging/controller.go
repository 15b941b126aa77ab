package paging

import (
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/matheus3301/inboxsync/internal/debounce"
	"go.uber.org/zap"
)

// ViewPrefs are the per-view settings that survive restarts.
type ViewPrefs struct {
	SortBy    string
	SortOrder Order
	Limit     int
}

// Prefs persists view preferences.
type Prefs interface {
	LoadView(view string) (ViewPrefs, bool, error)
	SaveView(view string, p ViewPrefs) error
}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	Defaults    Params
	SearchDelay time.Duration
	// OnChange receives the effective params whenever they change.
	OnChange func(Params)
	// View names the list for Prefs. Prefs may be nil.
	View   string
	Prefs  Prefs
	Logger *zap.Logger
}

// Controller owns the query parameters of one list. The effective params are
// the raw params with Search replaced by its debounced value; they are
// recomputed after every mutation and reported only when they actually change.
type Controller struct {
	mu        sync.Mutex
	params    Params
	debounced string
	effective Params
	search    *debounce.Debouncer[string]
	onChange  func(Params)
	view      string
	prefs     Prefs
	logger    *zap.Logger
}

// NewController creates a controller. Stored view preferences override the
// defaults for sort and limit.
func NewController(opts ControllerOptions) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	p := opts.Defaults.Clone()
	if p.Page < 1 {
		p.Page = 1
	}
	if p.SortBy == "" {
		p.SortBy = DefaultSortBy
		p.SortOrder = Desc
	}
	if opts.Prefs != nil && opts.View != "" {
		vp, ok, err := opts.Prefs.LoadView(opts.View)
		switch {
		case err != nil:
			opts.Logger.Warn("load view prefs failed", zap.String("view", opts.View), zap.Error(err))
		case ok:
			if vp.SortBy != "" {
				p.SortBy, p.SortOrder = vp.SortBy, vp.SortOrder
			}
			if vp.Limit > 0 {
				p.Limit = vp.Limit
			}
		}
	}

	c := &Controller{
		params:    p,
		debounced: p.Search,
		effective: p.Clone(),
		onChange:  opts.OnChange,
		view:      opts.View,
		prefs:     opts.Prefs,
		logger:    opts.Logger,
	}
	c.search = debounce.New(opts.SearchDelay, c.settleSearch)
	return c
}

// Params returns the raw parameters, with the undebounced search text.
func (c *Controller) Params() Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.Clone()
}

// Effective returns the parameters a fetch should use.
func (c *Controller) Effective() Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effective.Clone()
}

func (c *Controller) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	c.mutate(func(p *Params) { p.Page = page })
}

// SetLimit changes the page size and returns to page 1.
func (c *Controller) SetLimit(limit int) {
	c.mutate(func(p *Params) {
		p.Limit = limit
		p.Page = 1
	})
	c.savePrefs()
}

// SetSearch records the search text and returns to page 1. The text reaches
// the effective params once typing has paused.
func (c *Controller) SetSearch(s string) {
	c.mutate(func(p *Params) {
		p.Search = s
		p.Page = 1
	})
	c.search.Set(s)
}

// SetFilters replaces the filters and returns to page 1.
func (c *Controller) SetFilters(f map[string][]string) {
	f = Params{Filters: f}.Clone().Filters
	c.mutate(func(p *Params) {
		p.Filters = f
		p.Page = 1
	})
}

// SetSorting changes the sort. The page is kept.
func (c *Controller) SetSorting(field string, order Order) {
	if order != Asc {
		order = Desc
	}
	c.mutate(func(p *Params) {
		p.SortBy = field
		p.SortOrder = order
	})
	c.savePrefs()
}

// FlushSearch applies a pending search immediately.
func (c *Controller) FlushSearch() {
	c.search.Flush()
}

// Close stops the search debouncer.
func (c *Controller) Close() {
	c.search.Stop()
}

func (c *Controller) settleSearch(s string) {
	c.mu.Lock()
	c.debounced = s
	next, changed := c.recomputeLocked()
	c.mu.Unlock()
	if changed {
		c.notify(next)
	}
}

func (c *Controller) mutate(fn func(p *Params)) {
	c.mu.Lock()
	fn(&c.params)
	next, changed := c.recomputeLocked()
	c.mu.Unlock()
	if changed {
		c.notify(next)
	}
}

func (c *Controller) recomputeLocked() (Params, bool) {
	next := c.params.Clone()
	next.Search = c.debounced
	if cmp.Equal(next, c.effective, cmpopts.EquateEmpty()) {
		return Params{}, false
	}
	c.effective = next
	return next.Clone(), true
}

func (c *Controller) notify(p Params) {
	if c.onChange != nil {
		c.onChange(p)
	}
}

func (c *Controller) savePrefs() {
	if c.prefs == nil || c.view == "" {
		return
	}
	c.mu.Lock()
	vp := ViewPrefs{SortBy: c.params.SortBy, SortOrder: c.params.SortOrder, Limit: c.params.Limit}
	c.mu.Unlock()
	if err := c.prefs.SaveView(c.view, vp); err != nil {
		c.logger.Warn("save view prefs failed", zap.String("view", c.view), zap.Error(err))
	}
}
