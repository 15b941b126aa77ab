// Package app wires the sync engine and its collaborators with fx.
package app

import (
	"context"
	"net/http"

	"github.com/matheus3301/inboxsync/internal/api"
	"github.com/matheus3301/inboxsync/internal/bus"
	"github.com/matheus3301/inboxsync/internal/cache"
	"github.com/matheus3301/inboxsync/internal/config"
	"github.com/matheus3301/inboxsync/internal/identity"
	"github.com/matheus3301/inboxsync/internal/inbox"
	"github.com/matheus3301/inboxsync/internal/lock"
	"github.com/matheus3301/inboxsync/internal/logging"
	"github.com/matheus3301/inboxsync/internal/metrics"
	"github.com/matheus3301/inboxsync/internal/outbox"
	"github.com/matheus3301/inboxsync/internal/realtime"
	"github.com/matheus3301/inboxsync/internal/session"
	"github.com/matheus3301/inboxsync/internal/status"
	"github.com/matheus3301/inboxsync/internal/store"
	intsync "github.com/matheus3301/inboxsync/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	Config      *config.Config
	Token       string
	Self        inbox.Person
	// Follow connects the push channel on start and takes the session's
	// follower lock.
	Follow  bool
	Command string
}

// Module returns the fx module composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	if p.Config == nil {
		p.Config = config.Default()
	}
	return fx.Module("inboxsync",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			metrics.New,
			bus.New,
			status.NewMachine,
			provideCache,
			provideAPIClient,
			realtime.NewHub,
			provideRealtimeClient,
			inbox.NewState,
			inbox.NewPeople,
			provideFlash,
			provideResolver,
			provideEngine,
			provideSender,
			provideLock,
			provideStore,
			NewSession,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	return logging.New(session.LogPath(p.SessionName), p.SessionName, p.Config.Log.Level)
}

func provideCache(p Params, m *metrics.Metrics) *cache.Store {
	return cache.New(p.Config.Cache.TTL.Duration, cache.WithMetrics(m.Cache()))
}

func provideAPIClient(p Params, logger *zap.Logger) *api.Client {
	opts := []api.Option{
		api.WithTokenSource(api.StaticToken(p.Token)),
		api.WithRateLimit(p.Config.API.RequestsPerSecond),
		api.WithLogger(logger.Named("api")),
	}
	if t := p.Config.API.Timeout.Duration; t > 0 {
		opts = append(opts, api.WithHTTPClient(&http.Client{Timeout: t}))
	}
	return api.New(p.Config.API.BaseURL, opts...)
}

func provideRealtimeClient(p Params, hub *realtime.Hub, machine *status.Machine, logger *zap.Logger) *realtime.Client {
	return realtime.NewClient(realtime.Config{
		URL:    p.Config.API.RealtimeURL,
		Tokens: api.StaticToken(p.Token),
	}, hub, machine, logger.Named("realtime"))
}

func provideFlash() *inbox.Flash {
	return &inbox.Flash{}
}

func provideResolver(p Params, client *api.Client, b *bus.Bus, logger *zap.Logger) (*identity.Resolver, error) {
	return identity.NewResolver(client, p.Config.Identity.URLPattern, b, logger.Named("identity"))
}

func provideEngine(state *inbox.State, people *inbox.People, hub *realtime.Hub, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(state, people, hub, b, logger.Named("sync"), intsync.WithRecorder(m))
}

func provideSender(p Params, client *api.Client, engine *intsync.Engine, b *bus.Bus, flash *inbox.Flash, m *metrics.Metrics, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(client, engine, b, flash, logger.Named("outbox"),
		outbox.WithSelf(p.Self),
		outbox.WithRecorder(m),
	)
}

// provideLock returns a nil lock unless the session follows the push channel.
func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if !p.Follow {
		return nil, nil
	}
	l, err := lock.Acquire(session.Dir(p.SessionName), "follow", p.Command)
	if err != nil {
		return nil, err
	}
	logger.Info("follower lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	path := session.PrefsDBPath(p.SessionName)
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	}
	logger.Debug("prefs store initialized", zap.String("path", path))
	return db, nil
}

func registerLifecycle(lc fx.Lifecycle, p Params, lk *lock.Lock, engine *intsync.Engine, rt *realtime.Client, db *store.DB, c *cache.Store, sess *Session, m *metrics.Metrics, b *bus.Bus, logger *zap.Logger) {
	all := make([]string, 0, len(status.All()))
	for _, s := range status.All() {
		all = append(all, string(s))
	}
	var (
		unsub func()
		done  = make(chan struct{})
	)

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			m.SetConnection(string(rt.State()), all)
			var ch <-chan bus.Event
			ch, unsub = b.Subscribe(bus.KindStatusChanged, 16)
			go func() {
				for {
					select {
					case evt := <-ch:
						if change, ok := evt.Payload.(status.Change); ok {
							m.SetConnection(string(change.To), all)
						}
					case <-done:
						return
					}
				}
			}()

			engine.Start(context.Background())
			if p.Follow && p.Config.API.RealtimeURL != "" {
				rt.Start(context.Background())
			}
			logger.Info("session started", zap.Bool("follow", p.Follow))
			return nil
		},
		OnStop: func(_ context.Context) error {
			rt.Stop()
			engine.Stop()
			sess.Close()
			if unsub != nil {
				unsub()
				close(done)
			}
			// The cache lives for one session only.
			c.Clear()
			if err := db.Close(); err != nil {
				logger.Warn("error closing prefs store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("session stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
