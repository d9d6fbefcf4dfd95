// Package app composes the whole program with fx: storage, engine,
// session, and the terminal front end, with ordered start and stop.
package app

import (
	"context"

	"github.com/parley-chat/parley/internal/bus"
	"github.com/parley-chat/parley/internal/chat"
	"github.com/parley-chat/parley/internal/clock"
	"github.com/parley-chat/parley/internal/config"
	"github.com/parley-chat/parley/internal/lifecycle"
	"github.com/parley-chat/parley/internal/lock"
	"github.com/parley-chat/parley/internal/logging"
	"github.com/parley-chat/parley/internal/offline"
	"github.com/parley-chat/parley/internal/paths"
	"github.com/parley-chat/parley/internal/ports"
	"github.com/parley-chat/parley/internal/respond"
	"github.com/parley-chat/parley/internal/session"
	"github.com/parley-chat/parley/internal/store"
	"github.com/parley-chat/parley/internal/tui"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved launch options passed to the fx module.
type Params struct {
	ProfileName string
	DisplayName string
	StartOnline bool
}

// Module composes all providers and lifecycle hooks.
func Module(p Params, cfg *config.Config) fx.Option {
	return fx.Module("parley",
		fx.Supply(p, cfg),
		fx.Provide(
			provideLogger,
			provideBus,
			provideClock,
			provideLock,
			provideDB,
			provideKV,
			provideChatStore,
			provideTracker,
			provideQueue,
			provideAssistant,
			provideLink,
			provideSpeech,
			provideSession,
			provideTUI,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(paths.LogPath(p.ProfileName), p.ProfileName)
}

func provideBus() *bus.Bus { return bus.New() }

func provideClock() clock.Clock { return clock.New() }

func provideLock(p Params, logger *zap.Logger) (*lock.ProfileLock, error) {
	if err := paths.EnsureProfileDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(paths.ProfileDir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	return l, nil
}

func provideDB(p Params, _ *lock.ProfileLock, logger *zap.Logger) (*store.DB, error) {
	dbPath := paths.DBPath(p.ProfileName)
	db, err := store.Open(dbPath)
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
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideKV(db *store.DB, logger *zap.Logger) *store.KV {
	return store.NewKV(db, logger)
}

func provideChatStore(kv *store.KV, b *bus.Bus, clk clock.Clock, cfg *config.Config, logger *zap.Logger) *chat.Store {
	return chat.New(kv, b, clk, logger, cfg.MaxMessageLen)
}

func provideTracker(chats *chat.Store, clk clock.Clock, cfg *config.Config, logger *zap.Logger) *lifecycle.Tracker {
	return lifecycle.NewTracker(chats, clk, logger, lifecycle.Delays{
		Deliver:       cfg.DeliverDelay(),
		DeliverJitter: cfg.DeliverJitter(),
		Read:          cfg.ReadDelay(),
		ReadJitter:    cfg.ReadJitter(),
	})
}

func provideQueue(kv *store.KV, clk clock.Clock, logger *zap.Logger) *offline.Queue {
	return offline.New(kv, clk, logger)
}

func provideAssistant(kv *store.KV, b *bus.Bus, clk clock.Clock, cfg *config.Config, logger *zap.Logger) *respond.Engine {
	return respond.New(kv, b, clk, logger, respond.Options{
		MemorySize: cfg.MemorySize,
		MemoryKey:  store.KeyMemory,
	})
}

func provideLink(p Params) *ports.SimulatedLink {
	return ports.NewSimulatedLink(p.StartOnline)
}

func provideSpeech() ports.SpeechPort {
	// No speech backend ships yet; the session degrades the feature.
	return ports.NullSpeech{}
}

func provideSession(
	cfg *config.Config,
	logger *zap.Logger,
	b *bus.Bus,
	clk clock.Clock,
	chats *chat.Store,
	queue *offline.Queue,
	tracker *lifecycle.Tracker,
	assistant *respond.Engine,
	link *ports.SimulatedLink,
	speech ports.SpeechPort,
) *session.Session {
	return session.New(session.Params{
		Config:    cfg,
		Logger:    logger,
		Bus:       b,
		Clock:     clk,
		Chats:     chats,
		Queue:     queue,
		Tracker:   tracker,
		Assistant: assistant,
		Link:      link,
		Speech:    speech,
	})
}

func provideTUI(p Params, sess *session.Session, link *ports.SimulatedLink) *tui.App {
	return tui.NewApp(sess, link, p.ProfileName)
}

func registerLifecycle(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	p Params,
	sess *session.Session,
	ui *tui.App,
	db *store.DB,
	lk *lock.ProfileLock,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			sess.Start(p.DisplayName)

			// The TUI owns the foreground; its exit ends the process.
			go func() {
				if err := ui.Run(); err != nil {
					logger.Error("terminal ui error", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			ui.Stop()
			sess.Close()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
