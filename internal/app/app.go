// Package app wires configuration, storage, the remote store and the
// scheduler together for the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/julianstephens/petminder/internal/backup"
	"github.com/julianstephens/petminder/internal/config"
	"github.com/julianstephens/petminder/internal/constants"
	"github.com/julianstephens/petminder/internal/keyring"
	"github.com/julianstephens/petminder/internal/logger"
	"github.com/julianstephens/petminder/internal/models"
	"github.com/julianstephens/petminder/internal/notifier"
	"github.com/julianstephens/petminder/internal/presenter"
	"github.com/julianstephens/petminder/internal/remote"
	"github.com/julianstephens/petminder/internal/scheduler"
	"github.com/julianstephens/petminder/internal/storage"
	"github.com/julianstephens/petminder/internal/timing"
)

// MemoryRemote as remote_dsn selects an in-process remote store. Nothing is
// shared; it exists for dry runs of the sync path.
const MemoryRemote = "memory"

type Options struct {
	// Clock defaults to the real clock.
	Clock clockwork.Clock
	// Live starts the event loop and gocron timers for `petminder run`.
	// Without it timers are never armed and mutations complete inline.
	Live bool
	// Remote overrides the store resolved from the config.
	Remote remote.Store
	// Presenter overrides the one named by the config. Only used when Live.
	Presenter scheduler.Presenter
}

type App struct {
	Config    *config.Config
	Store     storage.Provider
	Clock     *timing.ClockContext
	Scheduler *scheduler.Scheduler
	Backups   *backup.Manager
	Metrics   *scheduler.Metrics
	Registry  *prometheus.Registry

	remote   remote.Store
	postgres *remote.PostgresStore
	loop     *scheduler.Loop
	timers   *scheduler.GocronTimers
	telegram *presenter.Telegram
	// spawned tracks activity log writes so Close can wait for them.
	spawned sync.WaitGroup
}

// Init creates the local store and writes an empty snapshot into it.
func Init(cfg *config.Config) error {
	store := storage.New(cfg.StorePath)
	if err := store.Init(); err != nil {
		return err
	}
	defer store.Close()

	snap, err := store.LoadSnapshot()
	if err != nil {
		return err
	}
	if len(snap.Dogs) > 0 {
		return nil
	}
	return store.SaveSnapshot(snap)
}

// Open loads the local snapshot and builds a scheduler over it. Close must
// be called to persist state and release the stores.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	store := storage.New(cfg.StorePath)
	if err := store.Load(); err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Store:    store,
		Clock:    timing.NewClockContext(opts.Clock),
		Backups:  backup.NewManager(store.GetConfigPath()),
		Registry: prometheus.NewRegistry(),
	}
	if opts.Clock != nil {
		a.Backups.WithClock(opts.Clock)
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = scheduler.MustNewMetrics(a.Registry)

	snap, err := store.LoadSnapshot()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	family, err := snap.Restore(a.Clock)
	if err != nil {
		store.Close()
		return nil, err
	}

	a.remote = opts.Remote
	if a.remote == nil {
		if err := a.openRemote(ctx); err != nil {
			store.Close()
			return nil, err
		}
	}

	schedCfg := scheduler.Config{
		Clock:           a.Clock,
		Timers:          scheduler.NopTimers{},
		Remote:          a.remote,
		ActivityLog:     store,
		Metrics:         a.Metrics,
		SnoozeDuration:  cfg.SnoozeDuration,
		Context:         ctx,
		Spawn:           a.spawn,
		OnCommit:        a.save,
		BeforeReconcile: a.backupBeforeSync,
	}

	if opts.Live {
		a.loop = scheduler.NewLoop()
		a.timers, err = scheduler.NewGocronTimers(opts.Clock)
		if err != nil {
			a.Close()
			return nil, err
		}
		schedCfg.Timers = a.timers
		schedCfg.Post = func(fn func()) {
			if !a.loop.Post(fn) {
				logger.Debug("Dropping event posted after shutdown")
			}
		}
		schedCfg.Presenter = opts.Presenter
		if schedCfg.Presenter == nil {
			if schedCfg.Presenter, err = a.buildPresenter(); err != nil {
				a.Close()
				return nil, err
			}
		}
	}

	a.Scheduler = scheduler.New(family, schedCfg)
	return a, nil
}

func (a *App) openRemote(ctx context.Context) error {
	dsn, fromKeyring := a.Config.RemoteDSN, false
	if dsn == "" {
		stored, err := keyring.GetRemoteDSN()
		switch {
		case err == nil:
			dsn, fromKeyring = stored, true
		case errors.Is(err, keyring.ErrNotFound):
		default:
			logger.Debug("Keyring lookup failed", "error", err)
		}
	}
	if dsn == "" {
		return nil
	}
	if dsn == MemoryRemote {
		a.remote = remote.NewMemory()
		return nil
	}

	if err := remote.ValidateConnString(dsn); err != nil {
		// The encrypted keyring may hold a password; config files may not.
		if !(fromKeyring && errors.Is(err, remote.ErrEmbeddedCredentials)) {
			return err
		}
	}

	pg := remote.NewPostgres(dsn, a.Config.RemoteSchema)
	if err := pg.Open(ctx); err != nil {
		return err
	}
	a.postgres = pg
	a.remote = pg
	return nil
}

func (a *App) buildPresenter() (scheduler.Presenter, error) {
	switch a.Config.Presenter {
	case config.PresenterTelegram:
		api, err := presenter.NewTelegramBot(a.Config.TelegramToken)
		if err != nil {
			return nil, err
		}
		a.telegram = presenter.NewTelegram(api, a.Config.TelegramChatID)
		return a.telegram, nil
	case config.PresenterDesktop:
		return presenter.NewDesktop(notifier.New(), presenter.NewTerminal(os.Stdout)), nil
	default:
		return presenter.NewTerminal(os.Stdout), nil
	}
}

// HasRemote reports whether a remote store is configured.
func (a *App) HasRemote() bool { return a.remote != nil }

// Exec runs op on the scheduler and waits for its completion callback.
func (a *App) Exec(ctx context.Context, op func(done func(error))) error {
	errc := make(chan error, 1)
	call := func() { op(func(err error) { errc <- err }) }
	if a.loop != nil {
		if err := a.loop.Do(ctx, call); err != nil {
			return err
		}
	} else {
		call()
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddDog is Exec for the one mutation whose callback also returns a value.
func (a *App) AddDog(ctx context.Context, name string) (*models.Dog, error) {
	var dog *models.Dog
	err := a.Exec(ctx, func(done func(error)) {
		a.Scheduler.AddDog(name, func(d *models.Dog, err error) {
			dog = d
			done(err)
		})
	})
	return dog, err
}

func (a *App) spawn(fn func()) {
	a.spawned.Add(1)
	go func() {
		defer a.spawned.Done()
		fn()
	}()
}

func (a *App) save() {
	if err := a.Store.SaveSnapshot(a.Scheduler.Snapshot()); err != nil {
		logger.Error("Failed to save snapshot", "error", err)
	}
}

func (a *App) backupBeforeSync() {
	path, err := a.Backups.CreateBackup()
	if err != nil {
		logger.Warn("Pre-sync backup failed", "error", err)
		return
	}
	logger.Debug("Pre-sync backup created", "path", path)
}

// Close saves the snapshot and releases the stores.
func (a *App) Close() error {
	var errs []error
	a.spawned.Wait()
	if a.Scheduler != nil {
		if err := a.Store.SaveSnapshot(a.Scheduler.Snapshot()); err != nil {
			errs = append(errs, fmt.Errorf("failed to save snapshot: %w", err))
		}
	}
	if a.timers != nil {
		if err := a.timers.Shutdown(); err != nil {
			logger.Debug("gocron shutdown", "error", err)
		}
	}
	if a.postgres != nil {
		if err := a.postgres.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DefaultConfigPath is where `init` writes config.yaml.
func DefaultConfigPath(cfg *config.Config) string {
	return filepath.Join(cfg.ConfigDir(), constants.DefaultConfigFile)
}
