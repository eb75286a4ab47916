package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/petminder/internal/constants"
	perrors "github.com/julianstephens/petminder/internal/errors"
	"github.com/julianstephens/petminder/internal/logger"
	"github.com/julianstephens/petminder/internal/models"
	"github.com/julianstephens/petminder/internal/remote"
)

// Run drives the live engine until ctx is cancelled: the event loop, gocron
// timers, the remote change feed, the Telegram poller and the metrics
// endpoint. State is saved when it returns.
func (a *App) Run(ctx context.Context) error {
	if a.loop == nil {
		return errors.New("app was not opened in live mode")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.loop.Run(ctx) })

	a.timers.Start()
	a.loop.Post(func() {
		logger.Info("petminder running", "dogs", len(a.Scheduler.Family().Dogs()), "remote", a.remote != nil)
		a.Scheduler.Reinitialize()
		if a.remote != nil {
			a.Scheduler.SyncAll(a.logSync("startup"))
		}
	})

	if a.postgres != nil {
		feed, err := remote.Listen(a.postgres.ConnString(), constants.RemoteNotifyChannel)
		if err != nil {
			logger.Warn("Remote change feed unavailable; syncing on startup only", "error", err)
		} else {
			g.Go(func() error { return a.watch(ctx, feed) })
		}
	}

	if a.telegram != nil {
		g.Go(func() error { return a.telegram.Run(ctx) })
	}

	if addr := a.Config.MetricsAddr; addr != "" {
		g.Go(func() error { return a.serveMetrics(ctx, addr) })
	}

	err := g.Wait()
	if err := a.timers.Shutdown(); err != nil {
		logger.Debug("gocron shutdown", "error", err)
	}
	a.timers = nil
	return err
}

// watch turns change notifications into syncs. The zero ID asks for a full
// sync, as does a dog this process has not seen yet.
func (a *App) watch(ctx context.Context, feed remote.ChangeFeed) error {
	defer feed.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case id, ok := <-feed.Changes():
			if !ok {
				return nil
			}
			a.loop.Post(func() { a.syncChanged(id) })
		}
	}
}

func (a *App) syncChanged(id models.ID) {
	if id.IsZero() {
		a.Scheduler.SyncAll(a.logSync("change feed"))
		return
	}
	a.Scheduler.SyncDog(id, func(err error) {
		if perrors.Is(err, perrors.ErrNotFound) {
			a.Scheduler.SyncAll(a.logSync("change feed"))
			return
		}
		a.logSync("change feed")(err)
	})
}

func (a *App) logSync(trigger string) func(error) {
	return func(err error) {
		if err != nil {
			logger.Error("Sync failed", "trigger", trigger, "error", err)
			return
		}
		logger.Debug("Sync complete", "trigger", trigger)
	}
}

func (a *App) serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("Serving metrics", "addr", addr)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
