package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/fxbot/internal/engine"
	"github.com/alanyoungcy/fxbot/internal/notify"
	"github.com/alanyoungcy/fxbot/internal/server"
	"github.com/alanyoungcy/fxbot/internal/server/handler"
	"github.com/alanyoungcy/fxbot/internal/server/ws"
	"github.com/alanyoungcy/fxbot/internal/service"
)

// ServerMode runs the HTTP + WebSocket API without the exit-management loop.
// The reconciler is still available through the manual trigger endpoint.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	a.startNotifyDispatcher(ctx, g, deps)
	return g.Wait()
}

// EngineMode runs the exit-management loop and the periodic reconciler
// without the HTTP API.
func (a *App) EngineMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting engine mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startEngine(ctx, g, deps)
	a.startNotifyDispatcher(ctx, g, deps)
	return g.Wait()
}

// AllMode runs the HTTP API and the engine in one process.
func (a *App) AllMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting all mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	a.startEngine(ctx, g, deps)
	a.startNotifyDispatcher(ctx, g, deps)
	return g.Wait()
}

// startHTTPServer builds the service layer and handlers, registers them on a
// new Server, and adds the hub, listener, and graceful-shutdown goroutines to
// the given errgroup.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	authSvc := service.NewAuthService(a.cfg.Auth.Username, a.cfg.Auth.PasswordHash, a.logger)
	priceSvc := service.NewPriceService(deps.Broker, deps.Quotes, a.logger)
	tradeSvc := service.NewTradeService(
		deps.Broker, deps.Ledger, deps.Locks, priceSvc, deps.Bus, deps.Audit, a.logger,
	)
	positionSvc := service.NewPositionService(deps.Broker, deps.Ledger, a.logger)
	reconciler := engine.NewReconciler(deps.Broker, deps.Ledger, deps.Audit, deps.Bus, a.logger)

	pingers := make(map[string]handler.Pinger, len(deps.Health))
	for name, ping := range deps.Health {
		pingers[name] = ping
	}

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(pingers, a.logger),
		Auth:      handler.NewAuthHandler(authSvc, a.logger),
		Market:    handler.NewMarketHandler(priceSvc, positionSvc, a.logger),
		Trades:    handler.NewTradeHandler(tradeSvc, a.logger),
		Positions: handler.NewPositionHandler(positionSvc, a.logger),
		Stats:     handler.NewStatsHandler(positionSvc, a.logger),
		Reconcile: handler.NewReconcileHandler(reconciler, a.logger),
	}

	hub := ws.NewHub(deps.Bus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: a.startedAt,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
	}, handlers, hub, authSvc.Validate, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// startEngine adds the exit-management monitor, the periodic reconciler, and
// (when configured) the cold-storage archive loop to the given errgroup.
func (a *App) startEngine(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	prices := service.NewPriceService(deps.Broker, deps.Quotes, a.logger)
	monitor := engine.NewMonitor(
		deps.Broker, deps.Ledger, prices, deps.Locks, deps.Bus, deps.Audit,
		engine.MonitorConfig{
			Interval: a.cfg.Engine.TickInterval.Duration,
			Workers:  a.cfg.Engine.Workers,
		},
		a.logger,
	)
	g.Go(func() error {
		return monitor.Run(ctx)
	})

	reconciler := engine.NewReconciler(deps.Broker, deps.Ledger, deps.Audit, deps.Bus, a.logger)
	g.Go(func() error {
		return reconciler.RunLoop(ctx, a.cfg.Engine.ReconcileInterval.Duration)
	})

	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchiveLoop(ctx, deps)
		})
	}
}

// startNotifyDispatcher forwards bus events to the configured notification
// channels. No-op when no sender is configured.
func (a *App) startNotifyDispatcher(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Notifier == nil {
		return
	}
	dispatcher := notify.NewDispatcher(deps.Bus, deps.Notifier, a.logger)
	g.Go(func() error {
		return dispatcher.Run(ctx)
	})
}

// runArchiveLoop periodically moves closed positions and audit entries older
// than the retention window into object storage.
func (a *App) runArchiveLoop(ctx context.Context, deps *Dependencies) error {
	logger := a.logger.With(slog.String("component", "archive"))
	ticker := time.NewTicker(a.cfg.Archive.Interval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)

			positions, err := deps.Archiver.ArchiveClosedPositions(ctx, cutoff)
			if err != nil {
				logger.ErrorContext(ctx, "archive closed positions failed",
					slog.String("error", err.Error()),
				)
			}

			entries, err := deps.Archiver.ArchiveAuditLog(ctx, cutoff)
			if err != nil {
				logger.ErrorContext(ctx, "archive audit log failed",
					slog.String("error", err.Error()),
				)
			}

			if positions > 0 || entries > 0 {
				logger.InfoContext(ctx, "archive pass complete",
					slog.Int64("positions", positions),
					slog.Int64("audit_entries", entries),
					slog.Time("cutoff", cutoff),
				)
			}
		}
	}
}
