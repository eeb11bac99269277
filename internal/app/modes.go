package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// heartbeatInterval is the pause between stats log lines.
const heartbeatInterval = time.Minute

// SnipeMode runs the full acquisition path: pool listener, filter pipeline,
// orchestrator, and sell monitor, plus the status server when enabled.
func (a *App) SnipeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting snipe mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer deps.Listener.Close()
		return deps.Listener.Run(ctx)
	})
	a.startServer(ctx, g, deps)
	a.startHeartbeat(ctx, g, deps)
	a.stopMonitorOnDone(ctx, g, deps)

	return g.Wait()
}

// MonitorMode runs only the sell monitor and the status server: no new
// acquisitions, but open positions can still be liquidated automatically or
// manually.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startServer(ctx, g, deps)
	a.startHeartbeat(ctx, g, deps)
	a.stopMonitorOnDone(ctx, g, deps)

	return g.Wait()
}

// ServerMode serves the read-only status API without any trading.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs everything: the snipe path, the status server, and the trade
// archiver.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer deps.Listener.Close()
		return deps.Listener.Run(ctx)
	})
	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx)
		})
	}
	a.startServer(ctx, g, deps)
	a.startHeartbeat(ctx, g, deps)
	a.stopMonitorOnDone(ctx, g, deps)

	return g.Wait()
}

// startServer runs the status server and shuts it down when the group
// context is cancelled.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Server == nil {
		return
	}
	g.Go(func() error {
		return deps.Server.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = deps.Server.Shutdown(shutdownCtx)
		return ctx.Err()
	})
}

// startHeartbeat logs aggregate stats periodically so a quiet bot is visibly
// alive.
func (a *App) startHeartbeat(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				stats := deps.Store.Stats()
				a.logger.InfoContext(ctx, "heartbeat",
					slog.Int("active", stats.Active),
					slog.Int("closed", stats.Closed),
					slog.Float64("win_rate", stats.WinRate),
					slog.Float64("realized_pnl", stats.RealizedPnL),
				)
			}
		}
	})
}

// stopMonitorOnDone halts the sell monitor once the group context is
// cancelled so no liquidation fires during teardown.
func (a *App) stopMonitorOnDone(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Monitor == nil {
		return
	}
	g.Go(func() error {
		<-ctx.Done()
		deps.Monitor.Stop()
		return ctx.Err()
	})
}
