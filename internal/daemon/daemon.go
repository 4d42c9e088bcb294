package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/habitforge/habitforge/internal/api"
	"github.com/habitforge/habitforge/internal/app/engagement"
	"github.com/habitforge/habitforge/internal/app/tracker"
	"github.com/habitforge/habitforge/internal/health"
	"github.com/habitforge/habitforge/internal/infra/redis"
	"github.com/habitforge/habitforge/internal/infra/scheduler"
	"github.com/habitforge/habitforge/internal/infra/sqlite"
	"github.com/habitforge/habitforge/internal/logger"
)

// Daemon is the habitforge runtime. It wires together all services.
type Daemon struct {
	Config        Config
	Home          string
	DB            *sqlite.DB
	Tracker       *tracker.Tracker
	Notifications *engagement.NotificationService
	Server        *api.Server
	Health        *health.Checker
	Redis         *redis.Publisher // nil unless [redis] enabled
	cancel        context.CancelFunc
}

// New loads the config and creates a Daemon.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg, habitforgeHome())
}

// NewWithConfig creates a Daemon with the given configuration and data dir.
func NewWithConfig(cfg Config, home string) (*Daemon, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := sqlite.Open(home)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	tr := tracker.New(tracker.Deps{
		Habits:      db,
		Completions: db,
		Snapshots:   db,
		Ledger:      db,
	}, tracker.Config{
		Location:        loc,
		Catalog:         cfg.Badges.CatalogConfig,
		HabitMilestones: cfg.Badges.HabitMilestones,
		SweepWorkers:    cfg.Sweep.Workers,
	})

	notifications := engagement.NewNotificationServiceWithPolicy(db, cfg.Notifications)
	tr.SetNotifications(notifications)

	d := &Daemon{
		Config:        cfg,
		Home:          home,
		DB:            db,
		Tracker:       tr,
		Notifications: notifications,
		Health:        health.NewChecker(db, home),
	}

	if cfg.Redis.Enabled {
		d.Redis = redis.NewPublisher(cfg.Redis)
		tr.AddSink(d.Redis)
		d.Health.AddCheck(health.PingCheck("redis", d.Redis))
	}

	return d, nil
}

// Serve starts the HTTP server, the evaluation loop and the period sweep,
// and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context, version string) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.Server = api.NewServer(d.Tracker)
	d.Server.SetHealth(d.Health)
	d.Server.SetCORSOrigins(d.Config.API.CORSOrigins)
	d.Server.SetVersion(version)
	if d.Config.Telemetry.Prometheus {
		d.Server.EnableMetrics()
	}

	d.Tracker.StartBackground(ctx)
	go d.Health.Run(ctx)
	go scheduler.Every(ctx, d.Config.SweepInterval(), func(ctx context.Context) {
		n, err := d.Tracker.Sweep(ctx)
		if err != nil {
			logger.Error("period sweep failed", "err", err)
			return
		}
		logger.Debug("period sweep done", "reset", n)
	})

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // badge stream is long-lived
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			logger.Info("shutdown signal received")
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	fmt.Printf("habitforge serving on http://%s\n", addr)
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}
	if d.Redis != nil {
		fmt.Printf("  Redis:   publishing badges on %s\n", d.Redis.Channel())
	}
	logger.Info("server started", "addr", addr, "home", d.Home)

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
