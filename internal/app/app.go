package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/storyshelf/internal/bookmark"
	"github.com/MrSnakeDoc/storyshelf/internal/config"
	"github.com/MrSnakeDoc/storyshelf/internal/httpserver"
	"github.com/MrSnakeDoc/storyshelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/storyshelf/internal/logger"
	"github.com/MrSnakeDoc/storyshelf/internal/scheduler"
	"github.com/MrSnakeDoc/storyshelf/internal/subscription"
	"github.com/MrSnakeDoc/storyshelf/internal/utils"
	"github.com/MrSnakeDoc/storyshelf/internal/version"
)

// App is the `storyshelf serve` process.
type App struct {
	cfg     *config.Config
	logger  logger.Logger
	server  *httpserver.Server
	storage *storage
	seeder  *scheduler.SeedReloader
}

func New(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	// Open storage early - fail fast if unavailable
	st, err := openStorage(ctx, cfg, loggerClient)
	if err != nil {
		return nil, err
	}

	bookmarks := bookmark.NewStore(st, loggerClient)
	registry := subscription.NewRegistry(st, loggerClient, cfg.AllowInsecureEndpoints)

	// Initialize seed reloader (if a seed file is configured)
	var seeder *scheduler.SeedReloader
	var seedTrigger chan struct{}
	if cfg.SeedFile != "" {
		loggerClient.Info("seed file configured, initializing seed reloader",
			logger.String("file", cfg.SeedFile))
		seedTrigger = make(chan struct{}, 1)
		seeder = scheduler.NewSeedReloader(cfg.SeedFile, bookmarks, loggerClient, cfg.SeedInterval, seedTrigger)
	} else {
		loggerClient.Info("seed file not configured, seeding disabled")
	}

	d := deps.Deps{
		Logger:            loggerClient,
		StartTime:         time.Now(),
		Version:           version.Version,
		Commit:            version.Commit,
		BuildDate:         version.BuildDate,
		GoVersion:         version.GoVersion,
		Backend:           st.name,
		AllowedCIDRS:      cfg.AllowedCIDRS,
		AllowedHosts:      cfg.AllowedHosts,
		TrustProxy:        cfg.TrustProxy,
		RateBurst:         cfg.RateBurst,
		RatePerMinute:     cfg.RatePerMinute,
		Bookmarks:         bookmarks,
		Subscriptions:     registry,
		Ping:              st.ping,
		SeedReloadTrigger: seedTrigger,
	}

	return &App{
		cfg:     cfg,
		logger:  loggerClient,
		server:  httpserver.New(cfg, loggerClient, d),
		storage: st,
		seeder:  seeder,
	}, nil
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting storyshelf v%s on %s (backend=%s)", version.Version, a.cfg.ListenPort, a.storage.name)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer utils.MustClose(a.storage, "storage", a.logger)

	// Start seed reloader (seeds once, then watches the file)
	if a.seeder != nil {
		if err := a.seeder.Start(ctx); err != nil {
			return fmt.Errorf("failed to start seed reloader: %w", err)
		}
		a.logger.Info("seed reloader started",
			logger.Duration("interval", a.cfg.SeedInterval))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	if a.seeder != nil {
		a.seeder.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}
	if runErr != nil {
		return runErr
	}

	a.logger.Info("✅ storyshelf stopped cleanly")
	return nil
}
