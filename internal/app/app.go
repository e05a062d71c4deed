package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/tabkeeper/internal/config"
	"github.com/MrSnakeDoc/tabkeeper/internal/engine"
	"github.com/MrSnakeDoc/tabkeeper/internal/eviction"
	"github.com/MrSnakeDoc/tabkeeper/internal/hibernation"
	"github.com/MrSnakeDoc/tabkeeper/internal/httpserver"
	"github.com/MrSnakeDoc/tabkeeper/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tabkeeper/internal/logger"
	"github.com/MrSnakeDoc/tabkeeper/internal/memstat"
	"github.com/MrSnakeDoc/tabkeeper/internal/metrics"
	"github.com/MrSnakeDoc/tabkeeper/internal/redis"
	"github.com/MrSnakeDoc/tabkeeper/internal/renderer"
	"github.com/MrSnakeDoc/tabkeeper/internal/scheduler"
	"github.com/MrSnakeDoc/tabkeeper/internal/sources/workspace"
	"github.com/MrSnakeDoc/tabkeeper/internal/version"
)

// seedTimeout bounds opening the workspace tabs at startup.
const seedTimeout = time.Minute

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	surface     renderer.Surface
	redisClient *goredis.Client
	loop        *engine.Loop
	monitor     *scheduler.PressureMonitor
	janitor     *scheduler.SnapshotJanitor
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	m := metrics.New()

	surface, err := newSurface(cfg, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to start renderer: %v", err)
		os.Exit(1)
	}

	// Snapshot backend, fail fast if redis is configured but unavailable
	backend, redisClient, err := newBackend(cfg, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to initialize snapshot backend: %v", err)
		_ = surface.Close()
		os.Exit(1)
	}
	store := hibernation.NewStore(backend, surface, loggerClient)

	e := engine.New(surface, store, m, loggerClient, engine.Options{
		CollapseThreshold: cfg.CollapseThreshold,
		Policy: eviction.Policy{
			IdleHorizon:    cfg.IdleHorizon,
			HibernateBelow: cfg.HibernateBelow,
			SnoozeBelow:    cfg.SnoozeBelow,
		},
	})

	// The engine is seeded directly; from here on it is only reached through the loop.
	if cfg.WorkspaceFile != "" {
		if err := seed(e, cfg.WorkspaceFile, loggerClient); err != nil {
			loggerClient.Errorf("Failed to apply workspace: %v", err)
			_ = surface.Close()
			os.Exit(1)
		}
	}

	loop := engine.NewLoop(e, cfg.QueueSize, loggerClient)
	surface.SetLoadListener(loop.OnLoad)

	sampler := newSampler(loggerClient)

	// Create manual sweep trigger channel
	sweepTrigger := make(chan struct{}, 1)

	monitor := scheduler.NewPressureMonitor(
		sampler,
		func(ctx context.Context) error {
			_, err := loop.Sweep(ctx)
			return err
		},
		loggerClient,
		m,
		cfg.MonitorInterval,
		cfg.MemoryThreshold,
		cfg.HistorySize,
		sweepTrigger,
	)

	janitor := scheduler.NewSnapshotJanitor(loop, loggerClient, cfg.JanitorInterval)

	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Build:        version.Get(),
		TimeNow:      time.Now,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		RateLimit: deps.RateLimit{
			Burst:     cfg.RateLimitBurst,
			PerMinute: cfg.RateLimitPerMin,
		},
		Loop:         loop,
		Monitor:      monitor,
		SweepTrigger: sweepTrigger,
		Renderer:     cfg.Renderer,
		Snapshots:    backend,
		Metrics:      m,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		surface:     surface,
		redisClient: redisClient,
		loop:        loop,
		monitor:     monitor,
		janitor:     janitor,
	}
}

func newSurface(cfg *config.Config, log logger.Logger) (renderer.Surface, error) {
	if cfg.Renderer == config.RendererChrome {
		c, err := renderer.NewChrome(renderer.ChromeOptions{
			Headless:    cfg.ChromeHeadless,
			ExecPath:    cfg.ChromePath,
			LoadTimeout: cfg.LoadTimeout,
		}, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	log.Info("using in-process renderer, loads complete immediately")
	return renderer.NewMemory(true), nil
}

func newBackend(cfg *config.Config, log logger.Logger) (hibernation.Backend, *goredis.Client, error) {
	if cfg.SnapshotBackend != config.BackendRedis {
		return hibernation.NewMemoryBackend(), nil, nil
	}

	client, err := redis.New(context.Background(), redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		DB:             cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	return hibernation.NewRedisBackend(client, cfg.InstanceID, cfg.SnapshotTTL, log), client, nil
}

// newSampler falls back to a failing sampler where /proc is unavailable;
// the monitor then treats every tick as no pressure.
func newSampler(log logger.Logger) memstat.Sampler {
	sampler, err := memstat.NewProcSampler()
	if err == nil {
		return sampler
	}
	log.Warn("memory sampling unavailable, pressure sweeps only run on demand", logger.Error(err))
	return memstat.SamplerFunc(func(context.Context) (memstat.Sample, error) {
		return memstat.Sample{}, err
	})
}

func seed(e *engine.Engine, path string, log logger.Logger) error {
	ws, err := workspace.NewLoader(path).Load()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
	defer cancel()
	_, err = workspace.NewApplier(log).Apply(ctx, e, ws)
	return err
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting tabkeeper v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("tabkeeper %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The loop must run before anything submits work to it
	a.loop.Start(ctx)

	// Start pressure monitor (samples immediately, then periodically)
	if err := a.monitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start pressure monitor: %w", err)
	}
	a.logger.Info("pressure monitor started",
		logger.Duration("interval", a.cfg.MonitorInterval),
		logger.Float64("threshold", a.cfg.MemoryThreshold))

	// Start snapshot janitor
	if err := a.janitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start snapshot janitor: %w", err)
	}
	a.logger.Info("snapshot janitor started",
		logger.Duration("interval", a.cfg.JanitorInterval))

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("failed to stop server: %w", err))
	}

	a.monitor.Stop()
	a.janitor.Stop()
	a.loop.Stop()

	if err := a.surface.Close(); err != nil {
		a.logger.Warnf("failed to close renderer: %v", err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	if runErr == nil {
		a.logger.Info("✅ tabkeeper stopped cleanly")
	}
	_ = a.logger.Sync()
	return runErr
}
