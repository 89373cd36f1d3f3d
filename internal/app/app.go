package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/marks/internal/auth"
	"github.com/MrSnakeDoc/marks/internal/config"
	"github.com/MrSnakeDoc/marks/internal/httpserver"
	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/livesync"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/mutation"
	"github.com/MrSnakeDoc/marks/internal/notify"
	"github.com/MrSnakeDoc/marks/internal/querycache"
	"github.com/MrSnakeDoc/marks/internal/redis"
	"github.com/MrSnakeDoc/marks/internal/scheduler"
	"github.com/MrSnakeDoc/marks/internal/store"
	"github.com/MrSnakeDoc/marks/internal/store/memory"
	"github.com/MrSnakeDoc/marks/internal/store/postgres"
	redisstore "github.com/MrSnakeDoc/marks/internal/store/redis"
	"github.com/MrSnakeDoc/marks/internal/version"
)

const connectTimeout = 30 * time.Second

type App struct {
	cfg      *config.Config
	logger   logger.Logger
	server   *httpserver.Server
	store    store.RecordStore
	listener *livesync.Listener
	sweeper  *scheduler.CacheSweeper
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Open the record store early - fail fast if unavailable
	recordStore, err := openStore(cfg, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to open %s store: %v", cfg.Backend, err)
		os.Exit(1)
	}
	loggerClient.Info("record store initialized", logger.String("backend", cfg.Backend))

	sessions, err := auth.New(auth.Options{
		Secret:       cfg.SessionSecret,
		TTL:          cfg.SessionTTL,
		SecureCookie: cfg.SecureCookie,
	})
	if err != nil {
		loggerClient.Errorf("Failed to initialize sessions: %v", err)
		os.Exit(1)
	}

	cache := querycache.New(recordStore, loggerClient.With(logger.String("component", "querycache")), querycache.Options{
		StaleTime:    cfg.CacheStaleTime,
		FetchTimeout: cfg.CacheFetchTimeout,
	})
	hub := notify.NewHub(loggerClient.With(logger.String("component", "notify")))
	coordinator := mutation.New(recordStore, cache, hub, loggerClient.With(logger.String("component", "mutation")), mutation.Options{
		StrictOwnership: cfg.StrictOwnership,
	})
	listener := livesync.New(recordStore, cache, loggerClient.With(logger.String("component", "livesync")), livesync.Options{
		MinBackoff: cfg.FeedMinBackoff,
		MaxBackoff: cfg.FeedMaxBackoff,
	})
	sweeper := scheduler.NewCacheSweeper(cache, loggerClient, cfg.CacheSweepInterval)

	if cfg.DevLogin {
		loggerClient.Warn("dev login enabled, any e-mail can sign in")
	}

	build := version.Get()

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:          loggerClient,
		StartTime:       time.Now(),
		Build:           build,
		TimeNow:         time.Now,
		AllowedHosts:    cfg.AllowedHosts,
		AllowedCIDRS:    cfg.AllowedCIDRS,
		CORSOrigins:     cfg.CORSOrigins,
		TrustProxy:      cfg.TrustProxy,
		Backend:         cfg.Backend,
		Store:           recordStore,
		Cache:           cache,
		Mutations:       coordinator,
		Listener:        listener,
		Hub:             hub,
		Sessions:        sessions,
		DevLogin:        cfg.DevLogin,
		SearchDebounce:  cfg.SearchDebounce,
		DefaultPageSize: cfg.DefaultPageSize,
		RequestTimeout:  cfg.RequestTimeout,
		RateLimitBurst:  cfg.RateLimitBurst,
		RateLimitPerMin: cfg.RateLimitPerMin,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:      cfg,
		logger:   loggerClient,
		server:   server,
		store:    recordStore,
		listener: listener,
		sweeper:  sweeper,
	}
}

// openStore connects the configured backend.
func openStore(cfg *config.Config, log logger.Logger) (store.RecordStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	switch cfg.Backend {
	case config.BackendPostgres:
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.MigrateOnStart {
			if err := pg.Migrate(ctx); err != nil {
				_ = pg.Close()
				return nil, err
			}
			log.Info("postgres schema applied")
		}
		return pg, nil

	case config.BackendRedis:
		log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.Connect(context.Background(), redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
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
			return nil, err
		}
		return redisstore.NewStore(client), nil

	default:
		log.Warn("using the in-memory store, bookmarks are lost on restart")
		return memory.New(), nil
	}
}

func (a *App) Run() error {
	build := version.Get()
	a.logger.Infof("🚀 Starting marks %s on %s", build.Version, a.cfg.ListenPort)
	a.logger.Info(build.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start query cache sweeper
	if err := a.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start cache sweeper: %w", err)
	}
	a.logger.Info("cache sweeper started",
		logger.Duration("interval", a.cfg.CacheSweepInterval))

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
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	// Stop cache sweeper
	a.sweeper.Stop()

	// Close every owner feed before the store goes away
	a.listener.Close()

	if err := a.store.Close(); err != nil {
		a.logger.Warnf("failed to close %s store: %v", a.cfg.Backend, err)
	} else {
		a.logger.Info("✅ Record store closed cleanly")
	}

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ marks stopped cleanly")
	return nil
}
