package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/almanac/internal/api/rest"
	"github.com/fortuna/almanac/internal/api/websocket"
	"github.com/fortuna/almanac/internal/cache"
	"github.com/fortuna/almanac/internal/config"
	"github.com/fortuna/almanac/internal/importer"
	"github.com/fortuna/almanac/internal/ingest/mlb"
	"github.com/fortuna/almanac/internal/publisher"
	"github.com/fortuna/almanac/internal/refresh"
	"github.com/fortuna/almanac/internal/scheduler"
	"github.com/fortuna/almanac/internal/service"
	"github.com/fortuna/almanac/internal/store"
	"github.com/fortuna/almanac/internal/store/repository"
)

const (
	serviceName    = "almanac"
	serviceVersion = "1.0.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	if err := config.ConfigureLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		logrus.Fatalf("Invalid logging configuration: %v", err)
	}
	log := logrus.WithField("component", "main")
	log.Infof("Starting %s v%s - Roto Archive Service", serviceName, serviceVersion)

	vocab, err := cfg.Vocabulary()
	if err != nil {
		log.Fatalf("Failed to load vocabulary: %v", err)
	}
	calc, err := cfg.Calculator()
	if err != nil {
		log.Fatalf("Invalid scoring configuration: %v", err)
	}

	// Initialize database connection
	db, err := store.NewDatabase(cfg.AtlasDSN)
	if err != nil {
		log.Fatalf("Failed to connect to Atlas database: %v", err)
	}
	defer db.Close()

	log.Info("✓ Connected to Atlas database")

	if err := db.RunMigrations(context.Background()); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}
	log.Info("✓ Database migrations applied")

	redisCache := connectRedis(log, cfg.RedisURL)
	defer redisCache.Close()

	log.Info("✓ Connected to Redis")

	seasons := repository.NewSeasonRepository(db)
	stats := repository.NewStatsRepository(db)
	reports := repository.NewReportRepository(db)

	// Live fan-out: Redis streams for other services, websocket for browsers
	hub := websocket.NewHub()
	go hub.Run()
	redisPublisher := publisher.NewRedisPublisher(redisCache.Client()).WithBroadcaster(hub)

	standings := service.NewStandingsService(seasons, stats, calc, redisCache, cfg.StandingsTTL).
		WithPublisher(redisPublisher)
	periods := service.NewPeriodService(seasons, seasons, stats)

	imp := importer.New(seasons, stats, reports, vocab)
	imp.Subscribe(standings)
	imp.Subscribe(redisPublisher)

	// Refresh pipeline: provider client -> refresher -> runner -> job queue
	mlbClient := mlb.New(cfg.MLBAPIBase).WithCache(redisCache, cfg.StatsCacheTTL)
	runner := refresh.NewRunner(seasons, stats, refresh.NewRefresher(mlbClient, cfg.Refresh))
	refreshService := refresh.NewService(refresh.NewRepository(db), runner)
	refreshService.Subscribe(standings)
	refreshService.Subscribe(redisPublisher)
	refreshService.Start()

	log.Info("✓ Refresh service started")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	schedDone := make(chan struct{})
	if cfg.EnableScheduler {
		schedCfg := scheduler.DefaultConfig()
		schedCfg.Spec = cfg.RefreshCron
		sched, err := scheduler.NewOrchestrator(seasons, refreshService, schedCfg)
		if err != nil {
			log.Fatalf("Failed to create scheduler: %v", err)
		}
		go func() {
			defer close(schedDone)
			sched.Start(ctx)
		}()
		log.Info("✓ Scheduler started")
	} else {
		close(schedDone)
		log.Warn("⚠️  Scheduler disabled (ENABLE_SCHEDULER=false)")
	}

	// Initialize REST API server
	restServer := rest.NewServer(cfg.RESTPort, rest.Deps{
		Importer:  imp,
		Seasons:   seasons,
		Standings: standings,
		Periods:   periods,
		Reports:   reports,
		Refresh:   refreshService,
		Checks: map[string]rest.HealthChecker{
			"postgres": db,
			"redis":    redisCache,
		},
	})
	go func() {
		if err := restServer.Start(); err != nil {
			log.WithError(err).Warn("REST server stopped")
		}
	}()

	// Initialize WebSocket server
	wsServer := websocket.NewServer(hub)
	go func() {
		if err := wsServer.Start(cfg.WSPort); err != nil {
			log.WithError(err).Warn("WebSocket server stopped")
		}
	}()

	log.Infof("✓ Almanac v%s started successfully", serviceVersion)
	log.Infof("  REST API: http://0.0.0.0:%s", cfg.RESTPort)
	log.Infof("  WebSocket: ws://0.0.0.0:%s/ws/live", cfg.WSPort)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down Almanac gracefully...")

	cancel()
	<-schedDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := restServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("REST API server shutdown error")
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("WebSocket server shutdown error")
	}
	if err := refreshService.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Refresh service shutdown error")
	}

	log.Info("Almanac stopped")
}

// connectRedis retries while Redis comes up alongside the service.
func connectRedis(log *logrus.Entry, url string) *cache.RedisCache {
	const maxRetries = 30
	retryDelay := 2 * time.Second

	log.Info("Connecting to Redis...")
	for i := 0; ; i++ {
		redisCache, err := cache.NewRedisCache(url)
		if err == nil {
			return redisCache
		}
		if i == maxRetries-1 {
			log.Fatalf("Failed to connect to Redis after %d attempts: %v", maxRetries, err)
		}
		log.Warnf("Redis connection attempt %d/%d failed: %v (retrying in %v)", i+1, maxRetries, err, retryDelay)
		time.Sleep(retryDelay)
	}
}
