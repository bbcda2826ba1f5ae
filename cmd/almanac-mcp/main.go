package main

import (
	"crypto/subtle"
	"flag"
	"net/http"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/almanac/internal/api/tools"
	"github.com/fortuna/almanac/internal/cache"
	"github.com/fortuna/almanac/internal/config"
	"github.com/fortuna/almanac/internal/importer"
	"github.com/fortuna/almanac/internal/ingest/mlb"
	"github.com/fortuna/almanac/internal/service"
	"github.com/fortuna/almanac/internal/store"
	"github.com/fortuna/almanac/internal/store/repository"
)

const serverVersion = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	var (
		addr    = flag.String("addr", cfg.MCPAddr, "HTTP listen address")
		mcpPath = flag.String("path", "/mcp", "MCP endpoint path")
		noCache = flag.Bool("no-cache", false, "Compute standings without Redis")
	)
	flag.Parse()

	if err := config.ConfigureLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		logrus.Fatal(err)
	}
	log := logrus.WithField("component", "mcp")

	vocab, err := cfg.Vocabulary()
	if err != nil {
		log.Fatalf("load vocabulary: %v", err)
	}
	calc, err := cfg.Calculator()
	if err != nil {
		log.Fatalf("invalid scoring configuration: %v", err)
	}

	db, err := store.NewDatabase(cfg.AtlasDSN)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer db.Close()

	seasons := repository.NewSeasonRepository(db)
	stats := repository.NewStatsRepository(db)
	reports := repository.NewReportRepository(db)

	mlbClient := mlb.New(cfg.MLBAPIBase)

	var standings *service.StandingsService
	if *noCache {
		standings = service.NewStandingsService(seasons, stats, calc, nil, 0)
	} else {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Fatalf("connect redis: %v", err)
		}
		defer redisCache.Close()
		standings = service.NewStandingsService(seasons, stats, calc, redisCache, cfg.StandingsTTL)
		mlbClient.WithCache(redisCache, cfg.StatsCacheTTL)
	}

	toolset := tools.New(standings, reports, importer.New(seasons, stats, reports, vocab)).
		WithProfiles(mlbClient)
	handler := tools.Handler(toolset.Server(serverVersion))

	apiKey := strings.TrimSpace(os.Getenv("ALMANAC_MCP_API_KEY"))
	withAuth := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			key := ""
			if authz := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				key = strings.TrimSpace(authz[7:])
			}
			if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle(*mcpPath, withAuth(handler))

	log.Infof("MCP HTTP server listening on %s%s", *addr, *mcpPath)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatal(err)
	}
}
