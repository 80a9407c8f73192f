package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"technician-dispatch-service/internal/adapters/cache"
	"technician-dispatch-service/internal/adapters/distance"
	"technician-dispatch-service/internal/adapters/repositories"
	"technician-dispatch-service/internal/api"
	"technician-dispatch-service/internal/config"
	"technician-dispatch-service/internal/platform/db"
	"technician-dispatch-service/internal/platform/obs"
	"technician-dispatch-service/internal/services"
)

// main is the application composition root. It wires concrete adapters
// (Postgres, Redis, the routing matrix API) behind ports and starts the
// HTTP server.
func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found (using environment variables)")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := newLogger(cfg.Logging)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	loc := cfg.Location()

	database, err := db.Open(cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer database.Close()

	if err := repositories.InitSchema(database); err != nil {
		log.Fatal().Err(err).Msg("init schema")
	}

	registry := prometheus.NewRegistry()
	metrics := obs.NewMetrics(registry)

	provider, err := distance.NewMatrixProvider(distance.Config{
		BaseURL:     cfg.Provider.BaseURL,
		APIKey:      cfg.Provider.APIKey,
		Profile:     cfg.Provider.Profile,
		Timeout:     time.Duration(cfg.Provider.TimeoutSeconds) * time.Second,
		MaxAttempts: cfg.Provider.MaxAttempts,
	}, log.With().Str("component", "matrix_provider").Logger(), metrics)
	if err != nil {
		log.Fatal().Err(err).Msg("init distance provider")
	}

	// Optional Redis tier shares provider responses across processes.
	var shared cache.SharedCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		shared = cache.NewRedisEstimateCache(
			rdb,
			time.Duration(cfg.Cache.LiveTTLMinutes)*time.Minute,
			time.Duration(cfg.Cache.EstimatedTTLHours)*time.Hour,
			log.With().Str("component", "redis_cache").Logger(),
		)
	}

	estimates := cache.NewEstimateCache(cache.Config{
		Precision:            cfg.Cache.Precision,
		LiveTTL:              time.Duration(cfg.Cache.LiveTTLMinutes) * time.Minute,
		EstimatedTTL:         time.Duration(cfg.Cache.EstimatedTTLHours) * time.Hour,
		FetchTimeout:         time.Duration(cfg.Cache.FetchTimeoutSeconds) * time.Second,
		MaxConcurrentFetches: cfg.Cache.MaxConcurrentFetches,
		FallbackSpeedKmh:     cfg.Cache.FallbackSpeedKmh,
	}, provider, shared, log.With().Str("component", "estimate_cache").Logger(), metrics)

	repo := repositories.NewPostgresScheduleRepository(database)
	aggregator := services.NewAggregator(repo, log.With().Str("component", "aggregator").Logger())
	optimizer := services.NewOptimizer(estimates, cfg.Optimizer.MaxImprovementPasses, loc,
		log.With().Str("component", "optimizer").Logger(), metrics)
	planner := services.NewPlanner(aggregator, optimizer, estimates, loc,
		cfg.Optimizer.MaxParallelTechnicians, log.With().Str("component", "planner").Logger())
	dispatcher := services.NewRecomputeDispatcher()

	router := api.NewRouter(planner, aggregator, dispatcher, registry, log)

	// Timeouts are tuned for cold-cache recomputes (external API latency).
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().Int("port", cfg.Server.Port).Msg("server listening")
	log.Fatal().Err(srv.ListenAndServe()).Msg("server stopped")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.Pretty {
		writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log = zerolog.New(writer)
	} else {
		log = zerolog.New(os.Stdout)
	}
	return log.Level(level).With().Timestamp().Logger()
}
