// Package main is the entry point for the scoring engine API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/thrryv/engine/internal/api"
	"github.com/thrryv/engine/internal/capability"
	"github.com/thrryv/engine/internal/claim"
	"github.com/thrryv/engine/internal/classify"
	"github.com/thrryv/engine/internal/config"
	"github.com/thrryv/engine/internal/db"
	"github.com/thrryv/engine/internal/discovery"
	"github.com/thrryv/engine/internal/evaluate"
	"github.com/thrryv/engine/internal/health"
	"github.com/thrryv/engine/internal/middleware"
	"github.com/thrryv/engine/internal/originality"
	"github.com/thrryv/engine/internal/postscore"
	"github.com/thrryv/engine/internal/standing"
	"github.com/thrryv/engine/internal/tracing"
)

const serviceName = "scoring-engine"

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Scoring Engine API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	// Tracing
	tracerProvider, err := tracingProvider(cfg)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Metrics. Collectors are always created so the rest of the wiring does
	// not branch on the flag; registration is what exposes them.
	registry := prometheus.NewRegistry()
	mwMetrics := middleware.NewMetrics()
	capMetrics := capability.NewMetrics()
	psMetrics := postscore.NewMetrics()
	if cfg.MetricsEnabled {
		for _, register := range []func(prometheus.Registerer) error{
			mwMetrics.Register, capMetrics.Register, psMetrics.Register,
		} {
			if err := register(registry); err != nil {
				logger.Error("failed to register metrics", "error", err)
				os.Exit(1)
			}
		}
	}

	// Storage. Without a database URL the server runs on in-memory stores,
	// which lose all state on restart.
	var (
		repo  claim.Repository
		stats claim.StatsStore
	)
	var dbChecker api.HealthChecker
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		sqlDB, err := db.Open(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer sqlDB.Close()
		repo = claim.NewPostgresRepository(sqlDB)
		stats = claim.NewPostgresStatsStore(sqlDB)
		dbChecker = health.NewDBChecker(sqlDB)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
		repo = claim.NewInMemoryRepository()
		stats = claim.NewInMemoryStatsStore()
	}

	// Redis backs the capability response cache and distributed rate limiting.
	var rdb *redis.Client
	var redisChecker api.HealthChecker
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		redisChecker = health.NewRedisChecker(rdb)
	}

	// Capability provider. When unconfigured every service runs on its
	// deterministic fallback.
	var completer capability.Completer
	if cfg.CapabilityConfigured() {
		client := capability.NewClient(capability.Config{
			BaseURL: cfg.CapabilityBaseURL,
			APIKey:  cfg.CapabilityAPIKey,
			Model:   cfg.CapabilityModel,
			Timeout: time.Duration(cfg.CapabilityTimeoutSeconds) * time.Second,
		}, capMetrics)
		completer = client
		if rdb != nil {
			completer = capability.NewCachedCompleter(client, rdb, 0)
		}
	} else {
		logger.Warn("capability provider not configured, using heuristic fallbacks only")
	}

	var (
		primaryEvaluator  evaluate.Evaluator
		primaryComparator originality.Comparator
		primaryClassifier classify.Classifier
		primaryParser     discovery.IntentParser
	)
	if completer != nil {
		primaryEvaluator = evaluate.NewSemanticEvaluator(completer)
		primaryComparator = originality.NewSemanticComparator(completer)
		primaryClassifier = classify.NewCapabilityClassifier(completer)
		primaryParser = discovery.NewCapabilityParser(completer)
	}

	weights, err := discovery.LoadCalibration(cfg.CalibrationFilePath)
	if err != nil {
		logger.Warn("failed to load calibration, using defaults", "error", err)
		weights = discovery.DefaultWeights()
	}

	evaluator := evaluate.NewService(primaryEvaluator, capMetrics)
	detector := originality.NewDetector(primaryComparator, capMetrics)
	classifier := classify.NewService(primaryClassifier, capMetrics)
	recomputer := postscore.NewRecomputer(repo, stats, psMetrics)
	standingSvc := standing.NewService(repo, stats)
	engine := discovery.NewEngine(discovery.NewParserService(primaryParser, capMetrics), weights)

	router := &api.Router{
		Claims:    api.NewClaimHandlers(repo, stats, evaluator, detector, classifier, recomputer),
		Discovery: api.NewDiscoveryHandlers(repo, standingSvc, engine),
		Standing:  api.NewStandingHandlers(standingSvc),
		Health: api.NewHealthHandlers(api.HealthHandlersConfig{
			DBChecker:      dbChecker,
			RedisChecker:   redisChecker,
			MetricsEnabled: cfg.MetricsEnabled,
		}),
	}

	mux := http.NewServeMux()
	mux.Handle("/", router.Handler())
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	handler := buildMiddlewareChain(cfg, logger, mwMetrics, rdb, mux)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tracerProvider.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down tracing", "error", err)
	}

	logger.Info("server stopped")
}

// tracingProvider builds the OpenTelemetry provider from config.
func tracingProvider(cfg *config.Config) (*tracing.Provider, error) {
	return tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
	})
}

// rateLimitConfig builds a per-minute rate limit, falling back to the given
// default when the configured value is zero.
func rateLimitConfig(perMinute int, fallback middleware.RateLimitConfig) middleware.RateLimitConfig {
	if perMinute <= 0 {
		return fallback
	}
	return middleware.RateLimitConfig{
		RequestsPerWindow: perMinute,
		WindowDuration:    time.Minute,
	}
}

// buildMiddlewareChain assembles the request pipeline around the mux:
// RequestID -> Tracing -> Logging -> HTTPMetrics -> CORS -> rate limiting
// -> Profiling -> routes.
func buildMiddlewareChain(cfg *config.Config, logger *slog.Logger, mwMetrics *middleware.Metrics, rdb *redis.Client, mux http.Handler) http.Handler {
	var store middleware.RateLimitStore
	if rdb != nil {
		store = middleware.NewRedisRateLimitStore(rdb, mwMetrics)
	} else {
		inMem := middleware.NewInMemoryRateLimitStore()
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				inMem.Cleanup()
			}
		}()
		store = inMem
	}

	keyFunc := middleware.UserKeyFunc()
	globalLimiter := middleware.RateLimiter(store, rateLimitConfig(cfg.GlobalRateLimit, middleware.DefaultGlobalLimit()), keyFunc)
	writeLimiter := middleware.RateLimiter(store, rateLimitConfig(cfg.WriteRateLimit, middleware.DefaultWriteLimit()), keyFunc)
	discoveryLimiter := middleware.RateLimiter(store, rateLimitConfig(cfg.DiscoveryRateLimit, middleware.DefaultDiscoveryLimit()), keyFunc)

	handler := middleware.Profiling(middleware.ProfilingConfig{
		Enabled:     cfg.ProfilingEnabled,
		Environment: cfg.Env,
	})(mux)

	// Writes trigger evaluation calls and discovery fans out per item, so
	// both get tighter windows than the global limit.
	handler = perRouteRateLimit(handler, writeLimiter, discoveryLimiter)
	handler = globalLimiter(handler)

	if len(cfg.CORSAllowedOrigins) > 0 {
		handler = middleware.CORS(middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
		})(handler)
	}

	handler = middleware.HTTPMetrics(mwMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Tracing(serviceName)(handler)
	handler = middleware.RequestID(handler)

	return handler
}

// perRouteRateLimit applies the write limiter to claim and annotation writes
// and the discovery limiter to discovery reads. Everything else passes through
// to the global limit alone.
func perRouteRateLimit(next http.Handler, writeLimiter, discoveryLimiter func(http.Handler) http.Handler) http.Handler {
	writes := writeLimiter(next)
	discover := discoveryLimiter(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost &&
			(strings.HasPrefix(r.URL.Path, "/claims") || strings.HasPrefix(r.URL.Path, "/annotations")):
			writes.ServeHTTP(w, r)
		case r.URL.Path == "/discovery":
			discover.ServeHTTP(w, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
