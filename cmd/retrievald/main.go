package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/defenda/legal-retrieval/internal/invalidator"
	"github.com/defenda/legal-retrieval/internal/legaldoc"
	"github.com/defenda/legal-retrieval/internal/quality"
	"github.com/defenda/legal-retrieval/internal/retrieval"
	"github.com/defenda/legal-retrieval/internal/retrieval/cache"
	"github.com/defenda/legal-retrieval/internal/retrieval/handler"
	"github.com/defenda/legal-retrieval/internal/vector"
	"github.com/defenda/legal-retrieval/pkg/config"
	"github.com/defenda/legal-retrieval/pkg/health"
	"github.com/defenda/legal-retrieval/pkg/kafka"
	"github.com/defenda/legal-retrieval/pkg/logger"
	"github.com/defenda/legal-retrieval/pkg/metrics"
	"github.com/defenda/legal-retrieval/pkg/middleware"
	"github.com/defenda/legal-retrieval/pkg/postgres"
	pkgredis "github.com/defenda/legal-retrieval/pkg/redis"
	"github.com/defenda/legal-retrieval/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting retrieval service", "port", cfg.Server.Port)

	m := metrics.New()
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
		slog.Info("metrics server started", "port", cfg.Metrics.Port)
	}

	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer pg.Close()
	docs := legaldoc.NewStore(pg)
	slog.Info("document store connected", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)

	httpIndex, err := vector.NewHTTPIndex(cfg.Retrieval.VectorIndexURL, cfg.Retrieval.VectorIndexTimeout)
	if err != nil {
		slog.Error("vector index configuration invalid", "error", err)
		os.Exit(1)
	}
	index := vector.NewResilient(httpIndex, resilience.CircuitBreakerConfig{}, m)
	slog.Info("vector index configured", "url", cfg.Retrieval.VectorIndexURL)

	engine, err := retrieval.NewEngine(index, docs, m)
	if err != nil {
		slog.Error("retrieval engine initialization failed", "error", err)
		os.Exit(1)
	}

	var cached *cache.Cached
	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, retrieval caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		cached = cache.New(engine, redisClient, cfg.Retrieval, m)
		slog.Info("retrieval cache enabled",
			"addr", cfg.Redis.Addr,
			"query_ttl", cfg.Retrieval.QueryTTL,
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scoreProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ScoreEvents)
	defer scoreProducer.Close()
	qualityEngine := quality.NewEngine(docs, scoreProducer, m)
	slog.Info("quality engine started", "score_topic", cfg.Kafka.Topics.ScoreEvents)

	if cached != nil {
		inv := invalidator.New(cached)
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentEvents, inv.Handle)
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("invalidation consumer error", "error", err)
			}
		}()
		slog.Info("cache invalidation consumer started", "topic", cfg.Kafka.Topics.DocumentEvents)
	}

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := pg.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("vector_index", func(ctx context.Context) health.ComponentHealth {
		if _, err := index.SimilaritySearch(ctx, "ping", 1); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	thresholds := quality.Thresholds{
		High:   cfg.Quality.HighThreshold,
		Medium: cfg.Quality.MediumThreshold,
		Low:    cfg.Quality.MinimumQuality,
	}
	h := handler.New(engine, cached, qualityEngine, cfg.Retrieval.MaxResults, thresholds)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("retrieval service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("retrieval service stopped")
}
