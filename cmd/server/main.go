package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"veridoc/internal/document"
	"veridoc/internal/extraction"
	"veridoc/internal/platform/config"
	"veridoc/internal/platform/httpserver"
	"veridoc/internal/platform/logger"
	"veridoc/internal/scoring"
	"veridoc/internal/verification/handler"
	"veridoc/internal/verification/metrics"
	"veridoc/internal/verification/service"
	"veridoc/internal/verification/store"
	"veridoc/pkg/platform/audit"
	auditmemory "veridoc/pkg/platform/audit/store/memory"
	auditpostgres "veridoc/pkg/platform/audit/store/postgres"
	"veridoc/pkg/platform/audit/publisher"
	authmw "veridoc/pkg/platform/middleware/auth"
	"veridoc/pkg/platform/middleware/metadata"
	"veridoc/pkg/platform/middleware/requesttime"
)

// main wires the stores, the pipeline, and the HTTP surface, then runs
// until interrupted. Business logic lives in the internal packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	log := logger.New(slog.LevelInfo)

	// Stores: PostgreSQL when a DSN is configured, process memory
	// otherwise.
	var (
		documents document.Store
		records   store.Store
		auditLog  audit.Store
		txRunner  store.TxRunner
	)
	if cfg.Database.DSN != "" {
		db, err := sql.Open("pgx", cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxConns)
		defer db.Close()

		documents = document.NewPostgresStore(db)
		records = store.NewPostgresStore(db)
		auditLog = auditpostgres.New(db)
		txRunner = store.NewSQLTxRunner(db)
		log.Info("using postgres stores")
	} else {
		documents = document.NewInMemoryStore()
		records = store.NewInMemoryStore()
		auditLog = auditmemory.NewInMemoryStore()
		txRunner = store.NewMemoryTxRunner()
		log.Warn("no database configured, using in-memory stores")
	}

	scorer, err := selectScorer(cfg)
	if err != nil {
		return err
	}

	svc := service.New(
		documents,
		records,
		auditLog,
		txRunner,
		extraction.New(),
		scorer,
		log,
		metrics.New(),
		service.Config{
			FraudThreshold: cfg.Pipeline.FraudThreshold,
			MaxAttempts:    cfg.Pipeline.MaxAttempts,
			ScoringRetries: cfg.Pipeline.ScoringRetries,
			BackoffInitial: cfg.Pipeline.BackoffInitial,
			BackoffMax:     cfg.Pipeline.BackoffMax,
		},
	)

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer client.Close()
		svc.WithInFlightMarker(store.NewInFlightMarker(client, cfg.Redis.MarkerTTL))
		log.Info("redis in-flight marker enabled", "addr", cfg.Redis.Addr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	group, ctx := errgroup.WithContext(ctx)

	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := publisher.New(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, log)
		if err != nil {
			return fmt.Errorf("starting audit publisher: %w", err)
		}
		defer pub.Close()

		outbox := make(chan audit.Entry, 1024)
		svc.WithAuditOutbox(outbox)
		worker := publisher.NewWorker(pub, outbox)
		group.Go(func() error {
			if err := worker.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		log.Info("audit publishing enabled", "topic", cfg.Kafka.AuditTopic)
	}

	router := newRouter(cfg, svc, documents, log)
	srv := httpserver.New(cfg.Server.Addr, router, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)

	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func selectScorer(cfg *config.Config) (service.Scorer, error) {
	switch cfg.Pipeline.Scorer {
	case "heuristic":
		return scoring.NewHeuristicScorer(), nil
	case "statistical":
		return scoring.NewStatisticalScorer(), nil
	case "external":
		return scoring.NewExternalScorer(cfg.Pipeline.ExternalScorerURL), nil
	}
	return nil, fmt.Errorf("unknown scorer %q", cfg.Pipeline.Scorer)
}

func newRouter(cfg *config.Config, svc *service.Service, documents document.Store, log *slog.Logger) http.Handler {
	validator := authmw.NewValidator(cfg.Auth.JWTSigningKey)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requesttime.RequestTime)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(authmw.RequireAuth(validator, log))
		document.NewHandler(documents, log).Routes(r)
		handler.New(svc, log).Routes(r)
	})

	return r
}
