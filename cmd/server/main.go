// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"veribridge/internal/adminauth"
	"veribridge/internal/notify"
	"veribridge/internal/notify/flow"
	"veribridge/internal/notify/whatsapp"
	"veribridge/internal/platform/config"
	"veribridge/internal/platform/httpserver"
	"veribridge/internal/platform/logger"
	platformmetrics "veribridge/internal/platform/metrics"
	"veribridge/internal/platform/middleware"
	platformredis "veribridge/internal/platform/redis"
	"veribridge/internal/provider/veriff"
	"veribridge/internal/verification/handler"
	verifmetrics "veribridge/internal/verification/metrics"
	"veribridge/internal/verification/service"
	"veribridge/internal/verification/signature"
	"veribridge/internal/verification/store"
	memorystore "veribridge/internal/verification/store/memory"
	postgresstore "veribridge/internal/verification/store/postgres"
	redisstore "veribridge/internal/verification/store/redis"
	audit "veribridge/pkg/platform/audit"
	"veribridge/pkg/platform/audit/publisher"
	auditkafka "veribridge/pkg/platform/audit/sinks/kafka"
	auditmemory "veribridge/pkg/platform/audit/sinks/memory"
)

func main() {
	log := logger.New()
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.WebhookSecret == "" {
		log.Warn("SECURITY: no webhook secret configured, accepting all callback signatures")
	}

	sessions, cleanupStore, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanupStore()

	sink, err := buildAuditSink(ctx, cfg, log)
	if err != nil {
		return err
	}
	auditor := publisher.NewPublisher(sink, publisher.WithAsyncBuffer(256), publisher.WithLogger(log))
	defer auditor.Close()

	var flowChannel notify.Channel
	if cfg.FlowTriggerURL != "" {
		flowChannel = flow.NewTrigger(cfg.FlowTriggerURL, cfg.MessagingAPIKey)
	}
	dispatcher := notify.NewDispatcher(
		whatsapp.NewClient(cfg.MessagingBaseURL, cfg.MessagingAPIKey, cfg.MessagingSender),
		flowChannel,
		log,
	)

	svc := service.NewService(
		sessions,
		veriff.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.WebhookSecret),
		dispatcher,
		signature.New(cfg.WebhookSecret),
		auditor,
		verifmetrics.New(),
		log,
		service.Config{
			CallbackURL:            cfg.CallbackURL(),
			RenotifyRepeatDecision: cfg.RenotifyRepeatDecision,
		},
	)

	admin := adminauth.NewJWTService(cfg.AdminJWTKey, "veribridge", "veribridge-admin")
	httpMetrics := platformmetrics.New()

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.ClientMetadata)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Latency(httpMetrics))

	handler.New(svc, admin, log, cfg.ReturnURL).Register(router)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting veribridge", "addr", cfg.Addr, "profile", cfg.Profile, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		return httpserver.Shutdown(srv)
	})
	return g.Wait()
}

func buildStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return redisstore.New(client.Client), func() { _ = client.Close() }, nil
	case config.StorePostgres:
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		pg := postgresstore.New(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return pg, func() { _ = db.Close() }, nil
	default:
		return memorystore.New(), func() {}, nil
	}
}

func buildAuditSink(ctx context.Context, cfg config.Config, log *slog.Logger) (audit.Sink, error) {
	if len(cfg.KafkaBrokers) == 0 {
		log.Info("no kafka brokers configured, auditing in memory only")
		return auditmemory.NewSink(), nil
	}
	return auditkafka.NewSink(ctx, cfg.KafkaBrokers, cfg.AuditTopic)
}
