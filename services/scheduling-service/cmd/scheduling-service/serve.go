package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/apptslot/libs/auth"
	"github.com/md-rashed-zaman/apptslot/libs/db"
	"github.com/md-rashed-zaman/apptslot/libs/grpcx"
	"github.com/md-rashed-zaman/apptslot/libs/httpx"
	"github.com/md-rashed-zaman/apptslot/libs/kafkax"
	otelx "github.com/md-rashed-zaman/apptslot/libs/otel"
	"github.com/md-rashed-zaman/apptslot/libs/runtime"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/accounts"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/grpcserver"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/handlers"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/metrics"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/outbox"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/scheduling"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/storage"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/migrations"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			autoMigrate, _ := cmd.Flags().GetBool("migrate")
			return runServer(autoMigrate)
		},
	}
	cmd.Flags().Bool("migrate", false, "Apply pending migrations before serving")
	return cmd
}

func runServer(autoMigrate bool) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	logger := runtime.NewLogger(cfg.Service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{MaxConns: int32(cfg.DBMaxConns)})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		return err
	}
	defer pool.Close()

	if autoMigrate {
		n, err := db.NewMigrator(pool.Pool, migrations.Files).Up(ctx)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied", "count", n)
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	outboxRepo := outbox.NewRepository()
	store := storage.NewBreakerStore(storage.NewAppointmentRepository(pool, outboxRepo), logger, storage.BreakerConfig{
		ConsecutiveFailures: uint32(cfg.BreakerFailures),
		OpenFor:             cfg.BreakerOpenFor,
		OnStateChange:       collector.BreakerChanged,
	})
	mgr := scheduling.NewManager(store, cfg.Calendar, scheduling.Options{
		Logger:            logger,
		Recorder:          collector,
		SearchParallelism: cfg.SearchParallel,
	})
	accts := accounts.NewService(storage.NewUserRepository(pool), issuer, accounts.BcryptCost)

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	brokers := kafkax.SplitBrokers(cfg.KafkaBrokers)
	if len(brokers) > 0 {
		writer := kafkax.NewWriter(brokers)
		defer func() { _ = writer.Close() }()
		publisher := outbox.NewPublisher(pool, outboxRepo, writer, logger, outbox.PublisherConfig{
			PollEvery:   2 * time.Second,
			BatchSize:   50,
			OnPublished: collector.OutboxBatch,
		})
		go publisher.Run(ctx)
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers), Optional: true})
	} else {
		logger.Warn("KAFKA_BROKERS not set; outbox events stay unpublished")
	}

	var chatLimit httpx.Middleware
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		chatLimit = httpx.NewRedisRateLimiter(rdb, cfg.ChatRateLimit, cfg.ChatRateWindow, "ratelimit:chat", handlers.CallerKey).
			Middleware(logger, true)
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb), Optional: true})
	} else {
		chatLimit = httpx.NewRateLimiter(cfg.ChatRateLimit, cfg.ChatRateWindow, handlers.CallerKey).Middleware()
	}

	appts := handlers.NewAppointmentHandler(mgr, logger)
	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("GET /metrics", collector.Handler())
	handlers.Mount(mux, handlers.Routes{
		Appointments: appts,
		Chat:         handlers.NewChatHandler(appts),
		Auth:         handlers.NewAuthHandler(accts, logger),
		Verifier:     issuer,
		ChatLimit:    chatLimit,
	})

	httpHandler := httpx.Chain(collector.Route(mux),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.DefaultCORSPolicy(cfg.CORSOrigins)),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(cfg.RequestTimeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := startGrpcServer(ctx, logger, cfg.GRPCPort, mgr, issuer); err != nil {
		return err
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
	return nil
}

func startGrpcServer(ctx context.Context, logger *slog.Logger, port string, engine grpcserver.Engine, verifier grpcserver.TokenVerifier) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	srv := grpcx.NewServer(logger)
	grpcserver.Register(srv, engine, verifier)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	return nil
}
