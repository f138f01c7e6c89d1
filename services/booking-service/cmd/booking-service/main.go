package main

import (
	"context"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/config"
	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"github.com/md-rashed-zaman/apptbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/apptbook/libs/otel"
	"github.com/md-rashed-zaman/apptbook/libs/runtime"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/idempotency"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	pollEvery, err := config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		panic(err)
	}
	batchSize, err := config.Int("OUTBOX_BATCH_SIZE", 50)
	if err != nil {
		panic(err)
	}
	ratePerMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		panic(err)
	}
	idemTTL, err := config.Duration("IDEMPOTENCY_TTL", 24*time.Hour)
	if err != nil {
		panic(err)
	}
	requestTimeout, err := config.Duration("REQUEST_TIMEOUT", 15*time.Second)
	if err != nil {
		panic(err)
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	store, err := storage.Open(ctx, storage.Config{
		Driver:        config.String("STORE_DRIVER", storage.DriverMemory),
		MongoURI:      config.String("MONGO_URI", ""),
		MongoDatabase: config.String("MONGO_DATABASE", "booking"),
		DatabaseURL:   config.String("DATABASE_URL", ""),
	})
	if err != nil {
		logger.Error("store open failed", "err", err)
		panic(err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = store.Close(closeCtx)
	}()
	logger.Info("store ready", "driver", store.Driver())

	metrics.Register()

	readyChecks := []runtime.ReadyCheck{{Name: "store", Check: store.ReadyCheck}}
	var (
		idem        idempotency.Store = idempotency.NewMemoryStore(idemTTL)
		rateLimiter                   = httpx.NewRateLimiter(ratePerMinute, time.Minute).Middleware()
	)
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close()
		idem = idempotency.NewRedisStore(rdb, idemTTL, service+":idem:")
		rateLimiter = httpx.NewRedisRateLimiter(rdb, ratePerMinute, time.Minute, service+":rl").Middleware(logger, true)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	} else {
		logger.Warn("REDIS_ADDR not set; rate limits and idempotency keys are per instance")
	}

	outboxRepo := outbox.NewRepository(store.Outbox)
	publisher := outbox.NewPublisher(outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: pollEvery,
		BatchSize: batchSize,
	})
	if publisher.Enabled() {
		readyChecks = append(readyChecks, runtime.ReadyCheck{
			Name:  "kafka",
			Check: kafkax.ReadyCheck(kafkax.SplitBrokers(config.String("KAFKA_BROKERS", ""))),
		})
	}
	go publisher.Run(ctx)

	engine := booking.NewEngine(store, logger, booking.WithEvents(outboxRepo))

	api := http.NewServeMux()
	handlers.NewBookingHandler(engine, idem, logger).Register(api)
	handlers.NewScheduleHandler(engine, logger).Register(api)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/api/", httpx.Chain(api,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS"),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", handlers.IdempotencyKeyHeader, handlers.OrganizationIDHeader, httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}),
		rateLimiter,
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(requestTimeout),
	))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	engine.Wait()
	logger.Info("http server stopped")
}
