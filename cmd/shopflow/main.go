package main

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dayeon-kim/shopflow/internal/deadletter"
	"github.com/dayeon-kim/shopflow/internal/dispatch"
	"github.com/dayeon-kim/shopflow/internal/domain/cart"
	"github.com/dayeon-kim/shopflow/internal/domain/coupon"
	"github.com/dayeon-kim/shopflow/internal/domain/delivery"
	"github.com/dayeon-kim/shopflow/internal/domain/inventory"
	"github.com/dayeon-kim/shopflow/internal/domain/order"
	"github.com/dayeon-kim/shopflow/internal/domain/point"
	"github.com/dayeon-kim/shopflow/internal/domain/ranking"
	"github.com/dayeon-kim/shopflow/internal/event"
	"github.com/dayeon-kim/shopflow/internal/eventstore"
	"github.com/dayeon-kim/shopflow/internal/handlers"
	"github.com/dayeon-kim/shopflow/internal/idempotency"
	"github.com/dayeon-kim/shopflow/internal/ops"
	"github.com/dayeon-kim/shopflow/internal/registry"
	"github.com/dayeon-kim/shopflow/libs/config"
	"github.com/dayeon-kim/shopflow/libs/db"
	"github.com/dayeon-kim/shopflow/libs/httpx"
	"github.com/dayeon-kim/shopflow/libs/kafkax"
	otelx "github.com/dayeon-kim/shopflow/libs/otel"
	"github.com/dayeon-kim/shopflow/libs/redisx"
	"github.com/dayeon-kim/shopflow/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "shopflow")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	rdb, err := redisx.Open(ctx, redisx.Config{
		Addr:     config.String("REDIS_ADDR", "localhost:6379"),
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       config.Int("REDIS_DB", 0),
	})
	if err != nil {
		logger.Error("redis connection failed", "err", err)
		panic(err)
	}
	defer func() { _ = rdb.Close() }()

	storeRepo := eventstore.NewRepository(pool)
	publisher := eventstore.NewPublisher(pool, storeRepo)
	guard := idempotency.NewRedisGuard(rdb, config.String("IDEMPOTENCY_PREFIX", "idem"))

	dlqRepo := deadletter.NewRepository(pool)
	dlq := deadletter.NewService(dlqRepo, logger, config.Int("EVENT_MAX_RETRIES", deadletter.DefaultMaxRetries))

	reg := registry.New(
		handlers.NewInventory(inventory.NewService(pool), guard, publisher, logger),
		handlers.NewPoint(point.NewService(pool), guard, logger),
		handlers.NewCoupon(coupon.NewService(pool), guard, logger),
		handlers.NewDelivery(delivery.NewService(pool), guard, logger),
		handlers.NewCart(cart.NewService(rdb), logger),
		handlers.NewRanking(ranking.NewService(rdb), guard, logger),
		handlers.NewOrder(order.NewService(pool), guard, publisher, logger),
	)
	event.LogCatalog(logger)
	reg.LogCatalogDrift(logger)

	consumer := dispatch.NewConsumer(logger, reg, storeRepo, dlq, dispatch.ConsumerConfig{
		Brokers:    config.String("KAFKA_BROKERS", ""),
		GroupID:    config.String("KAFKA_GROUP_ID", "shopflow"),
		Topic:      config.String("KAFKA_CONSUME_TOPIC", "outbox.events"),
		RetryDelay: config.Duration("CDC_RETRY_DELAY", 3*time.Second),
	})
	go consumer.Run(ctx)

	poller := dispatch.NewPoller(storeRepo, reg, dlq, logger, dispatch.PollerConfig{
		Interval:  config.Duration("POLL_INTERVAL", 5*time.Second),
		BatchSize: config.Int("POLL_BATCH_SIZE", 100),
	})
	go poller.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	ops.New(dlqRepo, logger).Register(mux)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	handler = otelhttp.NewHandler(handler, "shopflow-ops")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("ops server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown error", "err", err)
	}
	logger.Info("shutdown complete")
}
