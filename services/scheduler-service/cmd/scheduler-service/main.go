package main

import (
	"context"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/clubbook/libs/config"
	"github.com/md-rashed-zaman/clubbook/libs/db"
	"github.com/md-rashed-zaman/clubbook/libs/httpx"
	"github.com/md-rashed-zaman/clubbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/clubbook/libs/otel"
	"github.com/md-rashed-zaman/clubbook/libs/outbox"
	"github.com/md-rashed-zaman/clubbook/libs/runtime"
	"github.com/md-rashed-zaman/clubbook/services/scheduler-service/internal/holds"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = config.LoadDotenv()

	service := config.String("SERVICE_NAME", "scheduler-service")
	port, err := config.Port("PORT", "8087")
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

	interval, err := config.Duration("HOLD_SWEEP_INTERVAL", time.Minute)
	if err != nil {
		panic(err)
	}
	ttl, err := config.Duration("HOLD_TTL", 20*time.Minute)
	if err != nil {
		panic(err)
	}
	batch, err := config.Int("HOLD_SWEEP_BATCH", 100)
	if err != nil {
		panic(err)
	}
	brokers := config.String("KAFKA_BROKERS", "")

	outboxRepo := outbox.NewRepository()
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	reaper := holds.NewReaper(pool, holds.NewRepository(), outboxRepo, logger, holds.Config{
		Interval:  interval,
		TTL:       ttl,
		BatchSize: batch,
	})
	go reaper.Run(ctx)
	logger.Info("hold reaper started", "interval", interval.String(), "ttl", ttl.String(), "batch", batch)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "scheduler")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	runtime.RunHTTPServer(ctx, logger, srv)
}
