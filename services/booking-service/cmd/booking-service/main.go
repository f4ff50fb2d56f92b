package main

import (
	"context"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/md-rashed-zaman/clubbook/libs/auth"
	"github.com/md-rashed-zaman/clubbook/libs/config"
	"github.com/md-rashed-zaman/clubbook/libs/db"
	"github.com/md-rashed-zaman/clubbook/libs/grpcx"
	"github.com/md-rashed-zaman/clubbook/libs/httpx"
	"github.com/md-rashed-zaman/clubbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/clubbook/libs/otel"
	"github.com/md-rashed-zaman/clubbook/libs/outbox"
	"github.com/md-rashed-zaman/clubbook/libs/runtime"
	"github.com/md-rashed-zaman/clubbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/clubbook/services/booking-service/internal/payments"
	"github.com/md-rashed-zaman/clubbook/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = config.LoadDotenv()

	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
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

	holdTTL, err := config.Duration("HOLD_TTL", 20*time.Minute)
	if err != nil {
		panic(err)
	}
	rateLimit, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		panic(err)
	}
	failOpen := config.Bool("RATE_LIMIT_FAIL_OPEN", true)
	brokers := config.String("KAFKA_BROKERS", "")

	repo := storage.NewBookingRepository(pool)
	clubs := storage.NewClubConfigReader(pool)
	outboxRepo := outbox.NewRepository()

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	opts := handlers.Options{HoldTTL: holdTTL}
	if key := config.String("STRIPE_SECRET_KEY", ""); key != "" {
		hourly, err := config.Int("COURT_HOURLY_PRICE_CENTS", 2000)
		if err != nil {
			panic(err)
		}
		checkout, err := payments.NewStripeCheckout(payments.CheckoutConfig{
			SecretKey:       key,
			SuccessURL:      config.String("CHECKOUT_SUCCESS_URL", "http://localhost:3000/booking/success"),
			CancelURL:       config.String("CHECKOUT_CANCEL_URL", "http://localhost:3000/booking/cancelled"),
			Currency:        config.String("STRIPE_CURRENCY", "usd"),
			HourlyRateCents: int64(hourly),
		})
		if err != nil {
			panic(err)
		}
		opts.Checkout = checkout
	} else {
		logger.Warn("stripe checkout disabled (STRIPE_SECRET_KEY not set)")
	}
	webhookTolerance, err := config.Duration("STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute)
	if err != nil {
		panic(err)
	}

	bookingHandler := handlers.NewBookingHandler(repo, clubs, outboxRepo, logger, opts)
	webhookHandler := payments.NewWebhookHandler(repo, outboxRepo, config.String("STRIPE_WEBHOOK_SECRET", ""), webhookTolerance, logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	}

	var limiter httpx.Limiter
	if redisURL := config.String("REDIS_URL", ""); redisURL != "" {
		redisOpts, err := redis.ParseURL(redisURL)
		if err != nil {
			panic(err)
		}
		rdb := redis.NewClient(redisOpts)
		defer rdb.Close()
		limiter = httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, "clubbook:ratelimit:")
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	} else {
		memLimiter := httpx.NewMemoryRateLimiter(rateLimit, time.Minute)
		go memLimiter.RunSweeper(ctx)
		limiter = memLimiter
	}

	if addr := config.String("CLUB_GRPC_ADDR", ""); addr != "" {
		conn, err := grpcx.Dial(addr, grpcx.DialOptions{})
		if err != nil {
			panic(err)
		}
		defer conn.Close()
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "club-service", Check: grpcx.HealthReadyCheck(conn, "")})
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)

	public := func(h http.HandlerFunc) http.Handler {
		return httpx.Chain(h,
			httpx.WithCORS(httpx.PublicCORSPolicy(config.String("CORS_ALLOWED_ORIGINS", ""))),
			httpx.RateLimit(limiter, logger, failOpen),
		)
	}
	mux.Handle("/api/v1/public/slots", public(httpx.Methods(map[string]http.HandlerFunc{http.MethodGet: bookingHandler.Slots})))
	mux.Handle("/api/v1/public/courses/availability", public(httpx.Methods(map[string]http.HandlerFunc{http.MethodGet: bookingHandler.CourseAvailability})))
	mux.Handle("/api/v1/public/book", public(httpx.Methods(map[string]http.HandlerFunc{http.MethodPost: bookingHandler.Create})))
	mux.Handle("/api/v1/payments/webhooks/stripe", webhookHandler)

	admin := func(h http.Handler) http.Handler { return h }
	if hash := config.String("ADMIN_KEY_HASH", ""); hash != "" {
		verifier, err := auth.NewAdminKeyVerifier(hash)
		if err != nil {
			panic(err)
		}
		admin = verifier.Middleware
	} else {
		logger.Warn("booking admin endpoints are unauthenticated (ADMIN_KEY_HASH not set)")
	}
	mux.Handle("/api/v1/bookings", admin(httpx.Methods(map[string]http.HandlerFunc{http.MethodGet: bookingHandler.List})))
	mux.Handle("/api/v1/bookings/cancel", admin(httpx.Methods(map[string]http.HandlerFunc{http.MethodPost: bookingHandler.Cancel})))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	runtime.RunHTTPServer(ctx, logger, srv)
}
