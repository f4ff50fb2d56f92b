package main

import (
	"context"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/clubbook/libs/config"
	"github.com/md-rashed-zaman/clubbook/libs/httpx"
	otelx "github.com/md-rashed-zaman/clubbook/libs/otel"
	"github.com/md-rashed-zaman/clubbook/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = config.LoadDotenv()

	service := config.String("SERVICE_NAME", "gateway-service")
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

	bodyLimit, err := config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20)
	if err != nil {
		panic(err)
	}
	requestTimeout, err := config.Duration("REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		panic(err)
	}

	upstreams := Upstreams{
		Booking: mustParseURL(config.String("BOOKING_URL", "http://booking-service:8083")),
		Club:    mustParseURL(config.String("CLUB_URL", "http://club-service:8082")),
	}
	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "booking-service", Check: upstreamReady(upstreams.Booking)},
		runtime.ReadyCheck{Name: "club-service", Check: upstreamReady(upstreams.Club)},
	)
	registerRoutes(mux, upstreams, otelhttp.NewTransport(http.DefaultTransport))

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(bodyLimit)),
		httpx.WithTimeout(requestTimeout),
	)
	handler = otelhttp.NewHandler(handler, "gateway")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	runtime.RunHTTPServer(ctx, logger, srv)
}
