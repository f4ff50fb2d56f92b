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
	otelx "github.com/md-rashed-zaman/clubbook/libs/otel"
	"github.com/md-rashed-zaman/clubbook/libs/runtime"
	"github.com/md-rashed-zaman/clubbook/services/club-service/internal/grpcserver"
	"github.com/md-rashed-zaman/clubbook/services/club-service/internal/handlers"
	"github.com/md-rashed-zaman/clubbook/services/club-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = config.LoadDotenv()

	service := config.String("SERVICE_NAME", "club-service")
	port, err := config.Port("PORT", "8082")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9090")
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

	repo := storage.NewRepository(pool)
	h := handlers.New(repo, logger)

	gs := grpcx.NewServer()
	go grpcserver.WatchHealth(ctx, logger, gs.Health, db.ReadyCheck(pool), 5*time.Second)
	go func() {
		if err := gs.Serve(ctx, logger, ":"+grpcPort); err != nil {
			logger.Error("grpc server failed", "err", err)
		}
	}()

	admin := func(h http.Handler) http.Handler { return h }
	if hash := config.String("ADMIN_KEY_HASH", ""); hash != "" {
		verifier, err := auth.NewAdminKeyVerifier(hash)
		if err != nil {
			panic(err)
		}
		admin = verifier.Middleware
	} else {
		logger.Warn("club admin endpoints are unauthenticated (ADMIN_KEY_HASH not set)")
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
	)
	mux.Handle("/api/v1/clubs/settings", admin(httpx.Methods(map[string]http.HandlerFunc{
		http.MethodGet: h.GetSettings,
		http.MethodPut: h.UpdateSettings,
	})))
	mux.Handle("/api/v1/clubs/courts", admin(httpx.Methods(map[string]http.HandlerFunc{
		http.MethodPost: h.CreateCourt,
		http.MethodGet:  h.ListCourts,
	})))
	mux.Handle("/api/v1/clubs/blocked-periods", admin(httpx.Methods(map[string]http.HandlerFunc{
		http.MethodPost:   h.CreateBlockedPeriod,
		http.MethodGet:    h.ListBlockedPeriods,
		http.MethodDelete: h.DeleteBlockedPeriod,
	})))
	mux.Handle("/api/v1/clubs/courses", admin(httpx.Methods(map[string]http.HandlerFunc{
		http.MethodPost: h.CreateCourse,
		http.MethodGet:  h.ListCourses,
	})))
	mux.Handle("/api/v1/clubs/courses/sessions", admin(httpx.Methods(map[string]http.HandlerFunc{
		http.MethodPost: h.CreateSession,
		http.MethodGet:  h.ListSessions,
	})))
	mux.Handle("/api/v1/clubs/courses/participants", admin(httpx.Methods(map[string]http.HandlerFunc{
		http.MethodPost: h.AdjustParticipants,
	})))

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	handler = otelhttp.NewHandler(handler, "club")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	runtime.RunHTTPServer(ctx, logger, srv)
}
