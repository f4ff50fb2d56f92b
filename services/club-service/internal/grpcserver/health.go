// Package grpcserver publishes club-service readiness over grpc.health.v1 so booking-service
// can gate its own readiness on the configuration store being reachable.
package grpcserver

import (
	"context"
	"log/slog"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported alongside the server-wide status.
const ServiceName = "clubbook.club.v1.ClubConfig"

// StatusSetter is satisfied by *health.Server.
type StatusSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// WatchHealth runs check every interval and mirrors the result into hs until ctx is done.
func WatchHealth(ctx context.Context, logger *slog.Logger, hs StatusSetter, check func(context.Context) error, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	last := healthpb.HealthCheckResponse_UNKNOWN
	update := func() {
		checkCtx, cancel := context.WithTimeout(ctx, interval)
		err := check(checkCtx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		if status != last {
			if err != nil {
				logger.Warn("club-service not serving", "err", err)
			} else {
				logger.Info("club-service serving")
			}
			last = status
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus(ServiceName, status)
	}

	update()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}
