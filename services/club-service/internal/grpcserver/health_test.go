package grpcserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type recordingSetter struct {
	mu       sync.Mutex
	statuses map[string][]healthpb.HealthCheckResponse_ServingStatus
}

func (r *recordingSetter) SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.statuses == nil {
		r.statuses = map[string][]healthpb.HealthCheckResponse_ServingStatus{}
	}
	r.statuses[service] = append(r.statuses[service], status)
}

func (r *recordingSetter) latest(service string) (healthpb.HealthCheckResponse_ServingStatus, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.statuses[service]
	if len(s) == 0 {
		return healthpb.HealthCheckResponse_UNKNOWN, 0
	}
	return s[len(s)-1], len(s)
}

func TestWatchHealth_FollowsCheck(t *testing.T) {
	var (
		mu      sync.Mutex
		failing bool
	)
	check := func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if failing {
			return errors.New("db down")
		}
		return nil
	}

	hs := &recordingSetter{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		WatchHealth(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)), hs, check, 10*time.Millisecond)
		close(done)
	}()

	waitFor(t, func() bool {
		s, _ := hs.latest(ServiceName)
		return s == healthpb.HealthCheckResponse_SERVING
	})

	mu.Lock()
	failing = true
	mu.Unlock()
	waitFor(t, func() bool {
		s, _ := hs.latest("")
		return s == healthpb.HealthCheckResponse_NOT_SERVING
	})

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WatchHealth did not stop after cancel")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
