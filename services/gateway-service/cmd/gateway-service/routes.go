package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
)

type Upstreams struct {
	Booking *url.URL
	Club    *url.URL
}

// registerRoutes maps public and admin path prefixes onto the owning service. Authentication
// stays with the services: admin routes carry X-Admin-Key through untouched and the Stripe
// webhook is authenticated by its signature.
func registerRoutes(mux *http.ServeMux, up Upstreams, transport http.RoundTripper) {
	bookingProxy := httputil.NewSingleHostReverseProxy(up.Booking)
	clubProxy := httputil.NewSingleHostReverseProxy(up.Club)
	bookingProxy.Transport = transport
	clubProxy.Transport = transport

	registerProxy(mux, "/api/v1/public", bookingProxy)
	registerProxy(mux, "/api/v1/bookings", bookingProxy)
	registerProxy(mux, "/api/v1/payments/webhooks/stripe", bookingProxy)
	registerProxy(mux, "/api/v1/clubs", clubProxy)
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	if !strings.HasSuffix(prefix, "/") {
		mux.Handle(prefix, handler)
		mux.Handle(prefix+"/", handler)
		return
	}
	mux.Handle(prefix, handler)
}

// upstreamReady probes the upstream's own /readyz.
func upstreamReady(base *url.URL) func(context.Context) error {
	target := base.JoinPath("/readyz").String()
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("upstream not ready: %d", resp.StatusCode)
		}
		return nil
	}
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}
