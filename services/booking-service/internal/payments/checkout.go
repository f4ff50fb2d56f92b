// Package payments creates Stripe Checkout Sessions for booking holds and applies Stripe
// webhook outcomes to them.
package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
)

// Stripe rejects Checkout Sessions that expire sooner than this.
const minSessionLifetime = 30 * time.Minute

type CheckoutRequest struct {
	BookingID      string
	ClubID         string
	Start          time.Time
	End            time.Time
	CustomerEmail  string
	IdempotencyKey string
}

type Checkout struct {
	SessionID string
	URL       string
}

type CheckoutConfig struct {
	SecretKey       string
	SuccessURL      string
	CancelURL       string
	Currency        string
	HourlyRateCents int64
}

type StripeCheckout struct {
	client checkoutsession.Client
	cfg    CheckoutConfig
	now    func() time.Time
}

func NewStripeCheckout(cfg CheckoutConfig) (*StripeCheckout, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if cfg.SuccessURL == "" || cfg.CancelURL == "" {
		return nil, errors.New("stripe success and cancel urls are required")
	}
	if cfg.Currency == "" {
		cfg.Currency = string(stripe.CurrencyUSD)
	}
	if cfg.HourlyRateCents <= 0 {
		return nil, errors.New("hourly rate must be positive")
	}
	return &StripeCheckout{
		client: checkoutsession.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.SecretKey},
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

// AmountCents prices a reservation pro rata by its length, rounding up to whole cents.
func AmountCents(hourlyRateCents int64, d time.Duration) int64 {
	if d <= 0 || hourlyRateCents <= 0 {
		return 0
	}
	minutes := int64(d / time.Minute)
	return (hourlyRateCents*minutes + 59) / 60
}

func (s *StripeCheckout) CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error) {
	params := s.sessionParams(req)
	params.Context = ctx
	sess, err := s.client.New(params)
	if err != nil {
		return Checkout{}, err
	}
	return Checkout{SessionID: sess.ID, URL: sess.URL}, nil
}

func (s *StripeCheckout) sessionParams(req CheckoutRequest) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(req.BookingID),
		ExpiresAt:         stripe.Int64(s.now().Add(minSessionLifetime).Unix()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(s.cfg.Currency),
					UnitAmount: stripe.Int64(AmountCents(s.cfg.HourlyRateCents, req.End.Sub(req.Start))),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Court booking " + req.Start.Format("2006-01-02 15:04")),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"booking_id": req.BookingID,
			"club_id":    req.ClubID,
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String("checkout:" + req.IdempotencyKey)
	}
	return params
}
