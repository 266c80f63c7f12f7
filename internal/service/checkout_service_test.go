package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"waterz/internal/backend"
	"waterz/internal/config"
	"waterz/internal/database"
	"waterz/internal/domain"
	"waterz/internal/events"
	"waterz/internal/models"
)

var testPayment = config.PaymentConfig{
	Key:          "rzp_test_key",
	Currency:     "INR",
	MerchantName: "Waterz Rentals",
	Description:  "Yacht Booking Payment",
}

type checkoutFixture struct {
	svc     *CheckoutService
	backend *mockBackend
	ledger  *database.DB
	bus     *events.EventBus
}

func newCheckoutFixture(t *testing.T, coupons config.CouponConfig) *checkoutFixture {
	t.Helper()

	ledger, err := database.NewDB(filepath.Join(t.TempDir(), "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	require.NoError(t, ledger.CreateSession(context.Background(), &models.CheckoutSession{
		ID:        "s1",
		DraftID:   "d1",
		BookingID: "b1",
		OrderID:   "order_1",
		Breakdown: models.PriceBreakdown{PackageAmount: 1350, AddonCost: 2000, GSTAmount: 603, TotalAmount: 3953},
		State:     models.CheckoutIdle,
		Location:  "Goa",
		StartTime: time.Date(2025, 6, 5, 8, 30, 0, 0, time.UTC),
		Customer:  models.Customer{Name: "Asha", Email: "asha@example.com", Phone: "9000000000"},
	}))

	mb := new(mockBackend)
	bus := events.NewEventBus(nil)
	return &checkoutFixture{
		svc:     NewCheckoutService(ledger, mb, bus, testPayment, coupons, nil),
		backend: mb,
		ledger:  ledger,
		bus:     bus,
	}
}

func (f *checkoutFixture) state(t *testing.T) string {
	t.Helper()
	s, err := f.ledger.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	return s.State
}

func TestCheckoutService_Summary(t *testing.T) {
	f := newCheckoutFixture(t, config.CouponConfig{})

	summary, err := f.svc.Summary(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "June 5, 2025", summary.Date)
	assert.Equal(t, "2:00 PM", summary.Time)
	assert.Equal(t, "IST", summary.Zone)
	assert.Equal(t, 3953.0, summary.FinalTotal)

	_, err = f.svc.Summary(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestCheckoutService_FullFlow(t *testing.T) {
	f := newCheckoutFixture(t, config.CouponConfig{})
	ctx := context.Background()
	auth := backend.FromHeader("Bearer tok")

	var seen []string
	f.bus.SubscribeAll(func(e *events.Event) error {
		seen = append(seen, e.Type)
		return nil
	}, events.EventCouponApplied, events.EventCheckoutOpened, events.EventPaymentVerified)

	f.backend.On("ValidatePromoCode", mock.Anything, auth, backend.CouponRequest{
		PromoCode:  "SAVE500",
		GrandTotal: 3953,
		BookingID:  "b1",
	}).Return(&models.CouponResult{Discount: 500, DiscountType: models.DiscountTypeFixed, OrderID: "order_2"}, nil).Once()

	summary, err := f.svc.ApplyCoupon(ctx, auth, "s1", " SAVE500 ")
	require.NoError(t, err)
	assert.Equal(t, 500.0, summary.Discount)
	assert.Equal(t, 3453.0, summary.FinalTotal)

	opts, err := f.svc.OpenCheckout(ctx, "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, &models.CheckoutOptions{
		Key:         "rzp_test_key",
		Amount:      345300,
		Currency:    "INR",
		Name:        "Waterz Rentals",
		Description: "Yacht Booking Payment",
		OrderID:     "order_2",
		Prefill:     models.Prefill{Name: "Asha", Email: "asha@example.com", Contact: "9000000000"},
	}, opts)
	assert.Equal(t, models.CheckoutOpen, f.state(t))

	proof := models.PaymentProof{OrderID: "order_2", PaymentID: "pay_1", Signature: "sig"}
	f.backend.On("VerifyPayment", mock.Anything, auth, proof).Return(nil).Once()

	outcome, err := f.svc.Complete(ctx, auth, "s1", proof)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutVerified, outcome.State)
	assert.Equal(t, "/payment-success", outcome.Redirect)

	stored, err := f.ledger.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutVerified, stored.State)
	assert.Equal(t, "pay_1", stored.PaymentID)
	assert.Equal(t, "SAVE500", stored.PromoCode)

	f.backend.AssertExpectations(t)
	assert.Equal(t, []string{events.EventCouponApplied, events.EventCheckoutOpened, events.EventPaymentVerified}, seen)

	// verified is terminal
	_, err = f.svc.Complete(ctx, auth, "s1", proof)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.svc.OpenCheckout(ctx, "s1", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCheckoutService_ApplyCouponErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty code", func(t *testing.T) {
		f := newCheckoutFixture(t, config.CouponConfig{})
		_, err := f.svc.ApplyCoupon(ctx, backend.Anonymous(), "s1", "  ")
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "Please enter a coupon code", ve.Message)
		f.backend.AssertNotCalled(t, "ValidatePromoCode", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejected", func(t *testing.T) {
		f := newCheckoutFixture(t, config.CouponConfig{})
		f.backend.On("ValidatePromoCode", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, &domain.BackendRejection{Endpoint: "validate_promo", Status: 400, Message: "expired"})

		_, err := f.svc.ApplyCoupon(ctx, backend.Anonymous(), "s1", "OLD")
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "Invalid coupon code", ve.Message)

		s, err := f.svc.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "order_1", s.OrderID)
		assert.Zero(t, s.Discount)
		assert.Equal(t, models.CheckoutIdle, s.State)
	})

	t.Run("transport failure", func(t *testing.T) {
		f := newCheckoutFixture(t, config.CouponConfig{})
		f.backend.On("ValidatePromoCode", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, &domain.TransportError{Endpoint: "validate_promo", Err: errors.New("reset")})

		_, err := f.svc.ApplyCoupon(ctx, backend.Anonymous(), "s1", "SAVE")
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("applied once", func(t *testing.T) {
		f := newCheckoutFixture(t, config.CouponConfig{})
		f.backend.On("ValidatePromoCode", mock.Anything, mock.Anything, mock.Anything).
			Return(&models.CouponResult{Discount: 100, DiscountType: models.DiscountTypeFixed, OrderID: "order_2"}, nil)

		_, err := f.svc.ApplyCoupon(ctx, backend.Anonymous(), "s1", "A")
		require.NoError(t, err)
		_, err = f.svc.ApplyCoupon(ctx, backend.Anonymous(), "s1", "B")
		assert.ErrorIs(t, err, domain.ErrCouponAlreadyApplied)
		f.backend.AssertNumberOfCalls(t, "ValidatePromoCode", 1)
	})

	t.Run("after checkout opened", func(t *testing.T) {
		f := newCheckoutFixture(t, config.CouponConfig{})
		_, err := f.svc.OpenCheckout(ctx, "s1", nil)
		require.NoError(t, err)

		_, err = f.svc.ApplyCoupon(ctx, backend.Anonymous(), "s1", "A")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestCheckoutService_DiscountTypes(t *testing.T) {
	tests := []struct {
		name     string
		coupons  config.CouponConfig
		result   models.CouponResult
		discount float64
	}{
		{"fixed", config.CouponConfig{}, models.CouponResult{Discount: 200, DiscountType: models.DiscountTypeFixed, OrderID: "o"}, 200},
		{"percentage as amount", config.CouponConfig{}, models.CouponResult{Discount: 10, DiscountType: models.DiscountTypePercentage, OrderID: "o"}, 10},
		{"percentage as rate", config.CouponConfig{PercentageAsRate: true}, models.CouponResult{Discount: 10, DiscountType: models.DiscountTypePercentage, OrderID: "o"}, 395.3},
		{"fixed ignores rate flag", config.CouponConfig{PercentageAsRate: true}, models.CouponResult{Discount: 50, DiscountType: models.DiscountTypeFixed, OrderID: "o"}, 50},
		{"larger than total", config.CouponConfig{}, models.CouponResult{Discount: 5000, DiscountType: models.DiscountTypeFixed, OrderID: "o"}, 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture(t, tt.coupons)
			result := tt.result
			f.backend.On("ValidatePromoCode", mock.Anything, mock.Anything, mock.Anything).Return(&result, nil)

			summary, err := f.svc.ApplyCoupon(context.Background(), backend.Anonymous(), "s1", "CODE")
			require.NoError(t, err)
			assert.InDelta(t, tt.discount, summary.Discount, 0.001)
			assert.GreaterOrEqual(t, summary.FinalTotal, 0.0)
		})
	}
}

func TestCheckoutService_FixedCouponOnRoundTotal(t *testing.T) {
	f := newCheckoutFixture(t, config.CouponConfig{})
	ctx := context.Background()

	require.NoError(t, f.ledger.CreateSession(ctx, &models.CheckoutSession{
		ID:        "s2",
		BookingID: "b2",
		OrderID:   "order_2",
		Breakdown: models.PriceBreakdown{PackageAmount: 1500, TotalAmount: 1500},
		State:     models.CheckoutIdle,
		Location:  "Goa",
		StartTime: time.Date(2025, 6, 5, 8, 30, 0, 0, time.UTC),
	}))
	f.backend.On("ValidatePromoCode", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.CouponResult{Discount: 200, DiscountType: models.DiscountTypeFixed, OrderID: "order_3"}, nil)

	summary, err := f.svc.ApplyCoupon(ctx, backend.Anonymous(), "s2", "SAVE200")
	require.NoError(t, err)
	assert.Equal(t, 200.0, summary.Discount)
	assert.Equal(t, 1300.0, summary.FinalTotal)

	opts, err := f.svc.OpenCheckout(ctx, "s2", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(130000), opts.Amount)
	assert.Equal(t, "order_3", opts.OrderID)
}

func TestCheckoutService_VerificationFailure(t *testing.T) {
	f := newCheckoutFixture(t, config.CouponConfig{})
	ctx := context.Background()

	customer := &models.Customer{Name: "Ravi", Email: "ravi@example.com", Phone: "9111111111"}
	opts, err := f.svc.OpenCheckout(ctx, "s1", customer)
	require.NoError(t, err)
	assert.Equal(t, "Ravi", opts.Prefill.Name)
	assert.Equal(t, int64(395300), opts.Amount)

	_, err = f.svc.Complete(ctx, backend.Anonymous(), "s1", models.PaymentProof{OrderID: "other", PaymentID: "p", Signature: "s"})
	assert.True(t, domain.IsValidation(err))
	assert.Equal(t, models.CheckoutOpen, f.state(t))

	proof := models.PaymentProof{OrderID: "order_1", PaymentID: "pay_1", Signature: "bad"}
	f.backend.On("VerifyPayment", mock.Anything, mock.Anything, proof).
		Return(&domain.BackendRejection{Endpoint: "verify_payment", Status: 400, Message: "signature mismatch"}).Once()

	outcome, err := f.svc.Complete(ctx, backend.Anonymous(), "s1", proof)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutVerificationFailed, outcome.State)
	assert.Equal(t, "/payment-failed", outcome.Redirect)
	assert.Equal(t, "signature mismatch", outcome.Message)
	assert.Equal(t, models.CheckoutVerificationFailed, f.state(t))
}

func TestCheckoutService_Abandon(t *testing.T) {
	f := newCheckoutFixture(t, config.CouponConfig{})
	ctx := context.Background()

	_, err := f.svc.Abandon(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.OpenCheckout(ctx, "s1", nil)
	require.NoError(t, err)

	outcome, err := f.svc.Abandon(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "/payment-failed", outcome.Redirect)
	assert.Equal(t, models.CheckoutOpen, f.state(t))

	_, err = f.svc.Complete(ctx, backend.Anonymous(), "s1", models.PaymentProof{})
	assert.True(t, domain.IsValidation(err))
}

func TestCheckoutService_Pending(t *testing.T) {
	f := newCheckoutFixture(t, config.CouponConfig{})

	sessions, err := f.svc.Pending(context.Background(), models.CheckoutIdle, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].ID)
}

func TestCheckoutService_ExpireStale(t *testing.T) {
	f := newCheckoutFixture(t, config.CouponConfig{})
	ctx := context.Background()

	var failed []string
	f.bus.Subscribe(events.EventPaymentFailed, func(e *events.Event) error {
		var p events.CheckoutEventPayload
		require.NoError(t, e.Decode(&p))
		failed = append(failed, p.SessionID)
		return nil
	})

	expired, err := f.svc.ExpireStale(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, expired, "idle sessions are not swept")

	session, err := f.ledger.GetSession(ctx, "s1")
	require.NoError(t, err)
	session.State = models.CheckoutOpen
	require.NoError(t, f.ledger.UpdateSession(ctx, session, models.CheckoutIdle))
	session.State = models.CheckoutVerificationPending
	require.NoError(t, f.ledger.UpdateSession(ctx, session, models.CheckoutOpen))

	expired, err = f.svc.ExpireStale(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, expired)
	assert.Equal(t, models.CheckoutVerificationPending, f.state(t))

	expired, err = f.svc.ExpireStale(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, expired)
	assert.Equal(t, models.CheckoutVerificationFailed, f.state(t))
	assert.Equal(t, []string{"s1"}, failed)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(9999), MinorUnits(99.99))
	assert.Equal(t, int64(1050), MinorUnits(10.5))
	assert.Equal(t, int64(0), MinorUnits(0))
}
