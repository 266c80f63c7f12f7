package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"waterz/internal/backend"
	"waterz/internal/config"
	"waterz/internal/domain"
	"waterz/internal/events"
	"waterz/internal/localtime"
	"waterz/internal/metrics"
	"waterz/internal/models"
)

const invalidCouponMessage = "Invalid coupon code"

// CheckoutService applies coupons and drives the payment state machine of a checkout session.
type CheckoutService struct {
	sessions         domain.CheckoutRepository
	backend          PaymentBackend
	events           domain.EventPublisher
	logger           *zerolog.Logger
	payment          config.PaymentConfig
	percentageAsRate bool
	now              func() time.Time
}

func NewCheckoutService(
	sessions domain.CheckoutRepository,
	backend PaymentBackend,
	eventBus domain.EventPublisher,
	payment config.PaymentConfig,
	coupons config.CouponConfig,
	logger *zerolog.Logger,
) *CheckoutService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &CheckoutService{
		sessions:         sessions,
		backend:          backend,
		events:           eventBus,
		logger:           logger,
		payment:          payment,
		percentageAsRate: coupons.PercentageAsRate,
		now:              time.Now,
	}
}

func (s *CheckoutService) GetSession(ctx context.Context, id string) (*models.CheckoutSession, error) {
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Summary renders the session for display in the yacht location's zone.
func (s *CheckoutService) Summary(ctx context.Context, id string) (*models.CheckoutSummary, error) {
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return SummaryOf(session), nil
}

func SummaryOf(session *models.CheckoutSession) *models.CheckoutSummary {
	f := localtime.Format(session.StartTime, session.Location)
	return &models.CheckoutSummary{
		SessionID:  session.ID,
		BookingID:  session.BookingID,
		Location:   session.Location,
		Date:       f.Date,
		Time:       f.Time,
		Zone:       f.Zone,
		Breakdown:  session.Breakdown,
		Discount:   session.Discount,
		FinalTotal: session.FinalTotal(),
		State:      session.State,
	}
}

// ApplyCoupon validates a promo code against the backend and records the discount.
// The backend answer carries a new order id that replaces the session's one.
func (s *CheckoutService) ApplyCoupon(ctx context.Context, auth backend.AuthContext, id, code string) (*models.CheckoutSummary, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.NewValidationError("coupon", "Please enter a coupon code")
	}

	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.State != models.CheckoutIdle {
		return nil, fmt.Errorf("%w: coupon in state %s", domain.ErrInvalidTransition, session.State)
	}
	if session.CouponApplied() {
		return nil, domain.ErrCouponAlreadyApplied
	}

	result, err := s.backend.ValidatePromoCode(ctx, auth, backend.CouponRequest{
		PromoCode:  code,
		GrandTotal: session.Breakdown.TotalAmount,
		BookingID:  session.BookingID,
	})
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("session_id", session.ID).
			Str("promo_code", code).
			Msg("Coupon rejected")
		return nil, domain.NewValidationError("coupon", invalidCouponMessage)
	}

	session.Discount = s.discountAmount(session.Breakdown.TotalAmount, result)
	session.DiscountType = result.DiscountType
	session.PromoCode = code
	session.OrderID = result.OrderID
	session.UpdatedAt = s.now()

	if err := s.sessions.UpdateSession(ctx, session, models.CheckoutIdle); err != nil {
		return nil, fmt.Errorf("record coupon: %w", err)
	}

	s.publish(events.EventCouponApplied, session)
	s.logger.Info().
		Str("session_id", session.ID).
		Str("promo_code", code).
		Float64("discount", session.Discount).
		Msg("Coupon applied")

	return SummaryOf(session), nil
}

// discountAmount maps the backend discount to an absolute amount.
func (s *CheckoutService) discountAmount(grandTotal float64, result *models.CouponResult) float64 {
	if s.percentageAsRate && result.DiscountType == models.DiscountTypePercentage {
		return grandTotal * result.Discount / 100
	}
	return result.Discount
}

// OpenCheckout moves the session to CheckoutOpen and returns the widget options.
func (s *CheckoutService) OpenCheckout(ctx context.Context, id string, customer *models.Customer) (*models.CheckoutOptions, error) {
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.State != models.CheckoutIdle {
		return nil, fmt.Errorf("%w: open checkout in state %s", domain.ErrInvalidTransition, session.State)
	}
	if customer != nil {
		session.Customer = *customer
	}

	session.State = models.CheckoutOpen
	session.UpdatedAt = s.now()
	if err := s.sessions.UpdateSession(ctx, session, models.CheckoutIdle); err != nil {
		return nil, fmt.Errorf("open checkout: %w", err)
	}

	s.publish(events.EventCheckoutOpened, session)
	metrics.IncCheckout(session.State)

	return &models.CheckoutOptions{
		Key:         s.payment.Key,
		Amount:      MinorUnits(session.FinalTotal()),
		Currency:    s.payment.Currency,
		Name:        s.payment.MerchantName,
		Description: s.payment.Description,
		OrderID:     session.OrderID,
		Prefill: models.Prefill{
			Name:    session.Customer.Name,
			Email:   session.Customer.Email,
			Contact: session.Customer.Phone,
		},
	}, nil
}

// MinorUnits converts a major-unit amount to rounded minor units.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * models.MinorUnitsPerMajor))
}

// Complete forwards the widget payload to the backend once and records the outcome.
// A failed verification is an outcome, not an error.
func (s *CheckoutService) Complete(ctx context.Context, auth backend.AuthContext, id string, proof models.PaymentProof) (*models.CheckoutOutcome, error) {
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.State != models.CheckoutOpen {
		return nil, fmt.Errorf("%w: complete in state %s", domain.ErrInvalidTransition, session.State)
	}
	if proof.PaymentID == "" || proof.Signature == "" {
		return nil, domain.NewValidationError("payment", "payment id and signature are required")
	}
	if proof.OrderID != session.OrderID {
		return nil, domain.NewValidationError("payment", "order id does not match this checkout")
	}

	session.State = models.CheckoutVerificationPending
	session.PaymentID = proof.PaymentID
	session.UpdatedAt = s.now()
	if err := s.sessions.UpdateSession(ctx, session, models.CheckoutOpen); err != nil {
		return nil, fmt.Errorf("start verification: %w", err)
	}

	verifyErr := s.backend.VerifyPayment(ctx, auth, proof)

	next := models.CheckoutVerified
	eventType := events.EventPaymentVerified
	outcome := &models.CheckoutOutcome{State: next, Redirect: models.RedirectPaymentSuccess}
	if verifyErr != nil {
		next = models.CheckoutVerificationFailed
		eventType = events.EventPaymentFailed
		outcome = &models.CheckoutOutcome{
			State:    next,
			Redirect: models.RedirectPaymentFailed,
			Message:  domain.RejectionMessage(verifyErr, "Payment verification failed"),
		}
		s.logger.Error().
			Err(verifyErr).
			Str("session_id", session.ID).
			Str("order_id", session.OrderID).
			Msg("Payment verification failed")
	}

	session.State = next
	session.UpdatedAt = s.now()
	if err := s.sessions.UpdateSession(ctx, session, models.CheckoutVerificationPending); err != nil {
		return nil, fmt.Errorf("record verification: %w", err)
	}

	s.publish(eventType, session)
	metrics.IncCheckout(next)

	return outcome, nil
}

// Abandon handles the widget being dismissed. The session state does not change.
func (s *CheckoutService) Abandon(ctx context.Context, id string) (*models.CheckoutOutcome, error) {
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.State != models.CheckoutOpen {
		return nil, fmt.Errorf("%w: abandon in state %s", domain.ErrInvalidTransition, session.State)
	}

	s.logger.Info().Str("session_id", session.ID).Msg("Checkout abandoned")
	metrics.IncCheckout("abandoned")

	return &models.CheckoutOutcome{
		State:    session.State,
		Redirect: models.RedirectPaymentFailed,
		Message:  "Payment was cancelled",
	}, nil
}

// Pending lists sessions stuck in state since the given time.
func (s *CheckoutService) Pending(ctx context.Context, state string, since time.Time) ([]*models.CheckoutSession, error) {
	sessions, err := s.sessions.ListSessionsByState(ctx, state, since)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// ExpireStale fails sessions that have waited in verification since before the cutoff.
// Sessions finished concurrently are skipped. It returns the ids it failed.
func (s *CheckoutService) ExpireStale(ctx context.Context, before time.Time) ([]string, error) {
	stuck, err := s.sessions.ListSessionsUpdatedBefore(ctx, models.CheckoutVerificationPending, before)
	if err != nil {
		return nil, err
	}

	var expired []string
	for _, session := range stuck {
		session.State = models.CheckoutVerificationFailed
		session.UpdatedAt = s.now()
		if err := s.sessions.UpdateSession(ctx, session, models.CheckoutVerificationPending); err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				continue
			}
			return expired, fmt.Errorf("expire session %s: %w", session.ID, err)
		}

		s.logger.Warn().
			Str("session_id", session.ID).
			Str("order_id", session.OrderID).
			Msg("Payment verification timed out")
		s.publish(events.EventPaymentFailed, session)
		metrics.IncCheckout(models.CheckoutVerificationFailed)
		expired = append(expired, session.ID)
	}
	return expired, nil
}

func (s *CheckoutService) publish(eventType string, session *models.CheckoutSession) {
	if s.events == nil {
		return
	}
	err := s.events.PublishJSON(eventType, events.CheckoutEventPayload{
		SessionID:   session.ID,
		DraftID:     session.DraftID,
		BookingID:   session.BookingID,
		OrderID:     session.OrderID,
		Location:    session.Location,
		State:       session.State,
		TotalAmount: session.FinalTotal(),
		Discount:    session.Discount,
		PromoCode:   session.PromoCode,
		PaymentID:   session.PaymentID,
		StartTime:   session.StartTime,
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("event_type", eventType).
			Msg("Failed to publish event")
	}
}
