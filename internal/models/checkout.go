package models

import "time"

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CheckoutSession tracks payment of one created booking.
type CheckoutSession struct {
	ID           string         `json:"id"`
	DraftID      string         `json:"draftId"`
	BookingID    string         `json:"bookingId"`
	OrderID      string         `json:"orderId"`
	Breakdown    PriceBreakdown `json:"breakdown"`
	Discount     float64        `json:"discount"`
	DiscountType string         `json:"discountType,omitempty"`
	PromoCode    string         `json:"promoCode,omitempty"`
	State        string         `json:"state"`
	PaymentID    string         `json:"paymentId,omitempty"`
	Location     string         `json:"location"`
	StartTime    time.Time      `json:"startTime"`
	Customer     Customer       `json:"customer"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func (s *CheckoutSession) FinalTotal() float64 {
	return s.Breakdown.Final(s.Discount)
}

// CouponApplied reports whether a discount has already been recorded.
func (s *CheckoutSession) CouponApplied() bool {
	return s.PromoCode != ""
}

type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// CheckoutOptions is handed to the hosted checkout widget.
type CheckoutOptions struct {
	Key         string  `json:"key"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	OrderID     string  `json:"order_id"`
	Prefill     Prefill `json:"prefill"`
}

// PaymentProof is the widget success payload.
type PaymentProof struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// CheckoutOutcome tells the front end where to go next.
type CheckoutOutcome struct {
	State    string `json:"state"`
	Redirect string `json:"redirect"`
	Message  string `json:"message,omitempty"`
}

// CouponResult is the backend answer to a promo code.
type CouponResult struct {
	Discount     float64 `json:"discount" validate:"gte=0"`
	DiscountType string  `json:"discountType" validate:"omitempty,oneof=PERCENTAGE FIXED"`
	OrderID      string  `json:"orderId" validate:"required"`
}

// CheckoutSummary is the display view of a session.
type CheckoutSummary struct {
	SessionID  string         `json:"sessionId"`
	BookingID  string         `json:"bookingId"`
	Location   string         `json:"location"`
	Date       string         `json:"date"`
	Time       string         `json:"time"`
	Zone       string         `json:"zone"`
	Breakdown  PriceBreakdown `json:"breakdown"`
	Discount   float64        `json:"discount"`
	FinalTotal float64        `json:"finalTotal"`
	State      string         `json:"state"`
}

// RideView is a booking decorated for listing.
type RideView struct {
	Booking
	PackageLabel string  `json:"packageLabel"`
	Duration     float64 `json:"duration"`
	Date         string  `json:"date"`
	Time         string  `json:"time"`
	Zone         string  `json:"zone"`
}
