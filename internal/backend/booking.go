package backend

import (
	"context"
	"fmt"
	"net/url"

	"waterz/internal/domain"
	"waterz/internal/models"
)

const (
	endpointBookingSlots  = "booking-slots"
	endpointCreateBooking = "create"
	endpointPromoCode     = "validatePromoCode"
	endpointVerifyPayment = "payment-verify"
)

type SlotRequest struct {
	YachtID       string  `json:"yachtId"`
	Date          string  `json:"date"`
	TotalDuration float64 `json:"totalDuration"`
}

type CouponRequest struct {
	PromoCode  string  `json:"promoCode"`
	GrandTotal float64 `json:"grandTotal"`
	BookingID  string  `json:"bookingId"`
}

// BookingSlots returns the availability windows. An empty list is a valid answer.
func (c *Client) BookingSlots(ctx context.Context, auth AuthContext, req SlotRequest) ([]models.AvailabilitySlot, error) {
	var slots []models.AvailabilitySlot
	if err := c.doPost(ctx, auth, endpointBookingSlots, "/customer/booking-slots", req, &slots); err != nil {
		return nil, err
	}
	for i := range slots {
		if err := c.check(endpointBookingSlots, &slots[i]); err != nil {
			return nil, err
		}
	}
	if slots == nil {
		slots = []models.AvailabilitySlot{}
	}
	return slots, nil
}

// CreateBooking submits a draft for the yacht and returns the priced booking.
func (c *Client) CreateBooking(ctx context.Context, auth AuthContext, yachtID string, req models.BookingRequest) (*models.CreatedBooking, error) {
	var created models.CreatedBooking
	path := "/customer/create/" + url.PathEscape(yachtID)
	if err := c.doPost(ctx, auth, endpointCreateBooking, path, req, &created); err != nil {
		return nil, err
	}
	if err := c.check(endpointCreateBooking, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ValidatePromoCode asks the backend to price a coupon against a booking.
func (c *Client) ValidatePromoCode(ctx context.Context, auth AuthContext, req CouponRequest) (*models.CouponResult, error) {
	body := struct {
		Coupon CouponRequest `json:"coupon"`
	}{Coupon: req}

	var result models.CouponResult
	if err := c.doPost(ctx, auth, endpointPromoCode, "/customer/validatePromoCode", body, &result); err != nil {
		return nil, err
	}
	if err := c.check(endpointPromoCode, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// VerifyPayment forwards the checkout proof once. Any 2xx answer means verified.
func (c *Client) VerifyPayment(ctx context.Context, auth AuthContext, proof models.PaymentProof) error {
	body := struct {
		PaymentDetails models.PaymentProof `json:"paymentDetails"`
	}{PaymentDetails: proof}

	return c.doPost(ctx, auth, endpointVerifyPayment, "/payment/verify", body, nil)
}

func (c *Client) missing(endpoint, field string) error {
	return &domain.TransportError{Endpoint: endpoint, Err: fmt.Errorf("response missing %q", field)}
}
