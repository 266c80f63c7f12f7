package service

import (
	"context"
	"time"

	"waterz/internal/backend"
	"waterz/internal/models"
)

// DraftBackend is the part of the yacht backend used while building a booking.
type DraftBackend interface {
	GetYacht(ctx context.Context, auth backend.AuthContext, id string) (*models.Yacht, error)
	CreateBooking(ctx context.Context, auth backend.AuthContext, yachtID string, req models.BookingRequest) (*models.CreatedBooking, error)
}

// PaymentBackend validates coupons and payments.
type PaymentBackend interface {
	ValidatePromoCode(ctx context.Context, auth backend.AuthContext, req backend.CouponRequest) (*models.CouponResult, error)
	VerifyPayment(ctx context.Context, auth backend.AuthContext, proof models.PaymentProof) error
}

type CatalogBackend interface {
	ListYachts(ctx context.Context, auth backend.AuthContext) ([]models.Yacht, error)
	TopYachts(ctx context.Context, auth backend.AuthContext) ([]models.Yacht, error)
	GetYacht(ctx context.Context, auth backend.AuthContext, id string) (*models.Yacht, error)
	FilterYachts(ctx context.Context, auth backend.AuthContext, filter models.YachtFilter) ([]models.Yacht, error)
	CurrentRides(ctx context.Context, auth backend.AuthContext) ([]models.Booking, error)
	PreviousRides(ctx context.Context, auth backend.AuthContext) ([]models.Booking, error)
	GetRide(ctx context.Context, auth backend.AuthContext, id string) (*models.Booking, error)
}

// AccountBackend covers sign-in, sign-up and the customer profile.
type AccountBackend interface {
	SignIn(ctx context.Context, creds models.Credentials) (*models.SignInResult, error)
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.SignUpResult, error)
	GenerateOTP(ctx context.Context, req models.OTPRequest) (*models.Ack, error)
	VerifyOTP(ctx context.Context, req models.OTPVerification) (*models.Ack, error)
	Logout(ctx context.Context, auth backend.AuthContext) error
	Profile(ctx context.Context, auth backend.AuthContext) (*models.User, error)
	UpdateProfile(ctx context.Context, auth backend.AuthContext, upd models.ProfileUpdate) (*models.User, error)
	SendQuery(ctx context.Context, auth backend.AuthContext, q models.ContactQuery) (*models.Ack, error)
}

// SlotLookup resolves availability for a draft, see slots.Resolver.
type SlotLookup interface {
	Lookup(ctx context.Context, auth backend.AuthContext, draftID, yachtID string, date time.Time, totalDuration float64) (*models.SlotSet, error)
	IsCurrent(ctx context.Context, draftID string, set *models.SlotSet) bool
}
