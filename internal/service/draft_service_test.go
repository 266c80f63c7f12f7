package service

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"waterz/internal/backend"
	"waterz/internal/database"
	"waterz/internal/domain"
	"waterz/internal/events"
	"waterz/internal/models"
	"waterz/internal/repository"
	"waterz/internal/slots"
)

const (
	pkgShort = "1.5_hours_sailing_0.5_hour_anchorage"
	pkgLong  = "2_hours_sailing_1_hour_anchorage"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) GetYacht(ctx context.Context, auth backend.AuthContext, id string) (*models.Yacht, error) {
	args := m.Called(ctx, auth, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Yacht), args.Error(1)
}

func (m *mockBackend) CreateBooking(ctx context.Context, auth backend.AuthContext, yachtID string, req models.BookingRequest) (*models.CreatedBooking, error) {
	args := m.Called(ctx, auth, yachtID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CreatedBooking), args.Error(1)
}

func (m *mockBackend) BookingSlots(ctx context.Context, auth backend.AuthContext, req backend.SlotRequest) ([]models.AvailabilitySlot, error) {
	args := m.Called(ctx, auth, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AvailabilitySlot), args.Error(1)
}

func (m *mockBackend) ValidatePromoCode(ctx context.Context, auth backend.AuthContext, req backend.CouponRequest) (*models.CouponResult, error) {
	args := m.Called(ctx, auth, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CouponResult), args.Error(1)
}

func (m *mockBackend) VerifyPayment(ctx context.Context, auth backend.AuthContext, proof models.PaymentProof) error {
	return m.Called(ctx, auth, proof).Error(0)
}

func testYacht() *models.Yacht {
	return &models.Yacht{
		ID:        "y1",
		Name:      "Sea Breeze",
		Location:  "Goa",
		YachtType: "Luxury",
		Capacity:  10,
		AddonServices: []models.AddonService{
			{Service: "DJ", PricePerHour: 2000},
			{Service: "Drone", PricePerHour: 1500},
		},
		PackageTypes: []string{pkgShort, pkgLong},
		Price: models.RateCard{
			Sailing:   models.Rate{PeakTime: 1000, NonPeakTime: 800},
			Anchoring: models.Rate{PeakTime: 500, NonPeakTime: 300},
		},
	}
}

// 08:30Z is 2:00 PM in Goa, 12:00Z is 5:30 PM.
func testSlots() []models.AvailabilitySlot {
	return []models.AvailabilitySlot{
		{StartTime: time.Date(2025, 6, 5, 8, 30, 0, 0, time.UTC), EndTime: time.Date(2025, 6, 5, 10, 30, 0, 0, time.UTC)},
		{StartTime: time.Date(2025, 6, 5, 12, 0, 0, 0, time.UTC), EndTime: time.Date(2025, 6, 5, 14, 0, 0, 0, time.UTC)},
	}
}

type draftFixture struct {
	svc     *DraftService
	backend *mockBackend
	seq     *repository.MemorySequencer
	drafts  *repository.MemoryDraftRepository
	ledger  *database.DB
	bus     *events.EventBus
}

func newDraftFixture(t *testing.T) *draftFixture {
	t.Helper()

	ledger, err := database.NewDB(filepath.Join(t.TempDir(), "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	mb := new(mockBackend)
	seq := repository.NewMemorySequencer()
	drafts := repository.NewMemoryDraftRepository(time.Hour)
	bus := events.NewEventBus(nil)

	svc := NewDraftService(drafts, ledger, mb, slots.NewResolver(mb, seq, nil), nil, bus, nil)
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 4, 0, 0, 0, time.UTC) }
	ids := 0
	svc.newID = func() string {
		ids++
		return []string{"d1", "s1", "x3", "x4"}[ids-1]
	}

	return &draftFixture{svc: svc, backend: mb, seq: seq, drafts: drafts, ledger: ledger, bus: bus}
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func (f *draftFixture) draftWithSlots(t *testing.T) *DraftView {
	t.Helper()
	ctx := context.Background()

	f.backend.On("GetYacht", mock.Anything, mock.Anything, "y1").Return(testYacht(), nil).Once()
	f.backend.On("BookingSlots", mock.Anything, mock.Anything, backend.SlotRequest{
		YachtID:       "y1",
		Date:          "2025-06-05T00:00:00.000+00:00",
		TotalDuration: 2,
	}).Return(testSlots(), nil).Once()

	_, err := f.svc.CreateDraft(ctx, backend.Anonymous(), "y1")
	require.NoError(t, err)

	view, err := f.svc.UpdateDraft(ctx, backend.Anonymous(), "d1", DraftUpdate{
		StartDate:   strPtr("2025-06-05"),
		Package:     strPtr(pkgShort),
		PeopleCount: intPtr(4),
	})
	require.NoError(t, err)
	return view
}

func TestDraftService_CreateDraft(t *testing.T) {
	f := newDraftFixture(t)
	f.backend.On("GetYacht", mock.Anything, mock.Anything, "y1").Return(testYacht(), nil)

	view, err := f.svc.CreateDraft(context.Background(), backend.Anonymous(), "y1")
	require.NoError(t, err)

	assert.Equal(t, "d1", view.Draft.ID)
	assert.Equal(t, "Goa", view.Draft.Location)
	assert.Equal(t, "Luxury", view.Draft.YachtType)
	assert.Equal(t, 10, view.Draft.Capacity)
	assert.Equal(t, SlotsNotRequested, view.SlotsStatus)
	assert.Len(t, view.Packages, 2)
	assert.Zero(t, view.TotalPrice)

	stored, err := f.drafts.GetDraft(context.Background(), "d1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "y1", stored.YachtID)
}

func TestDraftService_CreateDraftUnknownYacht(t *testing.T) {
	f := newDraftFixture(t)
	f.backend.On("GetYacht", mock.Anything, mock.Anything, "nope").
		Return(nil, &domain.BackendRejection{Endpoint: "yacht_detail", Status: 404, Message: "not found"})

	_, err := f.svc.CreateDraft(context.Background(), backend.Anonymous(), "nope")
	assert.ErrorIs(t, err, domain.ErrYachtNotFound)

	_, err = f.svc.CreateDraft(context.Background(), backend.Anonymous(), " ")
	assert.True(t, domain.IsValidation(err))
}

func TestDraftService_SlotsAndTotals(t *testing.T) {
	f := newDraftFixture(t)
	view := f.draftWithSlots(t)

	assert.Equal(t, SlotsAvailable, view.SlotsStatus)
	assert.Equal(t, int64(1), view.Generation)
	require.Len(t, view.Slots, 2)
	assert.Equal(t, "2:00 PM - 4:00 PM", view.Slots[0].Label)
	assert.Equal(t, "IST", view.Slots[0].Zone)
	assert.Nil(t, view.SelectedSlot)

	// 2:00 PM is non-peak: 1.5*800 + 0.5*300
	view, err := f.svc.SelectSlot(context.Background(), "d1", 1, 0)
	require.NoError(t, err)
	assert.False(t, view.IsPeak)
	assert.Equal(t, 1350.0, view.PackageTotal)
	assert.Equal(t, 1350.0, view.TotalPrice)

	view, err = f.svc.UpdateDraft(context.Background(), backend.Anonymous(), "d1", DraftUpdate{
		AddonServices: &[]string{"DJ", "DJ"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"DJ"}, view.Draft.AddonServices)
	assert.Equal(t, 2000.0, view.AddonTotal)
	assert.Equal(t, 3350.0, view.TotalPrice)
	require.NotNil(t, view.SelectedSlot, "add-on change keeps the slot")

	// 5:30 PM is peak: 1.5*1000 + 0.5*500
	view, err = f.svc.SelectSlot(context.Background(), "d1", 1, 1)
	require.NoError(t, err)
	assert.True(t, view.IsPeak)
	assert.Equal(t, 1750.0, view.PackageTotal)
	assert.Equal(t, 3750.0, view.TotalPrice)
}

func TestDraftService_PackageChangeInvalidatesSlot(t *testing.T) {
	f := newDraftFixture(t)
	f.draftWithSlots(t)

	_, err := f.svc.SelectSlot(context.Background(), "d1", 1, 0)
	require.NoError(t, err)

	f.backend.On("BookingSlots", mock.Anything, mock.Anything, backend.SlotRequest{
		YachtID:       "y1",
		Date:          "2025-06-05T00:00:00.000+00:00",
		TotalDuration: 3,
	}).Return([]models.AvailabilitySlot{}, nil).Once()

	view, err := f.svc.UpdateDraft(context.Background(), backend.Anonymous(), "d1", DraftUpdate{Package: strPtr(pkgLong)})
	require.NoError(t, err)

	assert.Equal(t, SlotsNotAvailable, view.SlotsStatus)
	assert.Empty(t, view.Slots)
	assert.Nil(t, view.SelectedSlot)
	assert.Nil(t, view.Draft.SlotRef)

	// the old generation is gone
	_, err = f.svc.SelectSlot(context.Background(), "d1", 1, 0)
	assert.True(t, domain.IsValidation(err))
}

func TestDraftService_SupersededLookupChangesNothing(t *testing.T) {
	f := newDraftFixture(t)
	ctx := context.Background()

	f.backend.On("GetYacht", mock.Anything, mock.Anything, "y1").Return(testYacht(), nil)
	f.backend.On("BookingSlots", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			// a newer lookup for the same draft starts while this one is in flight
			_, _ = f.seq.Next(ctx, "slots:d1")
		}).
		Return(testSlots(), nil).Once()

	_, err := f.svc.CreateDraft(ctx, backend.Anonymous(), "y1")
	require.NoError(t, err)

	view, err := f.svc.UpdateDraft(ctx, backend.Anonymous(), "d1", DraftUpdate{
		StartDate: strPtr("2025-06-05"),
		Package:   strPtr(pkgShort),
	})
	require.NoError(t, err)
	assert.Equal(t, SlotsNotRequested, view.SlotsStatus)

	stored, err := f.drafts.GetDraft(ctx, "d1")
	require.NoError(t, err)
	assert.Nil(t, stored.Slots)
	assert.Equal(t, pkgShort, stored.Package)

	f.backend.On("BookingSlots", mock.Anything, mock.Anything, mock.Anything).Return(testSlots(), nil).Once()
	view, err = f.svc.RefreshSlots(ctx, backend.Anonymous(), "d1")
	require.NoError(t, err)
	assert.Equal(t, SlotsAvailable, view.SlotsStatus)
	assert.Equal(t, int64(3), view.Generation)
}

func TestDraftService_LookupFailureKeepsUpdate(t *testing.T) {
	f := newDraftFixture(t)
	ctx := context.Background()

	f.backend.On("GetYacht", mock.Anything, mock.Anything, "y1").Return(testYacht(), nil)
	f.backend.On("BookingSlots", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &domain.TransportError{Endpoint: "booking_slots", Err: errors.New("connection refused")})

	_, err := f.svc.CreateDraft(ctx, backend.Anonymous(), "y1")
	require.NoError(t, err)

	view, err := f.svc.UpdateDraft(ctx, backend.Anonymous(), "d1", DraftUpdate{
		StartDate: strPtr("2025-06-05"),
		Package:   strPtr(pkgShort),
	})
	require.NoError(t, err)
	assert.Equal(t, SlotsError, view.SlotsStatus)
	assert.Equal(t, "Failed to load available slots", view.SlotError)
	assert.Equal(t, pkgShort, view.Draft.Package)

	_, err = f.svc.RefreshSlots(ctx, backend.Anonymous(), "d1")
	var te *domain.TransportError
	assert.ErrorAs(t, err, &te)
}

func TestDraftService_UpdateValidation(t *testing.T) {
	f := newDraftFixture(t)
	f.backend.On("GetYacht", mock.Anything, mock.Anything, "y1").Return(testYacht(), nil)
	_, err := f.svc.CreateDraft(context.Background(), backend.Anonymous(), "y1")
	require.NoError(t, err)

	tests := []struct {
		name  string
		upd   DraftUpdate
		field string
	}{
		{"bad date", DraftUpdate{StartDate: strPtr("05/06/2025")}, "startDate"},
		{"unknown package", DraftUpdate{Package: strPtr("3_hours_sailing")}, "package"},
		{"unknown addon", DraftUpdate{AddonServices: &[]string{"Jetski"}}, "addonServices"},
		{"negative people", DraftUpdate{PeopleCount: intPtr(-1)}, "peopleCount"},
		{"over capacity", DraftUpdate{PeopleCount: intPtr(11)}, "peopleCount"},
		{"unknown timezone", DraftUpdate{Timezone: strPtr("Mars/Olympus")}, "timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UpdateDraft(context.Background(), backend.Anonymous(), "d1", tt.upd)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	_, err = f.svc.GetDraft(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrDraftNotFound)
}

func TestDraftService_SelectSlotOutOfRange(t *testing.T) {
	f := newDraftFixture(t)
	f.draftWithSlots(t)

	_, err := f.svc.SelectSlot(context.Background(), "d1", 1, 2)
	assert.True(t, domain.IsValidation(err))
	_, err = f.svc.SelectSlot(context.Background(), "d1", 1, -1)
	assert.True(t, domain.IsValidation(err))
}

func TestDraftService_Submit(t *testing.T) {
	f := newDraftFixture(t)
	ctx := context.Background()
	f.draftWithSlots(t)

	_, err := f.svc.Submit(ctx, backend.Anonymous(), "d1", models.Customer{})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "slot", ve.Field)

	_, err = f.svc.SelectSlot(ctx, "d1", 1, 0)
	require.NoError(t, err)
	_, err = f.svc.UpdateDraft(ctx, backend.Anonymous(), "d1", DraftUpdate{AddonServices: &[]string{"DJ"}})
	require.NoError(t, err)

	var published []events.CheckoutEventPayload
	f.bus.Subscribe(events.EventDraftSubmitted, func(e *events.Event) error {
		var p events.CheckoutEventPayload
		require.NoError(t, e.Decode(&p))
		published = append(published, p)
		return nil
	})

	auth := backend.FromHeader("Bearer tok")
	f.backend.On("CreateBooking", mock.Anything, auth, "y1", models.BookingRequest{
		StartDate:     "2025-06-05",
		StartTime:     "14:00",
		Location:      "Goa",
		YachtType:     "Luxury",
		Capacity:      10,
		PeopleNo:      4,
		AddonServices: []string{"DJ"},
		Packages:      pkgShort,
		Yacht:         "y1",
		TotalPrice:    3350,
	}).Return(&models.CreatedBooking{
		Booking: models.Booking{ID: "b1", Status: "pending"},
		OrderID: "order_1",
		PriceBreakdown: models.PriceBreakdown{
			PackageAmount: 1350, AddonCost: 2000, GSTAmount: 603, TotalAmount: 3953,
		},
	}, nil).Once()

	customer := models.Customer{Name: "Asha", Email: "asha@example.com", Phone: "9000000000"}
	res, err := f.svc.Submit(ctx, auth, "d1", customer)
	require.NoError(t, err)
	f.backend.AssertExpectations(t)

	assert.Equal(t, "b1", res.Booking.ID)
	assert.Equal(t, "s1", res.Session.ID)
	assert.Equal(t, models.CheckoutIdle, res.Session.State)
	assert.Equal(t, "order_1", res.Session.OrderID)

	stored, err := f.ledger.GetSessionByBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 3953.0, stored.Breakdown.TotalAmount)
	assert.Equal(t, "Asha", stored.Customer.Name)
	assert.True(t, stored.StartTime.Equal(testSlots()[0].StartTime))

	view, err := f.svc.GetDraft(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, view.Draft.Submitted)
	assert.Equal(t, "s1", view.Draft.SessionID)

	require.Len(t, published, 1)
	assert.Equal(t, "b1", published[0].BookingID)

	_, err = f.svc.UpdateDraft(ctx, auth, "d1", DraftUpdate{SpecialRequest: strPtr("cake")})
	assert.ErrorIs(t, err, domain.ErrDraftSubmitted)
	_, err = f.svc.Submit(ctx, auth, "d1", customer)
	assert.ErrorIs(t, err, domain.ErrDraftSubmitted)
}

func TestDraftService_SubmitFailureKeepsDraftEditable(t *testing.T) {
	f := newDraftFixture(t)
	ctx := context.Background()
	f.draftWithSlots(t)
	_, err := f.svc.SelectSlot(ctx, "d1", 1, 0)
	require.NoError(t, err)

	f.backend.On("CreateBooking", mock.Anything, mock.Anything, "y1", mock.Anything).
		Return(nil, &domain.BackendRejection{Endpoint: "create_booking", Status: 409, Message: "Slot already booked"}).Once()
	f.backend.On("CreateBooking", mock.Anything, mock.Anything, "y1", mock.Anything).
		Return(nil, &domain.TransportError{Endpoint: "create_booking", Err: errors.New("timeout")}).Once()

	_, err = f.svc.Submit(ctx, backend.Anonymous(), "d1", models.Customer{})
	require.Error(t, err)
	assert.Equal(t, "Slot already booked", BookingFailedMessage(err))

	_, err = f.svc.Submit(ctx, backend.Anonymous(), "d1", models.Customer{})
	require.Error(t, err)
	assert.Equal(t, "Failed to book yacht. Please try again.", BookingFailedMessage(err))

	view, err := f.svc.UpdateDraft(ctx, backend.Anonymous(), "d1", DraftUpdate{SpecialRequest: strPtr("cake")})
	require.NoError(t, err)
	assert.False(t, view.Draft.Submitted)
	assert.NotNil(t, view.SelectedSlot)
}

func TestDraftService_DubaiDraftUsesGST(t *testing.T) {
	f := newDraftFixture(t)
	ctx := context.Background()

	yacht := testYacht()
	yacht.Location = "Dubai Marina"
	f.backend.On("GetYacht", mock.Anything, mock.Anything, "y1").Return(yacht, nil)
	f.backend.On("BookingSlots", mock.Anything, mock.Anything, mock.Anything).Return(testSlots(), nil)

	_, err := f.svc.CreateDraft(ctx, backend.Anonymous(), "y1")
	require.NoError(t, err)
	_, err = f.svc.UpdateDraft(ctx, backend.Anonymous(), "d1", DraftUpdate{
		StartDate: strPtr("2025-06-05"),
		Package:   strPtr(pkgShort),
	})
	require.NoError(t, err)

	view, err := f.svc.SelectSlot(ctx, "d1", 1, 0)
	require.NoError(t, err)
	require.NotNil(t, view.SelectedSlot)
	assert.Equal(t, "12:30 PM - 2:30 PM", view.SelectedSlot.Label)
	assert.Equal(t, "GST", view.SelectedSlot.Zone)
}

func TestDraftService_DiscardDraft(t *testing.T) {
	f := newDraftFixture(t)
	f.backend.On("GetYacht", mock.Anything, mock.Anything, "y1").Return(testYacht(), nil)
	_, err := f.svc.CreateDraft(context.Background(), backend.Anonymous(), "y1")
	require.NoError(t, err)

	require.NoError(t, f.svc.DiscardDraft(context.Background(), "d1"))
	_, err = f.svc.GetDraft(context.Background(), "d1")
	assert.ErrorIs(t, err, domain.ErrDraftNotFound)
}

func TestDraftService_TimezoneChangeKeepsCalendarDay(t *testing.T) {
	f := newDraftFixture(t)
	ctx := context.Background()
	f.draftWithSlots(t)

	_, err := f.svc.SelectSlot(ctx, "d1", 1, 0)
	require.NoError(t, err)

	f.backend.On("BookingSlots", mock.Anything, mock.Anything, backend.SlotRequest{
		YachtID:       "y1",
		Date:          "2025-06-05T00:00:00.000+00:00",
		TotalDuration: 2,
	}).Return(testSlots(), nil).Once()

	view, err := f.svc.UpdateDraft(ctx, backend.Anonymous(), "d1", DraftUpdate{Timezone: strPtr("America/Los_Angeles")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), view.Generation)
	assert.Nil(t, view.SelectedSlot, "timezone change drops the old slot")
	assert.Equal(t, "1:30 AM - 3:30 AM", view.Slots[0].Label)
	assert.Equal(t, "PDT", view.Slots[0].Zone)

	_, err = f.svc.SelectSlot(ctx, "d1", 1, 0)
	assert.True(t, domain.IsValidation(err))
	_, err = f.svc.SelectSlot(ctx, "d1", 2, 0)
	require.NoError(t, err)

	var sent models.BookingRequest
	f.backend.On("CreateBooking", mock.Anything, mock.Anything, "y1", mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(3).(models.BookingRequest) }).
		Return(&models.CreatedBooking{Booking: models.Booking{ID: "b1"}, OrderID: "order_1"}, nil).Once()

	_, err = f.svc.Submit(ctx, backend.Anonymous(), "d1", models.Customer{})
	require.NoError(t, err)
	assert.Equal(t, "2025-06-05", sent.StartDate)
	assert.Equal(t, "01:30", sent.StartTime)
	f.backend.AssertExpectations(t)
}

func TestDraftService_UnknownStoredTimezoneFallsBack(t *testing.T) {
	f := newDraftFixture(t)
	ctx := context.Background()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	f.svc.logger = &logger

	require.NoError(t, f.drafts.SaveDraft(ctx, &models.BookingDraft{
		ID:       "d9",
		YachtID:  "y1",
		Yacht:    testYacht(),
		Location: "Goa",
		Timezone: "Mars/Olympus",
		Package:  pkgShort,
		Slots:    &models.SlotSet{Generation: 1, Slots: testSlots()},
	}))

	view, err := f.svc.GetDraft(ctx, "d9")
	require.NoError(t, err)
	require.Len(t, view.Slots, 2)
	assert.Equal(t, "IST", view.Slots[0].Zone)
	assert.Contains(t, buf.String(), "Stored draft timezone is unknown")
	assert.Contains(t, buf.String(), `"timezone":"Mars/Olympus"`)
}
