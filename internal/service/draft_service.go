package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"waterz/internal/backend"
	"waterz/internal/domain"
	"waterz/internal/events"
	"waterz/internal/localtime"
	"waterz/internal/models"
	"waterz/internal/pricing"
	"waterz/internal/slots"
)

const (
	SlotsNotRequested = "not_requested"
	SlotsAvailable    = "available"
	SlotsNotAvailable = "not_available"
	SlotsError        = "error"

	bookingFailedMessage = "Failed to book yacht. Please try again."
	dateLayout           = "2006-01-02"
	clockLayout          = "15:04"
)

// DraftService builds booking drafts and submits them as bookings.
type DraftService struct {
	drafts     domain.DraftRepository
	sessions   domain.CheckoutRepository
	backend    DraftBackend
	slots      SlotLookup
	classifier *pricing.Classifier
	events     domain.EventPublisher
	logger     *zerolog.Logger
	now        func() time.Time
	newID      func() string
}

func NewDraftService(
	drafts domain.DraftRepository,
	sessions domain.CheckoutRepository,
	backend DraftBackend,
	slotLookup SlotLookup,
	classifier *pricing.Classifier,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *DraftService {
	if classifier == nil {
		classifier = pricing.DefaultClassifier()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &DraftService{
		drafts:     drafts,
		sessions:   sessions,
		backend:    backend,
		slots:      slotLookup,
		classifier: classifier,
		events:     eventBus,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// DraftUpdate carries the fields a client wants to change. Nil means unchanged.
type DraftUpdate struct {
	StartDate      *string   `json:"startDate,omitempty"`
	PeopleCount    *int      `json:"peopleCount,omitempty"`
	AddonServices  *[]string `json:"addonServices,omitempty"`
	Package        *string   `json:"package,omitempty"`
	SpecialRequest *string   `json:"specialRequest,omitempty"`
	Timezone       *string   `json:"timezone,omitempty"`
}

type SlotView struct {
	Index     int       `json:"index"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Label     string    `json:"label"`
	Zone      string    `json:"zone"`
}

// DraftView is a draft with every derived value computed for display.
type DraftView struct {
	Draft        *models.BookingDraft         `json:"draft"`
	Packages     []models.PricedPackageOption `json:"packages"`
	IsPeak       bool                         `json:"isPeak"`
	PackageTotal float64                      `json:"packageTotal"`
	AddonTotal   float64                      `json:"addonTotal"`
	TotalPrice   float64                      `json:"totalPrice"`
	Generation   int64                        `json:"generation,omitempty"`
	Slots        []SlotView                   `json:"slots"`
	SelectedSlot *SlotView                    `json:"selectedSlot,omitempty"`
	SlotsStatus  string                       `json:"slotsStatus"`
	SlotError    string                       `json:"slotError,omitempty"`
}

// SubmitResult is what a successful submit hands to checkout.
type SubmitResult struct {
	Booking models.Booking          `json:"booking"`
	Session *models.CheckoutSession `json:"session"`
}

// CreateDraft starts a draft for a yacht, pre-filled from the yacht record.
func (s *DraftService) CreateDraft(ctx context.Context, auth backend.AuthContext, yachtID string) (*DraftView, error) {
	if strings.TrimSpace(yachtID) == "" {
		return nil, domain.NewValidationError("yachtId", "yacht id is required")
	}

	yacht, err := s.backend.GetYacht(ctx, auth, yachtID)
	if err != nil {
		var br *domain.BackendRejection
		if errors.As(err, &br) && br.Status == 404 {
			return nil, fmt.Errorf("%w: %s", domain.ErrYachtNotFound, yachtID)
		}
		return nil, err
	}

	now := s.now()
	draft := &models.BookingDraft{
		ID:            s.newID(),
		YachtID:       yacht.ID,
		Yacht:         yacht,
		Location:      yacht.Location,
		YachtType:     yacht.YachtType,
		Capacity:      yacht.Capacity,
		AddonServices: []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.drafts.SaveDraft(ctx, draft); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}

	s.logger.Info().
		Str("draft_id", draft.ID).
		Str("yacht_id", draft.YachtID).
		Msg("Draft created")

	return s.view(draft), nil
}

func (s *DraftService) GetDraft(ctx context.Context, id string) (*DraftView, error) {
	draft, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(draft), nil
}

// DiscardDraft removes a draft that has not been submitted.
func (s *DraftService) DiscardDraft(ctx context.Context, id string) error {
	draft, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if draft.Submitted {
		return domain.ErrDraftSubmitted
	}
	return s.drafts.DeleteDraft(ctx, id)
}

// UpdateDraft applies the update and, when date or package changed, refetches availability.
// A failed lookup is reported in the view, the update itself is kept.
func (s *DraftService) UpdateDraft(ctx context.Context, auth backend.AuthContext, id string, upd DraftUpdate) (*DraftView, error) {
	draft, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if draft.Submitted {
		return nil, domain.ErrDraftSubmitted
	}

	relookup, err := s.apply(draft, upd)
	if err != nil {
		return nil, err
	}
	if relookup {
		draft.ReplaceSlots(nil)
	}
	draft.UpdatedAt = s.now()

	if err := s.drafts.SaveDraft(ctx, draft); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}

	if !relookup || !lookupReady(draft) {
		return s.view(draft), nil
	}

	updated, err := s.lookup(ctx, auth, draft)
	if err != nil {
		view := s.view(draft)
		view.SlotsStatus = SlotsError
		view.SlotError = domain.RejectionMessage(err, "Failed to load available slots")
		return view, nil
	}
	return s.view(updated), nil
}

// RefreshSlots refetches availability for the draft's current date and package.
func (s *DraftService) RefreshSlots(ctx context.Context, auth backend.AuthContext, id string) (*DraftView, error) {
	draft, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if draft.Submitted {
		return nil, domain.ErrDraftSubmitted
	}
	if !lookupReady(draft) {
		return nil, domain.NewValidationError("slots", "select a date and a package first")
	}

	updated, err := s.lookup(ctx, auth, draft)
	if err != nil {
		return nil, err
	}
	return s.view(updated), nil
}

// SelectSlot references slot index of the given slot set generation.
func (s *DraftService) SelectSlot(ctx context.Context, id string, generation int64, index int) (*DraftView, error) {
	draft, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if draft.Submitted {
		return nil, domain.ErrDraftSubmitted
	}
	if draft.Slots == nil || draft.Slots.Generation != generation {
		return nil, domain.NewValidationError("slot", "available slots have changed, please select again")
	}
	if !draft.SelectSlot(index) {
		return nil, domain.NewValidationError("slot", "no slot at index %d", index)
	}
	draft.UpdatedAt = s.now()

	if err := s.drafts.SaveDraft(ctx, draft); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return s.view(draft), nil
}

// Submit creates the booking on the backend and opens a checkout session for it.
// On failure the draft stays editable.
func (s *DraftService) Submit(ctx context.Context, auth backend.AuthContext, id string, customer models.Customer) (*SubmitResult, error) {
	draft, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if draft.Submitted {
		return nil, domain.ErrDraftSubmitted
	}

	req, slot, err := s.buildRequest(draft)
	if err != nil {
		return nil, err
	}

	created, err := s.backend.CreateBooking(ctx, auth, draft.YachtID, req)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("draft_id", draft.ID).
			Str("yacht_id", draft.YachtID).
			Msg("Failed to create booking")
		return nil, err
	}

	now := s.now()
	session := &models.CheckoutSession{
		ID:        s.newID(),
		DraftID:   draft.ID,
		BookingID: created.Booking.ID,
		OrderID:   created.OrderID,
		Breakdown: created.PriceBreakdown,
		State:     models.CheckoutIdle,
		Location:  draft.Location,
		StartTime: slot.StartTime,
		Customer:  customer,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		s.logger.Error().
			Err(err).
			Str("booking_id", session.BookingID).
			Msg("Failed to record checkout session")
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	// Черновик больше не редактируется
	draft.Submitted = true
	draft.BookingID = session.BookingID
	draft.SessionID = session.ID
	draft.UpdatedAt = now
	if err := s.drafts.SaveDraft(ctx, draft); err != nil {
		s.logger.Warn().Err(err).Str("draft_id", draft.ID).Msg("Failed to mark draft submitted")
	}

	s.publishEvent(events.EventDraftSubmitted, events.CheckoutEventPayload{
		SessionID:   session.ID,
		DraftID:     draft.ID,
		BookingID:   session.BookingID,
		OrderID:     session.OrderID,
		YachtID:     draft.YachtID,
		Location:    draft.Location,
		State:       session.State,
		TotalAmount: session.Breakdown.TotalAmount,
		StartTime:   session.StartTime,
	})

	s.logger.Info().
		Str("draft_id", draft.ID).
		Str("booking_id", session.BookingID).
		Str("session_id", session.ID).
		Float64("total", session.Breakdown.TotalAmount).
		Msg("Booking created")

	return &SubmitResult{Booking: created.Booking, Session: session}, nil
}

// BookingFailedMessage is shown when create-booking fails without a backend message.
func BookingFailedMessage(err error) string {
	return domain.RejectionMessage(err, bookingFailedMessage)
}

func (s *DraftService) load(ctx context.Context, id string) (*models.BookingDraft, error) {
	draft, err := s.drafts.GetDraft(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if draft == nil {
		return nil, domain.ErrDraftNotFound
	}
	return draft, nil
}

// apply validates and copies the update into the draft. It reports whether availability must be refetched.
func (s *DraftService) apply(draft *models.BookingDraft, upd DraftUpdate) (bool, error) {
	relookup := false

	if upd.Timezone != nil {
		tz := strings.TrimSpace(*upd.Timezone)
		if tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return false, domain.NewValidationError("timezone", "unknown timezone %q", tz)
			}
		}
		if tz != draft.Timezone {
			prev := s.draftZone(draft)
			draft.Timezone = tz
			// the selected calendar day stays the same in the new zone
			if !draft.StartDate.IsZero() {
				y, m, d := draft.StartDate.In(prev).Date()
				draft.StartDate = time.Date(y, m, d, 0, 0, 0, 0, s.draftZone(draft))
			}
			relookup = true
		}
	}

	if upd.StartDate != nil {
		var date time.Time
		if v := strings.TrimSpace(*upd.StartDate); v != "" {
			parsed, err := time.ParseInLocation(dateLayout, v, s.draftZone(draft))
			if err != nil {
				return false, domain.NewValidationError("startDate", "expected YYYY-MM-DD, got %q", v)
			}
			date = parsed
		}
		if !date.Equal(draft.StartDate) {
			draft.StartDate = date
			relookup = true
		}
	}

	if upd.Package != nil {
		pkg := strings.TrimSpace(*upd.Package)
		if pkg != "" && (draft.Yacht == nil || !draft.Yacht.OffersPackage(pkg)) {
			return false, domain.NewValidationError("package", "package %q is not offered by this yacht", pkg)
		}
		if pkg != draft.Package {
			draft.Package = pkg
			relookup = true
		}
	}

	if upd.PeopleCount != nil {
		n := *upd.PeopleCount
		if n < 0 {
			return false, domain.NewValidationError("peopleCount", "must not be negative")
		}
		if draft.Capacity > 0 && n > draft.Capacity {
			return false, domain.NewValidationError("peopleCount", "yacht capacity is %d", draft.Capacity)
		}
		draft.PeopleCount = n
	}

	if upd.AddonServices != nil {
		addons := make([]string, 0, len(*upd.AddonServices))
		seen := make(map[string]bool)
		for _, name := range *upd.AddonServices {
			if seen[name] {
				continue
			}
			if draft.Yacht == nil {
				return false, domain.NewValidationError("addonServices", "add-on %q is not offered by this yacht", name)
			}
			if _, ok := draft.Yacht.Addon(name); !ok {
				return false, domain.NewValidationError("addonServices", "add-on %q is not offered by this yacht", name)
			}
			seen[name] = true
			addons = append(addons, name)
		}
		draft.AddonServices = addons
	}

	if upd.SpecialRequest != nil {
		draft.SpecialRequest = *upd.SpecialRequest
	}

	return relookup, nil
}

// lookup fetches slots and stores them on the freshest copy of the draft.
func (s *DraftService) lookup(ctx context.Context, auth backend.AuthContext, draft *models.BookingDraft) (*models.BookingDraft, error) {
	duration := pricing.ParseDuration(draft.Package)

	set, err := s.slots.Lookup(ctx, auth, draft.ID, draft.YachtID, draft.StartDate, duration.Total)
	if errors.Is(err, domain.ErrLookupSuperseded) {
		return s.load(ctx, draft.ID)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("draft_id", draft.ID).Msg("Slot lookup failed")
		return nil, err
	}

	fresh, err := s.load(ctx, draft.ID)
	if err != nil {
		return nil, err
	}
	if fresh.Submitted || !sameRequest(fresh, set) || !s.slots.IsCurrent(ctx, fresh.ID, set) {
		return fresh, nil
	}

	fresh.ReplaceSlots(set)
	fresh.UpdatedAt = s.now()
	if err := s.drafts.SaveDraft(ctx, fresh); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return fresh, nil
}

func sameRequest(draft *models.BookingDraft, set *models.SlotSet) bool {
	return slots.NormalizeDate(draft.StartDate).Equal(set.Date) &&
		pricing.ParseDuration(draft.Package).Total == set.TotalDuration
}

func lookupReady(draft *models.BookingDraft) bool {
	return !draft.StartDate.IsZero() && pricing.ParseDuration(draft.Package).Total > 0
}

func (s *DraftService) buildRequest(draft *models.BookingDraft) (models.BookingRequest, models.AvailabilitySlot, error) {
	if draft.StartDate.IsZero() {
		return models.BookingRequest{}, models.AvailabilitySlot{}, domain.NewValidationError("startDate", "please select a date")
	}
	if draft.Package == "" {
		return models.BookingRequest{}, models.AvailabilitySlot{}, domain.NewValidationError("package", "please select a package")
	}
	slot, ok := draft.SelectedSlot()
	if !ok {
		return models.BookingRequest{}, models.AvailabilitySlot{}, domain.NewValidationError("slot", "please select a time slot")
	}

	loc := s.draftZone(draft)
	addons := make([]string, len(draft.AddonServices))
	copy(addons, draft.AddonServices)

	return models.BookingRequest{
		StartDate:      draft.StartDate.In(loc).Format(dateLayout),
		StartTime:      slot.StartTime.In(loc).Format(clockLayout),
		Location:       draft.Location,
		YachtType:      draft.YachtType,
		Capacity:       draft.Capacity,
		PeopleNo:       draft.PeopleCount,
		AddonServices:  addons,
		Packages:       draft.Package,
		SpecialRequest: draft.SpecialRequest,
		Yacht:          draft.YachtID,
		TotalPrice:     s.totals(draft).TotalPrice,
	}, slot, nil
}

type totals struct {
	IsPeak       bool
	PackageTotal float64
	AddonTotal   float64
	TotalPrice   float64
}

// totals derives both parts of the price from the draft on every call.
func (s *DraftService) totals(draft *models.BookingDraft) totals {
	var t totals
	if draft.Yacht == nil {
		return t
	}

	at, ok := draft.StartTime()
	if !ok {
		at = s.now()
	}
	t.IsPeak = s.classifier.IsPeakAt(at.In(s.draftZone(draft)))

	if draft.Package != "" {
		t.PackageTotal = pricing.PackageOption(draft.Yacht, draft.Package, t.IsPeak).Price
	}

	selected := make([]models.AddonService, 0, len(draft.AddonServices))
	for _, name := range draft.AddonServices {
		if a, ok := draft.Yacht.Addon(name); ok {
			selected = append(selected, a)
		}
	}
	t.AddonTotal = pricing.AddonTotal(selected)
	t.TotalPrice = t.PackageTotal + t.AddonTotal
	return t
}

func (s *DraftService) view(draft *models.BookingDraft) *DraftView {
	t := s.totals(draft)
	v := &DraftView{
		Draft:        draft,
		Packages:     []models.PricedPackageOption{},
		IsPeak:       t.IsPeak,
		PackageTotal: t.PackageTotal,
		AddonTotal:   t.AddonTotal,
		TotalPrice:   t.TotalPrice,
		Slots:        []SlotView{},
		SlotsStatus:  SlotsNotRequested,
	}
	if draft.Yacht != nil {
		v.Packages = pricing.PackageOptions(draft.Yacht, t.IsPeak)
	}

	if draft.Slots != nil {
		v.Generation = draft.Slots.Generation
		v.SlotsStatus = SlotsNotAvailable
		if !draft.Slots.Empty() {
			v.SlotsStatus = SlotsAvailable
		}
		loc := s.draftZone(draft)
		for i, slot := range draft.Slots.Slots {
			v.Slots = append(v.Slots, slotView(i, slot, loc))
		}
		sort.SliceStable(v.Slots, func(i, j int) bool {
			return v.Slots[i].StartTime.Before(v.Slots[j].StartTime)
		})
		if slot, ok := draft.SelectedSlot(); ok {
			sv := slotView(draft.SlotRef.Index, slot, loc)
			v.SelectedSlot = &sv
		}
	}
	return v
}

func slotView(index int, slot models.AvailabilitySlot, loc *time.Location) SlotView {
	start := slot.StartTime.In(loc)
	end := slot.EndTime.In(loc)
	zone, _ := start.Zone()
	return SlotView{
		Index:     index,
		StartTime: slot.StartTime,
		EndTime:   slot.EndTime,
		Label:     start.Format(localtime.TimeLayout) + " - " + end.Format(localtime.TimeLayout),
		Zone:      zone,
	}
}

// draftZone is the explicit draft timezone, falling back to the yacht location's zone.
func (s *DraftService) draftZone(draft *models.BookingDraft) *time.Location {
	if draft.Timezone != "" {
		loc, err := time.LoadLocation(draft.Timezone)
		if err == nil {
			return loc
		}
		s.logger.Warn().
			Err(err).
			Str("draft_id", draft.ID).
			Str("timezone", draft.Timezone).
			Str("location", draft.Location).
			Msg("Stored draft timezone is unknown, using location zone")
	}
	return localtime.Zone(draft.Location)
}

func (s *DraftService) publishEvent(eventType string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().
			Err(err).
			Str("event_type", eventType).
			Msg("Failed to publish event")
	}
}
