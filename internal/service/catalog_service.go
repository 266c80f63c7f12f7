package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"waterz/internal/backend"
	"waterz/internal/domain"
	"waterz/internal/localtime"
	"waterz/internal/models"
	"waterz/internal/pricing"
)

const filterEmptyMessage = "No Yachts found for selected filter"

// CatalogService serves yacht listings, quotes and ride history.
type CatalogService struct {
	backend    CatalogBackend
	classifier *pricing.Classifier
	logger     *zerolog.Logger
	now        func() time.Time
}

func NewCatalogService(backend CatalogBackend, classifier *pricing.Classifier, logger *zerolog.Logger) *CatalogService {
	if classifier == nil {
		classifier = pricing.DefaultClassifier()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &CatalogService{backend: backend, classifier: classifier, logger: logger, now: time.Now}
}

// SearchResult is a filter answer. An empty match is not an error.
type SearchResult struct {
	Yachts      []models.Yacht `json:"yachts"`
	FilterEmpty bool           `json:"filterEmpty"`
	Message     string         `json:"message,omitempty"`
}

// Quote is the priced package list of a yacht at a start time.
type Quote struct {
	YachtID  string                       `json:"yachtId"`
	Location string                       `json:"location"`
	Clock    string                       `json:"clock"`
	IsPeak   bool                         `json:"isPeak"`
	Packages []models.PricedPackageOption `json:"packages"`
}

func (s *CatalogService) ListYachts(ctx context.Context, auth backend.AuthContext) ([]models.Yacht, error) {
	return s.backend.ListYachts(ctx, auth)
}

func (s *CatalogService) TopYachts(ctx context.Context, auth backend.AuthContext) ([]models.Yacht, error) {
	return s.backend.TopYachts(ctx, auth)
}

func (s *CatalogService) GetYacht(ctx context.Context, auth backend.AuthContext, id string) (*models.Yacht, error) {
	yacht, err := s.backend.GetYacht(ctx, auth, id)
	if err != nil {
		var br *domain.BackendRejection
		if errors.As(err, &br) && br.Status == 404 {
			return nil, fmt.Errorf("%w: %s", domain.ErrYachtNotFound, id)
		}
		return nil, err
	}
	return yacht, nil
}

// Search runs the ideal-yacht filter.
func (s *CatalogService) Search(ctx context.Context, auth backend.AuthContext, filter models.YachtFilter) (*SearchResult, error) {
	if filter.StartDate != "" {
		if _, err := time.Parse(dateLayout, filter.StartDate); err != nil {
			return nil, domain.NewValidationError("startDate", "expected YYYY-MM-DD, got %q", filter.StartDate)
		}
	}

	yachts, err := s.backend.FilterYachts(ctx, auth, filter)
	if err != nil {
		return nil, err
	}
	if len(yachts) == 0 {
		s.logger.Debug().
			Str("location", filter.Location).
			Str("start_date", filter.StartDate).
			Msg("Filter matched no yachts")
		return &SearchResult{Yachts: []models.Yacht{}, FilterEmpty: true, Message: filterEmptyMessage}, nil
	}
	return &SearchResult{Yachts: yachts}, nil
}

// Quote prices the yacht's packages for a "H:MM AM/PM" start. An empty clock means now in the yacht's zone.
func (s *CatalogService) Quote(ctx context.Context, auth backend.AuthContext, yachtID, clock string) (*Quote, error) {
	yacht, err := s.GetYacht(ctx, auth, yachtID)
	if err != nil {
		return nil, err
	}
	return s.QuoteYacht(yacht, clock)
}

func (s *CatalogService) QuoteYacht(yacht *models.Yacht, clock string) (*Quote, error) {
	clock = strings.TrimSpace(clock)

	var isPeak bool
	if clock == "" {
		local := localtime.ToLocal(s.now(), yacht.Location)
		clock = local.Format(localtime.TimeLayout)
		isPeak = s.classifier.IsPeakAt(local)
	} else {
		peak, err := s.classifier.IsPeak(clock)
		if err != nil {
			return nil, err
		}
		isPeak = peak
	}

	return &Quote{
		YachtID:  yacht.ID,
		Location: yacht.Location,
		Clock:    clock,
		IsPeak:   isPeak,
		Packages: pricing.PackageOptions(yacht, isPeak),
	}, nil
}

func (s *CatalogService) CurrentRides(ctx context.Context, auth backend.AuthContext) ([]models.RideView, error) {
	rides, err := s.backend.CurrentRides(ctx, auth)
	if err != nil {
		return nil, err
	}
	return RideViews(rides), nil
}

func (s *CatalogService) PreviousRides(ctx context.Context, auth backend.AuthContext) ([]models.RideView, error) {
	rides, err := s.backend.PreviousRides(ctx, auth)
	if err != nil {
		return nil, err
	}
	return RideViews(rides), nil
}

func (s *CatalogService) GetRide(ctx context.Context, auth backend.AuthContext, id string) (*models.RideView, error) {
	ride, err := s.backend.GetRide(ctx, auth, id)
	if err != nil {
		return nil, err
	}
	view := RideViewOf(*ride)
	return &view, nil
}

func RideViews(rides []models.Booking) []models.RideView {
	views := make([]models.RideView, 0, len(rides))
	for _, r := range rides {
		views = append(views, RideViewOf(r))
	}
	return views
}

// RideViewOf decorates a booking with its package label and local start.
func RideViewOf(ride models.Booking) models.RideView {
	d := pricing.ParseDuration(ride.Packages)
	view := models.RideView{Booking: ride, Duration: d.Total}
	if !d.IsZero() {
		view.PackageLabel = d.Label()
	}
	if !ride.StartDate.IsZero() {
		f := localtime.Format(ride.StartDate, ride.Location)
		view.Date, view.Time, view.Zone = f.Date, f.Time, f.Zone
	}
	return view
}
