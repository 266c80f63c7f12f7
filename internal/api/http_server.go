package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"waterz/internal/backend"
	"waterz/internal/config"
	"waterz/internal/domain"
	"waterz/internal/service"
)

const maxBodyBytes = 1 << 20

// Services bundles what the gateway serves.
type Services struct {
	Drafts   *service.DraftService
	Checkout *service.CheckoutService
	Catalog  *service.CatalogService
	Account  *service.AccountService
	// Ready reports whether dependencies are reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

// HTTPServer is the booking gateway in front of the yacht backend.
type HTTPServer struct {
	cfg      config.APIConfig
	server   *http.Server
	auth     *HTTPAuth
	logger   *zerolog.Logger
	drafts   *service.DraftService
	checkout *service.CheckoutService
	catalog  *service.CatalogService
	account  *service.AccountService
	ready    func(ctx context.Context) error
	now      func() time.Time
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{
		cfg:      cfg,
		auth:     NewHTTPAuth(cfg),
		logger:   logger,
		drafts:   svc.Drafts,
		checkout: svc.Checkout,
		catalog:  svc.Catalog,
		account:  svc.Account,
		ready:    svc.Ready,
		now:      time.Now,
	}

	mux := http.NewServeMux()
	srv.routes(mux)

	handler := requestIDMiddleware(loggingMiddleware(logger, srv.auth.Wrap(mux)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/v1/yachts", s.handleListYachts)
	mux.HandleFunc("GET /api/v1/yachts/top", s.handleTopYachts)
	mux.HandleFunc("POST /api/v1/yachts/search", s.handleSearchYachts)
	mux.HandleFunc("GET /api/v1/yachts/{id}", s.handleGetYacht)
	mux.HandleFunc("GET /api/v1/yachts/{id}/packages", s.handleQuote)

	mux.HandleFunc("POST /api/v1/drafts", s.handleCreateDraft)
	mux.HandleFunc("GET /api/v1/drafts/{id}", s.handleGetDraft)
	mux.HandleFunc("PATCH /api/v1/drafts/{id}", s.handleUpdateDraft)
	mux.HandleFunc("DELETE /api/v1/drafts/{id}", s.handleDiscardDraft)
	mux.HandleFunc("POST /api/v1/drafts/{id}/slot", s.handleSelectSlot)
	mux.HandleFunc("POST /api/v1/drafts/{id}/slots/refresh", s.handleRefreshSlots)
	mux.HandleFunc("POST /api/v1/drafts/{id}/submit", s.handleSubmit)

	mux.HandleFunc("GET /api/v1/checkout/{id}", s.handleCheckoutSummary)
	mux.HandleFunc("POST /api/v1/checkout/{id}/coupon", s.handleApplyCoupon)
	mux.HandleFunc("POST /api/v1/checkout/{id}/open", s.handleOpenCheckout)
	mux.HandleFunc("POST /api/v1/checkout/{id}/complete", s.handleComplete)
	mux.HandleFunc("POST /api/v1/checkout/{id}/abandon", s.handleAbandon)

	mux.HandleFunc("GET /api/v1/rides/current", s.handleCurrentRides)
	mux.HandleFunc("GET /api/v1/rides/previous", s.handlePreviousRides)
	mux.HandleFunc("GET /api/v1/rides/export", s.handleExportRides)
	mux.HandleFunc("GET /api/v1/rides/{id}", s.handleGetRide)

	if s.account != nil {
		mux.HandleFunc("POST /api/v1/auth/signin", s.handleSignIn)
		mux.HandleFunc("POST /api/v1/auth/signup", s.handleSignUp)
		mux.HandleFunc("POST /api/v1/auth/otp", s.handleGenerateOTP)
		mux.HandleFunc("POST /api/v1/auth/otp/verify", s.handleVerifyOTP)
		mux.HandleFunc("POST /api/v1/auth/logout", s.handleLogout)
		mux.HandleFunc("GET /api/v1/account", s.handleProfile)
		mux.HandleFunc("PATCH /api/v1/account", s.handleUpdateProfile)
		mux.HandleFunc("POST /api/v1/queries", s.handleSendQuery)
	}
}

// Handler exposes the wrapped handler, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP gateway listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func authFrom(r *http.Request) backend.AuthContext {
	return backend.FromHeader(r.Header.Get("Authorization"))
}

// decodeBody decodes a JSON body strictly. An empty body leaves v untouched when optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeServiceError maps domain errors to HTTP. fallback replaces backend messages for
// rejections without one and for transport failures.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var (
		ve *domain.ValidationError
		br *domain.BackendRejection
		te *domain.TransportError
	)

	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, domain.ErrNotSignedIn):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &br) && (br.Status == http.StatusUnauthorized || br.Status == http.StatusForbidden):
		msg := br.Message
		if msg == "" {
			msg = http.StatusText(br.Status)
		}
		writeError(w, br.Status, msg)
	case errors.Is(err, domain.ErrDraftNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrYachtNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDraftSubmitted),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrCouponAlreadyApplied),
		errors.Is(err, domain.ErrLookupSuperseded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &br):
		msg := br.Message
		if msg == "" {
			msg = fallback
		}
		if msg == "" {
			msg = "request rejected"
		}
		writeError(w, http.StatusUnprocessableEntity, msg)
	case errors.As(err, &te):
		s.logger.Warn().Err(err).Str("request_id", RequestID(r.Context())).Msg("backend unavailable")
		msg := fallback
		if msg == "" {
			msg = "yacht service is unavailable, please try again"
		}
		writeError(w, http.StatusBadGateway, msg)
	default:
		s.logger.Error().Err(err).Str("request_id", RequestID(r.Context())).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
