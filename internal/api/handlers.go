package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"waterz/internal/export"
	"waterz/internal/models"
	"waterz/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// --- catalogue ---

func (s *HTTPServer) handleListYachts(w http.ResponseWriter, r *http.Request) {
	yachts, err := s.catalog.ListYachts(r.Context(), authFrom(r))
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"yachts": yachts})
}

func (s *HTTPServer) handleTopYachts(w http.ResponseWriter, r *http.Request) {
	yachts, err := s.catalog.TopYachts(r.Context(), authFrom(r))
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"yachts": yachts})
}

func (s *HTTPServer) handleSearchYachts(w http.ResponseWriter, r *http.Request) {
	var filter models.YachtFilter
	if !decodeBody(w, r, &filter, false) {
		return
	}
	res, err := s.catalog.Search(r.Context(), authFrom(r), filter)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleGetYacht(w http.ResponseWriter, r *http.Request) {
	yacht, err := s.catalog.GetYacht(r.Context(), authFrom(r), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"yacht": yacht})
}

// handleQuote prices packages for ?time=H:MM AM/PM, or for now when absent.
func (s *HTTPServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := s.catalog.Quote(r.Context(), authFrom(r), r.PathValue("id"), r.URL.Query().Get("time"))
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// --- drafts ---

type createDraftRequest struct {
	YachtID string `json:"yachtId"`
}

type selectSlotRequest struct {
	Generation int64 `json:"generation"`
	Index      int   `json:"index"`
}

type submitRequest struct {
	Customer models.Customer `json:"customer"`
}

func (s *HTTPServer) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var req createDraftRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	view, err := s.drafts.CreateDraft(r.Context(), authFrom(r), req.YachtID)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *HTTPServer) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	view, err := s.drafts.GetDraft(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	var upd service.DraftUpdate
	if !decodeBody(w, r, &upd, false) {
		return
	}
	view, err := s.drafts.UpdateDraft(r.Context(), authFrom(r), r.PathValue("id"), upd)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleDiscardDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.drafts.DiscardDraft(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleSelectSlot(w http.ResponseWriter, r *http.Request) {
	var req selectSlotRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	view, err := s.drafts.SelectSlot(r.Context(), r.PathValue("id"), req.Generation, req.Index)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleRefreshSlots(w http.ResponseWriter, r *http.Request) {
	view, err := s.drafts.RefreshSlots(r.Context(), authFrom(r), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "Failed to load available slots")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decodeBody(w, r, &req, true) {
		return
	}
	res, err := s.drafts.Submit(r.Context(), authFrom(r), r.PathValue("id"), req.Customer)
	if err != nil {
		s.writeServiceError(w, r, err, service.BookingFailedMessage(err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"booking": res.Booking,
		"session": service.SummaryOf(res.Session),
	})
}

// --- checkout ---

type couponRequest struct {
	PromoCode string `json:"promoCode"`
}

type openCheckoutRequest struct {
	Customer *models.Customer `json:"customer,omitempty"`
}

func (s *HTTPServer) handleCheckoutSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.checkout.Summary(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *HTTPServer) handleApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	summary, err := s.checkout.ApplyCoupon(r.Context(), authFrom(r), r.PathValue("id"), req.PromoCode)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *HTTPServer) handleOpenCheckout(w http.ResponseWriter, r *http.Request) {
	var req openCheckoutRequest
	if !decodeBody(w, r, &req, true) {
		return
	}
	opts, err := s.checkout.OpenCheckout(r.Context(), r.PathValue("id"), req.Customer)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *HTTPServer) handleComplete(w http.ResponseWriter, r *http.Request) {
	var proof models.PaymentProof
	if !decodeBody(w, r, &proof, false) {
		return
	}
	outcome, err := s.checkout.Complete(r.Context(), authFrom(r), r.PathValue("id"), proof)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *HTTPServer) handleAbandon(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.checkout.Abandon(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// --- rides ---

func (s *HTTPServer) handleCurrentRides(w http.ResponseWriter, r *http.Request) {
	rides, err := s.catalog.CurrentRides(r.Context(), authFrom(r))
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rides": rides})
}

func (s *HTTPServer) handlePreviousRides(w http.ResponseWriter, r *http.Request) {
	rides, err := s.catalog.PreviousRides(r.Context(), authFrom(r))
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rides": rides})
}

func (s *HTTPServer) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ride, err := s.catalog.GetRide(r.Context(), authFrom(r), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ride": ride})
}

func (s *HTTPServer) handleExportRides(w http.ResponseWriter, r *http.Request) {
	current, previous, err := s.allRides(r.Context(), r)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteRides(&buf, current, previous); err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}

	name := fmt.Sprintf("rides_%s.xlsx", s.now().Format("2006-01-02"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) allRides(ctx context.Context, r *http.Request) ([]models.RideView, []models.RideView, error) {
	auth := authFrom(r)
	current, err := s.catalog.CurrentRides(ctx, auth)
	if err != nil {
		return nil, nil, err
	}
	previous, err := s.catalog.PreviousRides(ctx, auth)
	if err != nil {
		return nil, nil, err
	}
	return current, previous, nil
}
