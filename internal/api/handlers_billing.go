package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/lox/siteweather/internal/billing"
	"github.com/lox/siteweather/internal/models"
	"github.com/lox/siteweather/internal/store"
)

// Stripe recommends accepting payloads up to 64 KiB.
const maxWebhookBytes = 65536

func (s *Server) features(r *http.Request, userID string) (billing.Plan, billing.Features, error) {
	sub, err := s.store.GetSubscription(r.Context(), userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return billing.PlanNone, billing.Features{}, err
	}
	plan, f := billing.FeaturesForSubscription(sub)
	return plan, f, nil
}

type subscriptionResponse struct {
	Plan         billing.Plan         `json:"plan"`
	Features     billing.Features     `json:"features"`
	Subscription *models.Subscription `json:"subscription"`
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	sub, err := s.store.GetSubscription(r.Context(), user.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeInternal(w, r, err)
		return
	}
	plan, f := billing.FeaturesForSubscription(sub)
	writeJSON(w, http.StatusOK, subscriptionResponse{Plan: plan, Features: f, Subscription: sub})
}

type checkoutRequest struct {
	Plan         string `json:"plan" validate:"required"`
	BillingCycle string `json:"billingCycle"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if s.billing == nil {
		writeError(w, http.StatusServiceUnavailable, "billing is not configured")
		return
	}
	user := userFrom(r.Context())

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	plan, err := billing.ParsePlan(req.Plan)
	if err != nil || plan == billing.PlanNone {
		writeError(w, http.StatusBadRequest, "unknown plan")
		return
	}
	cycle, err := billing.ParseCycle(req.BillingCycle)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	email := user.Email
	if email == "" {
		if p, err := s.store.GetUserProfile(r.Context(), user.ID); err == nil {
			email = p.Email
		}
	}

	url, err := s.billing.CreateCheckout(r.Context(), user.ID, email, plan, cycle)
	switch {
	case errors.Is(err, billing.ErrNoPrice):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, billing.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		writeInternal(w, r, err)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	}
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.billing == nil {
		writeError(w, http.StatusServiceUnavailable, "billing is not configured")
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}

	typ, err := s.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if errors.Is(err, billing.ErrInvalidSignature) {
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": true, "type": typ})
}
