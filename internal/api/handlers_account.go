package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/lox/siteweather/internal/models"
	"github.com/lox/siteweather/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// listLimit reads ?limit=, defaulting to 50 and capped at 200.
func listLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(n, maxListLimit), nil
}

type profileRequest struct {
	Email       string   `json:"email" validate:"omitempty,email"`
	FullName    string   `json:"fullName" validate:"max=200"`
	CompanyName string   `json:"companyName" validate:"max=200"`
	Phone       string   `json:"phone" validate:"max=40"`
	Address     string   `json:"address" validate:"max=500"`
	Zip         string   `json:"zip" validate:"max=10"`
	Latitude    *float64 `json:"latitude" validate:"required_with=Longitude,omitempty,latitude"`
	Longitude   *float64 `json:"longitude" validate:"required_with=Latitude,omitempty,longitude"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	p, err := s.store.GetUserProfile(r.Context(), user.ID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, models.UserProfile{ID: user.ID, Email: user.Email})
		return
	}
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handlePutProfile replaces the caller's profile. The owner address and
// coordinates feed weather collection; the email receives owner alerts and
// falls back to the token email when left empty.
func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFrom(ctx)

	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := models.UserProfile{
		ID:          user.ID,
		Email:       strings.TrimSpace(req.Email),
		FullName:    strings.TrimSpace(req.FullName),
		CompanyName: strings.TrimSpace(req.CompanyName),
		Phone:       strings.TrimSpace(req.Phone),
		Address:     strings.TrimSpace(req.Address),
		Zip:         strings.TrimSpace(req.Zip),
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	}
	if p.Email == "" {
		p.Email = user.Email
	}
	if err := s.store.UpsertUserProfile(ctx, p); err != nil {
		writeInternal(w, r, err)
		return
	}
	saved, err := s.store.GetUserProfile(ctx, user.ID)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// handleListNotifications returns the caller's alert email log, newest
// first.
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	limit, err := listLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.store.ListNotifications(r.Context(), user.ID, limit)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if out == nil {
		out = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListBillingHistory(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	limit, err := listLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.store.ListBillingHistory(r.Context(), user.ID, limit)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if out == nil {
		out = []models.BillingRecord{}
	}
	writeJSON(w, http.StatusOK, out)
}
