package api

import (
	"errors"
	"net/http"

	"github.com/lox/siteweather/internal/checker"
	"github.com/lox/siteweather/internal/notify"
)

type testEmailRequest struct {
	To string `json:"to" validate:"required,email"`
}

func (s *Server) handleTestEmail(w http.ResponseWriter, r *http.Request) {
	if s.mailer == nil {
		writeError(w, http.StatusServiceUnavailable, "email is not configured")
		return
	}
	var req testEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "a valid \"to\" address is required")
		return
	}

	err := s.mailer.SendTest(r.Context(), req.To)
	switch {
	case errors.Is(err, notify.ErrEmailDisabled):
		writeError(w, http.StatusServiceUnavailable, "email is not configured")
	case err != nil:
		writeInternal(w, r, err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"sent": true, "to": req.To})
	}
}

func (s *Server) handleWeatherCheck(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	rep, err := s.checker.CheckUser(r.Context(), user.ID, s.now(), true)
	switch {
	case errors.Is(err, checker.ErrAlertsNotIncluded):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case err != nil:
		writeInternal(w, r, err)
	default:
		writeJSON(w, http.StatusOK, rep)
	}
}
