package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lox/siteweather/internal/settings"
	"github.com/lox/siteweather/internal/store"
)

type settingsResponse struct {
	Settings  settings.WeatherSettings `json:"settings"`
	IsDefault bool                     `json:"isDefault"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	ws, err := s.store.GetWeatherSettings(r.Context(), user.ID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, settingsResponse{Settings: s.cfg.Defaults, IsDefault: true})
		return
	}
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{Settings: ws})
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	var ws settings.WeatherSettings
	if err := decodeJSON(r, &ws); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ws.Normalize()
	if err := settings.Validate(ws); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.SaveWeatherSettings(r.Context(), user.ID, ws); err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{Settings: ws})
}

type jobsiteSettingsResponse struct {
	Settings  settings.JobsiteWeatherSettings `json:"settings"`
	Effective settings.WeatherSettings        `json:"effective"`
}

func (s *Server) globalSettings(r *http.Request, userID string) (settings.WeatherSettings, error) {
	ws, err := s.store.GetWeatherSettings(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		return s.cfg.Defaults, nil
	}
	return ws, err
}

func (s *Server) handleGetJobsiteSettings(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetJobsite(r.Context(), user.ID, id); err != nil {
		writeStoreError(w, r, err, "jobsite")
		return
	}

	global, err := s.globalSettings(r, user.ID)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	js, err := s.store.GetJobsiteWeatherSettings(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		js = &settings.JobsiteWeatherSettings{JobsiteID: id, UseGlobalDefaults: true}
	case err != nil:
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobsiteSettingsResponse{Settings: *js, Effective: settings.Resolve(global, js)})
}

func (s *Server) handlePutJobsiteSettings(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetJobsite(r.Context(), user.ID, id); err != nil {
		writeStoreError(w, r, err, "jobsite")
		return
	}

	_, features, err := s.features(r, user.ID)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if !features.JobsiteOverrides {
		writeError(w, http.StatusPaymentRequired, "plan does not include jobsite overrides")
		return
	}

	var js settings.JobsiteWeatherSettings
	if err := decodeJSON(r, &js); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	js.JobsiteID = id
	if js.Settings != nil {
		js.Settings.Normalize()
	}

	global, err := s.globalSettings(r, user.ID)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if !js.UseGlobalDefaults && js.OverrideGlobalSettings {
		if js.Settings == nil {
			writeError(w, http.StatusBadRequest, "settings are required when overriding global settings")
			return
		}
		if err := settings.Validate(settings.Resolve(global, &js)); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := s.store.SaveJobsiteWeatherSettings(r.Context(), user.ID, js); err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobsiteSettingsResponse{Settings: js, Effective: settings.Resolve(global, &js)})
}
