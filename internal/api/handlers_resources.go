package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/lox/siteweather/internal/locations"
	"github.com/lox/siteweather/internal/models"
	"github.com/lox/siteweather/internal/store"
)

type jobsiteRequest struct {
	Name      string   `json:"name" validate:"required,max=200"`
	ClientID  string   `json:"clientId"`
	Address   string   `json:"address" validate:"max=500"`
	Zip       string   `json:"zip" validate:"max=10"`
	Latitude  *float64 `json:"latitude" validate:"required_with=Longitude,omitempty,latitude"`
	Longitude *float64 `json:"longitude" validate:"required_with=Latitude,omitempty,longitude"`
	Active    *bool    `json:"active"`
}

func (s *Server) handleListJobsites(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	jobsites, err := s.store.ListJobsites(r.Context(), user.ID)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if jobsites == nil {
		jobsites = []models.Jobsite{}
	}
	writeJSON(w, http.StatusOK, jobsites)
}

func (s *Server) handleCreateJobsite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFrom(ctx)

	var req jobsiteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	j := models.Jobsite{
		UserID:    user.ID,
		ClientID:  req.ClientID,
		Name:      strings.TrimSpace(req.Name),
		Address:   strings.TrimSpace(req.Address),
		Zip:       strings.TrimSpace(req.Zip),
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Active:    req.Active == nil || *req.Active,
	}
	if locations.Key(locations.FromJobsite(j)) == "" {
		writeError(w, http.StatusBadRequest, "jobsite needs coordinates, a zip code or an address")
		return
	}
	if j.ClientID != "" {
		if _, err := s.store.GetClient(ctx, user.ID, j.ClientID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusBadRequest, "unknown client")
				return
			}
			writeInternal(w, r, err)
			return
		}
	}

	if j.Active {
		_, features, err := s.features(r, user.ID)
		if err != nil {
			writeInternal(w, r, err)
			return
		}
		n, err := s.store.CountActiveJobsites(ctx, user.ID)
		if err != nil {
			writeInternal(w, r, err)
			return
		}
		if !features.AllowsJobsites(n + 1) {
			writeError(w, http.StatusPaymentRequired, "plan jobsite limit reached")
			return
		}
	}

	created, err := s.store.CreateJobsite(ctx, j)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type clientRequest struct {
	Name      string   `json:"name" validate:"required,max=200"`
	Email     string   `json:"email" validate:"omitempty,email"`
	Phone     string   `json:"phone" validate:"max=40"`
	Address   string   `json:"address" validate:"max=500"`
	Zip       string   `json:"zip" validate:"max=10"`
	Latitude  *float64 `json:"latitude" validate:"required_with=Longitude,omitempty,latitude"`
	Longitude *float64 `json:"longitude" validate:"required_with=Latitude,omitempty,longitude"`
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	clients, err := s.store.ListClients(r.Context(), user.ID)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if clients == nil {
		clients = []models.Client{}
	}
	writeJSON(w, http.StatusOK, clients)
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	var req clientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.store.CreateClient(r.Context(), models.Client{
		UserID:    user.ID,
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		Phone:     req.Phone,
		Address:   strings.TrimSpace(req.Address),
		Zip:       strings.TrimSpace(req.Zip),
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

type workerRequest struct {
	Name       string   `json:"name" validate:"required,max=200"`
	Email      string   `json:"email" validate:"omitempty,email"`
	Phone      string   `json:"phone" validate:"max=40"`
	Role       string   `json:"role" validate:"max=50"`
	JobsiteIDs []string `json:"jobsiteIds"`
}

func (s *Server) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	workers, err := s.store.ListWorkers(r.Context(), user.ID)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if workers == nil {
		workers = []models.Worker{}
	}
	writeJSON(w, http.StatusOK, workers)
}

func (s *Server) handleCreateWorker(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFrom(ctx)
	var req workerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, id := range req.JobsiteIDs {
		if _, err := s.store.GetJobsite(ctx, user.ID, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusBadRequest, "unknown jobsite "+id)
				return
			}
			writeInternal(w, r, err)
			return
		}
	}

	_, features, err := s.features(r, user.ID)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	existing, err := s.store.ListWorkers(ctx, user.ID)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if !features.AllowsWorkers(len(existing) + 1) {
		writeError(w, http.StatusPaymentRequired, "plan worker limit reached")
		return
	}

	wk, err := s.store.CreateWorker(ctx, models.Worker{
		UserID: user.ID,
		Name:   strings.TrimSpace(req.Name),
		Email:  strings.TrimSpace(req.Email),
		Phone:  req.Phone,
		Role:   req.Role,
		Active: true,
	})
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	for _, id := range req.JobsiteIDs {
		if err := s.store.AssignWorker(ctx, id, wk.ID); err != nil {
			writeInternal(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, wk)
}

type locationResponse struct {
	locations.Group
	Query     string     `json:"query"`
	FetchedAt *time.Time `json:"fetchedAt,omitempty"`
}

// handleListLocations returns the caller's deduplicated weather locations
// with the time their forecast was last stored.
func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFrom(ctx)

	var all []locations.Location
	jobsites, err := s.store.ListActiveJobsites(ctx, user.ID)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	for _, j := range jobsites {
		all = append(all, locations.FromJobsite(j))
	}
	profile, err := s.store.GetUserProfile(ctx, user.ID)
	switch {
	case err == nil:
		all = append(all, locations.FromUserProfile(*profile))
	case !errors.Is(err, store.ErrNotFound):
		writeInternal(w, r, err)
		return
	}
	clients, err := s.store.ListClients(ctx, user.ID)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	for _, c := range clients {
		all = append(all, locations.FromClient(c))
	}

	groups := locations.Dedupe(all)
	out := make([]locationResponse, 0, len(groups))
	for _, g := range groups {
		lr := locationResponse{Group: g, Query: locations.Query(g)}
		rec, err := s.store.GetWeatherData(ctx, g.Key)
		switch {
		case err == nil:
			lr.FetchedAt = &rec.FetchedAt
		case !errors.Is(err, store.ErrNotFound):
			writeInternal(w, r, err)
			return
		}
		out = append(out, lr)
	}
	writeJSON(w, http.StatusOK, out)
}
