package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/evreco/core/discovery"
	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/station"
)

const maxBody = 1 << 20

type handler struct {
	Deps
}

type errorBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// NearbyResponse is the body of GET /api/stations/nearby.
type NearbyResponse struct {
	Source   string          `json:"source"`
	Count    int             `json:"count"`
	Dropped  int             `json:"dropped"`
	Stations []model.Station `json:"stations"`
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) recommend(w http.ResponseWriter, r *http.Request) {
	var in model.PreferencesInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: malformed body: %v", model.ErrInvalidPreferences, err))
		return
	}
	prefs, err := in.Resolve()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	q := discovery.Query{Lat: prefs.Latitude, Lon: prefs.Longitude, RadiusKM: prefs.MaxDistance}
	raw, err := h.Source.Nearby(r.Context(), q)
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	res, err := h.Engine.Recommend(r.Context(), raw, prefs)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) nearby(w http.ResponseWriter, r *http.Request) {
	q, err := parseNearby(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	raw, err := h.Source.Nearby(r.Context(), q)
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	stations, dropped := station.NewNormalizer().WithOrigin(model.Point{Lat: q.Lat, Lon: q.Lon}).Normalize(raw)
	writeJSON(w, http.StatusOK, NearbyResponse{
		Source:   h.Source.Name(),
		Count:    len(stations),
		Dropped:  dropped,
		Stations: stations,
	})
}

func parseNearby(r *http.Request) (discovery.Query, error) {
	v := r.URL.Query()
	var q discovery.Query
	var err error
	if v.Get("lat") == "" || v.Get("lng") == "" {
		return q, errors.New("lat and lng are required")
	}
	if q.Lat, err = strconv.ParseFloat(v.Get("lat"), 64); err != nil {
		return q, fmt.Errorf("invalid lat: %w", err)
	}
	if q.Lon, err = strconv.ParseFloat(v.Get("lng"), 64); err != nil {
		return q, fmt.Errorf("invalid lng: %w", err)
	}
	if s := v.Get("radius"); s != "" {
		if q.RadiusKM, err = strconv.ParseFloat(s, 64); err != nil {
			return q, fmt.Errorf("invalid radius: %w", err)
		}
	}
	if s := v.Get("limit"); s != "" {
		if q.MaxResults, err = strconv.Atoi(s); err != nil {
			return q, fmt.Errorf("invalid limit: %w", err)
		}
	}
	if err := q.Validate(); err != nil {
		return q, err
	}
	return q.Normalize(), nil
}

func (h *handler) modelStatus(w http.ResponseWriter, r *http.Request) {
	if h.Model == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"transport":  "none",
			"is_trained": false,
			"detail":     "rule-based scoring only",
			"checked_at": time.Now().UTC(),
		})
		return
	}
	st, err := h.Model.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handler) upstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, discovery.ErrUpstream):
		if h.Logger != nil {
			h.Logger.Warnf("station lookup failed: %v", err)
		}
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error(), Retryable: true})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorBody{Error: err.Error(), Retryable: true})
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
