// Package api exposes the recommender over HTTP.
package api

import (
	"context"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/kilianp07/evreco/core/discovery"
	"github.com/kilianp07/evreco/core/logger"
	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/prediction"
)

// Recommender runs the pipeline on raw stations.
type Recommender interface {
	Recommend(ctx context.Context, raw []model.RawStation, prefs model.UserPreferences) (model.Result, error)
}

// Deps holds the collaborators of the API.
type Deps struct {
	Source discovery.Source
	Engine Recommender
	// Model reports the state of the rating model. Nil means rule-based
	// scoring only.
	Model prediction.StatusReporter
	// Limiter throttles /api routes per client. Nil disables throttling.
	Limiter *RateLimiter
	// Metrics serves /metrics when set.
	Metrics     http.Handler
	CORSOrigins []string
	Logger      logger.Logger
}

// NewRouter registers every route on a gorilla router.
func NewRouter(d Deps) *mux.Router {
	h := &handler{Deps: d}
	r := mux.NewRouter()
	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics).Methods(http.MethodGet)
	}

	s := r.PathPrefix("/api").Subrouter()
	if d.Limiter != nil {
		s.Use(d.Limiter.Middleware)
	}
	s.HandleFunc("/recommendations", h.recommend).Methods(http.MethodPost)
	s.HandleFunc("/stations/nearby", h.nearby).Methods(http.MethodGet)
	s.HandleFunc("/model/status", h.modelStatus).Methods(http.MethodGet)
	return r
}

// NewHandler wraps the router with access logging, panic recovery and CORS.
func NewHandler(d Deps) http.Handler {
	var h http.Handler = NewRouter(d)
	if len(d.CORSOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(d.CORSOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type"}),
		)(h)
	}
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(h)
	return handlers.CombinedLoggingHandler(os.Stdout, h)
}
