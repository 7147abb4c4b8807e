package prediction

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/evreco/core/model"
)

var (
	// ErrModelUnavailable reports that no trained model can serve requests.
	ErrModelUnavailable = errors.New("prediction model unavailable")
	// ErrMalformedResponse reports a response that could not be decoded.
	ErrMalformedResponse = errors.New("malformed model response")
)

// Request is the payload sent to the model.
type Request struct {
	Stations        []model.Station       `json:"stations"`
	UserPreferences model.UserPreferences `json:"user_preferences"`
	Timestamp       string                `json:"timestamp"`
}

// NewRequest builds a request stamped with now in RFC3339.
func NewRequest(stations []model.Station, prefs model.UserPreferences, now time.Time) Request {
	return Request{Stations: stations, UserPreferences: prefs, Timestamp: now.UTC().Format(time.RFC3339)}
}

// ModelClient predicts a rating for every station of a request. The
// returned slice must have the same cardinality and identifiers as
// req.Stations, in any order. Implementations must abort the call when ctx is
// cancelled.
type ModelClient interface {
	Predict(ctx context.Context, req Request) ([]model.ScoredStation, error)
}

// Status describes the state of the model behind a client.
type Status struct {
	Transport string    `json:"transport"`
	Trained   bool      `json:"is_trained"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// StatusReporter is implemented by clients able to report model readiness.
type StatusReporter interface {
	Status(ctx context.Context) (Status, error)
}
