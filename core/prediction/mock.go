package prediction

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/evreco/core/model"
)

// MockModelClient returns deterministic ratings. It is used by tests and by
// the "mock" transport.
type MockModelClient struct {
	// Ratings maps a station id to its rating. Unknown ids get Default.
	Ratings map[string]float64
	Default float64
	// Delay blocks every call until it elapses or the context is done.
	Delay time.Duration
	// Err is returned instead of a prediction when set.
	Err error
	// Drop removes the last station from responses to simulate a mismatch.
	Drop bool

	mu    sync.Mutex
	calls int
}

// Predict implements ModelClient.
func (m *MockModelClient) Predict(ctx context.Context, req Request) ([]model.ScoredStation, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]model.ScoredStation, 0, len(req.Stations))
	for _, st := range req.Stations {
		rating := m.Default
		if v, ok := m.Ratings[st.ID.String()]; ok {
			rating = v
		}
		out = append(out, model.ScoredStation{Station: st, PredictedRating: rating})
	}
	if m.Drop && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

// Status implements StatusReporter.
func (m *MockModelClient) Status(context.Context) (Status, error) {
	return Status{Transport: "mock", Trained: m.Err == nil, CheckedAt: time.Now()}, nil
}

// Calls returns how many times Predict was invoked.
func (m *MockModelClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
