package prediction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kilianp07/evreco/core/model"
)

func stations(ids ...int64) []model.Station {
	out := make([]model.Station, len(ids))
	for i, id := range ids {
		out[i] = model.Station{ID: model.IntID(id)}
	}
	return out
}

func TestMockModelClient_Predict(t *testing.T) {
	m := &MockModelClient{Ratings: map[string]float64{"1": 4.2}, Default: 3}
	req := NewRequest(stations(1, 2), model.UserPreferences{}, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	if req.Timestamp != "2024-05-01T10:00:00Z" {
		t.Fatalf("unexpected timestamp %s", req.Timestamp)
	}
	res, err := m.Predict(context.Background(), req)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(res) != 2 || res[0].PredictedRating != 4.2 || res[1].PredictedRating != 3 {
		t.Fatalf("unexpected ratings %+v", res)
	}
	if m.Calls() != 1 {
		t.Fatalf("expected one call, got %d", m.Calls())
	}
}

func TestMockModelClient_DelayHonoursContext(t *testing.T) {
	m := &MockModelClient{Delay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := m.Predict(ctx, NewRequest(stations(1), model.UserPreferences{}, time.Now()))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("delay not cancelled")
	}
}

func TestMockModelClient_Errors(t *testing.T) {
	m := &MockModelClient{Err: ErrModelUnavailable}
	if _, err := m.Predict(context.Background(), Request{}); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	st, _ := m.Status(context.Background())
	if st.Trained {
		t.Fatalf("expected untrained status")
	}

	drop := &MockModelClient{Drop: true}
	res, _ := drop.Predict(context.Background(), NewRequest(stations(1, 2), model.UserPreferences{}, time.Now()))
	if len(res) != 1 {
		t.Fatalf("expected truncated response, got %d", len(res))
	}
}
