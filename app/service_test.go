package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evreco/config"
	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/records"
	"github.com/kilianp07/evreco/infra/ocm"
)

func ocmServer(t *testing.T) *httptest.Server {
	t.Helper()
	stations, err := ocm.LoadFixtures(filepath.Join("..", "infra", "ocm", "testdata", "paris.json"))
	require.NoError(t, err)
	srv := httptest.NewServer(ocm.NewServerMock("", stations, prometheus.NewRegistry()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, ocmURL string) *config.Config {
	cfg := config.Default()
	cfg.Discovery.OCM.BaseURL = ocmURL + "/v3/poi"
	cfg.Records = records.Config{Backend: "jsonl", Path: filepath.Join(t.TempDir(), "recs.jsonl")}
	cfg.Records.SetDefaults()
	cfg.Server.RateLimitPerMinute = -1
	cfg.Logging.Level = "error"
	require.NoError(t, cfg.Validate())
	return cfg
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/recommendations", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestServiceRecommendsFromOCM(t *testing.T) {
	srv := ocmServer(t)
	svc, err := New(testConfig(t, srv.URL))
	require.NoError(t, err)
	defer svc.Close()

	rr := post(t, svc.Handler(), `{"latitude": 48.8566, "longitude": 2.3522}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res model.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, 4, res.Candidates)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, 3, res.Matched)
	assert.Len(t, res.Stations, 3)
	assert.Equal(t, model.StrategyFallback, res.Strategy)
	for _, st := range res.Stations {
		assert.GreaterOrEqual(t, st.PredictedRating, model.MinRating)
		assert.LessOrEqual(t, st.PredictedRating, model.MaxRating)
	}

	recs, err := svc.Records.Query(context.Background(), records.Query{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, res.RequestID, recs[0].RequestID)
}

func TestServiceUsesMockModel(t *testing.T) {
	srv := ocmServer(t)
	cfg := testConfig(t, srv.URL)
	cfg.Prediction = config.PredictionConfig{Type: "mock", Conf: map[string]any{"default": 4.0, "ratings": map[string]any{"104": 4.9}}}
	svc, err := New(cfg)
	require.NoError(t, err)
	defer svc.Close()

	rr := post(t, svc.Handler(), `{"latitude": 48.8566, "longitude": 2.3522}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var res model.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, model.StrategyModel, res.Strategy)
	require.NotEmpty(t, res.Stations)
	assert.Equal(t, "104", res.Stations[0].ID.String())

	req := httptest.NewRequest(http.MethodGet, "/api/model/status", nil)
	st := httptest.NewRecorder()
	svc.Handler().ServeHTTP(st, req)
	assert.Contains(t, st.Body.String(), `"transport":"mock"`)
}

func TestServiceUpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	svc, err := New(testConfig(t, srv.URL))
	require.NoError(t, err)
	defer svc.Close()

	rr := post(t, svc.Handler(), `{"latitude": 48.8566, "longitude": 2.3522}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"retryable":true`)
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	srv := ocmServer(t)
	cfg := testConfig(t, srv.URL)
	cfg.Server.Addr = "127.0.0.1:0"
	svc, err := New(cfg)
	require.NoError(t, err)
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestNewRejectsUnknownTransport(t *testing.T) {
	cfg := config.Default()
	cfg.Records.Backend = "none"
	cfg.Prediction.Type = "carrier-pigeon"
	_, err := New(cfg)
	assert.Error(t, err)
}
