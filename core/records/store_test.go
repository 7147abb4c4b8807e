package records

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evreco/core/model"
)

func sampleRecord(id string, ts time.Time, strategy model.Strategy, stations ...string) Record {
	rec := Record{Timestamp: ts, RequestID: id, Strategy: strategy, Candidates: len(stations), Matched: len(stations)}
	for i, s := range stations {
		rec.Stations = append(rec.Stations, Entry{Rank: i + 1, StationID: s, Rating: 4})
	}
	return rec
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(ctx, sampleRecord("r1", base, model.StrategyModel, "1", "2")))
	require.NoError(t, store.Append(ctx, sampleRecord("r2", base.Add(time.Minute), model.StrategyFallback, "2", "3")))
	require.NoError(t, store.Append(ctx, sampleRecord("r3", base.Add(2*time.Minute), model.StrategyFallback, "4")))

	all, err := store.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "r1", all[0].RequestID)
	assert.True(t, all[0].Timestamp.Equal(base))

	byStation, err := store.Query(ctx, Query{StationID: "2"})
	require.NoError(t, err)
	assert.Len(t, byStation, 2)

	fallback, err := store.Query(ctx, Query{Strategy: model.StrategyFallback, Start: base.Add(30 * time.Second)})
	require.NoError(t, err)
	assert.Len(t, fallback, 2)

	latest, err := store.Query(ctx, Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "r3", latest[0].RequestID)

	none, err := store.Query(ctx, Query{End: base.Add(-time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRotatingJSONLStore(t *testing.T) {
	store, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "logs", "records.jsonl"), 1, 2, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	exerciseStore(t, store)
}

func TestRotatingJSONLStore_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 5, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ids := make([]string, 200)
	for i := range ids {
		ids[i] = "station-with-a-rather-long-identifier"
	}
	rec := sampleRecord("big", time.Now(), model.StrategyModel, ids...)
	for i := 0; i < 150; i++ {
		require.NoError(t, store.Append(context.Background(), rec))
	}
	files, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "records*"))
	if len(files) < 2 {
		t.Fatalf("expected rotated files, got %v", files)
	}
	out, err := store.Query(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, out, 150)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	exerciseStore(t, store)
}

func TestFromResult(t *testing.T) {
	score := 72.5
	res := model.Result{
		RequestID: "abc",
		Strategy:  model.StrategyFallback,
		Stations: []model.ScoredStation{
			{Station: model.Station{ID: model.IntID(9), Name: "Hub"}, PredictedRating: 3.9, RecommendationScore: &score},
		},
		Candidates: 4,
		Matched:    1,
	}
	rec := FromResult(res, model.UserPreferences{Budget: 20}, "timeout")
	require.Len(t, rec.Stations, 1)
	assert.Equal(t, 1, rec.Stations[0].Rank)
	assert.Equal(t, "9", rec.Stations[0].StationID)
	assert.Equal(t, &score, rec.Stations[0].Score)
	assert.Equal(t, "timeout", rec.FallbackReason)
	assert.Equal(t, 20.0, rec.Preferences.Budget)
}

func TestConfig(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, "jsonl", c.Backend)
	assert.NoError(t, c.Validate())

	assert.Error(t, Config{Backend: "postgres"}.Validate())
	assert.Error(t, Config{Backend: "mongo"}.Validate())

	s, err := Open(Config{Backend: "none"})
	require.NoError(t, err)
	assert.IsType(t, NopStore{}, s)
}
