package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evreco/core/model"
)

func TestRecommendFromFile(t *testing.T) {
	chart := filepath.Join(t.TempDir(), "chart.html")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{
		"recommend", "--config", "",
		"--input", filepath.Join("..", "infra", "ocm", "testdata", "paris.json"),
		"--lat", "48.8566", "--lng", "2.3522",
		"--chart", chart,
	})
	require.NoError(t, rootCmd.Execute())

	var res model.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, model.StrategyFallback, res.Strategy)
	assert.NotEmpty(t, res.Stations)
	assert.FileExists(t, chart)
}

func TestLoadConfigMissingFile(t *testing.T) {
	prev := cfgPath
	defer func() { cfgPath = prev }()
	missing := filepath.Join(t.TempDir(), "config.yaml")

	c := &cobra.Command{Use: "x"}
	c.Flags().StringVar(&cfgPath, "config", missing, "")
	cfg, err := loadConfig(c)
	require.NoError(t, err, "an absent default file falls back to defaults")
	assert.Equal(t, ":8080", cfg.Server.Addr)

	require.NoError(t, c.Flags().Set("config", missing))
	_, err = loadConfig(c)
	assert.Error(t, err, "an explicitly requested file must exist")
}

func TestHistoryQuery(t *testing.T) {
	now := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	historyOpts.since = 24 * time.Hour
	historyOpts.strategy = "model"
	defer func() { historyOpts.since, historyOpts.strategy = 0, "" }()
	q, err := historyQuery(now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-24*time.Hour), q.Start)
	assert.Equal(t, model.StrategyModel, q.Strategy)

	historyOpts.end = "yesterday"
	defer func() { historyOpts.end = "" }()
	_, err = historyQuery(now)
	assert.Error(t, err)
}

func TestBridgeBackend(t *testing.T) {
	bridgeOpts.backend = "http"
	bridgeOpts.endpoint = "http://model:5000"
	defer func() { bridgeOpts.backend, bridgeOpts.endpoint = "exec", "" }()
	pc, err := bridgeBackend()
	require.NoError(t, err)
	assert.Equal(t, "http", pc.Type)
	assert.Equal(t, "http://model:5000", pc.Conf["endpoint"])

	bridgeOpts.backend = "mqtt"
	_, err = bridgeBackend()
	assert.Error(t, err)
}
