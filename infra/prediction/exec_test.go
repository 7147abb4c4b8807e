package prediction

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evreco/core/model"
	coreprediction "github.com/kilianp07/evreco/core/prediction"
	"github.com/kilianp07/evreco/infra/logger"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skipf("sh not available: %v", err)
	}
}

func request(ids ...int64) coreprediction.Request {
	stations := make([]model.Station, len(ids))
	for i, id := range ids {
		stations[i] = model.Station{ID: model.IntID(id)}
	}
	return coreprediction.NewRequest(stations, model.UserPreferences{Budget: 20}, time.Now())
}

func shellClient(t *testing.T, script string, mutate ...func(*ExecConfig)) *ExecClient {
	t.Helper()
	cfg := ExecConfig{Command: "sh", Args: []string{"-c", script}, WaitDelay: 200 * time.Millisecond}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := NewExecClient(cfg, logger.NopLogger{})
	require.NoError(t, err)
	return c
}

func TestExecClientPredict(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "stdin.json")
	c := shellClient(t, `cat > "$1"; echo '[{"id": 1, "predicted_rating": 4.2}, {"id": 2, "predicted_rating": 2}]'`,
		func(cfg *ExecConfig) { cfg.Args = append(cfg.Args, "model", in) })

	out, err := c.Predict(context.Background(), request(1, 2))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0].ID.String())
	assert.Equal(t, 4.2, out[0].PredictedRating)

	payload, err := os.ReadFile(in)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"user_preferences"`)
	assert.Contains(t, string(payload), `"timestamp"`)
}

func TestExecClientFailures(t *testing.T) {
	requireShell(t)
	t.Run("non-zero exit", func(t *testing.T) {
		c := shellClient(t, `echo "Error: Model file not found" >&2; exit 1`)
		_, err := c.Predict(context.Background(), request(1))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "code 1")
		assert.Contains(t, err.Error(), "Model file not found")
	})
	t.Run("malformed output", func(t *testing.T) {
		c := shellClient(t, `echo 'not json'`)
		_, err := c.Predict(context.Background(), request(1))
		assert.ErrorIs(t, err, coreprediction.ErrMalformedResponse)
	})
	t.Run("missing model", func(t *testing.T) {
		c := shellClient(t, `echo '[]'`, func(cfg *ExecConfig) { cfg.ModelPath = filepath.Join(t.TempDir(), "model.pkl") })
		_, err := c.Predict(context.Background(), request(1))
		assert.ErrorIs(t, err, coreprediction.ErrModelUnavailable)
		st, _ := c.Status(context.Background())
		assert.False(t, st.Trained)
	})
}

func TestExecClientKilledOnTimeout(t *testing.T) {
	requireShell(t)
	c := shellClient(t, `sleep 30; echo '[]'`)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.Predict(ctx, request(1))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("process was not terminated")
	}
}

func TestNewExecClientRequiresCommand(t *testing.T) {
	_, err := NewExecClient(ExecConfig{}, logger.NopLogger{})
	assert.Error(t, err)
}
