package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/kilianp07/evreco/core/logger"
	"github.com/kilianp07/evreco/core/model"
	coreprediction "github.com/kilianp07/evreco/core/prediction"
)

// ExecConfig describes the model process. The request is written to its
// standard input and the ratings are read from its standard output.
type ExecConfig struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
	Dir     string   `json:"dir"`
	Env     []string `json:"env"`
	// ModelPath is checked before each call. A missing file makes the client
	// report ErrModelUnavailable without spawning the process.
	ModelPath string `json:"model_path"`
	// WaitDelay bounds how long output pipes are drained after the process
	// was killed.
	WaitDelay time.Duration `json:"wait_delay"`
}

// ExecClient runs one model process per request.
type ExecClient struct {
	cfg    ExecConfig
	logger logger.Logger
}

// NewExecClient validates cfg and returns an ExecClient.
func NewExecClient(cfg ExecConfig, log logger.Logger) (*ExecClient, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("exec model: command is required")
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = 2 * time.Second
	}
	return &ExecClient{cfg: cfg, logger: log}, nil
}

// Predict implements prediction.ModelClient. Cancelling ctx kills the process.
func (c *ExecClient) Predict(ctx context.Context, req coreprediction.Request) ([]model.ScoredStation, error) {
	if err := c.checkModel(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, c.cfg.Command, c.cfg.Args...)
	cmd.Dir = c.cfg.Dir
	if len(c.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), c.cfg.Env...)
	}
	cmd.WaitDelay = c.cfg.WaitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("model process: %w", ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("model process exited with code %d: %s", exitErr.ExitCode(), tail(stderr.Bytes(), 512))
		}
		return nil, fmt.Errorf("model process: %w", err)
	}
	if stderr.Len() > 0 {
		c.logger.Debugf("model stderr: %s", tail(stderr.Bytes(), 512))
	}
	c.logger.Debugf("model process answered in %s", time.Since(start))
	return decodeRatings(stdout.Bytes())
}

func (c *ExecClient) checkModel() error {
	if c.cfg.ModelPath == "" {
		return nil
	}
	if _, err := os.Stat(c.cfg.ModelPath); err != nil {
		return fmt.Errorf("%w: %v", coreprediction.ErrModelUnavailable, err)
	}
	return nil
}

// Status implements prediction.StatusReporter.
func (c *ExecClient) Status(context.Context) (coreprediction.Status, error) {
	st := coreprediction.Status{Transport: "exec", Trained: true, CheckedAt: time.Now()}
	if err := c.checkModel(); err != nil {
		st.Trained = false
		st.Detail = err.Error()
	}
	if _, err := exec.LookPath(c.cfg.Command); err != nil {
		st.Trained = false
		st.Detail = err.Error()
	}
	return st, nil
}
