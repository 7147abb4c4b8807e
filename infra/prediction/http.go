package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/evreco/auth"
	"github.com/kilianp07/evreco/core/model"
	coreprediction "github.com/kilianp07/evreco/core/prediction"
)

// HTTPConfig describes a model served over HTTP.
type HTTPConfig struct {
	// Endpoint is the base URL; requests go to /predict and /status.
	Endpoint string    `json:"endpoint"`
	Auth     auth.Conf `json:"auth"`
	// MaxResponseBytes caps the size of a prediction response.
	MaxResponseBytes int64 `json:"max_response_bytes"`
}

// HTTPClient calls a remote model service.
type HTTPClient struct {
	endpoint string
	client   *http.Client
	creds    *auth.ClientCred
	maxBytes int64
}

// NewHTTPClient returns an HTTPClient. The per-call deadline comes from the
// request context.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("http model: endpoint is required")
	}
	c := &HTTPClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   &http.Client{},
		maxBytes: cfg.MaxResponseBytes,
	}
	if c.maxBytes <= 0 {
		c.maxBytes = 4 << 20
	}
	if cfg.Auth.Enabled() {
		c.creds = auth.NewClientCred(cfg.Auth)
	}
	return c, nil
}

// Predict implements prediction.ModelClient.
func (c *HTTPClient) Predict(ctx context.Context, req coreprediction.Request) ([]model.ScoredStation, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create model request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read model response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: status %d", coreprediction.ErrModelUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("model service returned status %d: %s", resp.StatusCode, tail(data, 256))
	}
	return decodeRatings(data)
}

// Status implements prediction.StatusReporter.
func (c *HTTPClient) Status(ctx context.Context) (coreprediction.Status, error) {
	st := coreprediction.Status{Transport: "http", CheckedAt: time.Now()}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/status", nil)
	if err != nil {
		return st, err
	}
	resp, err := c.do(req)
	if err != nil {
		st.Detail = err.Error()
		return st, nil
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		st.Detail = fmt.Sprintf("status %d", resp.StatusCode)
		return st, nil
	}
	var body struct {
		IsTrained bool   `json:"is_trained"`
		Detail    string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		st.Detail = fmt.Sprintf("decode status: %v", err)
		return st, nil
	}
	st.Trained = body.IsTrained
	st.Detail = body.Detail
	return st, nil
}

func (c *HTTPClient) do(req *http.Request) (*http.Response, error) {
	if c.creds != nil {
		if err := c.creds.SetAuthHeader(req); err != nil {
			return nil, fmt.Errorf("model service auth: %w", err)
		}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model service request failed: %w", err)
	}
	return resp, nil
}
