// Package ocm reads charging stations from the OpenChargeMap POI API.
package ocm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kilianp07/evreco/core/discovery"
	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/infra/logger"
)

// DefaultBaseURL is the public POI endpoint.
const DefaultBaseURL = "https://api.openchargemap.io/v3/poi"

const maxBody = 16 << 20

// Config describes the OpenChargeMap endpoint.
type Config struct {
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults applies the public endpoint and a 30 second timeout.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
}

// Validate checks the endpoint URL.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("ocm: invalid base_url %q", c.BaseURL)
	}
	return nil
}

// Client queries OpenChargeMap.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     logger.Logger
}

// NewClient creates an OpenChargeMap client.
func NewClient(cfg Config) *Client {
	cfg.SetDefaults()
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:     logger.New("ocm-client"),
	}
}

func (c *Client) Name() string { return "ocm" }

// Nearby implements discovery.Source.
func (c *Client) Nearby(ctx context.Context, q discovery.Query) ([]model.RawStation, error) {
	q = q.Normalize()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+c.params(q).Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("ocm request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", discovery.ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: openchargemap returned status %d", discovery.ErrUpstream, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: read response: %v", discovery.ErrUpstream, err)
	}
	out, bad, err := model.DecodeRawStations(body)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", discovery.ErrUpstream, err)
	}
	if bad > 0 {
		c.log.Warnf("skipped %d undecodable stations of %d", bad, len(out))
	}
	c.log.Debugf("fetched %d stations near (%.4f, %.4f)", len(out), q.Lat, q.Lon)
	return out, nil
}

func (c *Client) params(q discovery.Query) url.Values {
	v := url.Values{}
	v.Set("output", "json")
	v.Set("latitude", strconv.FormatFloat(q.Lat, 'f', -1, 64))
	v.Set("longitude", strconv.FormatFloat(q.Lon, 'f', -1, 64))
	v.Set("distance", strconv.FormatFloat(q.RadiusKM, 'f', -1, 64))
	v.Set("distanceunit", "KM")
	v.Set("maxresults", strconv.Itoa(q.MaxResults))
	v.Set("compact", "false")
	v.Set("verbose", "false")
	v.Set("includecomments", "false")
	if c.apiKey != "" {
		v.Set("key", c.apiKey)
	}
	return v
}
