// Package discovery finds raw charging station records around a point.
// Sources talk to upstream catalogues; CachedSource and Chain compose them.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kilianp07/evreco/core/model"
)

// ErrUpstream reports that a station catalogue could not be reached or
// answered with an error. Callers may retry later.
var ErrUpstream = errors.New("station source unavailable")

// Lookup limits. The radius cap matches the largest max_distance a request
// may carry, so a preference is never narrowed by discovery.
const (
	DefaultRadiusKM   = 10.0
	MaxRadiusKM       = model.MaxDistanceKM
	DefaultMaxResults = 100
	MaxMaxResults     = 500
)

// Query selects the stations around a point.
type Query struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	RadiusKM   float64 `json:"radius_km"`
	MaxResults int     `json:"max_results"`
}

// Normalize applies defaults and clamps the radius and result count.
func (q Query) Normalize() Query {
	if q.RadiusKM <= 0 {
		q.RadiusKM = DefaultRadiusKM
	}
	if q.RadiusKM > MaxRadiusKM {
		q.RadiusKM = MaxRadiusKM
	}
	if q.MaxResults <= 0 {
		q.MaxResults = DefaultMaxResults
	}
	if q.MaxResults > MaxMaxResults {
		q.MaxResults = MaxMaxResults
	}
	return q
}

// Validate checks the coordinates.
func (q Query) Validate() error {
	if q.Lat < -90 || q.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", q.Lat)
	}
	if q.Lon < -180 || q.Lon > 180 {
		return fmt.Errorf("longitude %v out of range", q.Lon)
	}
	return nil
}

// Source returns raw station records near a point.
type Source interface {
	Name() string
	Nearby(ctx context.Context, q Query) ([]model.RawStation, error)
}

// Chain tries each source in order and returns the first successful answer.
type Chain []Source

func (c Chain) Name() string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

// Nearby implements Source. The error of the last source is returned when
// every source fails.
func (c Chain) Nearby(ctx context.Context, q Query) ([]model.RawStation, error) {
	if len(c) == 0 {
		return nil, fmt.Errorf("%w: no source configured", ErrUpstream)
	}
	var errs []error
	for _, s := range c {
		out, err := s.Nearby(ctx, q)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return nil, errors.Join(errs...)
}
