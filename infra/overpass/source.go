// Package overpass reads charging stations from OpenStreetMap through the
// Overpass API.
package overpass

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/serjvanilla/go-overpass"

	"github.com/kilianp07/evreco/core/discovery"
	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/infra/logger"
)

// DefaultEndpoint is the public Overpass interpreter.
const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

// Config describes the Overpass endpoint.
type Config struct {
	Endpoint       string `json:"endpoint"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	MaxParallel    int    `json:"max_parallel"`
}

// SetDefaults applies the public endpoint, a 30 second timeout and two
// parallel queries.
func (c *Config) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = 2
	}
}

// Source implements discovery.Source over amenity=charging_station elements.
type Source struct {
	client overpass.Client
	log    logger.Logger
}

// NewSource creates an Overpass source.
func NewSource(cfg Config) *Source {
	cfg.SetDefaults()
	httpClient := &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	return &Source{
		client: overpass.NewWithSettings(cfg.Endpoint, cfg.MaxParallel, httpClient),
		log:    logger.New("overpass"),
	}
}

func (s *Source) Name() string { return "osm" }

// Query builds the Overpass QL statement for q.
func Query(q discovery.Query) string {
	q = q.Normalize()
	radius := int(q.RadiusKM * 1000)
	return fmt.Sprintf(`[out:json][timeout:25];
(
  node["amenity"="charging_station"](around:%d,%f,%f);
  way["amenity"="charging_station"](around:%d,%f,%f);
);
out body;
>;
out skel qt;`, radius, q.Lat, q.Lon, radius, q.Lat, q.Lon)
}

// Nearby implements discovery.Source. The underlying client has no context
// support, so a cancelled ctx abandons the pending query.
func (s *Source) Nearby(ctx context.Context, q discovery.Query) ([]model.RawStation, error) {
	q = q.Normalize()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	type answer struct {
		res overpass.Result
		err error
	}
	done := make(chan answer, 1)
	go func() {
		res, err := s.client.Query(Query(q))
		done <- answer{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case a := <-done:
		if a.err != nil {
			return nil, fmt.Errorf("%w: overpass query failed: %v", discovery.ErrUpstream, a.err)
		}
		out := Convert(&a.res)
		if len(out) > q.MaxResults {
			out = out[:q.MaxResults]
		}
		s.log.Debugf("fetched %d stations near (%.4f, %.4f)", len(out), q.Lat, q.Lon)
		return out, nil
	}
}

// Convert maps the tagged charging station elements of res to raw records.
// Ways are placed at the centroid of their nodes. Output is sorted by id.
func Convert(res *overpass.Result) []model.RawStation {
	var out []model.RawStation
	for _, n := range res.Nodes {
		if n.Tags["amenity"] != "charging_station" {
			continue
		}
		out = append(out, fromTags(fmt.Sprintf("node/%d", n.ID), n.Lat, n.Lon, n.Tags))
	}
	for _, w := range res.Ways {
		if w.Tags["amenity"] != "charging_station" || len(w.Nodes) == 0 {
			continue
		}
		var lat, lon float64
		count := 0
		for _, n := range w.Nodes {
			if n == nil {
				continue
			}
			lat += n.Lat
			lon += n.Lon
			count++
		}
		if count == 0 {
			continue
		}
		out = append(out, fromTags(fmt.Sprintf("way/%d", w.ID), lat/float64(count), lon/float64(count), w.Tags))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func fromTags(id string, lat, lon float64, tags map[string]string) model.RawStation {
	sid := model.StringID("osm:" + id)
	r := model.RawStation{
		ID: &sid,
		AddressInfo: &model.RawAddress{
			Latitude:  model.Ptr(lat),
			Longitude: model.Ptr(lon),
		},
		Connections: connections(tags),
	}
	if name := first(tags, "name", "brand"); name != "" {
		r.AddressInfo.Title = model.Ptr(name)
	}
	if street := strings.TrimSpace(tags["addr:housenumber"] + " " + tags["addr:street"]); street != "" {
		r.AddressInfo.AddressLine1 = model.Ptr(street)
	}
	if city := tags["addr:city"]; city != "" {
		r.AddressInfo.Town = model.Ptr(city)
	}
	if pc := tags["addr:postcode"]; pc != "" {
		r.AddressInfo.Postcode = model.Ptr(pc)
	}
	if op := first(tags, "operator", "network", "brand"); op != "" {
		r.OperatorInfo = &model.RawTitled{Title: model.Ptr(op)}
	}
	r.UsageType = &model.RawTitled{Title: model.Ptr(usageLabel(tags["access"]))}
	if st, ok := status(tags); ok {
		r.StatusType = &model.RawStatus{IsOperational: model.Ptr(st)}
	}
	return r
}

func first(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(tags[k]); v != "" {
			return v
		}
	}
	return ""
}

// usageLabel maps the OSM access tag to an OpenChargeMap usage title.
func usageLabel(access string) string {
	switch strings.ToLower(strings.TrimSpace(access)) {
	case "", "yes", "public", "permissive":
		return "Public"
	case "members", "membership":
		return "Public - Membership Required"
	case "customers", "destination", "delivery":
		return "Private - Restricted Access"
	default:
		return "Privately Owned - Notice Required"
	}
}

func status(tags map[string]string) (operational bool, known bool) {
	switch strings.ToLower(tags["operational_status"]) {
	case "closed", "out_of_order", "broken":
		return false, true
	case "open", "operational":
		return true, true
	}
	if tags["disused:amenity"] != "" || tags["abandoned:amenity"] != "" {
		return false, true
	}
	return false, false
}

var socketTitles = map[string]string{
	"type2":              "Type 2 (Socket Only)",
	"type2_cable":        "Type 2 (Tethered Connector)",
	"type2_combo":        "CCS (Type 2)",
	"type1":              "Type 1 (J1772)",
	"type1_combo":        "CCS (Type 1)",
	"chademo":            "CHAdeMO",
	"tesla_supercharger": "Tesla (Model S/X)",
	"schuko":             "Europlug 2-Pin (CEE 7/16)",
	"cee_blue":           "Blue Commando (2P+E)",
	"gb_dc":              "GB-T DC - GB/T 20234.3",
}

// connections reads socket:<type>=<count> and socket:<type>:output tags.
func connections(tags map[string]string) []model.RawConnection {
	var kinds []string
	for k := range tags {
		rest, ok := strings.CutPrefix(k, "socket:")
		if !ok || strings.Contains(rest, ":") {
			continue
		}
		kinds = append(kinds, rest)
	}
	sort.Strings(kinds)

	var out []model.RawConnection
	for _, kind := range kinds {
		qty, err := strconv.Atoi(strings.TrimSpace(tags["socket:"+kind]))
		if err != nil || qty <= 0 {
			continue
		}
		title, ok := socketTitles[kind]
		if !ok {
			title = kind
		}
		c := model.RawConnection{
			ConnectionType: &model.RawTitled{Title: model.Ptr(title)},
			Quantity:       model.Ptr(qty),
		}
		if kw, ok := ParsePower(tags["socket:"+kind+":output"]); ok {
			c.PowerKW = model.Ptr(kw)
		}
		out = append(out, c)
	}
	return out
}

// ParsePower reads an OSM output value such as "22 kW", "50kW", "7400 W"
// or a bare number of kilowatts.
func ParsePower(v string) (float64, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return 0, false
	}
	scale := 1.0
	switch {
	case strings.HasSuffix(v, "kw"):
		v = strings.TrimSuffix(v, "kw")
	case strings.HasSuffix(v, "w"):
		v = strings.TrimSuffix(v, "w")
		scale = 0.001
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(v, ",", ".")), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f * scale, true
}
