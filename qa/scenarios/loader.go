package scenarios

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/evreco/core/model"
)

// StationDef is a compact form of an OpenChargeMap record. Omitted fields
// stay absent in the raw station.
type StationDef struct {
	ID         string    `yaml:"id"`
	Title      string    `yaml:"title,omitempty"`
	Operator   string    `yaml:"operator,omitempty"`
	Usage      string    `yaml:"usage,omitempty"`
	Status     string    `yaml:"status,omitempty"`
	Lat        *float64  `yaml:"lat,omitempty"`
	Lon        *float64  `yaml:"lon,omitempty"`
	DistanceKM *float64  `yaml:"distance_km,omitempty"`
	PowersKW   []float64 `yaml:"powers_kw,omitempty"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (d StationDef) ToRaw() model.RawStation {
	var r model.RawStation
	if n, err := strconv.ParseInt(d.ID, 10, 64); err == nil {
		id := model.IntID(n)
		r.ID = &id
	} else {
		r.UUID = d.ID
	}
	r.AddressInfo = &model.RawAddress{
		Title:     optional(d.Title),
		Latitude:  d.Lat,
		Longitude: d.Lon,
		Distance:  d.DistanceKM,
	}
	if d.Operator != "" {
		r.OperatorInfo = &model.RawTitled{Title: &d.Operator}
	}
	if d.Usage != "" {
		r.UsageType = &model.RawTitled{Title: &d.Usage}
	}
	if d.Status != "" {
		r.StatusType = &model.RawStatus{Title: &d.Status}
	}
	for _, p := range d.PowersKW {
		r.Connections = append(r.Connections, model.RawConnection{PowerKW: model.Ptr(p)})
	}
	return r
}

// PrefsDef mirrors the request body; omitted numbers take their defaults.
type PrefsDef struct {
	Latitude          float64  `yaml:"latitude"`
	Longitude         float64  `yaml:"longitude"`
	MaxDistance       *float64 `yaml:"max_distance,omitempty"`
	Budget            *float64 `yaml:"budget,omitempty"`
	PreferredOperator string   `yaml:"preferred_operator,omitempty"`
	FastChargingOnly  bool     `yaml:"fast_charging_only,omitempty"`
	PublicAccessOnly  bool     `yaml:"public_access_only,omitempty"`
}

func (p PrefsDef) Resolve() (model.UserPreferences, error) {
	return model.PreferencesInput{
		Latitude:          &p.Latitude,
		Longitude:         &p.Longitude,
		MaxDistance:       p.MaxDistance,
		Budget:            p.Budget,
		PreferredOperator: p.PreferredOperator,
		FastChargingOnly:  p.FastChargingOnly,
		PublicAccessOnly:  p.PublicAccessOnly,
	}.Resolve()
}

// ModelDef selects the behaviour of the rating model. Mode is one of
// "none", "ok", "slow", "unavailable", "malformed" or "mismatch".
type ModelDef struct {
	Mode    string             `yaml:"mode"`
	Default float64            `yaml:"default,omitempty"`
	Ratings map[string]float64 `yaml:"ratings,omitempty"`
}

type Expected struct {
	Reason         string   `yaml:"reason,omitempty"`
	Strategy       string   `yaml:"strategy,omitempty"`
	FallbackReason string   `yaml:"fallback_reason,omitempty"`
	Candidates     *int     `yaml:"candidates,omitempty"`
	Dropped        *int     `yaml:"dropped,omitempty"`
	Order          []string `yaml:"order,omitempty"`
	Excluded       []string `yaml:"excluded,omitempty"`
	// Stations maps a station id to expected attributes.
	Stations map[string]StationExpect `yaml:"stations,omitempty"`
}

type StationExpect struct {
	UsageCost    *float64 `yaml:"usage_cost,omitempty"`
	MaxPowerKW   *float64 `yaml:"max_power_kw,omitempty"`
	FastCharging *bool    `yaml:"fast_charging,omitempty"`
	Rating       *float64 `yaml:"rating,omitempty"`
}

type Scenario struct {
	Name           string       `yaml:"name"`
	Description    string       `yaml:"description,omitempty"`
	ZeroBudgetMode string       `yaml:"zero_budget_mode,omitempty"`
	Stations       []StationDef `yaml:"stations"`
	Preferences    PrefsDef     `yaml:"preferences"`
	Model          ModelDef     `yaml:"model"`
	Expected       Expected     `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("%s: scenario name is required", path)
	}
	return &sc, nil
}
