package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// FastChargingKW is the connector rating from which a station counts as fast charging.
const FastChargingKW = 50.0

// UnknownOperator is used when the source record carries no operator.
const UnknownOperator = "Unknown"

// AccessType classifies who may use a station.
type AccessType string

const (
	AccessPublic     AccessType = "Public"
	AccessPrivate    AccessType = "Private"
	AccessRestricted AccessType = "Restricted"
	AccessMembership AccessType = "Membership"
	AccessUnknown    AccessType = "Unknown"
)

// ChargerCategory buckets a station by the power of its primary connector.
type ChargerCategory string

const (
	ChargerSlow      ChargerCategory = "slow"
	ChargerFast      ChargerCategory = "fast"
	ChargerSuperfast ChargerCategory = "superfast"
)

// CategoryFor returns the charger category for the given power rating in kW.
func CategoryFor(powerKW float64) ChargerCategory {
	switch {
	case powerKW >= FastChargingKW:
		return ChargerSuperfast
	case powerKW >= 22:
		return ChargerFast
	default:
		return ChargerSlow
	}
}

// StationID is the external identifier of a station. Upstream sources use
// either integers or strings, and the source kind is kept so that the
// identifier round-trips unchanged through JSON.
type StationID struct {
	value   string
	numeric bool
}

// IntID returns a numeric station identifier.
func IntID(v int64) StationID { return StationID{value: strconv.FormatInt(v, 10), numeric: true} }

// StringID returns a textual station identifier.
func StringID(v string) StationID { return StationID{value: v} }

func (id StationID) String() string { return id.value }

// IsZero reports whether the identifier is unset.
func (id StationID) IsZero() bool { return id.value == "" }

// MarshalJSON encodes numeric identifiers as JSON numbers and all others as strings.
func (id StationID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (id *StationID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = StationID{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StringID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("station id: %w", err)
	}
	*id = StationID{value: n.String(), numeric: true}
	return nil
}

// Station is the canonical representation of a charging station. Values are
// created by the normalizer and never modified afterwards.
type Station struct {
	ID               StationID       `json:"id"`
	Name             string          `json:"name"`
	Operator         string          `json:"operator"`
	Address          string          `json:"address"`
	Latitude         float64         `json:"latitude"`
	Longitude        float64         `json:"longitude"`
	Distance         float64         `json:"distance"`
	UsageCost        float64         `json:"usage_cost"`
	UsageType        string          `json:"usage_type,omitempty"`
	AccessType       AccessType      `json:"access_type"`
	FastCharging     bool            `json:"fast_charging"`
	MaxPowerKW       float64         `json:"max_power_kw"`
	ChargerCategory  ChargerCategory `json:"charger_category"`
	TotalConnections int             `json:"total_connections"`
	ConnectionTypes  []string        `json:"connection_types,omitempty"`
	Status           string          `json:"status"`
}

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
