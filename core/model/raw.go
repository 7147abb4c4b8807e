package model

import (
	"encoding/json"
	"strings"
)

// RawStation mirrors a point of interest as returned by the OpenChargeMap
// API. Every field is optional; the accessor methods below are nil-safe and
// report whether a value was present.
type RawStation struct {
	ID           *StationID      `json:"ID,omitempty"`
	UUID         string          `json:"UUID,omitempty"`
	AddressInfo  *RawAddress     `json:"AddressInfo,omitempty"`
	OperatorInfo *RawTitled      `json:"OperatorInfo,omitempty"`
	UsageType    *RawTitled      `json:"UsageType,omitempty"`
	StatusType   *RawStatus      `json:"StatusType,omitempty"`
	Connections  []RawConnection `json:"Connections,omitempty"`
}

// RawAddress is the AddressInfo sub-object.
type RawAddress struct {
	Title           *string  `json:"Title,omitempty"`
	AddressLine1    *string  `json:"AddressLine1,omitempty"`
	AddressLine2    *string  `json:"AddressLine2,omitempty"`
	Town            *string  `json:"Town,omitempty"`
	StateOrProvince *string  `json:"StateOrProvince,omitempty"`
	Postcode        *string  `json:"Postcode,omitempty"`
	Latitude        *float64 `json:"Latitude,omitempty"`
	Longitude       *float64 `json:"Longitude,omitempty"`
	Distance        *float64 `json:"Distance,omitempty"`
}

// RawTitled is any sub-object that only matters for its Title.
type RawTitled struct {
	Title *string `json:"Title,omitempty"`
}

// RawStatus is the StatusType sub-object.
type RawStatus struct {
	Title         *string `json:"Title,omitempty"`
	IsOperational *bool   `json:"IsOperational,omitempty"`
}

// RawConnection is one connector of a station.
type RawConnection struct {
	PowerKW        *float64   `json:"PowerKW,omitempty"`
	ConnectionType *RawTitled `json:"ConnectionType,omitempty"`
	Quantity       *int       `json:"Quantity,omitempty"`
}

func text(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	s := strings.TrimSpace(*p)
	return s, s != ""
}

// Identifier returns the station identifier, falling back to the UUID.
func (r RawStation) Identifier() (StationID, bool) {
	if r.ID != nil && !r.ID.IsZero() {
		return *r.ID, true
	}
	if u := strings.TrimSpace(r.UUID); u != "" {
		return StringID(u), true
	}
	return StationID{}, false
}

// Coordinates returns latitude and longitude when both are present.
func (r RawStation) Coordinates() (Point, bool) {
	if r.AddressInfo == nil || r.AddressInfo.Latitude == nil || r.AddressInfo.Longitude == nil {
		return Point{}, false
	}
	return Point{Lat: *r.AddressInfo.Latitude, Lon: *r.AddressInfo.Longitude}, true
}

// Distance returns the distance reported by the source, if any.
func (r RawStation) Distance() (float64, bool) {
	if r.AddressInfo == nil || r.AddressInfo.Distance == nil {
		return 0, false
	}
	return *r.AddressInfo.Distance, true
}

// Title returns the display name of the station.
func (r RawStation) Title() (string, bool) {
	if r.AddressInfo == nil {
		return "", false
	}
	return text(r.AddressInfo.Title)
}

// Operator returns the operator title.
func (r RawStation) Operator() (string, bool) {
	if r.OperatorInfo == nil {
		return "", false
	}
	return text(r.OperatorInfo.Title)
}

// UsageLabel returns the usage type title, e.g. "Public - Membership Required".
func (r RawStation) UsageLabel() (string, bool) {
	if r.UsageType == nil {
		return "", false
	}
	return text(r.UsageType.Title)
}

// Status returns the status title. When the title is missing the
// IsOperational flag is used to derive one.
func (r RawStation) Status() (string, bool) {
	if r.StatusType == nil {
		return "", false
	}
	if s, ok := text(r.StatusType.Title); ok {
		return s, true
	}
	if r.StatusType.IsOperational != nil {
		if *r.StatusType.IsOperational {
			return "Operational", true
		}
		return "Not Operational", true
	}
	return "", false
}

// AddressParts returns the present address fields in display order.
func (r RawStation) AddressParts() []string {
	if r.AddressInfo == nil {
		return nil
	}
	a := r.AddressInfo
	var parts []string
	for _, p := range []*string{a.AddressLine1, a.AddressLine2, a.Town, a.StateOrProvince, a.Postcode} {
		if s, ok := text(p); ok {
			parts = append(parts, s)
		}
	}
	return parts
}

// Power returns the connector rating in kW, zero when unspecified.
func (c RawConnection) Power() float64 {
	if c.PowerKW == nil || *c.PowerKW < 0 {
		return 0
	}
	return *c.PowerKW
}

// TypeTitle returns the connector type title.
func (c RawConnection) TypeTitle() (string, bool) {
	if c.ConnectionType == nil {
		return "", false
	}
	return text(c.ConnectionType.Title)
}

// Ptr returns a pointer to v. It keeps fixtures for raw records short.
func Ptr[T any](v T) *T { return &v }

// DecodeRawStations decodes a JSON array of station records one element at a
// time. An element that does not fit RawStation is kept as an empty record,
// which normalization drops and counts, and reported in bad. Only a payload
// that is not a JSON array fails.
func DecodeRawStations(data []byte) (out []RawStation, bad int, err error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, 0, err
	}
	out = make([]RawStation, len(items))
	for i, item := range items {
		if err := json.Unmarshal(item, &out[i]); err != nil {
			out[i] = RawStation{}
			bad++
		}
	}
	return out, bad, nil
}
