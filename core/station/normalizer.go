// Package station turns raw upstream records into canonical stations.
package station

import (
	"strings"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/kilianp07/evreco/core/model"
)

// AddressUnavailable is used when a record carries no address field.
const AddressUnavailable = "Address not available"

// Normalizer converts raw records into canonical stations. It holds no
// mutable state and is safe for concurrent use.
type Normalizer struct {
	origin *model.Point
}

// NewNormalizer returns a Normalizer without a query point. Distances are then
// only taken from the records themselves.
func NewNormalizer() Normalizer { return Normalizer{} }

// WithOrigin returns a copy of n that computes missing distances from p.
func (n Normalizer) WithOrigin(p model.Point) Normalizer {
	n.origin = &p
	return n
}

// Normalize converts every usable record and reports how many were dropped.
// Records without coordinates or identifier are dropped, as are later
// duplicates of an identifier already seen. The input is not modified.
func (n Normalizer) Normalize(raw []model.RawStation) ([]model.Station, int) {
	out := make([]model.Station, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	dropped := 0
	for _, r := range raw {
		st, ok := n.NormalizeOne(r)
		if !ok {
			dropped++
			continue
		}
		key := st.ID.String()
		if _, dup := seen[key]; dup {
			dropped++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, st)
	}
	return out, dropped
}

// NormalizeOne converts a single record. It returns false when the record
// lacks an identifier or either coordinate.
func (n Normalizer) NormalizeOne(r model.RawStation) (model.Station, bool) {
	id, ok := r.Identifier()
	if !ok {
		return model.Station{}, false
	}
	pos, ok := r.Coordinates()
	if !ok {
		return model.Station{}, false
	}

	power := PrimaryPower(r.Connections)
	usage, _ := r.UsageLabel()

	name, ok := r.Title()
	if !ok {
		name = "Station " + id.String()
	}
	operator, ok := r.Operator()
	if !ok {
		operator = model.UnknownOperator
	}
	status, ok := r.Status()
	if !ok {
		status = "Unknown"
	}
	total := len(r.Connections)
	if total == 0 {
		total = 1
	}

	return model.Station{
		ID:               id,
		Name:             name,
		Operator:         operator,
		Address:          FormatAddress(r),
		Latitude:         pos.Lat,
		Longitude:        pos.Lon,
		Distance:         n.distance(r, pos),
		UsageCost:        UsageCost(power, usage),
		UsageType:        usage,
		AccessType:       AccessTypeFor(usage),
		FastCharging:     power >= model.FastChargingKW,
		MaxPowerKW:       power,
		ChargerCategory:  model.CategoryFor(power),
		TotalConnections: total,
		ConnectionTypes:  connectionTypes(r.Connections),
		Status:           status,
	}, true
}

func (n Normalizer) distance(r model.RawStation, pos model.Point) float64 {
	d, ok := r.Distance()
	if !ok && n.origin != nil {
		d, ok = Haversine(*n.origin, pos), true
	}
	if !ok || d < 0 {
		return 0
	}
	return scalar.Round(d, 1)
}

// PrimaryPower returns the rating of the most powerful connector. Ties keep
// the first occurrence and an empty list yields zero.
func PrimaryPower(conns []model.RawConnection) float64 {
	idx := PrimaryConnector(conns)
	if idx < 0 {
		return 0
	}
	return conns[idx].Power()
}

// PrimaryConnector returns the index of the most powerful connector, or -1.
func PrimaryConnector(conns []model.RawConnection) int {
	best := -1
	for i, c := range conns {
		if best < 0 || c.Power() > conns[best].Power() {
			best = i
		}
	}
	return best
}

// FormatAddress joins the present address fields with commas.
func FormatAddress(r model.RawStation) string {
	parts := r.AddressParts()
	if len(parts) == 0 {
		return AddressUnavailable
	}
	return strings.Join(parts, ", ")
}

func connectionTypes(conns []model.RawConnection) []string {
	var types []string
	seen := map[string]struct{}{}
	for _, c := range conns {
		title, ok := c.TypeTitle()
		if !ok {
			title = "Unknown"
		}
		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}
		types = append(types, title)
	}
	return types
}
