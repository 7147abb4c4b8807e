package station

import (
	"strings"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/kilianp07/evreco/core/model"
)

// Reference session used to estimate the cost of a charge.
const (
	DefaultSessionPowerKW = 22.0
	SessionHours          = 0.5
	BaseRatePerKWh        = 0.25
)

// Usage type multipliers, keyed by the lowercased label.
var usageMultipliers = map[string]float64{
	"public":                            1.0,
	"private - restricted access":       1.2,
	"privately owned - notice required": 1.1,
	"public - membership required":      0.9,
}

// UsageCost estimates the price in dollars of a half hour session at the
// given connector power. A zero power means the rating is unknown and the
// default session power is used instead. The result is rounded to cents.
func UsageCost(powerKW float64, usageType string) float64 {
	if powerKW <= 0 {
		powerKW = DefaultSessionPowerKW
	}
	multiplier, ok := usageMultipliers[strings.ToLower(strings.TrimSpace(usageType))]
	if !ok {
		multiplier = 1.0
	}
	switch {
	case powerKW >= 150:
		multiplier *= 1.3
	case powerKW >= model.FastChargingKW:
		multiplier *= 1.1
	}
	energy := powerKW * SessionHours
	return scalar.Round(energy*BaseRatePerKWh*multiplier, 2)
}

// AccessTypeFor classifies a usage type label. Matching is a case-insensitive
// substring test, checked in the order public, private, restricted, membership.
func AccessTypeFor(usageType string) model.AccessType {
	label := strings.ToLower(usageType)
	switch {
	case strings.Contains(label, "public"):
		return model.AccessPublic
	case strings.Contains(label, "private"):
		return model.AccessPrivate
	case strings.Contains(label, "restricted"):
		return model.AccessRestricted
	case strings.Contains(label, "membership"):
		return model.AccessMembership
	default:
		return model.AccessUnknown
	}
}
