package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Preference defaults applied when a request omits a field.
const (
	DefaultMaxDistanceKM   = 10.0
	DefaultBudget          = 50.0
	DefaultBatteryCapacity = 45.0

	// MaxDistanceKM is the largest accepted max_distance.
	MaxDistanceKM = 1000.0
)

// ErrInvalidPreferences is returned when user preferences fail validation.
var ErrInvalidPreferences = errors.New("invalid preferences")

var validate = validator.New(validator.WithRequiredStructEnabled())

// UserPreferences holds the validated constraints of one request.
type UserPreferences struct {
	Latitude           float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude          float64 `json:"longitude" validate:"gte=-180,lte=180"`
	MaxDistance        float64 `json:"max_distance" validate:"gt=0,lte=1000"`
	Budget             float64 `json:"budget" validate:"gte=0,lte=1000"`
	PreferredOperator  string  `json:"preferred_operator,omitempty" validate:"max=100"`
	FastChargingOnly   bool    `json:"fast_charging_only"`
	PublicAccessOnly   bool    `json:"public_access_only"`
	BatteryCapacityKWh float64 `json:"battery_capacity_kwh,omitempty" validate:"gte=0,lte=500"`
	IsPriceSensitive   bool    `json:"is_price_sensitive,omitempty"`
}

// Origin returns the query point of the preferences.
func (p UserPreferences) Origin() Point { return Point{Lat: p.Latitude, Lon: p.Longitude} }

// Validate checks the field ranges.
func (p UserPreferences) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPreferences, describe(err))
	}
	return nil
}

// PreferencesInput is the wire form of UserPreferences. Optional numeric
// fields are pointers so that an explicit zero can be told apart from an
// omitted value.
type PreferencesInput struct {
	Latitude           *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude          *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	MaxDistance        *float64 `json:"max_distance" validate:"omitempty,gt=0,lte=1000"`
	Budget             *float64 `json:"budget" validate:"omitempty,gte=0,lte=1000"`
	PreferredOperator  string   `json:"preferred_operator" validate:"max=100"`
	FastChargingOnly   bool     `json:"fast_charging_only"`
	PublicAccessOnly   bool     `json:"public_access_only"`
	BatteryCapacityKWh *float64 `json:"battery_capacity_kwh" validate:"omitempty,gte=0,lte=500"`
	IsPriceSensitive   bool     `json:"is_price_sensitive"`
}

// Resolve validates the input and fills in defaults.
func (in PreferencesInput) Resolve() (UserPreferences, error) {
	if err := validate.Struct(in); err != nil {
		return UserPreferences{}, fmt.Errorf("%w: %s", ErrInvalidPreferences, describe(err))
	}
	p := UserPreferences{
		Latitude:           *in.Latitude,
		Longitude:          *in.Longitude,
		MaxDistance:        DefaultMaxDistanceKM,
		Budget:             DefaultBudget,
		PreferredOperator:  strings.TrimSpace(in.PreferredOperator),
		FastChargingOnly:   in.FastChargingOnly,
		PublicAccessOnly:   in.PublicAccessOnly,
		BatteryCapacityKWh: DefaultBatteryCapacity,
		IsPriceSensitive:   in.IsPriceSensitive,
	}
	if in.MaxDistance != nil {
		p.MaxDistance = *in.MaxDistance
	}
	if in.Budget != nil {
		p.Budget = *in.Budget
	}
	if in.BatteryCapacityKWh != nil {
		p.BatteryCapacityKWh = *in.BatteryCapacityKWh
	}
	return p, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
