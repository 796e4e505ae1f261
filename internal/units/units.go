// Package units provides shared constants and conversion for the speed units
// simulator feeds report in. KOMSI transmits speeds in km/h.
package units

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "mps, mph, kmph, kph"
}

// ToKMH converts a speed from the given unit into km/h, the KOMSI wire unit.
func ToKMH(speed float64, fromUnit string) float64 {
	switch fromUnit {
	case MPS:
		return speed * 3.6 // m/s to km/h
	case MPH:
		return speed * 1.609344 // mph to km/h
	case KMPH, KPH:
		return speed // no conversion needed
	default:
		return speed // default to km/h if unknown unit
	}
}
