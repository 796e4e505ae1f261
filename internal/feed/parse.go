// Package feed ingests vehicle telemetry datagrams from the simulator side
// and turns them into VehicleState snapshots for the bridge.
//
// The wire format is one line per tick of comma-separated key=value pairs,
// for example "ign=1,eng=1,spd=43.2,door1=1". Keys absent from a line keep
// their previous value, so simulators may send sparse updates.
package feed

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/busdash/komsi-bridge/internal/komsi"
	"github.com/busdash/komsi-bridge/internal/units"
)

// keyFields maps integer-valued feed keys to their telemetry field.
var keyFields = map[string]komsi.Field{
	"ign":     komsi.FieldIgnition,
	"eng":     komsi.FieldEngine,
	"doors":   komsi.FieldDoors,
	"brake":   komsi.FieldFixingBrake,
	"ind":     komsi.FieldIndicator,
	"warn":    komsi.FieldLightsWarning,
	"lights":  komsi.FieldLightsMain,
	"stopreq": komsi.FieldLightsStopRequest,
	"stopbrk": komsi.FieldLightsStopBrake,
	"door1":   komsi.FieldLightsFrontDoor,
	"door2":   komsi.FieldLightsSecondDoor,
	"door3":   komsi.FieldLightsThirdDoor,
	"door4":   komsi.FieldLightsFourthDoor,
	"high":    komsi.FieldLightsHighBeam,
	"fuel":    komsi.FieldFuel,
	"rpm":     komsi.FieldRPM,
	"press":   komsi.FieldPressure,
	"temp":    komsi.FieldTemperature,
	"oil":     komsi.FieldOil,
	"water":   komsi.FieldWater,
	"batt":    komsi.FieldBatteryLight,
	"dooren":  komsi.FieldDoorEnable,
	"gear":    komsi.FieldGearSelector,
}

// speedKeys maps the float-valued speed keys, which arrive in the unit the
// simulator was configured with and go on the wire in km/h.
var speedKeys = map[string]komsi.Field{
	"spd":    komsi.FieldSpeed,
	"maxspd": komsi.FieldMaxSpeed,
}

// Parser turns feed lines into VehicleState snapshots.
type Parser struct {
	// SpeedUnit is the unit speed keys are reported in.
	SpeedUnit string
}

// Parse applies one feed line on top of the base state and returns the
// resulting snapshot. The base is not modified; on any parse or validation
// error the whole line is rejected, so a malformed datagram never yields a
// partially-applied state.
func (p *Parser) Parse(base *komsi.VehicleState, line string) (*komsi.VehicleState, error) {
	next := base.Clone()

	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("feed: empty line")
	}

	for _, pair := range strings.Split(line, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found {
			return nil, fmt.Errorf("feed: %q is not a key=value pair", pair)
		}

		if f, ok := speedKeys[key]; ok {
			if err := p.setSpeed(next, f, key, value); err != nil {
				return nil, err
			}
			continue
		}

		f, ok := keyFields[key]
		if !ok {
			return nil, fmt.Errorf("feed: unknown key %q", key)
		}
		v, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("feed: %s: %w", key, err)
		}
		if err := next.Set(f, uint32(v)); err != nil {
			return nil, fmt.Errorf("feed: %s: %w", key, err)
		}
	}

	return next, nil
}

func (p *Parser) setSpeed(s *komsi.VehicleState, f komsi.Field, key, value string) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("feed: %s: %w", key, err)
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("feed: %s: %v is not a valid speed", key, v)
	}
	kmh := uint32(math.Round(units.ToKMH(v, p.SpeedUnit)))
	if err := s.Set(f, kmh); err != nil {
		return fmt.Errorf("feed: %s: %w", key, err)
	}
	return nil
}
