package komsi

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Field identifies one telemetry field of a VehicleState. Field values double
// as the protocol emission order: Compare walks fields in declaration order,
// and receivers rely on that ordering (ignition arrives before engine start).
type Field int

const (
	FieldIgnition Field = iota
	FieldEngine
	FieldDoors
	FieldFixingBrake
	FieldIndicator
	FieldLightsWarning
	FieldLightsMain
	FieldLightsStopRequest
	FieldLightsStopBrake
	FieldLightsFrontDoor
	FieldLightsSecondDoor
	FieldLightsThirdDoor
	FieldLightsFourthDoor
	FieldLightsHighBeam
	FieldFuel
	FieldSpeed
	FieldMaxSpeed
	FieldRPM
	FieldPressure
	FieldTemperature
	FieldOil
	FieldWater
	FieldBatteryLight
	FieldDoorEnable
	FieldGearSelector

	numFields
)

// fieldSpec describes how one field is named, bounded, and put on the wire.
// The table below is the single source of truth shared by Compare, the
// decoder, and the feed parser: protocol order, opcode assignment, value
// domain, and bitmask grouping all live here and nowhere else.
type fieldSpec struct {
	name string
	kind CommandKind
	max  uint32
	// bit is the field's position inside a packed bitmask command, or -1
	// for fields transmitted on their own opcode. Grouped fields share one
	// kind; the bit-0 member anchors the group's place in emission order.
	bit int
}

var fieldTable = [numFields]fieldSpec{
	FieldIgnition:          {name: "ignition", kind: KindIgnition, max: 1, bit: -1},
	FieldEngine:            {name: "engine", kind: KindEngine, max: 1, bit: -1},
	FieldDoors:             {name: "doors", kind: KindDoors, max: 1, bit: -1},
	FieldFixingBrake:       {name: "fixing_brake", kind: KindFixingBrake, max: 1, bit: -1},
	FieldIndicator:         {name: "indicator", kind: KindIndicator, max: 3, bit: -1},
	FieldLightsWarning:     {name: "lights_warning", kind: KindLightsWarning, max: 1, bit: -1},
	FieldLightsMain:        {name: "lights_main", kind: KindLightsMain, max: 1, bit: -1},
	FieldLightsStopRequest: {name: "lights_stop_request", kind: KindLightsStopRequest, max: 1, bit: -1},
	FieldLightsStopBrake:   {name: "lights_stop_brake", kind: KindLightsStopBrake, max: 1, bit: -1},
	FieldLightsFrontDoor:   {name: "lights_front_door", kind: KindDoorLamps, max: 1, bit: 0},
	FieldLightsSecondDoor:  {name: "lights_second_door", kind: KindDoorLamps, max: 1, bit: 1},
	FieldLightsThirdDoor:   {name: "lights_third_door", kind: KindDoorLamps, max: 1, bit: 2},
	FieldLightsFourthDoor:  {name: "lights_fourth_door", kind: KindDoorLamps, max: 1, bit: 3},
	FieldLightsHighBeam:    {name: "lights_high_beam", kind: KindLightsHighBeam, max: 1, bit: -1},
	FieldFuel:              {name: "fuel", kind: KindFuel, max: 100, bit: -1},
	FieldSpeed:             {name: "speed", kind: KindSpeed, max: 500, bit: -1},
	FieldMaxSpeed:          {name: "max_speed", kind: KindMaxSpeed, max: 500, bit: -1},
	FieldRPM:               {name: "rpm", kind: KindRPM, max: 16000, bit: -1},
	FieldPressure:          {name: "pressure", kind: KindPressure, max: 250, bit: -1},
	FieldTemperature:       {name: "temperature", kind: KindTemperature, max: 200, bit: -1},
	FieldOil:               {name: "oil", kind: KindOil, max: 250, bit: -1},
	FieldWater:             {name: "water", kind: KindWater, max: 150, bit: -1},
	FieldBatteryLight:      {name: "battery_light", kind: KindBatteryLight, max: 1, bit: -1},
	FieldDoorEnable:        {name: "door_enable", kind: KindDoorEnable, max: 1, bit: -1},
	FieldGearSelector:      {name: "gear_selector", kind: KindGearSelector, max: 7, bit: -1},
}

// NumFields is the number of telemetry fields a VehicleState tracks.
const NumFields = int(numFields)

// Fields returns every field in protocol emission order.
func Fields() []Field {
	fs := make([]Field, numFields)
	for i := range fs {
		fs[i] = Field(i)
	}
	return fs
}

// FieldByName resolves a protocol field name to its Field index.
func FieldByName(name string) (Field, bool) {
	for f := Field(0); f < numFields; f++ {
		if fieldTable[f].name == name {
			return f, true
		}
	}
	return 0, false
}

// Name returns the protocol name of the field.
func (f Field) Name() string {
	if f < 0 || f >= numFields {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldTable[f].name
}

func (f Field) String() string { return f.Name() }

// Max returns the largest value the field's protocol domain admits.
func (f Field) Max() uint32 {
	return fieldTable[f].max
}

// ErrInvalidFieldValue is the sentinel wrapped by every field domain
// violation.
var ErrInvalidFieldValue = errors.New("value outside protocol domain")

// InvalidFieldValueError reports an attempt to store a value a field's
// protocol domain does not admit. The target state is left unmodified.
type InvalidFieldValueError struct {
	Field Field
	Value uint32
}

func (e *InvalidFieldValueError) Error() string {
	return fmt.Sprintf("komsi: %s = %d (max %d): %s", e.Field, e.Value, e.Field.Max(), ErrInvalidFieldValue)
}

func (e *InvalidFieldValueError) Unwrap() error { return ErrInvalidFieldValue }

// VehicleState is a complete point-in-time snapshot of every tracked
// telemetry field. The zero value is the canonical all-off state.
//
// A VehicleState is a plain value: assignment and Clone produce independent
// snapshots with no shared storage. Concurrent mutation of a single state is
// the owner's responsibility; Compare only ever reads its inputs.
type VehicleState struct {
	values [numFields]uint32
}

// New returns the canonical default state with every field at its
// protocol-defined off value.
func New() *VehicleState {
	return &VehicleState{}
}

// Clone returns an independent copy of the state.
func (s *VehicleState) Clone() *VehicleState {
	c := *s
	return &c
}

// Equal reports whether both states hold identical field values.
func (s *VehicleState) Equal(other *VehicleState) bool {
	return s.values == other.values
}

// Get returns the current value of the field.
func (s *VehicleState) Get(f Field) uint32 {
	return s.values[f]
}

// Set stores a value into the field after validating it against the field's
// protocol domain. Out-of-domain values are rejected, never clamped: a
// silently clamped value would desynchronize the caller's notion of state
// from what is actually on the wire.
func (s *VehicleState) Set(f Field, v uint32) error {
	if f < 0 || f >= numFields {
		return fmt.Errorf("komsi: no such field %d", int(f))
	}
	if v > fieldTable[f].max {
		return &InvalidFieldValueError{Field: f, Value: v}
	}
	s.values[f] = v
	return nil
}

// MarshalJSON renders the state as a flat name-to-value object.
func (s *VehicleState) MarshalJSON() ([]byte, error) {
	m := make(map[string]uint32, numFields)
	for f := Field(0); f < numFields; f++ {
		m[fieldTable[f].name] = s.values[f]
	}
	return json.Marshal(m)
}
