// Package komsi implements the host side of the KOMSI wire protocol used to
// drive bus simulator dashboard peripherals.
//
// A KOMSI command is a single ASCII opcode byte followed by the ASCII-decimal
// rendering of its value. Commands are concatenated into a frame terminated by
// a single newline byte. The peripheral applies commands in frame order, so
// emission order is part of the protocol contract, not an implementation
// detail.
package komsi

import "strconv"

// CommandKind is the opcode byte of a KOMSI command.
type CommandKind byte

const (
	// KindEOL terminates a frame.
	KindEOL CommandKind = '\n'

	KindIgnition          CommandKind = 'A'
	KindEngine            CommandKind = 'B'
	KindDoors             CommandKind = 'C'
	KindIndicator         CommandKind = 'D'
	KindFixingBrake       CommandKind = 'E'
	KindLightsWarning     CommandKind = 'F'
	KindLightsMain        CommandKind = 'G'
	KindLightsFrontDoor   CommandKind = 'H'
	KindLightsSecondDoor  CommandKind = 'I'
	KindLightsThirdDoor   CommandKind = 'J'
	KindLightsStopRequest CommandKind = 'K'
	KindLightsStopBrake   CommandKind = 'L'
	KindLightsHighBeam    CommandKind = 'M'
	KindBatteryLight      CommandKind = 'N'
	KindSimulatorType     CommandKind = 'O'
	KindDoorEnable        CommandKind = 'P'

	// KindDoorLamps carries all four door annunciator lamps as a packed
	// bitmask (bit 0 = front door). It occupies the first reserved slot
	// after the legacy per-lamp opcodes H/I/J.
	KindDoorLamps CommandKind = 'Q'
	// KindGearSelector occupies the second reserved slot.
	KindGearSelector CommandKind = 'R'

	KindMaxSpeed    CommandKind = 's'
	KindRPM         CommandKind = 't'
	KindPressure    CommandKind = 'u'
	KindTemperature CommandKind = 'v'
	KindOil         CommandKind = 'w'
	KindFuel        CommandKind = 'x'
	KindSpeed       CommandKind = 'y'
	KindWater       CommandKind = 'z'
)

var kindNames = map[CommandKind]string{
	KindEOL:               "eol",
	KindIgnition:          "ignition",
	KindEngine:            "engine",
	KindDoors:             "doors",
	KindIndicator:         "indicator",
	KindFixingBrake:       "fixing_brake",
	KindLightsWarning:     "lights_warning",
	KindLightsMain:        "lights_main",
	KindLightsFrontDoor:   "lights_front_door",
	KindLightsSecondDoor:  "lights_second_door",
	KindLightsThirdDoor:   "lights_third_door",
	KindLightsStopRequest: "lights_stop_request",
	KindLightsStopBrake:   "lights_stop_brake",
	KindLightsHighBeam:    "lights_high_beam",
	KindBatteryLight:      "battery_light",
	KindSimulatorType:     "simulator_type",
	KindDoorEnable:        "door_enable",
	KindDoorLamps:         "door_lamps",
	KindGearSelector:      "gear_selector",
	KindMaxSpeed:          "max_speed",
	KindRPM:               "rpm",
	KindPressure:          "pressure",
	KindTemperature:       "temperature",
	KindOil:               "oil",
	KindFuel:              "fuel",
	KindSpeed:             "speed",
	KindWater:             "water",
}

// String returns the protocol name of the opcode, or its quoted byte value if
// the opcode is not part of the KOMSI command table.
func (k CommandKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return strconv.QuoteRune(rune(k))
}

// Known reports whether k is a defined KOMSI opcode.
func (k CommandKind) Known() bool {
	_, ok := kindNames[k]
	return ok
}

// AppendCommand appends one encoded command (opcode byte plus ASCII-decimal
// value) to buf and returns the extended buffer.
func AppendCommand(buf []byte, kind CommandKind, value uint32) []byte {
	buf = append(buf, byte(kind))
	return strconv.AppendUint(buf, uint64(value), 10)
}

// AppendEOL appends the frame terminator to buf.
func AppendEOL(buf []byte) []byte {
	return append(buf, byte(KindEOL))
}

// BuildCommand encodes a single command into a fresh buffer.
func BuildCommand(kind CommandKind, value uint32) []byte {
	return AppendCommand(nil, kind, value)
}
