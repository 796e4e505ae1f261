package komsi

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRoundTripFullDump(t *testing.T) {
	old := New()
	next := New()
	mustSet(t, next, FieldIgnition, 1)
	mustSet(t, next, FieldEngine, 1)
	mustSet(t, next, FieldIndicator, 2)
	mustSet(t, next, FieldLightsFrontDoor, 1)
	mustSet(t, next, FieldLightsFourthDoor, 1)
	mustSet(t, next, FieldFuel, 88)
	mustSet(t, next, FieldSpeed, 47)
	mustSet(t, next, FieldRPM, 1450)
	mustSet(t, next, FieldWater, 90)
	mustSet(t, next, FieldGearSelector, 3)

	frame := old.Compare(next, true, nil)
	cmds, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	rebuilt := New()
	if err := rebuilt.Apply(cmds); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !rebuilt.Equal(next) {
		t.Errorf("round trip mismatch:\n%s", cmp.Diff(next, rebuilt, cmp.AllowUnexported(VehicleState{})))
	}
}

func TestDecodeMultipleFrames(t *testing.T) {
	var stream []byte
	stream = AppendCommand(stream, KindIgnition, 1)
	stream = AppendEOL(stream)
	stream = AppendCommand(stream, KindSpeed, 12)
	stream = AppendEOL(stream)

	cmds, err := Decode(stream)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []Command{{KindIgnition, 1}, {KindSpeed, 12}}
	if diff := cmp.Diff(want, cmds); diff != "" {
		t.Errorf("decoded stream mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		stream []byte
	}{
		{"unknown opcode", []byte{'#', '1'}},
		{"missing payload", []byte{65}},
		{"payload on next opcode", []byte{65, 66, '1'}},
		{"payload overflow", append([]byte{121}, []byte("99999999999")...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.stream); err == nil {
				t.Errorf("Decode(%v) succeeded, want error", tt.stream)
			}
		})
	}
}

func TestApplyLegacyDoorLampOpcodes(t *testing.T) {
	s := New()
	cmds := []Command{
		{KindLightsFrontDoor, 1},
		{KindLightsThirdDoor, 1},
	}
	if err := s.Apply(cmds); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if s.Get(FieldLightsFrontDoor) != 1 || s.Get(FieldLightsThirdDoor) != 1 {
		t.Error("legacy per-lamp opcodes should address their individual fields")
	}
	if s.Get(FieldLightsSecondDoor) != 0 {
		t.Error("legacy opcode leaked into a neighbouring lamp")
	}
}

func TestApplyPackedDoorLamps(t *testing.T) {
	s := New()
	if err := s.Apply([]Command{{KindDoorLamps, 0b1010}}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := map[Field]uint32{
		FieldLightsFrontDoor:  0,
		FieldLightsSecondDoor: 1,
		FieldLightsThirdDoor:  0,
		FieldLightsFourthDoor: 1,
	}
	for f, v := range want {
		if got := s.Get(f); got != v {
			t.Errorf("%s = %d, want %d", f, got, v)
		}
	}
}

func TestApplyRejectsBadCommands(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
	}{
		{"no state field", Command{KindSimulatorType, 1}},
		{"out of domain", Command{KindSpeed, 501}},
		{"flag overflow", Command{KindIgnition, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := New().Apply([]Command{tt.cmd}); err == nil {
				t.Errorf("Apply(%s=%d) succeeded, want error", tt.cmd.Kind, tt.cmd.Value)
			}
		})
	}
}
