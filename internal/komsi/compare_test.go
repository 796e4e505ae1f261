package komsi

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// recordingLogger captures change descriptions in call order.
type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Log(msg string) {
	l.lines = append(l.lines, msg)
}

// panicLogger simulates a broken observer sink.
type panicLogger struct{}

func (panicLogger) Log(string) {
	panic("log sink closed")
}

func mustSet(t *testing.T, s *VehicleState, f Field, v uint32) {
	t.Helper()
	if err := s.Set(f, v); err != nil {
		t.Fatalf("Set(%s, %d): %v", f, v, err)
	}
}

func TestCompareIdenticalStatesIsEmpty(t *testing.T) {
	old := New()
	mustSet(t, old, FieldIgnition, 1)
	mustSet(t, old, FieldSpeed, 73)

	logger := &recordingLogger{}
	buf := old.Compare(old.Clone(), false, logger)
	if len(buf) != 0 {
		t.Errorf("no-op diff emitted %v, want empty buffer", buf)
	}
	if len(logger.lines) != 0 {
		t.Errorf("no-op diff logged %v, want no calls", logger.lines)
	}
}

func TestCompareEmitsKnownScenario(t *testing.T) {
	old := New()
	next := old.Clone()
	mustSet(t, next, FieldIgnition, 1)
	mustSet(t, next, FieldSpeed, 50)

	logger := &recordingLogger{}
	buf := old.Compare(next, false, logger)

	// Ignition 'A' + "1", speed 'y' + "50", one frame terminator.
	want := []byte{65, '1', 121, '5', '0', 10}
	if !bytes.Equal(buf, want) {
		t.Errorf("frame = %v, want %v", buf, want)
	}

	wantLog := []string{"ignition: 0 -> 1", "speed: 0 -> 50"}
	if diff := cmp.Diff(wantLog, logger.lines); diff != "" {
		t.Errorf("logger calls mismatch (-want +got):\n%s", diff)
	}
}

func TestCompareDoesNotMutateInputs(t *testing.T) {
	old := New()
	next := old.Clone()
	mustSet(t, next, FieldEngine, 1)

	oldCopy := old.Clone()
	nextCopy := next.Clone()
	old.Compare(next, true, nil)

	if !old.Equal(oldCopy) {
		t.Error("Compare mutated its receiver")
	}
	if !next.Equal(nextCopy) {
		t.Error("Compare mutated the candidate state")
	}
}

func TestCompareMinimality(t *testing.T) {
	for _, f := range Fields() {
		old := New()
		next := old.Clone()
		mustSet(t, next, f, 1)

		logger := &recordingLogger{}
		buf := old.Compare(next, false, logger)

		cmds, err := Decode(buf)
		if err != nil {
			t.Fatalf("%s: decode: %v", f, err)
		}
		if len(cmds) != 1 {
			t.Errorf("%s: single-field change emitted %d commands, want 1", f, len(cmds))
		}
		if len(logger.lines) != 1 {
			t.Errorf("%s: single-field change logged %d lines, want 1", f, len(logger.lines))
		}
		if buf[len(buf)-1] != byte(KindEOL) {
			t.Errorf("%s: frame does not end with EOL", f)
		}
	}
}

// commandsPerFullDump is every individually-transmitted field plus one packed
// command for the door lamp group.
const commandsPerFullDump = NumFields - 4 + 1

func TestCompareForceFullDump(t *testing.T) {
	old := New()
	mustSet(t, old, FieldFuel, 55)

	// Equal states still dump every field/group when forced.
	buf := old.Compare(old.Clone(), true, nil)
	cmds, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cmds) != commandsPerFullDump {
		t.Errorf("force dump emitted %d commands, want %d", len(cmds), commandsPerFullDump)
	}
	if cmds[len(cmds)-1].Kind != KindGearSelector {
		t.Errorf("last command = %s, want gear_selector", cmds[len(cmds)-1].Kind)
	}

	// The dump carries current values, changed or not.
	for _, cmd := range cmds {
		if cmd.Kind == KindFuel && cmd.Value != 55 {
			t.Errorf("fuel dumped as %d, want 55", cmd.Value)
		}
	}
}

func TestCompareOrderIsStable(t *testing.T) {
	// Engine precedes fuel in protocol order no matter which was mutated
	// first by the caller.
	old := New()
	next := old.Clone()
	mustSet(t, next, FieldFuel, 90)
	mustSet(t, next, FieldEngine, 1)

	cmds, err := Decode(old.Compare(next, false, nil))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []Command{{KindEngine, 1}, {KindFuel, 90}}
	if diff := cmp.Diff(want, cmds); diff != "" {
		t.Errorf("command order mismatch (-want +got):\n%s", diff)
	}
}

func TestCompareIsDeterministic(t *testing.T) {
	old := New()
	next := old.Clone()
	mustSet(t, next, FieldIgnition, 1)
	mustSet(t, next, FieldIndicator, 2)
	mustSet(t, next, FieldSpeed, 37)

	l1, l2 := &recordingLogger{}, &recordingLogger{}
	b1 := old.Compare(next, false, l1)
	b2 := old.Compare(next, false, l2)

	if !bytes.Equal(b1, b2) {
		t.Errorf("identical inputs produced different frames: %v vs %v", b1, b2)
	}
	if diff := cmp.Diff(l1.lines, l2.lines); diff != "" {
		t.Errorf("identical inputs produced different logger sequences:\n%s", diff)
	}
}

func TestCompareDoorLampGroupPacksIntoOneCommand(t *testing.T) {
	old := New()
	next := old.Clone()
	mustSet(t, next, FieldLightsFrontDoor, 1)
	mustSet(t, next, FieldLightsThirdDoor, 1)

	logger := &recordingLogger{}
	cmds, err := Decode(old.Compare(next, false, logger))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Two lamps changed together: exactly one packed command, not two.
	want := []Command{{KindDoorLamps, 0b0101}}
	if diff := cmp.Diff(want, cmds); diff != "" {
		t.Errorf("door lamp group mismatch (-want +got):\n%s", diff)
	}
	wantLog := []string{"door_lamps: 0 -> 5"}
	if diff := cmp.Diff(wantLog, logger.lines); diff != "" {
		t.Errorf("logger calls mismatch (-want +got):\n%s", diff)
	}
}

func TestCompareGroupEmissionPosition(t *testing.T) {
	// The packed door lamp command sits where its anchor field sits in
	// protocol order: after the stop brake lamp, before the high beam.
	old := New()
	next := old.Clone()
	mustSet(t, next, FieldLightsStopBrake, 1)
	mustSet(t, next, FieldLightsSecondDoor, 1)
	mustSet(t, next, FieldLightsHighBeam, 1)

	cmds, err := Decode(old.Compare(next, false, nil))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []Command{
		{KindLightsStopBrake, 1},
		{KindDoorLamps, 0b0010},
		{KindLightsHighBeam, 1},
	}
	if diff := cmp.Diff(want, cmds); diff != "" {
		t.Errorf("emission order mismatch (-want +got):\n%s", diff)
	}
}

func TestComparePanickingLoggerDoesNotCorruptOutput(t *testing.T) {
	old := New()
	next := old.Clone()
	mustSet(t, next, FieldIgnition, 1)
	mustSet(t, next, FieldSpeed, 50)

	quiet := old.Compare(next, false, nil)
	noisy := old.Compare(next, false, panicLogger{})

	if !bytes.Equal(quiet, noisy) {
		t.Errorf("panicking logger altered the frame: %v vs %v", noisy, quiet)
	}
}
