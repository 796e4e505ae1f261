package komsi

import (
	"fmt"
	"strconv"
)

// Command is one decoded opcode/value pair.
type Command struct {
	Kind  CommandKind
	Value uint32
}

// Decode parses a stream of encoded commands back into opcode/value pairs.
// Frame terminators are accepted anywhere and carry no value; every other
// opcode must be followed by at least one ASCII digit. Unknown opcodes and
// malformed payloads are reported with their byte offset rather than
// skipped, since a desynchronized stream cannot be resynchronized by
// guessing.
func Decode(stream []byte) ([]Command, error) {
	var cmds []Command
	i := 0
	for i < len(stream) {
		kind := CommandKind(stream[i])
		if kind == KindEOL {
			i++
			continue
		}
		if !kind.Known() {
			return nil, fmt.Errorf("komsi: unknown opcode %s at offset %d", kind, i)
		}
		j := i + 1
		for j < len(stream) && stream[j] >= '0' && stream[j] <= '9' {
			j++
		}
		if j == i+1 {
			return nil, fmt.Errorf("komsi: command %s at offset %d has no payload", kind, i)
		}
		v, err := strconv.ParseUint(string(stream[i+1:j]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("komsi: command %s at offset %d: %w", kind, i, err)
		}
		cmds = append(cmds, Command{Kind: kind, Value: uint32(v)})
		i = j
	}
	return cmds, nil
}

// Apply replays decoded commands onto the state, reversing the encoding the
// field table defines: packed bitmask commands fan back out into their
// constituent flags, and the legacy per-lamp opcodes keep addressing their
// individual fields. Commands that do not address a state field (such as
// simulator_type) are rejected, as are values outside the target field's
// domain.
func (s *VehicleState) Apply(cmds []Command) error {
	for _, cmd := range cmds {
		if err := s.apply(cmd); err != nil {
			return err
		}
	}
	return nil
}

func (s *VehicleState) apply(cmd Command) error {
	// Packed groups first: the group opcode is shared by several fields,
	// so it never resolves through the single-field lookup below.
	if isGroupKind(cmd.Kind) {
		for f := Field(0); f < numFields; f++ {
			spec := &fieldTable[f]
			if spec.kind != cmd.Kind {
				continue
			}
			if err := s.Set(f, (cmd.Value>>spec.bit)&1); err != nil {
				return err
			}
		}
		return nil
	}
	if f, ok := fieldFromKind(cmd.Kind); ok {
		return s.Set(f, cmd.Value)
	}
	// Legacy per-lamp opcodes predate the packed door lamp command and
	// still address their individual fields.
	switch cmd.Kind {
	case KindLightsFrontDoor:
		return s.Set(FieldLightsFrontDoor, cmd.Value)
	case KindLightsSecondDoor:
		return s.Set(FieldLightsSecondDoor, cmd.Value)
	case KindLightsThirdDoor:
		return s.Set(FieldLightsThirdDoor, cmd.Value)
	}
	return fmt.Errorf("komsi: command %s does not address a state field", cmd.Kind)
}

func isGroupKind(kind CommandKind) bool {
	n := 0
	for f := Field(0); f < numFields; f++ {
		if fieldTable[f].kind == kind {
			n++
		}
	}
	return n > 1
}

func fieldFromKind(kind CommandKind) (Field, bool) {
	for f := Field(0); f < numFields; f++ {
		if spec := &fieldTable[f]; spec.kind == kind && spec.bit < 0 {
			return f, true
		}
	}
	return 0, false
}
