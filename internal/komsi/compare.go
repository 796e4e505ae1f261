package komsi

import "fmt"

// ChangeLogger observes the commands Compare emits. Implementations are
// supplied by the host application; the encoder never owns one. A nil logger
// means no observation.
type ChangeLogger interface {
	// Log receives one human-readable line per emitted command, in
	// emission order.
	Log(msg string)
}

// Compare encodes the ordered command frame that transforms a receiver
// holding state s into state next. Fields are visited in protocol order;
// unchanged fields emit nothing unless force is set, so the frame length is
// proportional to the number of changed fields. With force, every field (and
// every bitmask group, once) is emitted regardless of equality, which is how
// a receiver is resynchronized after startup or a suspected desync.
//
// Neither input is mutated. An empty result means the states were identical
// and no resync was forced; no frame terminator is emitted in that case.
// Logger calls mirror the emitted commands one to one; a misbehaving logger
// cannot alter or truncate the encoded output.
func (s *VehicleState) Compare(next *VehicleState, force bool, logger ChangeLogger) []byte {
	var buf []byte
	for f := Field(0); f < numFields; f++ {
		spec := &fieldTable[f]
		if spec.bit > 0 {
			// Non-anchor member of a bitmask group; handled when
			// the anchor field is visited.
			continue
		}
		if spec.bit == 0 {
			old, now := s.packed(spec.kind), next.packed(spec.kind)
			if old != now || force {
				observe(logger, spec.kind.String(), old, now)
				buf = AppendCommand(buf, spec.kind, now)
			}
			continue
		}
		if s.values[f] != next.values[f] || force {
			observe(logger, spec.name, s.values[f], next.values[f])
			buf = AppendCommand(buf, spec.kind, next.values[f])
		}
	}
	if len(buf) > 0 {
		buf = AppendEOL(buf)
	}
	return buf
}

// packed assembles the transmitted value of a bitmask group from its
// constituent flags.
func (s *VehicleState) packed(kind CommandKind) uint32 {
	var v uint32
	for f := Field(0); f < numFields; f++ {
		if spec := &fieldTable[f]; spec.kind == kind && spec.bit >= 0 {
			v |= s.values[f] << spec.bit
		}
	}
	return v
}

// observe forwards one change description to the logger. Failures inside the
// supplied sink are contained here so they can never abort or corrupt the
// encoding pass.
func observe(logger ChangeLogger, name string, old, now uint32) {
	if logger == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	logger.Log(fmt.Sprintf("%s: %d -> %d", name, old, now))
}
