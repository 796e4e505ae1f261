package serialmux

import (
	"fmt"

	"go.bug.st/serial"
)

// Open opens the serial port at path with the given mode and wraps it in a
// Mux.
func Open(path string, mode *PortMode) (*Mux, error) {
	sm, err := serialMode(mode)
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, sm)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return New(port), nil
}

func serialMode(mode *PortMode) (*serial.Mode, error) {
	if mode == nil {
		mode = DefaultPortMode()
	}
	if mode.BaudRate <= 0 {
		return nil, fmt.Errorf("invalid baud rate %d", mode.BaudRate)
	}

	sm := &serial.Mode{
		BaudRate: mode.BaudRate,
		DataBits: mode.DataBits,
	}

	switch mode.Parity {
	case NoParity:
		sm.Parity = serial.NoParity
	case OddParity:
		sm.Parity = serial.OddParity
	case EvenParity:
		sm.Parity = serial.EvenParity
	default:
		return nil, fmt.Errorf("invalid parity %d", mode.Parity)
	}

	switch mode.StopBits {
	case OneStopBit:
		sm.StopBits = serial.OneStopBit
	case TwoStopBits:
		sm.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("invalid stop bits %d", mode.StopBits)
	}

	return sm, nil
}
