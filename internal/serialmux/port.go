package serialmux

import (
	"io"
	"time"
)

// Porter is the minimal interface the bridge needs from a serial port.
// The abstraction keeps the transmit path testable without dashboard
// hardware on the bench.
type Porter interface {
	io.ReadWriter
	io.Closer
}

// PortMode holds the serial line parameters for a dashboard link.
type PortMode struct {
	BaudRate int
	DataBits int
	Parity   Parity
	StopBits StopBits
}

// Parity selects the serial parity scheme.
type Parity int

const (
	NoParity Parity = iota
	OddParity
	EvenParity
)

// StopBits selects the number of serial stop bits.
type StopBits int

const (
	OneStopBit StopBits = iota
	TwoStopBits
)

// DefaultPortMode returns the line parameters KOMSI dashboards ship with.
// The common builds are USB CDC microcontrollers, so the baud rate is mostly
// a formality, but it must still match the firmware's configuration.
func DefaultPortMode() *PortMode {
	return &PortMode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   NoParity,
		StopBits: OneStopBit,
	}
}

// TimeoutPorter is an optional extension for ports that support read
// timeouts.
type TimeoutPorter interface {
	Porter
	SetReadTimeout(timeout time.Duration) error
}
