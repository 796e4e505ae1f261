// Package serialmux manages the serial link to a KOMSI dashboard: it
// serializes frame writes from multiple producers onto one port and fans any
// diagnostic lines the dashboard prints back out to subscribers.
package serialmux

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
)

// ErrShortWrite reports that a frame was only partially written to the port.
// A partial KOMSI frame desynchronizes the receiver, so the caller should
// schedule a forced full dump.
var ErrShortWrite = fmt.Errorf("short write to serial port")

// Mux owns a single dashboard serial port.
type Mux struct {
	port         Porter
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	writeMu      sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// Muxer is the subset of Mux the rest of the application consumes.
type Muxer interface {
	// WriteFrame writes one complete KOMSI frame to the port.
	WriteFrame(frame []byte) error
	// Subscribe creates a channel receiving diagnostic lines printed by
	// the dashboard. The returned ID identifies the channel when
	// unsubscribing.
	Subscribe() (string, chan string)
	// Unsubscribe removes and closes a subscriber channel.
	Unsubscribe(id string)
	// Monitor reads dashboard output until the context ends.
	Monitor(ctx context.Context) error
	// Close closes all subscriber channels and the port.
	Close() error
}

// New creates a Mux on an already-open port.
func New(port Porter) *Mux {
	return &Mux{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// randomID generates a random subscriber ID (8 random bytes, hex encoded).
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// WriteFrame writes one encoded frame to the port. Empty frames are a valid
// steady-state tick and write nothing. Writes from concurrent producers are
// serialized so frames never interleave on the wire.
func (m *Mux) WriteFrame(frame []byte) error {
	if len(frame) == 0 {
		return nil
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	n, err := m.port.Write(frame)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if n != len(frame) {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrShortWrite, n, len(frame))
	}
	return nil
}

func (m *Mux) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string)
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	m.subscribers[id] = ch
	return id, ch
}

func (m *Mux) Unsubscribe(id string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// Monitor reads lines from the dashboard and distributes them to
// subscribers. KOMSI is host-to-peripheral, but dashboard firmwares print
// boot banners and fault reports on the same line, which is the only
// visibility into the far end.
func (m *Mux) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(m.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking scan.Scan lives in its own goroutine so the outer loop
	// can await both lines and context cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				if err := scan.Err(); err != nil {
					return err
				}
				return nil
			}
			m.closingMu.Lock()
			if m.closing {
				m.closingMu.Unlock()
				return nil
			}
			m.closingMu.Unlock()

			m.subscriberMu.Lock()
			for _, ch := range m.subscribers {
				select {
				case ch <- line:
				default:
					// a slow subscriber must not stall the port
				}
			}
			m.subscriberMu.Unlock()
		}
	}
}

func (m *Mux) Close() error {
	m.closingMu.Lock()
	m.closing = true
	m.closingMu.Unlock()

	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	return m.port.Close()
}
