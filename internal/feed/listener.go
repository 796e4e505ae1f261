package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"
)

// Listener receives telemetry datagrams from the simulator over UDP.
type Listener struct {
	conn  *net.UDPConn
	lines chan string
	log   zerolog.Logger
}

// Listen binds the feed socket.
func Listen(addr string, log zerolog.Logger) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve feed address %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %q: %w", addr, err)
	}
	return &Listener{
		conn:  conn,
		lines: make(chan string),
		log:   log,
	}, nil
}

// Addr returns the bound socket address, useful when listening on an
// ephemeral port.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Lines returns the channel feed lines are delivered on. The channel is
// closed when Run returns.
func (l *Listener) Lines() <-chan string {
	return l.lines
}

// Run reads datagrams until the context ends. One datagram carries one feed
// line; trailing newlines are tolerated.
func (l *Listener) Run(ctx context.Context) error {
	defer close(l.lines)

	// Unblock the read loop when the context ends.
	go func() {
		<-ctx.Done()
		l.conn.Close()
	}()

	buf := make([]byte, 2048)
	for {
		n, remote, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			return fmt.Errorf("read feed datagram: %w", err)
		}

		line := strings.TrimRight(string(buf[:n]), "\r\n")
		l.log.Trace().Str("remote", remote.String()).Str("line", line).Msg("feed datagram")

		select {
		case l.lines <- line:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close releases the socket. Run returns once the socket is closed.
func (l *Listener) Close() error {
	return l.conn.Close()
}
