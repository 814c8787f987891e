package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// DefaultPort is the simulator's telemetry port.
const DefaultPort = 4444

// maxDatagram bounds a single read; both layouts fit well inside it.
const maxDatagram = 1024

// Handler receives every datagram with its arrival time. The buffer is reused
// after Handler returns.
type Handler func(data []byte, received time.Time)

// Listener reads UDP datagrams and hands each one to a Handler.
type Listener struct {
	conn   net.PacketConn
	logger Logger
}

// Listen binds addr, e.g. ":4444".
func Listen(addr string, logger Logger) (*Listener, error) {
	if logger == nil {
		logger = nopLogger{}
	}
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	logger.Info("Listening for telemetry on %s", conn.LocalAddr())
	return &Listener{conn: conn, logger: logger}, nil
}

func (l *Listener) Addr() net.Addr { return l.conn.LocalAddr() }

// Serve blocks until ctx is cancelled or the socket fails.
func (l *Listener) Serve(ctx context.Context, handle Handler) error {
	defer l.conn.Close()
	go func() {
		<-ctx.Done()
		_ = l.conn.Close()
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := l.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("telemetry read: %w", err)
		}
		l.logger.Debug("UDP datagram from %s, size=%d", from, n)
		handle(buf[:n], time.Now())
	}
}

func (l *Listener) Close() error {
	return l.conn.Close()
}
