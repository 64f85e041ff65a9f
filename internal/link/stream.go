package link

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/proforce-air/pidlink/internal/wire"
)

const defaultIOTimeout = 500 * time.Millisecond

// deadlineRW is the transport half a stream link sits on. Reads must
// fail with a timeout error once the configured read timeout elapses.
type deadlineRW interface {
	io.ReadWriteCloser
	SetReadTimeout(d time.Duration) error
}

// Stream exchanges newline-delimited values over a byte stream. Both
// the RFCOMM socket and serial port variants are Streams with
// different dialers.
type Stream struct {
	addr    string
	dial    func(ctx context.Context) (deadlineRW, error)
	timeout time.Duration

	conn deadlineRW
	br   *bufio.Reader
}

func newStream(addr string, dial func(ctx context.Context) (deadlineRW, error)) *Stream {
	return &Stream{addr: addr, dial: dial, timeout: defaultIOTimeout}
}

// SetTimeout bounds a single read when the caller's context carries no
// deadline of its own.
func (s *Stream) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

func (s *Stream) Connect(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}
	conn, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, s.addr, err)
	}
	s.conn = conn
	s.br = bufio.NewReader(conn)
	return nil
}

// ReadValue reads exactly one line and parses it as a value.
func (s *Stream) ReadValue(ctx context.Context) (float64, error) {
	if s.conn == nil {
		return 0, ErrNotConnected
	}
	if err := s.conn.SetReadTimeout(s.readTimeout(ctx)); err != nil {
		return 0, fmt.Errorf("read %s: %v", s.addr, err)
	}
	line, err := s.br.ReadBytes('\n')
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", s.addr, err)
	}
	return wire.ParseValue(line)
}

func (s *Stream) WriteValue(ctx context.Context, v float64) error {
	if s.conn == nil {
		return ErrNotConnected
	}
	if _, err := s.conn.Write(wire.FormatLine(v)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWriteFailed, s.addr, err)
	}
	return nil
}

func (s *Stream) Close() error {
	if s.conn == nil {
		return nil
	}
	conn := s.conn
	s.conn = nil
	s.br = nil
	return conn.Close()
}

func (s *Stream) Connected() bool { return s.conn != nil }
func (s *Stream) Addr() string    { return s.addr }

func (s *Stream) readTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			return d
		}
	}
	return s.timeout
}
