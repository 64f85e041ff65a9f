package link

import (
	"context"
	"os"
	"time"

	"go.bug.st/serial"
)

// NewSerial returns a line-delimited link over a local serial port
// (including rfcomm-bound ttys), e.g. "/dev/ttyACM0" at 115200 baud.
func NewSerial(portName string, baud int) *Stream {
	return newStream(portName, func(ctx context.Context) (deadlineRW, error) {
		mode := &serial.Mode{BaudRate: baud}
		port, err := serial.Open(portName, mode)
		if err != nil {
			return nil, err
		}
		return &serialConn{port: port}, nil
	})
}

type serialConn struct {
	port serial.Port
}

// Read maps the library's timeout signal (0 bytes, nil error) onto a
// deadline error so the stream reader fails instead of spinning.
func (c *serialConn) Read(p []byte) (int, error) {
	n, err := c.port.Read(p)
	if n == 0 && err == nil {
		return 0, os.ErrDeadlineExceeded
	}
	return n, err
}

func (c *serialConn) Write(p []byte) (int, error) {
	return c.port.Write(p)
}

func (c *serialConn) SetReadTimeout(d time.Duration) error {
	return c.port.SetReadTimeout(d)
}

func (c *serialConn) Close() error {
	return c.port.Close()
}
