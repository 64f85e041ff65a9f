// RFCOMM stream sockets are a Linux Bluetooth facility; other
// platforms get the stub in rfcomm_stub.go.

//go:build linux

package link

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// NewRFCOMM returns a line-delimited link over an RFCOMM socket to the
// given Bluetooth address ("AA:BB:CC:DD:EE:FF") and channel.
func NewRFCOMM(addr string, channel uint8) *Stream {
	return newStream(addr, func(ctx context.Context) (deadlineRW, error) {
		return dialRFCOMM(ctx, addr, channel)
	})
}

type rfcommConn struct {
	fd int
}

func dialRFCOMM(ctx context.Context, addr string, channel uint8) (deadlineRW, error) {
	mac, err := parseBTAddr(addr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, fmt.Errorf("rfcomm socket: %v", err)
	}

	sa := &unix.SockaddrRFCOMM{Addr: mac, Channel: channel}

	// unix.Connect blocks; bound it with the caller's context so an
	// absent device cannot hang the loop.
	done := make(chan error, 1)
	go func() { done <- unix.Connect(fd, sa) }()
	select {
	case err = <-done:
	case <-ctx.Done():
		unix.Close(fd)
		return nil, ctx.Err()
	}
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rfcomm connect %s ch %d: %v", addr, channel, err)
	}
	return &rfcommConn{fd: fd}, nil
}

func (c *rfcommConn) Read(p []byte) (int, error) {
	n, err := unix.Read(c.fd, p)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return 0, os.ErrDeadlineExceeded
		}
		return 0, err
	}
	return n, nil
}

func (c *rfcommConn) Write(p []byte) (int, error) {
	return unix.Write(c.fd, p)
}

func (c *rfcommConn) SetReadTimeout(d time.Duration) error {
	tv := unix.NsecToTimeval(d.Nanoseconds())
	return unix.SetsockoptTimeval(c.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)
}

func (c *rfcommConn) Close() error {
	return unix.Close(c.fd)
}

// parseBTAddr converts "AA:BB:CC:DD:EE:FF" to the little-endian byte
// order SockaddrRFCOMM expects.
func parseBTAddr(addr string) ([6]byte, error) {
	var mac [6]byte
	parts := strings.Split(addr, ":")
	if len(parts) != 6 {
		return mac, fmt.Errorf("bad bluetooth address %q", addr)
	}
	for i, part := range parts {
		b, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return mac, fmt.Errorf("bad bluetooth address %q", addr)
		}
		mac[5-i] = byte(b)
	}
	return mac, nil
}
