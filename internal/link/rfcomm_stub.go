// RFCOMM stub for non-Linux platforms.

//go:build !linux

package link

import (
	"context"
	"errors"
)

var errRFCOMMUnsupported = errors.New("rfcomm: not supported on this platform")

// NewRFCOMM returns a link whose Connect always fails; RFCOMM sockets
// are only available on Linux.
func NewRFCOMM(addr string, channel uint8) *Stream {
	return newStream(addr, func(ctx context.Context) (deadlineRW, error) {
		return nil, errRFCOMMUnsupported
	})
}
