// Package link provides the transport abstraction between the control
// loop and the remote microcontroller. Two wire families conform to
// the same interface: GATT characteristic read/write over Bluetooth
// Low Energy, and line-delimited streams (RFCOMM sockets and serial
// ports). Values travel as UTF-8 float text in both directions.
package link

import "context"

// Link is the capability set the control loop depends on. Connect and
// Close are idempotent. All operations must respect the context
// deadline so an unresponsive device degrades to an error instead of
// stalling the loop.
type Link interface {
	Connect(ctx context.Context) error
	ReadValue(ctx context.Context) (float64, error)
	WriteValue(ctx context.Context, v float64) error
	Close() error
	Connected() bool
	Addr() string
}
