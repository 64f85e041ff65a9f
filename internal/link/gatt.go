package link

import (
	"context"
	"fmt"

	"github.com/proforce-air/pidlink/internal/wire"
)

// GATTClient is the narrow surface the GATT link needs from a BLE
// stack. Connect performs service/characteristic discovery and returns
// the discovered characteristic UUIDs so the operator can pick one.
type GATTClient interface {
	Connect(ctx context.Context, addr string) ([]string, error)
	Read(ctx context.Context, characteristic string) ([]byte, error)
	Write(ctx context.Context, characteristic string, data []byte) error
	Disconnect() error
}

// GATT exchanges values through a single GATT characteristic.
type GATT struct {
	client         GATTClient
	addr           string
	characteristic string
	chars          []string
	connected      bool
}

func NewGATT(client GATTClient, addr, characteristic string) *GATT {
	return &GATT{
		client:         client,
		addr:           addr,
		characteristic: characteristic,
	}
}

// Connect opens the BLE connection and runs discovery. A second call
// while connected is a no-op.
func (g *GATT) Connect(ctx context.Context) error {
	if g.connected {
		return nil
	}
	chars, err := g.client.Connect(ctx, g.addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, g.addr, err)
	}
	g.chars = chars
	g.connected = true
	return nil
}

// Characteristics returns the UUIDs discovered during Connect.
func (g *GATT) Characteristics() []string {
	out := make([]string, len(g.chars))
	copy(out, g.chars)
	return out
}

// SelectCharacteristic switches the characteristic used for value
// exchange. Takes effect on the next read or write.
func (g *GATT) SelectCharacteristic(uuid string) {
	g.characteristic = uuid
}

func (g *GATT) ReadValue(ctx context.Context) (float64, error) {
	if !g.connected {
		return 0, ErrNotConnected
	}
	data, err := g.client.Read(ctx, g.characteristic)
	if err != nil {
		return 0, fmt.Errorf("read characteristic %s: %w", g.characteristic, err)
	}
	return wire.ParseValue(data)
}

func (g *GATT) WriteValue(ctx context.Context, v float64) error {
	if !g.connected {
		return ErrNotConnected
	}
	if err := g.client.Write(ctx, g.characteristic, wire.FormatValue(v)); err != nil {
		return fmt.Errorf("%w: characteristic %s: %v", ErrWriteFailed, g.characteristic, err)
	}
	return nil
}

func (g *GATT) Close() error {
	if !g.connected {
		return nil
	}
	g.connected = false
	return g.client.Disconnect()
}

func (g *GATT) Connected() bool { return g.connected }
func (g *GATT) Addr() string    { return g.addr }
