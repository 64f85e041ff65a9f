package link

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tinygo.org/x/bluetooth"
)

const scanWindow = 10 * time.Second

// BLEClient is the production GATTClient backed by the platform
// Bluetooth stack.
type BLEClient struct {
	adapter *bluetooth.Adapter
	device  bluetooth.Device
	chars   map[string]bluetooth.DeviceCharacteristic
}

func NewBLEClient() (*BLEClient, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable bluetooth adapter: %v", err)
	}
	return &BLEClient{adapter: adapter}, nil
}

// Connect resolves addr via a scan, connects, and discovers every
// readable characteristic. Returns the discovered characteristic UUIDs.
func (c *BLEClient) Connect(ctx context.Context, addr string) ([]string, error) {
	target, err := c.resolve(ctx, addr)
	if err != nil {
		return nil, err
	}

	params := bluetooth.ConnectionParams{}
	if deadline, ok := ctx.Deadline(); ok {
		params.ConnectionTimeout = bluetooth.NewDuration(time.Until(deadline))
	}
	device, err := c.adapter.Connect(target, params)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %v", addr, err)
	}
	c.device = device

	services, err := device.DiscoverServices(nil)
	if err != nil {
		device.Disconnect()
		return nil, fmt.Errorf("discover services on %s: %v", addr, err)
	}

	c.chars = make(map[string]bluetooth.DeviceCharacteristic)
	var uuids []string
	for _, svc := range services {
		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			continue
		}
		for _, char := range chars {
			id := strings.ToLower(char.UUID().String())
			c.chars[id] = char
			uuids = append(uuids, id)
		}
	}
	return uuids, nil
}

func (c *BLEClient) Read(ctx context.Context, characteristic string) ([]byte, error) {
	char, ok := c.chars[strings.ToLower(characteristic)]
	if !ok {
		return nil, fmt.Errorf("characteristic %s not discovered", characteristic)
	}
	out := make(chan []byte, 1)
	err := c.await(ctx, func() error {
		var buf [64]byte
		n, err := char.Read(buf[:])
		if err != nil {
			return err
		}
		out <- append([]byte(nil), buf[:n]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return <-out, nil
}

func (c *BLEClient) Write(ctx context.Context, characteristic string, data []byte) error {
	char, ok := c.chars[strings.ToLower(characteristic)]
	if !ok {
		return fmt.Errorf("characteristic %s not discovered", characteristic)
	}
	return c.await(ctx, func() error {
		_, err := char.WriteWithoutResponse(data)
		return err
	})
}

func (c *BLEClient) Disconnect() error {
	c.chars = nil
	return c.device.Disconnect()
}

// ScanResult is one advertising device seen during Scan.
type ScanResult struct {
	Addr string
	Name string
	RSSI int16
}

// Scan lists advertising devices until the context expires or the
// window elapses.
func (c *BLEClient) Scan(ctx context.Context) ([]ScanResult, error) {
	seen := make(map[string]ScanResult)
	stop := time.AfterFunc(scanWindow, func() { c.adapter.StopScan() })
	defer stop.Stop()
	go func() {
		<-ctx.Done()
		c.adapter.StopScan()
	}()

	err := c.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		addr := strings.ToUpper(result.Address.String())
		if _, ok := seen[addr]; !ok {
			seen[addr] = ScanResult{Addr: addr, Name: result.LocalName(), RSSI: result.RSSI}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("ble scan: %v", err)
	}

	results := make([]ScanResult, 0, len(seen))
	for _, r := range seen {
		results = append(results, r)
	}
	return results, nil
}

// resolve scans for the advertising device with the given address.
// Address objects cannot be constructed portably from a string, so the
// scan doubles as resolution.
func (c *BLEClient) resolve(ctx context.Context, addr string) (bluetooth.Address, error) {
	var (
		target bluetooth.Address
		found  bool
	)
	want := strings.ToUpper(addr)

	stop := time.AfterFunc(scanWindow, func() { c.adapter.StopScan() })
	defer stop.Stop()
	go func() {
		<-ctx.Done()
		c.adapter.StopScan()
	}()

	err := c.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if strings.ToUpper(result.Address.String()) == want {
			target = result.Address
			found = true
			adapter.StopScan()
		}
	})
	if err != nil {
		return target, fmt.Errorf("ble scan: %v", err)
	}
	if !found {
		return target, fmt.Errorf("device %s not found", addr)
	}
	return target, nil
}

// await runs a blocking BLE call bounded by ctx. The stack has no
// cancellable call surface, so on timeout the call is abandoned and
// its result discarded.
func (c *BLEClient) await(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
