package sensor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"tinygo.org/x/bluetooth"
)

const defaultScanTimeout = 15 * time.Second

var (
	aranet4Service      = mustParseUUID(aranet4ServiceUUID)
	aranet4ServiceShort = bluetooth.New16BitUUID(aranet4ServiceUUIDShort)
	aranet4Readings     = mustParseUUID(aranet4CurrentReadingsID)
)

func mustParseUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// BLE connects to an Aranet4 over Bluetooth LE.
type BLE struct {
	adapter     *bluetooth.Adapter
	name        string
	scanTimeout time.Duration

	enableOnce sync.Once
	enableErr  error
}

// NewBLE returns a transport using the default adapter. Devices are
// discovered by a local name starting with name ("Aranet4" when empty).
func NewBLE(name string, scanTimeout time.Duration) *BLE {
	if name == "" {
		name = aranet4NamePrefix
	}
	if scanTimeout <= 0 {
		scanTimeout = defaultScanTimeout
	}
	return &BLE{
		adapter:     bluetooth.DefaultAdapter,
		name:        name,
		scanTimeout: scanTimeout,
	}
}

func (b *BLE) enable() error {
	b.enableOnce.Do(func() {
		if err := b.adapter.Enable(); err != nil {
			b.enableErr = errors.Wrap(err, "bluetooth adapter enable failed")
		}
	})
	return b.enableErr
}

// Connect scans for the sensor, connects and locates the readings
// characteristic.
func (b *BLE) Connect(ctx context.Context, address string) (Conn, error) {
	if err := b.enable(); err != nil {
		return nil, err
	}

	result, err := b.scan(ctx, address)
	if err != nil {
		return nil, err
	}

	device, err := callContext(ctx, func() (bluetooth.Device, error) {
		return b.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", result.Address.String())
	}

	char, err := findReadingsCharacteristic(device)
	if err != nil {
		device.Disconnect()
		return nil, err
	}

	return &bleConn{device: device, readings: char}, nil
}

// scan blocks until a matching advertisement is seen, the scan window
// elapses or ctx is done.
func (b *BLE) scan(ctx context.Context, address string) (bluetooth.ScanResult, error) {
	found := make(chan bluetooth.ScanResult, 1)
	scanErr := make(chan error, 1)

	go func() {
		scanErr <- b.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !b.matches(result, address) {
				return
			}
			select {
			case found <- result:
			default:
			}
			adapter.StopScan()
		})
	}()

	timer := time.NewTimer(b.scanTimeout)
	defer timer.Stop()

	select {
	case result := <-found:
		<-scanErr
		return result, nil
	case err := <-scanErr:
		if err != nil {
			return bluetooth.ScanResult{}, errors.Wrap(err, "bluetooth scan failed")
		}
		return bluetooth.ScanResult{}, ErrSensorNotFound
	case <-timer.C:
		b.adapter.StopScan()
		<-scanErr
		return bluetooth.ScanResult{}, errors.Wrapf(ErrSensorNotFound, "no %q advertisement within %v", b.target(address), b.scanTimeout)
	case <-ctx.Done():
		b.adapter.StopScan()
		<-scanErr
		return bluetooth.ScanResult{}, ctx.Err()
	}
}

func (b *BLE) matches(result bluetooth.ScanResult, address string) bool {
	if address != "" {
		return strings.EqualFold(result.Address.String(), address)
	}
	return strings.HasPrefix(result.LocalName(), b.name)
}

func (b *BLE) target(address string) string {
	if address != "" {
		return address
	}
	return b.name
}

func findReadingsCharacteristic(device bluetooth.Device) (bluetooth.DeviceCharacteristic, error) {
	services, err := device.DiscoverServices(nil)
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, errors.Wrap(err, "service discovery failed")
	}

	for _, service := range services {
		if service.UUID() != aranet4Service && service.UUID() != aranet4ServiceShort {
			continue
		}
		chars, err := service.DiscoverCharacteristics([]bluetooth.UUID{aranet4Readings})
		if err != nil {
			return bluetooth.DeviceCharacteristic{}, errors.Wrap(err, "characteristic discovery failed")
		}
		for _, char := range chars {
			if char.UUID() == aranet4Readings {
				return char, nil
			}
		}
	}

	return bluetooth.DeviceCharacteristic{}, errors.New("aranet4 readings characteristic not found")
}

type bleConn struct {
	device   bluetooth.Device
	readings bluetooth.DeviceCharacteristic
}

func (c *bleConn) ReadCurrent(ctx context.Context) (Reading, error) {
	buf, err := callContext(ctx, func() ([]byte, error) {
		buf := make([]byte, 32)
		n, err := c.readings.Read(buf)
		return buf[:n], err
	})
	if err != nil {
		return Reading{}, errors.Wrap(err, "read current readings")
	}
	return DecodeAranet4(buf, time.Now().UTC())
}

// ReadHistory is not implemented over BLE; the Aranet4 history download is a
// multi-notification exchange the dashboard does not need.
func (c *bleConn) ReadHistory(ctx context.Context) (History, error) {
	return History{}, ErrHistoryUnsupported
}

func (c *bleConn) Close() error {
	return c.device.Disconnect()
}

// callContext runs fn and returns early with ctx's error if ctx ends first.
// fn keeps running in the background in that case.
func callContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
