// Package usb locates a DSI imager on the USB bus and exposes its three bulk
// endpoints as a dsi.Bus.
//
// Example usage:
//
//	sel, err := usb.ParseSelector("usb:1,7")
//	if err != nil { return err }
//	bus, err := usb.Open(sel)
//	if err != nil { return err }
//	defer bus.Close()
package usb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/google/gousb"

	"github.com/mklimuk/dsi"
)

const (
	VendorID  gousb.ID = 0x156c
	ProductID gousb.ID = 0x0101
)

// Endpoint numbers without the direction bit: command OUT 0x01, ack IN 0x81, pixel IN 0x86.
const (
	commandEndpoint = 1
	ackEndpoint     = 1
	pixelEndpoint   = 6
)

const (
	configNumber    = 1
	interfaceNumber = 0
	altSetting      = 0
)

var (
	ErrDeviceNotFound  = errors.New("DSI imager not found")
	ErrAmbiguousDevice = errors.New("more than one DSI imager connected, select one with usb:BUS,ADDR")
	ErrInvalidSelector = errors.New("invalid device selector")
)

// Selector narrows the device search to one bus address. Zero fields match any device.
type Selector struct {
	Bus     int
	Address int
}

// ParseSelector accepts an empty string or "usb:BUS,ADDR".
func ParseSelector(s string) (Selector, error) {
	if s == "" {
		return Selector{}, nil
	}
	rest, ok := strings.CutPrefix(s, "usb:")
	if !ok {
		return Selector{}, fmt.Errorf("%q: %w", s, ErrInvalidSelector)
	}
	busStr, addrStr, ok := strings.Cut(rest, ",")
	if !ok {
		return Selector{}, fmt.Errorf("%q: %w", s, ErrInvalidSelector)
	}
	bus, err := strconv.Atoi(busStr)
	if err != nil || bus <= 0 {
		return Selector{}, fmt.Errorf("%q: bad bus number: %w", s, ErrInvalidSelector)
	}
	addr, err := strconv.Atoi(addrStr)
	if err != nil || addr <= 0 {
		return Selector{}, fmt.Errorf("%q: bad device address: %w", s, ErrInvalidSelector)
	}
	return Selector{Bus: bus, Address: addr}, nil
}

func (s Selector) String() string {
	if s.Bus == 0 && s.Address == 0 {
		return "any"
	}
	return fmt.Sprintf("usb:%d,%d", s.Bus, s.Address)
}

func (s Selector) match(bus, address int) bool {
	return (s.Bus == 0 || s.Bus == bus) && (s.Address == 0 || s.Address == address)
}

// IsDSI reports whether the descriptor identifies a DSI imager.
func IsDSI(desc *gousb.DeviceDesc) bool {
	return desc.Vendor == VendorID && desc.Product == ProductID
}

// Info describes one enumerated USB device.
type Info struct {
	Bus     int
	Address int
	Port    int
	Vendor  gousb.ID
	Product gousb.ID
	Speed   gousb.Speed
	DSI     bool
}

// List enumerates the devices on all buses without opening them.
func List() ([]Info, error) {
	uctx := gousb.NewContext()
	defer func() { _ = uctx.Close() }()
	var infos []Info
	_, err := uctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		infos = append(infos, Info{
			Bus:     desc.Bus,
			Address: desc.Address,
			Port:    desc.Port,
			Vendor:  desc.Vendor,
			Product: desc.Product,
			Speed:   desc.Speed,
			DSI:     IsDSI(desc),
		})
		return false
	})
	if err != nil {
		return infos, fmt.Errorf("could not enumerate usb devices: %w", err)
	}
	return infos, nil
}

var _ dsi.Bus = &Device{}

// Device owns the libusb handles of an opened imager.
type Device struct {
	mx     sync.Mutex
	usb    *gousb.Context
	dev    *gousb.Device
	cfg    *gousb.Config
	intf   *gousb.Interface
	cmd    *gousb.OutEndpoint
	ack    *gousb.InEndpoint
	pixels *gousb.InEndpoint
	closed bool
}

// Open finds the imager matching sel, selects configuration 1 and claims
// interface 0. Halted endpoints are not cleared here.
func Open(sel Selector) (*Device, error) {
	uctx := gousb.NewContext()
	devs, err := uctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return IsDSI(desc) && sel.match(desc.Bus, desc.Address)
	})
	if err != nil && len(devs) == 0 {
		_ = uctx.Close()
		return nil, fmt.Errorf("could not open usb device: %w", err)
	}
	if err != nil {
		slog.Warn("some usb devices could not be opened", "error", err)
	}
	switch {
	case len(devs) == 0:
		_ = uctx.Close()
		return nil, fmt.Errorf("selector %s: %w", sel, ErrDeviceNotFound)
	case len(devs) > 1:
		for _, dev := range devs {
			_ = dev.Close()
		}
		_ = uctx.Close()
		return nil, ErrAmbiguousDevice
	}
	d := &Device{usb: uctx, dev: devs[0]}
	if err := d.claim(); err != nil {
		_ = d.release()
		return nil, err
	}
	slog.Debug("imager opened", "bus", d.dev.Desc.Bus, "address", d.dev.Desc.Address, "speed", d.dev.Desc.Speed)
	return d, nil
}

func (d *Device) claim() error {
	var err error
	if err = d.dev.SetAutoDetach(true); err != nil {
		return fmt.Errorf("could not enable kernel driver auto detach: %w", err)
	}
	if d.cfg, err = d.dev.Config(configNumber); err != nil {
		return fmt.Errorf("could not set configuration %d: %w", configNumber, err)
	}
	if d.intf, err = d.cfg.Interface(interfaceNumber, altSetting); err != nil {
		return fmt.Errorf("could not claim interface %d: %w", interfaceNumber, err)
	}
	if d.cmd, err = d.intf.OutEndpoint(commandEndpoint); err != nil {
		return fmt.Errorf("command endpoint: %w", err)
	}
	if d.ack, err = d.intf.InEndpoint(ackEndpoint); err != nil {
		return fmt.Errorf("ack endpoint: %w", err)
	}
	if d.pixels, err = d.intf.InEndpoint(pixelEndpoint); err != nil {
		return fmt.Errorf("pixel endpoint: %w", err)
	}
	return nil
}

func (d *Device) WriteCommand(ctx context.Context, buffer []byte) (int, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	return d.cmd.WriteContext(ctx, buffer)
}

func (d *Device) ReadAck(ctx context.Context, buffer []byte) (int, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	return d.ack.ReadContext(ctx, buffer)
}

func (d *Device) ReadPixels(ctx context.Context, buffer []byte) (int, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	return d.pixels.ReadContext(ctx, buffer)
}

func (d *Device) check() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.closed {
		return dsi.ErrBusClosed
	}
	return nil
}

// Close releases the interface, the device and the libusb context.
func (d *Device) Close() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.closed {
		return dsi.ErrBusClosed
	}
	d.closed = true
	return d.release()
}

func (d *Device) release() error {
	if d.intf != nil {
		d.intf.Close()
	}
	var errs []error
	if d.cfg != nil {
		errs = append(errs, d.cfg.Close())
	}
	if d.dev != nil {
		errs = append(errs, d.dev.Close())
	}
	errs = append(errs, d.usb.Close())
	return errors.Join(errs...)
}
