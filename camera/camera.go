// Package camera implements a session with one DSI imager.
//
// Open performs the connection handshake (ping, reset, firmware identity,
// bus status, readout mode, chip and camera names) on an already opened set
// of endpoints and returns a Device serving any number of exposures until
// Close releases the endpoints.
//
// Example usage:
//
//	cam, err := camera.Open(ctx, bus, camera.WithGeometry(g))
//	if err != nil { return err }
//	defer cam.Close()
//	img, err := cam.Expose(ctx)
package camera

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mklimuk/dsi"
	"github.com/mklimuk/dsi/eeprom"
	"github.com/mklimuk/dsi/exposure"
	"github.com/mklimuk/dsi/imaging"
	"github.com/mklimuk/dsi/protocol"
	"github.com/mklimuk/dsi/transport"
)

// DefaultChipName is reported when the chip name region of the EEPROM is erased.
const DefaultChipName = "ICX404AK"

const MaxGain = 63

// TimeUnit is the resolution of exposure times on the wire.
const TimeUnit = 100 * time.Microsecond

// DefaultGeometry describes the generic device until a real sensor geometry is configured.
var DefaultGeometry = imaging.Geometry{
	ReadWidth:     540,
	EvenRows:      253,
	OddRows:       252,
	BytesPerPixel: 2,
	ImageWidth:    540,
	ImageHeight:   505,
}

// Version is the firmware identity word split into its bytes.
type Version struct {
	Family   uint8 `yaml:"family"`
	Model    uint8 `yaml:"model"`
	Firmware uint8 `yaml:"firmware"`
	Revision uint8 `yaml:"revision"`
}

func ParseVersion(v uint32) Version {
	return Version{
		Family:   uint8(v),
		Model:    uint8(v >> 8),
		Firmware: uint8(v >> 16),
		Revision: uint8(v >> 24),
	}
}

// Supported reports whether the identity is one every DSI reports; the revision is not checked.
func (v Version) Supported() bool {
	return v.Family == 10 && v.Model == 1 && v.Firmware == 1
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Family, v.Model, v.Firmware, v.Revision)
}

// Status is the decoded GET_STATUS word.
type Status struct {
	USBSpeed protocol.USBSpeed `yaml:"usb_speed"`
	Debug    bool              `yaml:"firmware_debug"`
}

func ParseStatus(v uint32) (Status, error) {
	speed := protocol.USBSpeed(v & 0xff)
	if !speed.Valid() {
		return Status{}, fmt.Errorf("usb speed value %d: %w", speed, ErrUnknownUSBSpeed)
	}
	return Status{USBSpeed: speed, Debug: (v>>8)&0xff == 1}, nil
}

// DurationToUnits converts d to device time units, rounding down.
func DurationToUnits(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return uint32(d / TimeUnit)
}

func UnitsToDuration(units uint32) time.Duration {
	return time.Duration(units) * TimeUnit
}

type Opts struct {
	Geometry       imaging.Geometry
	ExposureTime   uint32
	TestPattern    bool
	TransportOpts  []transport.Opt
	ControllerOpts []exposure.Opt
}

type Opt func(*Opts)

// WithGeometry configures the sensor geometry and turns the test pattern off.
func WithGeometry(g imaging.Geometry) Opt {
	return func(o *Opts) {
		o.Geometry = g
		o.TestPattern = false
	}
}

func WithExposureTime(d time.Duration) Opt {
	return func(o *Opts) {
		o.ExposureTime = DurationToUnits(d)
	}
}

func WithTestPattern(enabled bool) Opt {
	return func(o *Opts) {
		o.TestPattern = enabled
	}
}

func WithCommandTimeout(timeout time.Duration) Opt {
	return func(o *Opts) {
		o.TransportOpts = append(o.TransportOpts, transport.WithCommandTimeout(timeout))
	}
}

func WithPixelTimeout(timeout time.Duration) Opt {
	return func(o *Opts) {
		o.TransportOpts = append(o.TransportOpts, transport.WithPixelTimeout(timeout))
	}
}

// WithSleep replaces the wait used while counting down long exposures.
func WithSleep(fn exposure.SleepFunc) Opt {
	return func(o *Opts) {
		o.ControllerOpts = append(o.ControllerOpts, exposure.WithSleep(fn))
	}
}

type Device struct {
	mx         sync.Mutex
	bus        dsi.Bus
	transport  *transport.Transport
	eeprom     *eeprom.Store
	controller *exposure.Controller
	config     Opts
	aborted    atomic.Bool
	closed     bool

	version     Version
	status      Status
	readoutMode protocol.ReadoutMode
	chipName    string
	cameraName  string
}

// Open runs the handshake on bus. The bus is not closed when the handshake fails.
func Open(ctx context.Context, bus dsi.Bus, opts ...Opt) (*Device, error) {
	config := Opts{
		Geometry:     DefaultGeometry,
		ExposureTime: exposure.TestPatternDuration,
		TestPattern:  true,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if err := config.Geometry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid geometry: %w", err)
	}
	t := transport.New(bus, config.TransportOpts...)
	d := &Device{
		bus:       bus,
		transport: t,
		eeprom:    eeprom.New(t),
		config:    config,
	}
	d.controller = exposure.NewController(t, append([]exposure.Opt{exposure.WithAbortCheck(d.aborted.Load)}, config.ControllerOpts...)...)
	if err := d.handshake(ctx); err != nil {
		return nil, fmt.Errorf("handshake failed: %w", err)
	}
	slog.Info("imager connected", "version", d.version, "usb_speed", d.status.USBSpeed, "chip", d.chipName, "name", d.cameraName)
	return d, nil
}

func (d *Device) handshake(ctx context.Context) error {
	if _, err := d.transport.Call(ctx, protocol.Ping, 0); err != nil {
		return err
	}
	if _, err := d.transport.Call(ctx, protocol.Reset, 0); err != nil {
		return err
	}
	v, err := d.transport.Call(ctx, protocol.GetVersion, 0)
	if err != nil {
		return err
	}
	d.version = ParseVersion(v)
	if !d.version.Supported() {
		return &UnsupportedImagerError{Version: d.version}
	}
	v, err = d.transport.Call(ctx, protocol.GetStatus, 0)
	if err != nil {
		return err
	}
	if d.status, err = ParseStatus(v); err != nil {
		return err
	}
	if d.readoutMode, err = d.loadReadoutMode(ctx); err != nil {
		return err
	}
	if err = d.loadChipName(ctx); err != nil {
		return err
	}
	return d.loadCameraName(ctx)
}

func (d *Device) loadChipName(ctx context.Context) error {
	name, err := d.eeprom.GetString(ctx, eeprom.ChipNameOffset, eeprom.ChipNameLength)
	if err != nil {
		return fmt.Errorf("could not load chip name: %w", err)
	}
	if name == eeprom.NoValue {
		name = DefaultChipName
	}
	d.chipName = name
	return nil
}

func (d *Device) loadCameraName(ctx context.Context) error {
	name, err := d.eeprom.GetString(ctx, eeprom.CameraNameOffset, eeprom.CameraNameLength)
	if err != nil {
		return fmt.Errorf("could not load camera name: %w", err)
	}
	d.cameraName = name
	return nil
}

func (d *Device) loadReadoutMode(ctx context.Context) (protocol.ReadoutMode, error) {
	v, err := d.transport.Call(ctx, protocol.GetReadoutMode, 0)
	if err != nil {
		return 0, err
	}
	mode := protocol.ReadoutMode(v)
	if !mode.Valid() {
		return 0, fmt.Errorf("readout mode value %d: %w", v, ErrUnknownReadoutMode)
	}
	return mode, nil
}

func (d *Device) Version() Version {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.version
}

func (d *Device) Status() Status {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.status
}

func (d *Device) ChipName() string {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.chipName
}

func (d *Device) CameraName() string {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.cameraName
}

// SetCameraName stores name in the EEPROM and reads it back.
func (d *Device) SetCameraName(ctx context.Context, name string) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	if err := d.eeprom.SetString(ctx, name, eeprom.CameraNameOffset, eeprom.CameraNameLength); err != nil {
		return fmt.Errorf("could not store camera name: %w", err)
	}
	return d.loadCameraName(ctx)
}

// SerialNumber decodes the 8 byte little-endian serial number at the start of the EEPROM.
func (d *Device) SerialNumber(ctx context.Context) (uint64, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.ready(); err != nil {
		return 0, err
	}
	data, err := d.eeprom.GetRegion(ctx, eeprom.SerialNumberOffset, eeprom.SerialNumberLength)
	if err != nil {
		return 0, fmt.Errorf("could not load serial number: %w", err)
	}
	return binary.LittleEndian.Uint64(data), nil
}

// EEPROM gives direct access to the device memory.
func (d *Device) EEPROM() *eeprom.Store {
	return d.eeprom
}

func (d *Device) call(ctx context.Context, op protocol.Opcode, arg uint32) (uint32, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.ready(); err != nil {
		return 0, err
	}
	return d.transport.Call(ctx, op, arg)
}

func (d *Device) Gain(ctx context.Context) (int, error) {
	v, err := d.call(ctx, protocol.GetGain, 0)
	return int(v), err
}

// SetGain accepts values in [0, 63]. The exposure sequence resets the gain to 0.
func (d *Device) SetGain(ctx context.Context, gain int) error {
	if gain < 0 || gain > MaxGain {
		return fmt.Errorf("gain %d: %w", gain, ErrGainOutOfRange)
	}
	_, err := d.call(ctx, protocol.SetGain, uint32(gain))
	return err
}

func (d *Device) Offset(ctx context.Context) (int, error) {
	v, err := d.call(ctx, protocol.GetOffset, 0)
	return int(v), err
}

func (d *Device) ReadoutMode(ctx context.Context) (protocol.ReadoutMode, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.ready(); err != nil {
		return 0, err
	}
	mode, err := d.loadReadoutMode(ctx)
	if err != nil {
		return 0, err
	}
	d.readoutMode = mode
	return mode, nil
}

func (d *Device) SetReadoutMode(ctx context.Context, mode protocol.ReadoutMode) error {
	if !mode.Valid() {
		return fmt.Errorf("readout mode %d: %w", mode, ErrUnknownReadoutMode)
	}
	_, err := d.call(ctx, protocol.SetReadoutMode, uint32(mode))
	return err
}

func (d *Device) ADRegister(ctx context.Context, reg protocol.AdRegister) (uint32, error) {
	return d.call(ctx, protocol.AdRead, uint32(reg))
}

func (d *Device) SetADRegister(ctx context.Context, reg protocol.AdRegister, value uint32) error {
	_, err := d.call(ctx, protocol.AdWrite, protocol.AdWriteArgument(reg, value))
	return err
}

// Temperature returns the raw sensor temperature reading.
func (d *Device) Temperature(ctx context.Context) (uint16, error) {
	v, err := d.call(ctx, protocol.GetTemp, 0)
	return uint16(v), err
}

func (d *Device) Timestamp(ctx context.Context) (uint32, error) {
	return d.call(ctx, protocol.GetTimestamp, 0)
}

func (d *Device) SetExposureTime(t time.Duration) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.config.ExposureTime = DurationToUnits(t)
}

func (d *Device) ExposureTime() time.Duration {
	d.mx.Lock()
	defer d.mx.Unlock()
	return UnitsToDuration(d.config.ExposureTime)
}

// SetGeometry replaces the sensor geometry and leaves test pattern mode.
func (d *Device) SetGeometry(g imaging.Geometry) error {
	if err := g.Validate(); err != nil {
		return err
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.config.Geometry = g
	d.config.TestPattern = false
	return nil
}

func (d *Device) Geometry() imaging.Geometry {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.config.Geometry
}

func (d *Device) SetTestPattern(enabled bool) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.config.TestPattern = enabled
}

func (d *Device) TestPattern() bool {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.config.TestPattern
}

// ExposureState reports the phase of the exposure in progress.
func (d *Device) ExposureState() exposure.State {
	return d.controller.State()
}

// Expose takes one image with the configured exposure time, or the synthetic
// test pattern when test pattern mode is on.
func (d *Device) Expose(ctx context.Context) (*imaging.Image, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.ready(); err != nil {
		return nil, err
	}
	req := exposure.Request{
		Duration:    d.config.ExposureTime,
		TestPattern: d.config.TestPattern,
		Geometry:    d.config.Geometry,
	}
	if req.TestPattern {
		req.Duration = exposure.TestPatternDuration
	}
	img, err := d.controller.Expose(ctx, req)
	if d.aborted.CompareAndSwap(true, false) && err == nil {
		slog.Warn("abort requested after readout started, image kept")
	}
	return img, err
}

// AbortExposure requests the exposure in progress, or the next one, to stop at
// the next phase boundary. Field transfers already started run to completion.
func (d *Device) AbortExposure() {
	d.aborted.Store(true)
}

// Close releases the endpoints. A closed device rejects further calls.
func (d *Device) Close() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.closed {
		return ErrSessionClosed
	}
	d.closed = true
	return d.bus.Close()
}

func (d *Device) ready() error {
	if d.closed {
		return ErrSessionClosed
	}
	return nil
}
