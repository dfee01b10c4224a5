// Package exposure sequences a single DSI exposure:
//
//	Idle -> Configuring -> Triggered -> (CountingDown) -> Downloading -> Idle
//
// The configuration sequence mirrors what the firmware expects, including
// the repeated readout mode queries; the sensor only latches some settings
// once they are read back.
package exposure

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/dsi/imaging"
	"github.com/mklimuk/dsi/protocol"
)

// Durations are expressed in 100 µs units.
const (
	// Exposures shorter than this use high speed dual readout.
	SpeedThreshold uint32 = 10000
	// The timer count register is only polled above this value. Polling it
	// during short exposures hangs the sensor.
	CountdownThreshold uint32 = 5000
	// TestPatternDuration is the exposure time used for synthetic frames.
	TestPatternDuration uint32 = 10
)

const (
	shortReadoutDelay = 3
	longReadoutDelay  = 7
	fixedOffset       = 0x0ff
)

// TestPatternGeometry is the frame layout of the synthetic test pattern, independent of the sensor.
var TestPatternGeometry = imaging.Geometry{
	ReadWidth:     540,
	EvenRows:      0xfd,
	OddRows:       0xfc,
	BytesPerPixel: 2,
	ImageWidth:    540,
	ImageHeight:   0xfd + 0xfc,
}

type State int

const (
	StateIdle State = iota
	StateConfiguring
	StateTriggered
	StateCountingDown
	StateDownloading
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfiguring:
		return "configuring"
	case StateTriggered:
		return "triggered"
	case StateCountingDown:
		return "counting down"
	case StateDownloading:
		return "downloading"
	default:
		return "unknown"
	}
}

// Commander issues a single command and returns its decoded response.
type Commander interface {
	Call(ctx context.Context, op protocol.Opcode, arg uint32) (uint32, error)
}

// PixelReader performs one bulk read of field data.
type PixelReader interface {
	ReadPixels(ctx context.Context, buffer []byte) (int, error)
}

type Device interface {
	Commander
	PixelReader
}

// Request describes one exposure.
type Request struct {
	// Duration in 100 µs units.
	Duration uint32
	// TestPattern requests the synthetic frame instead of a real exposure.
	TestPattern bool
	// Geometry is the sensor geometry; ReadWidth is the sensor line width in pixels.
	Geometry imaging.Geometry
}

// Step is one command of the configuration sequence.
type Step struct {
	Opcode protocol.Opcode
	Arg    uint32
}

type SleepFunc func(ctx context.Context, d time.Duration) error

type Opts struct {
	Sleep SleepFunc
	// Aborted is polled between phases; once it reports true the exposure stops with ErrAborted.
	Aborted func() bool
}

type Opt func(*Opts)

// WithAbortCheck installs a cooperative abort check. It is never consulted
// while a field transfer is in flight.
func WithAbortCheck(fn func() bool) Opt {
	return func(o *Opts) {
		o.Aborted = fn
	}
}

// WithSleep replaces the wait used between timer polls.
func WithSleep(fn SleepFunc) Opt {
	return func(o *Opts) {
		o.Sleep = fn
	}
}

type Controller struct {
	mx      sync.Mutex
	stateMx sync.Mutex
	state   State
	dev     Device
	config  Opts
}

func NewController(dev Device, opts ...Opt) *Controller {
	config := Opts{Sleep: sleep, Aborted: func() bool { return false }}
	for _, opt := range opts {
		opt(&config)
	}
	return &Controller{dev: dev, config: config}
}

func (c *Controller) State() State {
	c.stateMx.Lock()
	defer c.stateMx.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.stateMx.Lock()
	c.state = s
	c.stateMx.Unlock()
	slog.Debug("exposure state", "state", s)
}

// ConfigurationSequence returns the commands issued before the trigger for an
// exposure of the given duration. The branch depends on the duration only.
func ConfigurationSequence(duration uint32) []Step {
	speed, delay, mode, vdd := protocol.ReadoutSpeedNormal, uint32(longReadoutDelay), protocol.ReadoutModeSingle, protocol.VddModeAuto
	if duration < SpeedThreshold {
		speed, delay, mode, vdd = protocol.ReadoutSpeedHigh, shortReadoutDelay, protocol.ReadoutModeDual, protocol.VddModeOn
	}
	return []Step{
		{protocol.SetExpTime, duration},
		{protocol.SetReadoutSpeed, uint32(speed)},
		{protocol.SetNormReadoutDelay, delay},
		{protocol.SetReadoutMode, uint32(mode)},
		{protocol.GetReadoutMode, 0},
		{protocol.SetVddMode, uint32(vdd)},
		{protocol.SetGain, 0},
		{protocol.SetOffset, fixedOffset},
		{protocol.SetFlushMode, uint32(protocol.FlushModeContinuous)},
		{protocol.GetReadoutMode, 0},
		{protocol.GetExpTime, 0},
	}
}

// TransferGeometry pads the sensor line width to the stride used on the pixel endpoint.
func TransferGeometry(g imaging.Geometry) imaging.Geometry {
	g.ReadWidth = ((g.BytesPerPixel*g.ReadWidth)/512 + 1) * 256
	return g
}

// Expose runs one full exposure cycle and returns the reconstructed image.
// The controller is back in Idle when Expose returns, whatever the outcome.
func (c *Controller) Expose(ctx context.Context, req Request) (*imaging.Image, error) {
	c.mx.Lock()
	defer c.mx.Unlock()
	defer c.setState(StateIdle)

	trigger, geometry := protocol.Trigger, TransferGeometry(req.Geometry)
	if req.TestPattern {
		trigger, geometry = protocol.TestPattern, TestPatternGeometry
	}
	if err := geometry.Validate(); err != nil {
		return nil, err
	}

	if c.config.Aborted() {
		return nil, ErrAborted
	}
	c.setState(StateConfiguring)
	for _, step := range ConfigurationSequence(req.Duration) {
		if _, err := c.dev.Call(ctx, step.Opcode, step.Arg); err != nil {
			return nil, &ConfigurationError{Phase: StateConfiguring, Opcode: step.Opcode, Err: err}
		}
	}

	if c.config.Aborted() {
		return nil, ErrAborted
	}
	c.setState(StateTriggered)
	if _, err := c.dev.Call(ctx, trigger, 0); err != nil {
		return nil, &ConfigurationError{Phase: StateTriggered, Opcode: trigger, Err: err}
	}

	if !req.TestPattern && req.Duration > CountdownThreshold {
		c.setState(StateCountingDown)
		if err := c.countdown(ctx, req.Duration); err != nil {
			return nil, err
		}
	}

	c.setState(StateDownloading)
	even, err := c.download(ctx, imaging.FieldEven, geometry)
	if err != nil {
		return nil, err
	}
	odd, err := c.download(ctx, imaging.FieldOdd, geometry)
	if err != nil {
		return nil, err
	}
	return imaging.Merge(even, odd, geometry)
}

func (c *Controller) countdown(ctx context.Context, remaining uint32) error {
	for remaining > CountdownThreshold {
		wait := time.Duration(remaining-CountdownThreshold) * 100 * time.Microsecond
		if err := c.config.Sleep(ctx, wait); err != nil {
			return err
		}
		if c.config.Aborted() {
			return c.abort(ctx)
		}
		v, err := c.dev.Call(ctx, protocol.GetExpTimerCount, 0)
		if err != nil {
			return &ConfigurationError{Phase: StateCountingDown, Opcode: protocol.GetExpTimerCount, Err: err}
		}
		slog.Debug("exposure timer", "remaining", v)
		remaining = v
	}
	return nil
}

// abort tells the sensor to drop the running exposure.
func (c *Controller) abort(ctx context.Context) error {
	if _, err := c.dev.Call(ctx, protocol.Abort, 0); err != nil {
		return &ConfigurationError{Phase: StateCountingDown, Opcode: protocol.Abort, Err: err}
	}
	return ErrAborted
}

func (c *Controller) download(ctx context.Context, f imaging.Field, g imaging.Geometry) ([]byte, error) {
	buf := make([]byte, g.FieldSize(f))
	n, err := c.dev.ReadPixels(ctx, buf)
	if err != nil {
		return nil, &ImageDownloadError{Field: f, Err: err}
	}
	if n < len(buf) {
		slog.Warn("short field read", "field", f, "requested", len(buf), "read", n)
	}
	return buf, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
