// Package simulator emulates DSI firmware behind the dsi.Bus endpoints so the
// driver can run without hardware. It answers command frames with properly
// framed ACK responses, keeps register and EEPROM state, counts down the
// exposure timer and serves synthetic field data on the pixel endpoint.
//
// Example usage:
//
//	dev := simulator.New(simulator.WithCameraName("bench"))
//	cam, err := camera.Open(ctx, dev)
package simulator

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/mklimuk/dsi"
	"github.com/mklimuk/dsi/protocol"
)

// Version word of a genuine imager: family 10, model 1, firmware 1, revision 1.
const DefaultVersion uint32 = 0x0101010A

const defaultEepromLength = 64

var ErrInjected = errors.New("injected fault")

type FaultKind int

const (
	FaultNone FaultKind = iota
	FaultWrite
	FaultRead
	FaultNack
	FaultSequence
	FaultLength
)

// Command is one decoded request received by the simulator.
type Command struct {
	Opcode protocol.Opcode
	Arg    uint32
}

type Opts struct {
	Version     uint32
	Status      uint32
	Eeprom      []byte
	TimerCounts []uint32
	Faults      map[protocol.Opcode]FaultKind
	PixelFaults map[int]bool
}

type Opt func(*Opts)

func WithVersion(v uint32) Opt {
	return func(o *Opts) {
		o.Version = v
	}
}

func WithStatus(v uint32) Opt {
	return func(o *Opts) {
		o.Status = v
	}
}

// WithEeprom replaces the EEPROM content; its length becomes the reported EEPROM length.
func WithEeprom(data []byte) Opt {
	return func(o *Opts) {
		o.Eeprom = append([]byte(nil), data...)
	}
}

// WithCameraName stores name in the camera name region.
func WithCameraName(name string) Opt {
	return func(o *Opts) {
		writeString(o.Eeprom, name, 0x1c, 0x20)
	}
}

// WithTimerCounts scripts the successive GET_EXP_TIMER_COUNT answers.
// Once the script is exhausted the timer reads 0.
func WithTimerCounts(counts ...uint32) Opt {
	return func(o *Opts) {
		o.TimerCounts = append([]uint32(nil), counts...)
	}
}

// WithFault makes every exchange of op fail in the given way.
func WithFault(op protocol.Opcode, kind FaultKind) Opt {
	return func(o *Opts) {
		o.Faults[op] = kind
	}
}

// WithPixelFault makes the n-th pixel read (counted from 0 after each trigger) fail.
func WithPixelFault(n int) Opt {
	return func(o *Opts) {
		o.PixelFaults[n] = true
	}
}

var _ dsi.Bus = &Device{}

type Device struct {
	mx        sync.Mutex
	config    Opts
	eeprom    []byte
	registers map[protocol.Opcode]uint32
	ad        map[uint32]uint32
	timer     []uint32
	journal   []Command
	pending   []byte
	triggered bool
	reads     int
	timestamp uint32
	closed    bool
}

func New(opts ...Opt) *Device {
	eeprom := make([]byte, defaultEepromLength)
	for i := range eeprom {
		eeprom[i] = 0xFF
	}
	config := Opts{
		Version:     DefaultVersion,
		Status:      uint32(protocol.USBSpeedHigh),
		Eeprom:      eeprom,
		Faults:      map[protocol.Opcode]FaultKind{},
		PixelFaults: map[int]bool{},
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Device{
		config:    config,
		eeprom:    config.Eeprom,
		registers: map[protocol.Opcode]uint32{},
		ad:        map[uint32]uint32{},
		timer:     config.TimerCounts,
	}
}

// Journal returns the commands received so far.
func (d *Device) Journal() []Command {
	d.mx.Lock()
	defer d.mx.Unlock()
	return append([]Command(nil), d.journal...)
}

// Opcodes returns the opcodes received so far.
func (d *Device) Opcodes() []protocol.Opcode {
	d.mx.Lock()
	defer d.mx.Unlock()
	ops := make([]protocol.Opcode, len(d.journal))
	for i, c := range d.journal {
		ops[i] = c.Opcode
	}
	return ops
}

// ResetJournal forgets the commands received so far.
func (d *Device) ResetJournal() {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.journal = nil
}

// Eeprom returns a copy of the EEPROM content.
func (d *Device) Eeprom() []byte {
	d.mx.Lock()
	defer d.mx.Unlock()
	return append([]byte(nil), d.eeprom...)
}

func (d *Device) WriteCommand(ctx context.Context, buffer []byte) (int, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.closed {
		return 0, dsi.ErrBusClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(buffer) < protocol.HeaderSize || int(buffer[0]) != len(buffer) {
		return 0, fmt.Errorf("malformed command frame % x", buffer)
	}
	op := protocol.Opcode(buffer[2])
	layout, err := protocol.LookupLayout(op)
	if err != nil {
		return 0, err
	}
	arg, err := protocol.Decode(buffer[protocol.HeaderSize:], protocol.Width(len(buffer)-protocol.HeaderSize))
	if err != nil {
		return 0, err
	}
	fault := d.config.Faults[op]
	if fault == FaultWrite {
		return 0, ErrInjected
	}
	d.journal = append(d.journal, Command{Opcode: op, Arg: arg})
	value := d.execute(op, arg)

	resp := make([]byte, protocol.HeaderSize+int(layout.Response))
	resp[0] = byte(len(resp))
	resp[1] = buffer[1]
	resp[2] = protocol.ACK
	putPayload(resp[protocol.HeaderSize:], value)
	switch fault {
	case FaultNack:
		resp[2] = protocol.NACK
	case FaultSequence:
		resp[1]++
	case FaultLength:
		resp[0]++
	case FaultRead:
		resp = nil
	}
	d.pending = resp
	return len(buffer), nil
}

func (d *Device) ReadAck(ctx context.Context, buffer []byte) (int, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.closed {
		return 0, dsi.ErrBusClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if d.pending == nil {
		return 0, ErrInjected
	}
	n := copy(buffer, d.pending)
	d.pending = nil
	return n, nil
}

// ReadPixels fills buffer with a synthetic field. The first read after a trigger
// is tagged 0, the second 1; each sample is tag<<15 | pixel index.
func (d *Device) ReadPixels(ctx context.Context, buffer []byte) (int, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.closed {
		return 0, dsi.ErrBusClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !d.triggered {
		return 0, fmt.Errorf("no exposure in progress")
	}
	read := d.reads
	d.reads++
	if d.reads == 2 {
		d.triggered = false
	}
	if d.config.PixelFaults[read] {
		return 0, ErrInjected
	}
	for i := 0; i+1 < len(buffer); i += 2 {
		v := uint16(read)<<15 | uint16(i/2)&0x7fff
		buffer[i] = byte(v >> 8)
		buffer[i+1] = byte(v)
	}
	return len(buffer), nil
}

func (d *Device) Close() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.closed {
		return dsi.ErrBusClosed
	}
	d.closed = true
	return nil
}

var setters = map[protocol.Opcode]protocol.Opcode{
	protocol.SetGain:             protocol.GetGain,
	protocol.SetOffset:           protocol.GetOffset,
	protocol.SetExpTime:          protocol.GetExpTime,
	protocol.SetExpMode:          protocol.GetExpMode,
	protocol.SetVddMode:          protocol.GetVddMode,
	protocol.SetFlushMode:        protocol.GetFlushMode,
	protocol.SetCleanMode:        protocol.GetCleanMode,
	protocol.SetReadoutSpeed:     protocol.GetReadoutSpeed,
	protocol.SetReadoutMode:      protocol.GetReadoutMode,
	protocol.SetNormReadoutDelay: protocol.GetNormReadoutDelay,
	protocol.SetRowCountOdd:      protocol.GetRowCountOdd,
	protocol.SetRowCountEven:     protocol.GetRowCountEven,
	protocol.SetEepromVidPid:     protocol.GetEepromVidPid,
}

func (d *Device) execute(op protocol.Opcode, arg uint32) uint32 {
	if getter, ok := setters[op]; ok {
		d.registers[getter] = arg
		return 0
	}
	switch op {
	case protocol.Reset:
		d.registers = map[protocol.Opcode]uint32{}
		d.triggered = false
	case protocol.Abort:
		d.triggered = false
	case protocol.Trigger, protocol.TestPattern:
		d.triggered = true
		d.reads = 0
	case protocol.GetVersion:
		return d.config.Version
	case protocol.GetStatus:
		return d.config.Status
	case protocol.GetTimestamp:
		d.timestamp++
		return d.timestamp
	case protocol.ClearTimestamp:
		d.timestamp = 0
	case protocol.GetEepromLength:
		return uint32(len(d.eeprom))
	case protocol.GetEepromByte:
		if int(arg) < len(d.eeprom) {
			return uint32(d.eeprom[arg])
		}
		return 0xFF
	case protocol.SetEepromByte:
		offset := arg & 0xFF
		if int(offset) < len(d.eeprom) {
			d.eeprom[offset] = byte(arg >> 8)
		}
	case protocol.EraseEeprom:
		for i := range d.eeprom {
			d.eeprom[i] = 0xFF
		}
	case protocol.AdWrite:
		d.ad[arg>>9] = arg & 0x1ff
	case protocol.AdRead:
		return d.ad[arg]
	case protocol.GetTemp:
		return 0x00C8
	case protocol.GetExpTimerCount:
		if len(d.timer) == 0 {
			return 0
		}
		v := d.timer[0]
		d.timer = d.timer[1:]
		return v
	default:
		return d.registers[op]
	}
	return 0
}

func putPayload(buf []byte, value uint32) {
	switch len(buf) {
	case 1:
		buf[0] = byte(value)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(value))
	case 4:
		binary.LittleEndian.PutUint32(buf, value)
	}
}

func writeString(eeprom []byte, value string, offset, length int) {
	if offset+length > len(eeprom) {
		return
	}
	region := eeprom[offset : offset+length]
	for i := range region {
		region[i] = 0xFF
	}
	n := min(len(value), length-2)
	region[0] = byte(n)
	copy(region[1:], value[:n])
}
