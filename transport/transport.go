package transport

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/dsi"
	"github.com/mklimuk/dsi/dsictx"
	"github.com/mklimuk/dsi/protocol"
)

// Endpoint addresses used by the imager.
const (
	EndpointCommand byte = 0x01
	EndpointAck     byte = 0x81
	EndpointPixels  byte = 0x86
)

const (
	DefaultCommandTimeout = 100 * time.Millisecond
	DefaultPixelTimeout   = 60 * time.Second
)

// Endpoints is the subset of dsi.Bus the transport drives.
type Endpoints interface {
	dsi.CommandWriter
	dsi.AckReader
	dsi.PixelReader
}

type Opts struct {
	CommandTimeout time.Duration
	PixelTimeout   time.Duration
}

type Opt func(*Opts)

func WithCommandTimeout(timeout time.Duration) Opt {
	return func(o *Opts) {
		o.CommandTimeout = timeout
	}
}

func WithPixelTimeout(timeout time.Duration) Opt {
	return func(o *Opts) {
		o.PixelTimeout = timeout
	}
}

// Transport runs the single outstanding command/ack exchange with the imager.
// Every command carries a fresh sequence number that must come back in the response.
type Transport struct {
	mx           sync.Mutex
	endpoints    Endpoints
	config       Opts
	sequence     uint8
	response     []byte
	lastExchange time.Time
}

func New(endpoints Endpoints, opts ...Opt) *Transport {
	config := Opts{
		CommandTimeout: DefaultCommandTimeout,
		PixelTimeout:   DefaultPixelTimeout,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Transport{
		endpoints: endpoints,
		config:    config,
		response:  make([]byte, protocol.BufferSize),
	}
}

// Sequence returns the last issued sequence number.
func (t *Transport) Sequence() uint8 {
	t.mx.Lock()
	defer t.mx.Unlock()
	return t.sequence
}

// Call encodes op with its table-defined widths and runs the exchange.
func (t *Transport) Call(ctx context.Context, op protocol.Opcode, arg uint32) (uint32, error) {
	layout, err := protocol.LookupLayout(op)
	if err != nil {
		return 0, err
	}
	frame, err := protocol.Encode(op, arg)
	if err != nil {
		return 0, err
	}
	return t.Exchange(ctx, frame, layout.Response)
}

// Exchange stamps the next sequence number into frame, writes it, reads the
// response and validates length, sequence and ACK before decoding the payload.
func (t *Transport) Exchange(ctx context.Context, frame protocol.Frame, width protocol.Width) (uint32, error) {
	t.mx.Lock()
	defer t.mx.Unlock()

	t.sequence++
	frame.Sequence = t.sequence
	request := frame.Bytes()
	verbose := dsictx.IsVerbose(ctx)
	if verbose {
		now := time.Now()
		var dt time.Duration
		if !t.lastExchange.IsZero() {
			dt = now.Sub(t.lastExchange)
		}
		t.lastExchange = now
		slog.Debug("w 01", "op", frame.Opcode, "seq", frame.Sequence, "dt", dt, "frame", hex.EncodeToString(request))
	}

	wctx, cancel := context.WithTimeout(ctx, t.config.CommandTimeout)
	_, err := t.endpoints.WriteCommand(wctx, request)
	cancel()
	if err != nil {
		return 0, &WriteError{Opcode: frame.Opcode, Err: err}
	}

	resetBuffer(t.response)
	rctx, cancel := context.WithTimeout(ctx, t.config.CommandTimeout)
	n, err := t.endpoints.ReadAck(rctx, t.response)
	cancel()
	if err != nil {
		return 0, &ReadError{Opcode: frame.Opcode, Endpoint: EndpointAck, Err: err}
	}
	if verbose {
		slog.Debug("r 81", "op", frame.Opcode, "n", n, "frame", hex.EncodeToString(t.response[:n]))
	}
	if n < protocol.HeaderSize || int(t.response[0]) != n {
		return 0, &LengthMismatchError{Opcode: frame.Opcode, Declared: int(t.response[0]), Actual: n}
	}
	resp, err := protocol.ParseResponse(t.response[:n])
	if err != nil {
		return 0, err
	}
	if resp.Sequence != t.sequence {
		return 0, &SequenceMismatchError{Opcode: frame.Opcode, Expected: t.sequence, Got: resp.Sequence}
	}
	if resp.Code != protocol.ACK {
		return 0, &NotAcknowledgedError{Opcode: frame.Opcode, Got: resp.Code}
	}
	value, err := protocol.Decode(resp.Payload, width)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", frame.Opcode, err)
	}
	return value, nil
}

// ReadPixels performs one bulk read on the pixel endpoint bounded by the pixel timeout.
// There is no framing on this endpoint, so only the transfer result is checked.
func (t *Transport) ReadPixels(ctx context.Context, buffer []byte) (int, error) {
	t.mx.Lock()
	defer t.mx.Unlock()
	pctx, cancel := context.WithTimeout(ctx, t.config.PixelTimeout)
	defer cancel()
	start := time.Now()
	n, err := t.endpoints.ReadPixels(pctx, buffer)
	if err != nil {
		return n, &ReadError{Endpoint: EndpointPixels, Err: err}
	}
	if dsictx.IsVerbose(ctx) {
		slog.Debug("r 86", "requested", len(buffer), "read", n, "took", time.Since(start))
	}
	return n, nil
}

func resetBuffer(buf []byte) {
	for i := range buf {
		buf[i] = 0x00
	}
}
