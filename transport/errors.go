package transport

import (
	"errors"
	"fmt"

	"github.com/mklimuk/dsi/protocol"
)

var (
	ErrWriteFailed      = errors.New("bulk write failed")
	ErrReadFailed       = errors.New("bulk read failed")
	ErrLengthMismatch   = errors.New("response length mismatch")
	ErrSequenceMismatch = errors.New("response sequence mismatch")
	ErrNotAcknowledged  = errors.New("command not acknowledged")
)

// WriteError wraps a failed bulk write on the command endpoint.
type WriteError struct {
	Opcode protocol.Opcode
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: write to endpoint %#02x failed: %v", e.Opcode, EndpointCommand, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrWriteFailed }

// ReadError wraps a failed bulk read on the ACK or pixel endpoint.
type ReadError struct {
	Opcode   protocol.Opcode
	Endpoint byte
	Err      error
}

func (e *ReadError) Error() string {
	if e.Endpoint == EndpointPixels {
		return fmt.Sprintf("read from endpoint %#02x failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s: read from endpoint %#02x failed: %v", e.Opcode, e.Endpoint, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

func (e *ReadError) Is(target error) bool { return target == ErrReadFailed }

// LengthMismatchError reports a response whose declared length differs from the bytes read.
type LengthMismatchError struct {
	Opcode   protocol.Opcode
	Declared int
	Actual   int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("%s: response length %d does not match bytes read %d", e.Opcode, e.Declared, e.Actual)
}

func (e *LengthMismatchError) Is(target error) bool { return target == ErrLengthMismatch }

// SequenceMismatchError reports a response correlated with a different request.
type SequenceMismatchError struct {
	Opcode   protocol.Opcode
	Expected uint8
	Got      uint8
}

func (e *SequenceMismatchError) Error() string {
	return fmt.Sprintf("%s: response sequence number %d does not match request %d", e.Opcode, e.Got, e.Expected)
}

func (e *SequenceMismatchError) Is(target error) bool { return target == ErrSequenceMismatch }

// NotAcknowledgedError reports a response whose status byte is not ACK.
type NotAcknowledgedError struct {
	Opcode protocol.Opcode
	Got    byte
}

func (e *NotAcknowledgedError) Error() string {
	return fmt.Sprintf("%s: did not get ACK (was %#02x)", e.Opcode, e.Got)
}

func (e *NotAcknowledgedError) Is(target error) bool { return target == ErrNotAcknowledged }

// IsTransportError reports whether err was raised by the command/ack exchange or a pixel read.
func IsTransportError(err error) bool {
	return errors.Is(err, ErrWriteFailed) ||
		errors.Is(err, ErrReadFailed) ||
		errors.Is(err, ErrLengthMismatch) ||
		errors.Is(err, ErrSequenceMismatch) ||
		errors.Is(err, ErrNotAcknowledged)
}
