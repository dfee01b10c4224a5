package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFrameLength = errors.New("unsupported command frame length")
	ErrUnsupportedOpcode      = errors.New("unsupported opcode")
	ErrUnsupportedWidth       = errors.New("unsupported response width")
	ErrShortPayload           = errors.New("response payload shorter than expected")
)

// FrameLengthError is returned when a frame is built with a length outside {3,4,5,7}.
type FrameLengthError struct {
	Opcode Opcode
	Length int
}

func (e *FrameLengthError) Error() string {
	return fmt.Sprintf("%s: unsupported command length %d", e.Opcode, e.Length)
}

func (e *FrameLengthError) Is(target error) bool {
	return target == ErrUnsupportedFrameLength
}

// UnsupportedOpcodeError is returned for opcodes missing from the layout table.
type UnsupportedOpcodeError struct {
	Opcode Opcode
}

func (e *UnsupportedOpcodeError) Error() string {
	return fmt.Sprintf("unsupported device command %#02x", byte(e.Opcode))
}

func (e *UnsupportedOpcodeError) Is(target error) bool {
	return target == ErrUnsupportedOpcode
}

// IsProtocolError reports whether err originates from frame encoding or payload decoding.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrUnsupportedFrameLength) ||
		errors.Is(err, ErrUnsupportedOpcode) ||
		errors.Is(err, ErrUnsupportedWidth) ||
		errors.Is(err, ErrShortPayload)
}
