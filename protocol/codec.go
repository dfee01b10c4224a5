package protocol

import (
	"encoding/binary"
	"fmt"
)

const (
	// BufferSize is the size of the command and response buffers.
	BufferSize = 64
	// HeaderSize covers the length, sequence and opcode/ack bytes.
	HeaderSize = 3
)

// Frame is a command sent to the command OUT endpoint.
// Only the first Length bytes are transmitted.
type Frame struct {
	Length   uint8
	Sequence uint8
	Opcode   Opcode
	Argument [4]byte
}

// Bytes returns the wire representation of the frame.
func (f Frame) Bytes() []byte {
	buf := make([]byte, f.Length)
	buf[0] = f.Length
	buf[1] = f.Sequence
	buf[2] = byte(f.Opcode)
	copy(buf[HeaderSize:], f.Argument[:int(f.Length)-HeaderSize])
	return buf
}

// Encode builds the command frame for op. The argument width comes from the
// opcode table; arg is ignored for opcodes without an argument.
func Encode(op Opcode, arg uint32) (Frame, error) {
	l, err := LookupLayout(op)
	if err != nil {
		return Frame{}, err
	}
	return encodeLength(op, HeaderSize+int(l.Request), arg)
}

func encodeLength(op Opcode, length int, arg uint32) (Frame, error) {
	f := Frame{Length: uint8(length), Opcode: op}
	switch length {
	case 3:
	case 4:
		f.Argument[0] = byte(arg)
	case 5:
		binary.LittleEndian.PutUint16(f.Argument[:2], uint16(arg))
	case 7:
		binary.LittleEndian.PutUint32(f.Argument[:], arg)
	default:
		return Frame{}, &FrameLengthError{Opcode: op, Length: length}
	}
	return f, nil
}

// Response is a frame read from the ACK IN endpoint.
type Response struct {
	Length   uint8
	Sequence uint8
	Code     byte
	Payload  []byte
}

// ParseResponse splits the bytes actually read into header fields and payload.
func ParseResponse(buf []byte) (Response, error) {
	if len(buf) < HeaderSize {
		return Response{}, fmt.Errorf("response of %d bytes: %w", len(buf), ErrShortPayload)
	}
	return Response{
		Length:   buf[0],
		Sequence: buf[1],
		Code:     buf[2],
		Payload:  buf[HeaderSize:],
	}, nil
}

// Decode interprets a response payload of the given width. Multi-byte values
// have their least significant byte at payload offset 0.
func Decode(payload []byte, w Width) (uint32, error) {
	switch w {
	case Width0:
		return 0, nil
	case Width1, Width2, Width4:
	default:
		return 0, fmt.Errorf("width %d: %w", w, ErrUnsupportedWidth)
	}
	if len(payload) < int(w) {
		return 0, fmt.Errorf("need %d bytes, got %d: %w", w, len(payload), ErrShortPayload)
	}
	switch w {
	case Width1:
		return uint32(payload[0]), nil
	case Width2:
		return uint32(payload[1])<<8 | uint32(payload[0]), nil
	default:
		r := uint32(payload[3])
		r = r<<8 | uint32(payload[2])
		r = r<<8 | uint32(payload[1])
		r = r<<8 | uint32(payload[0])
		return r, nil
	}
}
