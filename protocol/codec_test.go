package protocol

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		op       Opcode
		arg      uint32
		expected []byte
	}{
		{Ping, 0xDEADBEEF, []byte{0x03, 0x00, 0x00}},
		{GetReadoutMode, 0, []byte{0x03, 0x00, 0x31}},
		{SetGain, 0x1234, []byte{0x04, 0x00, 0x22, 0x34}},
		{GetEepromByte, 0x1c, []byte{0x04, 0x00, 0x1F, 0x1c}},
		{SetOffset, 0x0ff, []byte{0x05, 0x00, 0x24, 0xFF, 0x00}},
		{SetEepromByte, 0x41<<8 | 0x1c, []byte{0x05, 0x00, 0x20, 0x1c, 0x41}},
		{SetExpTime, 0x01020304, []byte{0x07, 0x00, 0x26, 0x04, 0x03, 0x02, 0x01}},
	}
	for _, test := range tests {
		t.Run(test.op.String(), func(t *testing.T) {
			f, err := Encode(test.op, test.arg)
			require.NoError(t, err)
			assert.Equal(t, test.expected, f.Bytes(), hex.EncodeToString(f.Bytes()))
		})
	}
}

func TestEncode_UnsupportedOpcode(t *testing.T) {
	_, err := Encode(Opcode(0xF0), 0)
	assert.ErrorIs(t, err, ErrUnsupportedOpcode)
	assert.True(t, IsProtocolError(err))
}

func TestEncodeLength_Unsupported(t *testing.T) {
	for _, length := range []int{0, 2, 6, 8, 64} {
		_, err := encodeLength(Ping, length, 0)
		var lerr *FrameLengthError
		require.True(t, errors.As(err, &lerr), "length %d", length)
		assert.Equal(t, length, lerr.Length)
		assert.ErrorIs(t, err, ErrUnsupportedFrameLength)
	}
}

func TestLayouts_FrameLengths(t *testing.T) {
	for op, l := range layouts {
		f, err := Encode(op, 0)
		require.NoError(t, err, op.String())
		assert.Contains(t, []uint8{3, 4, 5, 7}, f.Length, op.String())
		assert.Equal(t, uint8(HeaderSize+int(l.Request)), f.Length, op.String())
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		payload  []byte
		width    Width
		expected uint32
	}{
		{"none", []byte{0xAA}, Width0, 0},
		{"none empty", nil, Width0, 0},
		{"byte", []byte{0x7F, 0xAA}, Width1, 0x7F},
		{"short", []byte{0x34, 0x12}, Width2, 0x1234},
		{"int", []byte{0x01, 0x02, 0x03, 0x04}, Width4, 0x04030201},
		{"version", []byte{0x0A, 0x01, 0x01, 0x05}, Width4, 0x0501010A},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v, err := Decode(test.payload, test.width)
			require.NoError(t, err)
			assert.Equal(t, test.expected, v)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte{0x01}, Width2)
	assert.ErrorIs(t, err, ErrShortPayload)
	_, err = Decode([]byte{0x01, 0x02, 0x03}, Width(3))
	assert.ErrorIs(t, err, ErrUnsupportedWidth)
}

// A request argument placed in a response payload decodes back to the same value.
func TestDecode_MirrorsRequestEncoding(t *testing.T) {
	values := []uint32{0, 1, 0x7F, 0xFF, 0x100, 0x1234, 0xFFFF, 0x10000, 0x00ABCDEF, 0xFFFFFFFF}
	widths := map[Width]Opcode{Width1: SetGain, Width2: SetOffset, Width4: SetExpTime}
	for w, op := range widths {
		limit := uint64(1) << (8 * uint(w))
		for _, v := range values {
			if uint64(v) >= limit {
				continue
			}
			f, err := Encode(op, v)
			require.NoError(t, err)
			got, err := Decode(f.Bytes()[HeaderSize:], w)
			require.NoError(t, err)
			assert.Equal(t, v, got, "width %d value %#x", w, v)
		}
	}
}

func TestParseResponse(t *testing.T) {
	r, err := ParseResponse([]byte{0x05, 0x07, ACK, 0x34, 0x12})
	require.NoError(t, err)
	assert.Equal(t, uint8(5), r.Length)
	assert.Equal(t, uint8(7), r.Sequence)
	assert.Equal(t, ACK, r.Code)
	assert.Equal(t, []byte{0x34, 0x12}, r.Payload)

	_, err = ParseResponse([]byte{0x02, 0x01})
	assert.ErrorIs(t, err, ErrShortPayload)
}

func TestOpcodeString(t *testing.T) {
	assert.Equal(t, "GET_EXP_TIMER_COUNT", GetExpTimerCount.String())
	assert.Equal(t, "OPCODE(0xf0)", Opcode(0xF0).String())
}

func TestAdWriteArgument(t *testing.T) {
	assert.Equal(t, uint32(0x0A00|0x1ff), AdWriteArgument(AdRedOffset, 0xFFFF))
	assert.Equal(t, uint32(0x42), AdWriteArgument(AdConfiguration, 0x42))
}
