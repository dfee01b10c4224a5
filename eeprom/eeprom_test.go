package eeprom

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/dsi/protocol"
	"github.com/mklimuk/dsi/simulator"
	"github.com/mklimuk/dsi/transport"
)

type MockCommander struct {
	mock.Mock
}

func (m *MockCommander) Call(ctx context.Context, op protocol.Opcode, arg uint32) (uint32, error) {
	args := m.Called(ctx, op, arg)
	return args.Get(0).(uint32), args.Error(1)
}

func newStore(opts ...simulator.Opt) (*Store, *simulator.Device) {
	dev := simulator.New(opts...)
	return New(transport.New(dev)), dev
}

func TestStore_SetThenGetString(t *testing.T) {
	ctx := context.Background()
	store, dev := newStore()
	require.NoError(t, store.SetString(ctx, "ABC", 0x1c, 0x20))

	s, err := store.GetString(ctx, 0x1c, 0x20)
	require.NoError(t, err)
	assert.Equal(t, "ABC", s)

	region := dev.Eeprom()[0x1c : 0x1c+0x20]
	assert.Equal(t, []byte{3, 'A', 'B', 'C', 0xFF}, region[:5])
	assert.Equal(t, byte(0xFF), region[0x1f])
}

func TestStore_SetStringWritesWholeRegionByteByByte(t *testing.T) {
	ctx := context.Background()
	cmd := new(MockCommander)
	cmd.On("Call", ctx, protocol.SetEepromByte, mock.Anything).Return(uint32(0), nil).Times(8)
	require.NoError(t, New(cmd).SetString(ctx, "hi", 0x10, 8))
	cmd.AssertCalled(t, "Call", ctx, protocol.SetEepromByte, uint32(0x10)|2<<8)
	cmd.AssertCalled(t, "Call", ctx, protocol.SetEepromByte, uint32(0x11)|'h'<<8)
	cmd.AssertCalled(t, "Call", ctx, protocol.SetEepromByte, uint32(0x12)|'i'<<8)
	cmd.AssertCalled(t, "Call", ctx, protocol.SetEepromByte, uint32(0x17)|0xFF<<8)
	cmd.AssertExpectations(t)
}

func TestStore_SetStringTruncates(t *testing.T) {
	ctx := context.Background()
	store, dev := newStore()
	require.NoError(t, store.SetString(ctx, "a very long chip name", 8, 10))
	s, err := store.GetString(ctx, 8, 10)
	require.NoError(t, err)
	assert.Equal(t, "a very l", s)
	assert.Equal(t, byte(0xFF), dev.Eeprom()[17])
}

func TestStore_GetStringErased(t *testing.T) {
	store, _ := newStore()
	s, err := store.GetString(context.Background(), 0x1c, 0x20)
	require.NoError(t, err)
	assert.Equal(t, NoValue, s)
}

func TestDecodeString(t *testing.T) {
	tests := []struct {
		name     string
		given    []byte
		expected string
	}{
		{"erased", []byte{0xFF, 0xFF, 0xFF, 0x41}, "None"},
		{"erased exact", []byte{0xFF, 0xFF, 0xFF}, "None"},
		{"value", []byte{2, 'o', 'k', 0xFF, 0xFF}, "ok"},
		{"empty value", []byte{0, 0xFF, 0xFF, 0xFF}, ""},
		{"two ff not sentinel", []byte{1, 0xFF, 0xFF, 'x'}, "\xff"},
		{"count past region", []byte{9, 'a', 'b'}, "ab"},
		{"nothing", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, decodeString(tt.given))
		})
	}
}

func TestStore_GetRegionStopsAtDeviceEnd(t *testing.T) {
	ctx := context.Background()
	content := []byte{0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17}
	store, dev := newStore(simulator.WithEeprom(content))

	data, err := store.GetRegion(ctx, 5, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x15, 0x16, 0x17, 0x00, 0x00, 0x00}, data)

	reads := 0
	for _, c := range dev.Journal() {
		if c.Opcode == protocol.GetEepromByte {
			reads++
			assert.Less(t, c.Arg, uint32(len(content)))
		}
	}
	assert.Equal(t, 3, reads)
}

func TestStore_LengthIsCached(t *testing.T) {
	ctx := context.Background()
	store, dev := newStore()
	_, err := store.GetRegion(ctx, 0, 2)
	require.NoError(t, err)
	_, err = store.GetRegion(ctx, 2, 2)
	require.NoError(t, err)
	n, err := store.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 64, n)

	count := 0
	for _, op := range dev.Opcodes() {
		if op == protocol.GetEepromLength {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestStore_TransportFailurePropagates(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(simulator.WithFault(protocol.GetEepromByte, simulator.FaultNack))
	_, err := store.GetString(ctx, 0x1c, 0x20)
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrNotAcknowledged)
}

func TestStore_LengthFailurePropagates(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("pipe error")
	cmd := new(MockCommander)
	cmd.On("Call", ctx, protocol.GetEepromLength, uint32(0)).Return(uint32(0), cause).Once()
	_, err := New(cmd).GetString(ctx, 8, 20)
	assert.ErrorIs(t, err, cause)
}

func TestStore_OffsetRange(t *testing.T) {
	store, _ := newStore()
	_, err := store.GetByte(context.Background(), 0x100)
	assert.ErrorIs(t, err, ErrOffsetOutOfRange)
	_, err = store.SetByte(context.Background(), 1, -1)
	assert.ErrorIs(t, err, ErrOffsetOutOfRange)
}

func TestEncodeString_RegionTooSmall(t *testing.T) {
	_, err := encodeString("x", 1)
	assert.Error(t, err)
}
