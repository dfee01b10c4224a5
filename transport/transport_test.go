package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/dsi/dsictx"
	"github.com/mklimuk/dsi/protocol"
)

// MockEndpoints is a testify mock of the imager endpoints.
type MockEndpoints struct {
	mock.Mock
}

func (m *MockEndpoints) WriteCommand(ctx context.Context, buffer []byte) (int, error) {
	args := m.Called(ctx, append([]byte(nil), buffer...))
	return args.Int(0), args.Error(1)
}

func (m *MockEndpoints) ReadAck(ctx context.Context, buffer []byte) (int, error) {
	args := m.Called(ctx, buffer)
	if data, ok := args.Get(0).([]byte); ok {
		copy(buffer, data)
		return len(data), args.Error(1)
	}
	return 0, args.Error(1)
}

func (m *MockEndpoints) ReadPixels(ctx context.Context, buffer []byte) (int, error) {
	args := m.Called(ctx, buffer)
	if data, ok := args.Get(0).([]byte); ok {
		copy(buffer, data)
		return len(data), args.Error(1)
	}
	return 0, args.Error(1)
}

func ack(seq byte, payload ...byte) []byte {
	buf := []byte{byte(protocol.HeaderSize + len(payload)), seq, protocol.ACK}
	return append(buf, payload...)
}

func TestTransport_Call(t *testing.T) {
	tests := []struct {
		name     string
		op       protocol.Opcode
		arg      uint32
		request  []byte
		response []byte
		expected uint32
	}{
		{"ping", protocol.Ping, 0, []byte{3, 1, 0x00}, ack(1), 0},
		{"eeprom byte", protocol.GetEepromByte, 0x08, []byte{4, 1, 0x1F, 0x08}, ack(1, 0x07), 7},
		{"offset", protocol.GetOffset, 0, []byte{3, 1, 0x23}, ack(1, 0xFF, 0x00), 0xFF},
		{"timer count", protocol.GetExpTimerCount, 0, []byte{3, 1, 0x3A}, ack(1, 0x10, 0x27, 0x00, 0x00), 10000},
		{"exposure time", protocol.SetExpTime, 20000, []byte{7, 1, 0x26, 0x20, 0x4E, 0x00, 0x00}, ack(1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := new(MockEndpoints)
			ep.On("WriteCommand", mock.Anything, tt.request).Return(len(tt.request), nil).Once()
			ep.On("ReadAck", mock.Anything, mock.Anything).Return(tt.response, nil).Once()
			tr := New(ep)
			v, err := tr.Call(dsictx.SetVerbose(context.Background(), true), tt.op, tt.arg)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
			assert.Equal(t, uint8(1), tr.Sequence())
			ep.AssertExpectations(t)
		})
	}
}

func TestTransport_SequenceIncrementsAndWraps(t *testing.T) {
	ep := new(MockEndpoints)
	tr := New(ep)
	tr.sequence = 254
	for _, seq := range []byte{255, 0, 1} {
		ep.On("WriteCommand", mock.Anything, []byte{3, seq, 0x00}).Return(3, nil).Once()
		ep.On("ReadAck", mock.Anything, mock.Anything).Return(ack(seq), nil).Once()
		_, err := tr.Call(context.Background(), protocol.Ping, 0)
		require.NoError(t, err)
		assert.Equal(t, seq, tr.Sequence())
	}
	ep.AssertExpectations(t)
}

func TestTransport_SequenceMismatch(t *testing.T) {
	// a valid, acknowledged payload is still rejected when the sequence differs
	for _, got := range []byte{0, 2, 0xFF} {
		ep := new(MockEndpoints)
		ep.On("WriteCommand", mock.Anything, mock.Anything).Return(3, nil).Once()
		ep.On("ReadAck", mock.Anything, mock.Anything).Return(ack(got, 0x01), nil).Once()
		_, err := New(ep).Call(context.Background(), protocol.GetGain, 0)
		var serr *SequenceMismatchError
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, uint8(1), serr.Expected)
		assert.Equal(t, got, serr.Got)
		assert.ErrorIs(t, err, ErrSequenceMismatch)
		assert.True(t, IsTransportError(err))
	}
}

func TestTransport_NotAcknowledged(t *testing.T) {
	ep := new(MockEndpoints)
	ep.On("WriteCommand", mock.Anything, mock.Anything).Return(3, nil).Once()
	ep.On("ReadAck", mock.Anything, mock.Anything).Return([]byte{4, 1, protocol.NACK, 0x01}, nil).Once()
	_, err := New(ep).Call(context.Background(), protocol.GetGain, 0)
	var nerr *NotAcknowledgedError
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, protocol.NACK, nerr.Got)
	assert.Equal(t, protocol.GetGain, nerr.Opcode)
}

func TestTransport_LengthMismatch(t *testing.T) {
	ep := new(MockEndpoints)
	ep.On("WriteCommand", mock.Anything, mock.Anything).Return(3, nil).Once()
	ep.On("ReadAck", mock.Anything, mock.Anything).Return([]byte{7, 1, protocol.ACK, 0x01}, nil).Once()
	_, err := New(ep).Call(context.Background(), protocol.GetGain, 0)
	var lerr *LengthMismatchError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, 7, lerr.Declared)
	assert.Equal(t, 4, lerr.Actual)
}

func TestTransport_WriteFailed(t *testing.T) {
	cause := errors.New("no such device")
	ep := new(MockEndpoints)
	ep.On("WriteCommand", mock.Anything, mock.Anything).Return(0, cause).Once()
	_, err := New(ep).Call(context.Background(), protocol.Reset, 0)
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.ErrorIs(t, err, cause)
	ep.AssertNotCalled(t, "ReadAck", mock.Anything, mock.Anything)
}

func TestTransport_ReadFailed(t *testing.T) {
	cause := errors.New("timeout")
	ep := new(MockEndpoints)
	ep.On("WriteCommand", mock.Anything, mock.Anything).Return(3, nil).Once()
	ep.On("ReadAck", mock.Anything, mock.Anything).Return(nil, cause).Once()
	_, err := New(ep).Call(context.Background(), protocol.Reset, 0)
	var rerr *ReadError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, EndpointAck, rerr.Endpoint)
	assert.ErrorIs(t, err, cause)
}

func TestTransport_ShortPayload(t *testing.T) {
	ep := new(MockEndpoints)
	ep.On("WriteCommand", mock.Anything, mock.Anything).Return(3, nil).Once()
	ep.On("ReadAck", mock.Anything, mock.Anything).Return(ack(1, 0x01), nil).Once()
	_, err := New(ep).Call(context.Background(), protocol.GetVersion, 0)
	assert.ErrorIs(t, err, protocol.ErrShortPayload)
}

func TestTransport_UnsupportedOpcodeDoesNotConsumeSequence(t *testing.T) {
	ep := new(MockEndpoints)
	tr := New(ep)
	_, err := tr.Call(context.Background(), protocol.Opcode(0xEE), 0)
	assert.ErrorIs(t, err, protocol.ErrUnsupportedOpcode)
	assert.Equal(t, uint8(0), tr.Sequence())
	ep.AssertExpectations(t)
}

func TestTransport_CommandTimeoutApplied(t *testing.T) {
	ep := new(MockEndpoints)
	ep.On("WriteCommand", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= 200*time.Millisecond
	}), mock.Anything).Return(3, nil).Once()
	ep.On("ReadAck", mock.Anything, mock.Anything).Return(ack(1), nil).Once()
	_, err := New(ep, WithCommandTimeout(200*time.Millisecond)).Call(context.Background(), protocol.Ping, 0)
	require.NoError(t, err)
	ep.AssertExpectations(t)
}

func TestTransport_ReadPixels(t *testing.T) {
	ep := new(MockEndpoints)
	ep.On("ReadPixels", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	}), mock.Anything).Return([]byte{1, 2, 3, 4}, nil).Once()
	buf := make([]byte, 4)
	n, err := New(ep, WithPixelTimeout(time.Second)).ReadPixels(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)
}

func TestTransport_ReadPixelsFailed(t *testing.T) {
	ep := new(MockEndpoints)
	ep.On("ReadPixels", mock.Anything, mock.Anything).Return(nil, errors.New("pipe")).Once()
	_, err := New(ep).ReadPixels(context.Background(), make([]byte, 8))
	var rerr *ReadError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, EndpointPixels, rerr.Endpoint)
}
