// Package eeprom provides access to the small persistent memory of the DSI imager.
// It is built entirely on the command channel: one GET_EEPROM_BYTE or
// SET_EEPROM_BYTE exchange per byte, there is no bulk primitive.
//
// Strings are stored as a length byte followed by the characters and padded
// with 0xFF up to the region size. A region starting with three 0xFF bytes
// holds no value and reads back as "None".
//
// Example usage:
//
//	store := eeprom.New(transport)
//	name, err := store.GetString(ctx, eeprom.CameraNameOffset, eeprom.CameraNameLength)
//	if err != nil { return err }
//	err = store.SetString(ctx, "guider", eeprom.CameraNameOffset, eeprom.CameraNameLength)
package eeprom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mklimuk/dsi/protocol"
)

// NoValue is returned by GetString for an erased region.
const NoValue = "None"

// Known regions.
const (
	SerialNumberOffset = 0x00
	SerialNumberLength = 8
	ChipNameOffset     = 0x08
	ChipNameLength     = 20
	CameraNameOffset   = 0x1c
	CameraNameLength   = 0x20
)

const maxOffset = 0xFF

var ErrOffsetOutOfRange = errors.New("eeprom offset out of range")

// Commander issues a single command and returns its decoded response.
type Commander interface {
	Call(ctx context.Context, op protocol.Opcode, arg uint32) (uint32, error)
}

type Store struct {
	mx     sync.Mutex
	cmd    Commander
	length int
}

func New(cmd Commander) *Store {
	return &Store{cmd: cmd, length: -1}
}

// Length returns the EEPROM size reported by the device. The value is queried once and cached.
func (s *Store) Length(ctx context.Context) (int, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.loadLength(ctx)
}

func (s *Store) loadLength(ctx context.Context) (int, error) {
	if s.length >= 0 {
		return s.length, nil
	}
	v, err := s.cmd.Call(ctx, protocol.GetEepromLength, 0)
	if err != nil {
		return 0, fmt.Errorf("could not get eeprom length: %w", err)
	}
	s.length = int(v)
	slog.Debug("eeprom length loaded", "length", s.length)
	return s.length, nil
}

// GetByte reads one byte at offset.
func (s *Store) GetByte(ctx context.Context, offset int) (byte, error) {
	if offset < 0 || offset > maxOffset {
		return 0, fmt.Errorf("read at %#x: %w", offset, ErrOffsetOutOfRange)
	}
	v, err := s.cmd.Call(ctx, protocol.GetEepromByte, uint32(offset))
	if err != nil {
		return 0, fmt.Errorf("could not read eeprom byte %#x: %w", offset, err)
	}
	return byte(v), nil
}

// SetByte writes value at offset and returns the decoded response.
func (s *Store) SetByte(ctx context.Context, value byte, offset int) (byte, error) {
	if offset < 0 || offset > maxOffset {
		return 0, fmt.Errorf("write at %#x: %w", offset, ErrOffsetOutOfRange)
	}
	v, err := s.cmd.Call(ctx, protocol.SetEepromByte, uint32(offset)|uint32(value)<<8)
	if err != nil {
		return 0, fmt.Errorf("could not write eeprom byte %#x: %w", offset, err)
	}
	return byte(v), nil
}

// GetRegion reads length bytes starting at offset. Reading stops at the end
// of the device memory; the remaining bytes of the result stay zero.
func (s *Store) GetRegion(ctx context.Context, offset, length int) ([]byte, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	total, err := s.loadLength(ctx)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	for i := range buf {
		if offset >= total {
			return buf, nil
		}
		buf[i], err = s.GetByte(ctx, offset)
		if err != nil {
			return nil, err
		}
		offset++
	}
	return buf, nil
}

// SetRegion writes data byte by byte starting at offset.
func (s *Store) SetRegion(ctx context.Context, offset int, data []byte) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	for i, b := range data {
		if _, err := s.SetByte(ctx, b, offset+i); err != nil {
			return err
		}
	}
	return nil
}

// GetString decodes the string stored in the region.
func (s *Store) GetString(ctx context.Context, offset, length int) (string, error) {
	data, err := s.GetRegion(ctx, offset, length)
	if err != nil {
		return "", err
	}
	return decodeString(data), nil
}

// SetString encodes value into a region of length bytes, truncating it to length-2 characters.
func (s *Store) SetString(ctx context.Context, value string, offset, length int) error {
	data, err := encodeString(value, length)
	if err != nil {
		return err
	}
	return s.SetRegion(ctx, offset, data)
}

func decodeString(data []byte) string {
	if len(data) >= 3 && data[0] == 0xFF && data[1] == 0xFF && data[2] == 0xFF {
		return NoValue
	}
	if len(data) == 0 {
		return ""
	}
	n := int(data[0])
	if n > len(data)-1 {
		n = len(data) - 1
	}
	return string(data[1 : 1+n])
}

func encodeString(value string, length int) ([]byte, error) {
	if length < 2 {
		return nil, fmt.Errorf("string region of %d bytes is too small", length)
	}
	data := make([]byte, length)
	for i := range data {
		data[i] = 0xFF
	}
	n := len(value)
	if n > length-2 {
		n = length - 2
	}
	data[0] = byte(n)
	copy(data[1:], value[:n])
	return data, nil
}
