package dsi

import (
	"context"
	"errors"
)

var ErrBusClosed = errors.New("usb endpoints already released")

// CommandWriter writes raw command frames to the command OUT endpoint (0x01).
type CommandWriter interface {
	WriteCommand(ctx context.Context, buffer []byte) (int, error)
}

// AckReader reads raw response frames from the ACK IN endpoint (0x81).
type AckReader interface {
	ReadAck(ctx context.Context, buffer []byte) (int, error)
}

// PixelReader reads raw field data from the pixel IN endpoint (0x86).
type PixelReader interface {
	ReadPixels(ctx context.Context, buffer []byte) (int, error)
}

// Bus is the set of bulk endpoints exposed by an opened imager.
type Bus interface {
	CommandWriter
	AckReader
	PixelReader
	Close() error
}
