package camera

import (
	"errors"
	"fmt"
)

var (
	ErrGainOutOfRange     = errors.New("gain out of range")
	ErrUnsupportedImager  = errors.New("unsupported imager")
	ErrUnknownReadoutMode = errors.New("unknown readout mode")
	ErrUnknownUSBSpeed    = errors.New("unknown usb speed")
	ErrSessionClosed      = errors.New("camera session closed")
)

// UnsupportedImagerError reports a firmware identity other than family 10, model 1, version 1.
type UnsupportedImagerError struct {
	Version Version
}

func (e *UnsupportedImagerError) Error() string {
	return fmt.Sprintf("unsupported imager (%d,%d,%d,%d) should be (10,1,1,any)",
		e.Version.Family, e.Version.Model, e.Version.Firmware, e.Version.Revision)
}

func (e *UnsupportedImagerError) Is(target error) bool { return target == ErrUnsupportedImager }
