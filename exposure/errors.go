package exposure

import (
	"errors"
	"fmt"

	"github.com/mklimuk/dsi/imaging"
	"github.com/mklimuk/dsi/protocol"
)

var (
	ErrConfigurationFailed = errors.New("exposure configuration failed")
	ErrImageDownloadFailed = errors.New("image download failed")
	ErrAborted             = errors.New("exposure aborted")
)

// ConfigurationError reports the command and phase that aborted an exposure before readout.
type ConfigurationError struct {
	Phase  State
	Opcode protocol.Opcode
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("exposure %s: %s failed: %v", e.Phase, e.Opcode, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfigurationFailed }

// ImageDownloadError reports which field could not be read from the pixel endpoint.
type ImageDownloadError struct {
	Field imaging.Field
	Err   error
}

func (e *ImageDownloadError) Error() string {
	return fmt.Sprintf("could not download %s field: %v", e.Field, e.Err)
}

func (e *ImageDownloadError) Unwrap() error { return e.Err }

func (e *ImageDownloadError) Is(target error) bool { return target == ErrImageDownloadFailed }
