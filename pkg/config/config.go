// Package config holds the dsi command line configuration file and the build version.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/dsi/camera"
	"github.com/mklimuk/dsi/imaging"
	"github.com/mklimuk/dsi/transport"
	"github.com/mklimuk/dsi/usb"
)

// Version is injected at build time.
var Version = "dev"

type Config struct {
	Device   DeviceConfig      `yaml:"device"`
	Geometry *imaging.Geometry `yaml:"geometry,omitempty"`
	Exposure ExposureConfig    `yaml:"exposure"`
}

type DeviceConfig struct {
	// Selector is empty or usb:BUS,ADDR.
	Selector       string        `yaml:"selector"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	PixelTimeout   time.Duration `yaml:"pixel_timeout"`
}

type ExposureConfig struct {
	Time        time.Duration `yaml:"time"`
	TestPattern bool          `yaml:"test_pattern"`
}

// Default returns the configuration of a generic imager. Without a geometry
// section the session only produces test pattern frames.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			CommandTimeout: transport.DefaultCommandTimeout,
			PixelTimeout:   transport.DefaultPixelTimeout,
		},
		Exposure: ExposureConfig{
			Time: camera.UnitsToDuration(10),
		},
	}
}

// Load reads path over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("could not parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration without changing it.
func (c *Config) Validate() error {
	var errs []error
	if _, err := usb.ParseSelector(c.Device.Selector); err != nil {
		errs = append(errs, err)
	}
	if c.Device.CommandTimeout <= 0 {
		errs = append(errs, fmt.Errorf("device.command_timeout must be positive"))
	}
	if c.Device.PixelTimeout <= 0 {
		errs = append(errs, fmt.Errorf("device.pixel_timeout must be positive"))
	}
	if c.Exposure.Time < 0 {
		errs = append(errs, fmt.Errorf("exposure.time must not be negative"))
	}
	if c.Geometry != nil {
		if err := c.Geometry.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("geometry: %w", err))
		}
	}
	return errors.Join(errs...)
}

// CameraOpts translates the configuration into session options.
func (c *Config) CameraOpts() []camera.Opt {
	opts := []camera.Opt{
		camera.WithCommandTimeout(c.Device.CommandTimeout),
		camera.WithPixelTimeout(c.Device.PixelTimeout),
		camera.WithExposureTime(c.Exposure.Time),
	}
	if c.Geometry != nil {
		opts = append(opts, camera.WithGeometry(*c.Geometry))
	}
	if c.Exposure.TestPattern {
		opts = append(opts, camera.WithTestPattern(true))
	}
	return opts
}
