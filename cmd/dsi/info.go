package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/dsi/camera"
	"github.com/mklimuk/dsi/cmd/dsi/command"
	"github.com/mklimuk/dsi/cmd/dsi/console"
)

type imagerInfo struct {
	Version       string    `yaml:"version"`
	USBSpeed      string    `yaml:"usb_speed"`
	FirmwareDebug bool      `yaml:"firmware_debug"`
	Chip          string    `yaml:"chip"`
	Name          string    `yaml:"name"`
	Serial        string    `yaml:"serial"`
	ReadoutMode   string    `yaml:"readout_mode"`
	Gain          int       `yaml:"gain"`
	Offset        int       `yaml:"offset"`
	Temperature   uint16    `yaml:"temperature_raw"`
	EepromLength  int       `yaml:"eeprom_length"`
	ExposureTime  string    `yaml:"exposure_time"`
	TestPattern   bool      `yaml:"test_pattern"`
	Geometry      *geometry `yaml:"geometry,omitempty"`
}

type geometry struct {
	ReadWidth   int `yaml:"read_width"`
	EvenRows    int `yaml:"even_rows"`
	OddRows     int `yaml:"odd_rows"`
	ImageWidth  int `yaml:"image_width"`
	ImageHeight int `yaml:"image_height"`
}

var infoCmd = cli.Command{
	Name:  "info",
	Usage: "connect to the imager and print its identity and settings",
	Action: func(c *cli.Context) error {
		ctx, cam, err := command.Open(c)
		if err != nil {
			return console.ExitFor(err, "connection failed")
		}
		defer func() { _ = cam.Close() }()
		info, err := collectInfo(ctx, cam)
		if err != nil {
			return console.ExitFor(err, "could not read imager state")
		}
		out, err := yaml.Marshal(info)
		if err != nil {
			return fmt.Errorf("could not marshal info: %w", err)
		}
		console.Printf("%s", out)
		return nil
	},
}

func collectInfo(ctx context.Context, cam *camera.Device) (*imagerInfo, error) {
	info := &imagerInfo{
		Version:       cam.Version().String(),
		USBSpeed:      cam.Status().USBSpeed.String(),
		FirmwareDebug: cam.Status().Debug,
		Chip:          cam.ChipName(),
		Name:          cam.CameraName(),
		ExposureTime:  cam.ExposureTime().String(),
		TestPattern:   cam.TestPattern(),
	}
	if !info.TestPattern {
		g := cam.Geometry()
		info.Geometry = &geometry{ReadWidth: g.ReadWidth, EvenRows: g.EvenRows, OddRows: g.OddRows, ImageWidth: g.ImageWidth, ImageHeight: g.ImageHeight}
	}
	sn, err := cam.SerialNumber(ctx)
	if err != nil {
		return nil, err
	}
	info.Serial = fmt.Sprintf("%016x", sn)
	mode, err := cam.ReadoutMode(ctx)
	if err != nil {
		return nil, err
	}
	info.ReadoutMode = mode.String()
	if info.Gain, err = cam.Gain(ctx); err != nil {
		return nil, err
	}
	if info.Offset, err = cam.Offset(ctx); err != nil {
		return nil, err
	}
	if info.Temperature, err = cam.Temperature(ctx); err != nil {
		return nil, err
	}
	if info.EepromLength, err = cam.EEPROM().Length(ctx); err != nil {
		return nil, err
	}
	return info, nil
}
