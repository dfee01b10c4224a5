package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/dsi"
	"github.com/mklimuk/dsi/camera"
	"github.com/mklimuk/dsi/dsictx"
	"github.com/mklimuk/dsi/pkg/config"
	"github.com/mklimuk/dsi/simulator"
	"github.com/mklimuk/dsi/usb"
)

// GlobalFlags are understood by every command that talks to the imager.
var GlobalFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:  "verbose",
		Usage: "enable verbose logging and protocol traces",
	},
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "configuration file",
		EnvVars: []string{"DSI_CONFIG"},
	},
	&cli.BoolFlag{
		Name:  "simulate",
		Usage: "talk to the built-in firmware simulator instead of USB hardware",
	},
	&cli.StringFlag{
		Name:  "device",
		Usage: "select the imager by bus address (usb:BUS,ADDR)",
	},
}

func LoadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.Load(path)
	}
	return config.Default(), nil
}

// Open connects to the imager selected by the global flags and runs the handshake.
func Open(c *cli.Context) (context.Context, *camera.Device, error) {
	ctx := dsictx.SetVerbose(c.Context, c.Bool("verbose"))
	cfg, err := LoadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	var bus dsi.Bus
	if c.Bool("simulate") {
		bus = simulator.New(simulator.WithCameraName("simulator"))
	} else {
		selector := cfg.Device.Selector
		if c.IsSet("device") {
			selector = c.String("device")
		}
		sel, err := usb.ParseSelector(selector)
		if err != nil {
			return nil, nil, err
		}
		if bus, err = usb.Open(sel); err != nil {
			return nil, nil, err
		}
	}
	cam, err := camera.Open(ctx, bus, cfg.CameraOpts()...)
	if err != nil {
		_ = bus.Close()
		return nil, nil, fmt.Errorf("could not connect to imager: %w", err)
	}
	return ctx, cam, nil
}
