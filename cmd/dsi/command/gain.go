package command

import (
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/dsi/camera"
	"github.com/mklimuk/dsi/cmd/dsi/console"
)

var GainCmd = &cli.Command{
	Name:  "gain",
	Usage: "show or set the amplifier gain (0-63)",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "set", Usage: "new gain value"},
	},
	Action: func(c *cli.Context) error {
		if c.IsSet("set") && (c.Int("set") < 0 || c.Int("set") > camera.MaxGain) {
			return console.Exit(console.ExitUsage, "gain out of range (0-%d): %d", camera.MaxGain, c.Int("set"))
		}
		ctx, cam, err := Open(c)
		if err != nil {
			return console.ExitFor(err, "connection failed")
		}
		defer func() { _ = cam.Close() }()
		if c.IsSet("set") {
			if err := cam.SetGain(ctx, c.Int("set")); err != nil {
				return console.ExitFor(err, "could not set gain")
			}
		}
		gain, err := cam.Gain(ctx)
		if err != nil {
			return console.ExitFor(err, "could not read gain")
		}
		console.Printf("gain: %s\n", console.White(gain))
		return nil
	},
}
