package command

import (
	"encoding/hex"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/dsi/cmd/dsi/console"
)

var EepromReadCmd = &cli.Command{
	Name:  "read",
	Usage: "dump an eeprom region",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "offset", Usage: "first byte to read", Value: 0},
		&cli.IntFlag{Name: "length", Usage: "number of bytes to read", Value: 64},
	},
	Action: func(c *cli.Context) error {
		offset, length := c.Int("offset"), c.Int("length")
		if offset < 0 || offset > 0xFF {
			return console.Exit(console.ExitUsage, "offset out of range (0-0xFF): %d", offset)
		}
		if length <= 0 || length > 0x100 {
			return console.Exit(console.ExitUsage, "length out of range (1-256): %d", length)
		}
		ctx, cam, err := Open(c)
		if err != nil {
			return console.ExitFor(err, "connection failed")
		}
		defer func() { _ = cam.Close() }()
		data, err := cam.EEPROM().GetRegion(ctx, offset, length)
		if err != nil {
			return console.ExitFor(err, "eeprom read failed")
		}
		console.Print(hex.Dump(data))
		return nil
	},
}

var EepromWriteCmd = &cli.Command{
	Name:  "write",
	Usage: "write bytes to the eeprom",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "offset", Usage: "first byte to write", Required: true},
		&cli.StringFlag{Name: "data", Usage: "hex bytes to write (e.g. '01FF23')", Required: true},
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
	},
	Action: func(c *cli.Context) error {
		offset := c.Int("offset")
		data, err := hex.DecodeString(c.String("data"))
		if err != nil {
			return console.Exit(console.ExitUsage, "invalid data hex string: %s", console.Red(err))
		}
		if offset < 0 || offset+len(data) > 0x100 {
			return console.Exit(console.ExitUsage, "write of %d bytes at %#x does not fit the eeprom", len(data), offset)
		}
		if !c.Bool("yes") {
			ok, err := console.Confirm(fmt.Sprintf("overwrite %d eeprom bytes at %#02x?", len(data), offset))
			if err != nil {
				return console.Exit(console.ExitFailure, "could not read answer: %s", err)
			}
			if !ok {
				console.PInfof(console.PictoStop, "nothing written")
				return nil
			}
		}
		ctx, cam, err := Open(c)
		if err != nil {
			return console.ExitFor(err, "connection failed")
		}
		defer func() { _ = cam.Close() }()
		if err := cam.EEPROM().SetRegion(ctx, offset, data); err != nil {
			return console.ExitFor(err, "eeprom write failed")
		}
		console.PInfof(console.PictoFloppy, "wrote %d bytes at %#02x: % X", len(data), offset, data)
		return nil
	},
}

var EepromNameCmd = &cli.Command{
	Name:  "name",
	Usage: "show or set the camera name",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "set", Usage: "new camera name"},
	},
	Action: func(c *cli.Context) error {
		ctx, cam, err := Open(c)
		if err != nil {
			return console.ExitFor(err, "connection failed")
		}
		defer func() { _ = cam.Close() }()
		if c.IsSet("set") {
			if err := cam.SetCameraName(ctx, c.String("set")); err != nil {
				return console.ExitFor(err, "could not set camera name")
			}
		}
		console.PInfof(console.PictoCamera, "%s", console.White(cam.CameraName()))
		return nil
	},
}

var EepromSerialCmd = &cli.Command{
	Name:  "serial",
	Usage: "show the serial number",
	Action: func(c *cli.Context) error {
		ctx, cam, err := Open(c)
		if err != nil {
			return console.ExitFor(err, "connection failed")
		}
		defer func() { _ = cam.Close() }()
		sn, err := cam.SerialNumber(ctx)
		if err != nil {
			return console.ExitFor(err, "could not read serial number")
		}
		console.PInfof(console.PictoKey, "%016x", sn)
		return nil
	},
}

var EepromCmd = &cli.Command{
	Name:    "eeprom",
	Aliases: []string{"mem"},
	Usage:   "eeprom-related operations",
	Subcommands: []*cli.Command{
		EepromReadCmd,
		EepromWriteCmd,
		EepromNameCmd,
		EepromSerialCmd,
	},
}
