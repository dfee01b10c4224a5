package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/karalabe/hid"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/dsi/cmd/dsi/console"
	"github.com/mklimuk/dsi/usb"
)

var usbCmd = cli.Command{
	Name:  "usb",
	Usage: "inspect the usb bus",
	Subcommands: cli.Commands{
		&usbLsCmd,
		&usbDetectCmd,
	},
}

var usbLsCmd = cli.Command{
	Name:  "ls",
	Usage: "list usb devices",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "hid", Usage: "list HID interfaces instead of devices"},
	},
	Action: func(c *cli.Context) error {
		w := tabwriter.NewWriter(os.Stdout, 12, 0, 1, ' ', 0)
		defer func() { _ = w.Flush() }()
		if c.Bool("hid") {
			// the imager is a vendor class device and never shows up here
			_, _ = fmt.Fprintf(w, "PATH\tSERIAL\tVENDOR\tPRODUCT ID\tMANUFACTURER\tPRODUCT\n")
			for _, dev := range hid.Enumerate(0, 0) {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%#x\t%#x\t%s\t%s\n",
					dev.Path, dev.Serial, dev.VendorID, dev.ProductID, dev.Manufacturer, dev.Product)
			}
			return nil
		}
		devices, err := usb.List()
		if err != nil {
			console.Warnf("%s", err)
		}
		_, _ = fmt.Fprintf(w, "DEVICE\tPORT\tVENDOR\tPRODUCT ID\tSPEED\tDSI\n")
		for _, dev := range devices {
			_, _ = fmt.Fprintf(w, "usb:%d,%d\t%d\t%s\t%s\t%s\t%t\n",
				dev.Bus, dev.Address, dev.Port, dev.Vendor, dev.Product, dev.Speed, dev.DSI)
		}
		return nil
	},
}

var usbDetectCmd = cli.Command{
	Name:  "detect",
	Usage: "list connected DSI imagers",
	Action: func(c *cli.Context) error {
		devices, err := usb.List()
		if err != nil {
			return console.Exit(console.ExitFailure, "%s", console.Red(err))
		}
		w := tabwriter.NewWriter(os.Stdout, 12, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "DEVICE\tVENDOR\tPRODUCT\tSPEED\n")
		found := 0
		for _, dev := range devices {
			if !dev.DSI {
				continue
			}
			found++
			_, _ = fmt.Fprintf(w, "usb:%d,%d\t%s\t%s\t%s\n", dev.Bus, dev.Address, dev.Vendor, dev.Product, dev.Speed)
		}
		_ = w.Flush()
		if found == 0 {
			console.PInfof(console.PictoStop, "no imager found")
		}
		return nil
	},
}
