package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/dsi/camera"
	"github.com/mklimuk/dsi/cmd/dsi/command"
	"github.com/mklimuk/dsi/cmd/dsi/console"
)

var exposeCmd = cli.Command{
	Name:  "expose",
	Usage: "take one image",
	Flags: []cli.Flag{
		&cli.DurationFlag{Name: "time", Aliases: []string{"t"}, Usage: "exposure time (100µs resolution)"},
		&cli.BoolFlag{Name: "test-pattern", Usage: "request the synthetic test pattern"},
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write a 16-bit grayscale PNG", Value: "dsi.png"},
		&cli.StringFlag{Name: "raw", Usage: "also write the raw big-endian pixels to this file"},
	},
	Action: func(c *cli.Context) error {
		ctx, cam, err := command.Open(c)
		if err != nil {
			return console.ExitFor(err, "connection failed")
		}
		defer func() { _ = cam.Close() }()

		if c.IsSet("time") {
			cam.SetExposureTime(c.Duration("time"))
			if cam.TestPattern() && !c.Bool("test-pattern") {
				console.Warnf("no sensor geometry configured, taking a test pattern instead")
			}
		}
		if c.Bool("test-pattern") {
			cam.SetTestPattern(true)
		}

		ctx, stop := abortOnInterrupt(ctx, cam)
		defer stop()

		console.PInfof(console.PictoCamera, "exposing for %s", console.White(cam.ExposureTime()))
		img, err := cam.Expose(ctx)
		if err != nil {
			return console.ExitFor(err, "exposure failed")
		}
		if err := writeImage(c.String("out"), img.WritePNG); err != nil {
			return console.Exit(console.ExitFailure, "%s", console.Red(err))
		}
		if raw := c.String("raw"); raw != "" {
			if err := writeImage(raw, img.WriteRaw); err != nil {
				return console.Exit(console.ExitFailure, "%s", console.Red(err))
			}
		}
		console.PInfof(console.PictoFinish, "%dx%d image written to %s", img.Width, img.Height, console.Green(c.String("out")))
		return nil
	},
}

// abortOnInterrupt turns the first interrupt into a cooperative abort and the
// second one into a context cancellation.
func abortOnInterrupt(parent context.Context, cam *camera.Device) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		aborted := false
		for {
			select {
			case <-signals:
				if aborted {
					slog.Warn("interrupted again, cancelling")
					cancel()
					return
				}
				aborted = true
				slog.Warn("abort requested, waiting for the current phase to finish", "state", cam.ExposureState())
				cam.AbortExposure()
			case <-ctx.Done():
				return
			}
		}
	}()
	return ctx, func() {
		signal.Stop(signals)
		cancel()
	}
}

func writeImage(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("could not write %s: %w", path, err)
	}
	return f.Close()
}
