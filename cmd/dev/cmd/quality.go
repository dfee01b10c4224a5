package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

func TestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Run unit tests (simulator backed, no hardware needed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := test.Test(); err != nil {
				return fmt.Errorf("unit tests failed: %w", err)
			}
			return nil
		},
	}
}

func LintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Run linters",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := test.Lint(); err != nil {
				return fmt.Errorf("lint failed: %w", err)
			}
			return nil
		},
	}
}

// HardwareTestCmd runs the tests guarded by the hardware build tag against an
// attached imager.
func HardwareTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hardware-test",
		Short: "Run tests against a connected DSI",
		RunE: func(cmd *cobra.Command, args []string) error {
			device, err := cmd.Flags().GetString("device")
			if err != nil {
				return fmt.Errorf("could not get device flag: %w", err)
			}
			run := exec.CommandContext(cmd.Context(), "go", "test", "-count=1", "-tags", "hardware", "./usb/...")
			run.Env = append(os.Environ(), "DSI_DEVICE="+device)
			run.Stdout = os.Stdout
			run.Stderr = os.Stderr
			slog.Info("running hardware tests", "device", device)
			if err := run.Run(); err != nil {
				return fmt.Errorf("hardware tests failed: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("device", "", "imager selector (usb:BUS,ADDR), first DSI when empty")
	return cmd
}
