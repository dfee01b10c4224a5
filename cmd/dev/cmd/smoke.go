package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
)

// SmokeCmd runs the dsi cli end to end against the firmware simulator.
func SmokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run the dsi cli against the firmware simulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return fmt.Errorf("could not get out flag: %w", err)
			}
			if err := os.MkdirAll(out, 0o755); err != nil {
				return fmt.Errorf("could not create output dir: %w", err)
			}
			steps := [][]string{
				{"info"},
				{"eeprom", "name", "--set", "smoke"},
				{"gain", "--set", "12"},
				{"expose", "--test-pattern", "--out", filepath.Join(out, "pattern.png"), "--raw", filepath.Join(out, "pattern.raw")},
			}
			for _, step := range steps {
				goArgs := append([]string{"run", "./cmd/dsi", "--simulate"}, step...)
				slog.Info("running", "args", step)
				run := exec.CommandContext(cmd.Context(), "go", goArgs...)
				run.Stdout = os.Stdout
				run.Stderr = os.Stderr
				if err := run.Run(); err != nil {
					return fmt.Errorf("smoke step %v failed: %w", step, err)
				}
			}
			slog.Info("smoke test passed", "output", out)
			return nil
		},
	}
	cmd.Flags().String("out", "dist/smoke", "directory for captured frames")
	return cmd
}
