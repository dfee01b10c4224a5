package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gophertribe/devtool/build"
)

const (
	binary        = "dist/dsi"
	mainPackage   = "./cmd/dsi"
	configPackage = "github.com/mklimuk/dsi/pkg/config"
	builderImage  = "gophertribe/gobuild:1.25-bookworm"
)

// BuildCmd builds the dsi binary. gousb needs cgo, so a build for a foreign
// platform is delegated to a container that re-runs this command natively.
func BuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the dsi command line tool",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			version, _ := flags.GetString("version")
			goos, _ := flags.GetString("os")
			goarch, _ := flags.GetString("arch")
			crossOS, _ := flags.GetString("cross-os")
			crossArch, _ := flags.GetString("cross-arch")

			if goos != runtime.GOOS || goarch != runtime.GOARCH {
				noCache, err := flags.GetBool("no-cache")
				if err != nil {
					return fmt.Errorf("could not get no-cache flag: %w", err)
				}
				inner := []string{"build", "--version", version, "--cross-os", crossOS, "--cross-arch", crossArch}
				return build.Docker(cmd.Context(), fmt.Sprintf("./dev-%s-%s", goos, goarch), inner, build.DockerBuildOpts{
					NoCache: noCache,
					Image:   builderImage,
				})
			}
			if crossOS != "" && crossArch != "" {
				goos, goarch = crossOS, crossArch
			}
			return build.GoBuild(binary, mainPackage, build.GoBuildOpts{
				Version:       version,
				InjectVersion: true,
				ConfigPackage: configPackage,
				EnableCgo:     true,
				Arch:          goarch,
				OS:            goos,
			})
		},
	}
	cmd.Flags().Bool("no-cache", false, "disable the container build cache")
	cmd.Flags().String("version", "latest", "version injected into the binary")
	cmd.Flags().String("os", runtime.GOOS, "platform of the build host")
	cmd.Flags().String("arch", runtime.GOARCH, "architecture of the build host")
	cmd.Flags().String("cross-os", "", "target os inside the build container")
	cmd.Flags().String("cross-arch", "", "target architecture inside the build container")
	return cmd
}
