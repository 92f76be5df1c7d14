package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/cortex-analyzer/internal/config"
)

// build holds what main injects through -ldflags.
var build struct {
	version string
	date    string
}

// SetVersion records the binary's release and build date and enables --version.
func SetVersion(version, date string) {
	if version == "" {
		version = "dev"
	}
	build.version, build.date = version, date
	rootCmd.Version = version
}

func writeVersion(w io.Writer) {
	v := build.version
	if v == "" {
		v = "dev"
	}
	fmt.Fprintf(w, "cortex-analyzer %s (%s, %s/%s)\n", v, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "  module:    %s %s\n", config.ModuleName, config.ModuleVersion)
	fmt.Fprintf(w, "  interface: %s\n", config.InterfaceVersion)
	if build.date != "" {
		fmt.Fprintf(w, "  built:     %s\n", build.date)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show release, module and host interface versions",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		writeVersion(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
