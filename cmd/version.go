package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/hrvibe/hrvibe-core/cmd.version=...".
var version = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(versionString())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// versionString falls back to the module version and VCS revision embedded
// by the Go toolchain when no version was set at link time.
func versionString() string {
	v := version
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return fmt.Sprintf("%s version: %s", app, v)
	}

	if v == "unknown" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		v = info.Main.Version
	}

	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return fmt.Sprintf("%s version: %s (%s, %s)", app, v, s.Value[:7], info.GoVersion)
		}
	}

	return fmt.Sprintf("%s version: %s (%s)", app, v, info.GoVersion)
}
