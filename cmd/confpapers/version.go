// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the confpapers version and build details",
	Run: func(cmd *cobra.Command, args []string) {
		info, _ := debug.ReadBuildInfo()
		printVersion(os.Stdout, version, info)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// printVersion writes the ldflags version, or the module version when the
// binary was installed with go install, followed by the Go toolchain and
// VCS revision when known.
func printVersion(w io.Writer, v string, info *debug.BuildInfo) {
	if info == nil {
		fmt.Fprintf(w, "confpapers %s\n", v)
		return
	}
	if v == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		v = info.Main.Version
	}
	fmt.Fprintf(w, "confpapers %s (%s)", v, info.GoVersion)
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			fmt.Fprintf(w, " rev %s", s.Value[:7])
		}
	}
	fmt.Fprintln(w)
}
