package main

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/devblac/eventvault/internal/chunkstore"
	"github.com/spf13/cobra"
)

// Set by -ldflags at release time.
var (
	version = "dev"
	commit  = ""
)

var versionVerbose bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		v, rev := buildVersion()
		fmt.Fprintf(out, "eventvault %s", v)
		if rev != "" {
			fmt.Fprintf(out, " (%s)", rev)
		}
		fmt.Fprintln(out)
		if versionVerbose {
			fmt.Fprintf(out, "go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(out, "chunk template: %s\n", chunkstore.ChunkPathTemplate)
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVarP(&versionVerbose, "verbose", "v", false, "Also print toolchain and storage layout")
}

// buildVersion prefers ldflags values and falls back to the module build info.
func buildVersion() (string, string) {
	v, rev := version, commit
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return v, rev
	}
	if v == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		v = strings.TrimPrefix(info.Main.Version, "v")
	}
	if rev == "" {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 12 {
				rev = s.Value[:12]
			}
		}
	}
	return v, rev
}
