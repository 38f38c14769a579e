package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information set via ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of ramwatch.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		writeVersion(cmd.OutOrStdout(), versionShort)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")
}

func writeVersion(w io.Writer, short bool) {
	if short {
		fmt.Fprintln(w, version)
		return
	}
	fmt.Fprintf(w, "ramwatch %s\n", formatVersion(version))
	fmt.Fprintf(w, "commit:  %s\n", commit)
	fmt.Fprintf(w, "built:   %s\n", date)
	fmt.Fprintf(w, "go:      %s\n", runtime.Version())
	fmt.Fprintf(w, "os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// formatVersion adds a 'v' prefix to release versions.
func formatVersion(v string) string {
	if v == "" || v == "dev" || v[0] == 'v' {
		return v
	}
	return "v" + v
}

// SetVersionInfo sets the version information (called from main).
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

// GetVersion returns the display version, e.g. "v1.2.0" or "dev".
func GetVersion() string {
	return formatVersion(version)
}
