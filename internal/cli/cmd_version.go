package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information, set at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "gatewright %s\n", Version)
			fmt.Fprintln(out, muted(fmt.Sprintf("  commit: %s", GitCommit)))
			fmt.Fprintln(out, muted(fmt.Sprintf("  built:  %s", BuildDate)))
			fmt.Fprintln(out, muted(fmt.Sprintf("  go:     %s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)))
		},
	}
}
