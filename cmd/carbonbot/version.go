package main

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "carbonbot %s (%s, %s/%s)\n", strings.TrimSpace(version), runtime.Version(), runtime.GOOS, runtime.GOARCH)
			if c := buildCommit(); c != "" {
				_, _ = fmt.Fprintf(out, "commit: %s\n", c)
			}
			if d := strings.TrimSpace(date); d != "" && d != "unknown" {
				_, _ = fmt.Fprintf(out, "date: %s\n", d)
			}
			return nil
		},
	}
}

// buildCommit prefers the linker-injected commit and falls back to the VCS
// revision recorded by the go toolchain.
func buildCommit() string {
	if c := strings.TrimSpace(commit); c != "" && c != "none" {
		return c
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}
