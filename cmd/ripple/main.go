package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/ripple/internal/config"
	"github.com/vango-dev/ripple/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┬─┐┬┌─┐┌─┐┬  ┌─┐
  ├┬┘│├─┘├─┘│  ├┤
  ┴└─┴┴  ┴  ┴─┘└─┘
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ripple",
		Short: "Explore a fine-grained reactive state graph",
		Long: `ripple runs demonstrations of the reactive engine and serves an
inspector for a live graph.

  • Glitch-free propagation through diamond dependencies
  • Async derived values under queue, abort and debounce strategies
  • Live values over HTTP and WebSocket`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to ripple.json (defaults apply when empty)")

	load := func() (*config.Config, error) {
		if configPath == "" {
			return config.Default()
		}
		return config.LoadFile(configPath)
	}

	rootCmd.AddCommand(
		demoCmd(load),
		inspectCmd(load),
		versionCmd(),
	)
	return rootCmd
}

// printBanner prints the ripple ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
