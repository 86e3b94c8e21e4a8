package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nixlim/buzz/internal/config"
	"github.com/nixlim/buzz/internal/logging"
)

var (
	// Version info (set by ldflags)
	version = "dev"

	// Flags
	configPath string
	debug      bool
	plain      bool
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		// Error already printed by cobra
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "buzz",
		Short: "Periodic desktop notifications with vibration patterns",
		Long: `buzz asks for permission to show desktop notifications, then sends a
random alert every couple of seconds, buzzing the terminal bell in the
selected vibration pattern. Every attempt is listed in the alert log.

  buzz                      Open the dashboard
  buzz --plain              Line mode: prompt on stdin, log to stdout
  buzz agent                Run the delivery agent as its own process
  buzz reset-permission     Forget the remembered permission decision`,
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), plain)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/buzz/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.Flags().BoolVar(&plain, "plain", false, "line-oriented output instead of the dashboard")

	rootCmd.AddCommand(
		newAgentCmd(),
		newResetPermissionCmd(),
	)
	return rootCmd
}

// loadConfig reads --config or the default path and reports warnings on
// stderr.
func loadConfig() (config.Config, error) {
	var (
		res *config.LoadResult
		err error
	)
	if configPath != "" {
		res, err = config.LoadFrom(configPath)
	} else {
		res, err = config.Load()
	}
	if err != nil {
		return config.Config{}, err
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "buzz: config warning: %s\n", w)
	}
	return res.Config, nil
}

// openLogger opens the diagnostic log, falling back to a discarding logger
// when the file cannot be created.
func openLogger(cfg config.Config) *logging.Logger {
	l, err := logging.New(cfg.Logging, debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "buzz: diagnostic log disabled: %v\n", err)
		return logging.Nop()
	}
	return l
}
