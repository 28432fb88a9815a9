// Package main hosts the docketd daemon entrypoint.
//
// docketd runs the scheduling loops, the retry sweep, the control socket,
// and the monitor endpoint. The boot sequence lives in internal/daemonrun;
// this binary only resolves configuration and hands off.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"docket/internal/config"
	"docket/internal/daemonrun"
)

func main() {
	if err := newDaemonCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "docketd: %v\n", err)
		os.Exit(1)
	}
}

func newDaemonCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "docketd",
		Short:         "Submission batch scheduler daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadDaemonConfig(configPath)
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	return cmd
}

// loadDaemonConfig resolves the daemon configuration. An explicitly named
// file that does not exist is an error; only the default location may fall
// back to built-in defaults.
func loadDaemonConfig(path string) (*config.Config, error) {
	path = strings.TrimSpace(path)
	cfg, resolvedPath, exists, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if path != "" && !exists {
		return nil, fmt.Errorf("config file %s does not exist", resolvedPath)
	}
	return cfg, nil
}
