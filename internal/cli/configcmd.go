// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-secgateway.
//
// go-secgateway is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-secgateway/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect daemon configuration files",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a daemon configuration file",
	Long: `Load a configuration file the way the daemon does, including
environment overrides, and report whether it is valid.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(args[0])
		if err != nil {
			return err
		}
		return printer(cmd).PrintSuccess(fmt.Sprintf("Configuration is valid (backends: %v, default: %s)",
			cfg.EnabledBackends(), cfg.Gateway.DefaultBackend))
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show [file]",
	Short: "Print the effective configuration with secrets masked",
	Long:  `Print the effective configuration. Without a file the defaults are shown.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		if len(args) == 1 {
			loaded, err := config.Load(args[0])
			if err != nil {
				return err
			}
			cfg = loaded
		}
		out, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}
