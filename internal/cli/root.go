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
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global configuration
	globalConfig *Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "secgateway",
	Short: "secgateway CLI - client for the security operation gateway",
	Long: `secgateway talks to a running gateway daemon over its unix socket.

It can report daemon status, manage keys in the daemon's key store and
run individual security operations against any registered backend.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		globalConfig.applyEnv(cmd.Flags().Changed("socket"))
	},
}

// Execute runs the root command. Errors are printed to stderr in the
// selected output format before being returned.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printer := NewPrinter(globalConfig.OutputFormat, rootCmd.ErrOrStderr())
		if perr := printer.PrintError(err); perr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	return err
}

func init() {
	// Initialize global config
	globalConfig = NewConfig()

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&globalConfig.SocketPath, "socket", globalConfig.SocketPath,
		"gateway daemon socket (env "+EnvSocket+")")
	rootCmd.PersistentFlags().DurationVar(&globalConfig.Timeout, "timeout", globalConfig.Timeout,
		"request timeout")
	rootCmd.PersistentFlags().StringVar(&globalConfig.Backend, "backend", "",
		"backend the daemon should use (default is the daemon's default backend)")
	rootCmd.PersistentFlags().StringVarP(&globalConfig.OutputFormat, "output", "o", "text",
		"output format (text, json, yaml)")
	rootCmd.PersistentFlags().BoolVarP(&globalConfig.Verbose, "verbose", "v", false,
		"verbose output")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(configCmd)
}

// getConfig returns the global configuration
func getConfig() *Config {
	return globalConfig
}

// printer returns a Printer writing to the command's output.
func printer(cmd *cobra.Command) *Printer {
	return NewPrinter(getConfig().OutputFormat, cmd.OutOrStdout())
}

// printVerbose prints a message if verbose mode is enabled
func printVerbose(w io.Writer, format string, args ...interface{}) {
	if globalConfig.Verbose {
		fmt.Fprintf(w, "[VERBOSE] "+format+"\n", args...)
	}
}
