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
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gateway daemon status",
	Long: `Print the daemon's name, version, lifecycle state and the health of
every registered component.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := getConfig().CreateClient()
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		printVerbose(cmd.ErrOrStderr(), "querying %s", getConfig().SocketPath)
		st, err := client.Status(cmd.Context())
		if err != nil {
			return err
		}
		return printer(cmd).PrintStatus(st)
	},
}
