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
	"context"
	"fmt"
	"io"
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-secgateway/pkg/backend/channel"
	"github.com/jeremyhahn/go-secgateway/pkg/keystore"
	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage keys in the daemon key store",
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List key identifiers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKeyStore(cmd, func(ctx context.Context, ks *channel.RemoteKeyStore) error {
			ids, err := ks.List(ctx)
			if err != nil {
				return err
			}
			return printer(cmd).PrintKeyList(ids)
		})
	},
}

var keysInspectCmd = &cobra.Command{
	Use:   "inspect <id>",
	Short: "Show key metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKeyStore(cmd, func(ctx context.Context, ks *channel.RemoteKeyStore) error {
			info, err := ks.Inspect(ctx, args[0])
			if err != nil {
				return err
			}
			return printer(cmd).PrintKeyInfo(info)
		})
	},
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate [id]",
	Short: "Generate a key",
	Long: `Generate fresh key material in the daemon key store. Without an id
the daemon assigns a unique identifier.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		algorithm, _ := cmd.Flags().GetString("algorithm")
		size, _ := cmd.Flags().GetInt("size")
		var id string
		if len(args) == 1 {
			id = args[0]
		}

		return withKeyStore(cmd, func(ctx context.Context, ks *channel.RemoteKeyStore) error {
			created, err := ks.Generate(ctx, algorithm, size, id)
			if err != nil {
				return err
			}
			printVerbose(cmd.ErrOrStderr(), "generated %s key %s", algorithm, created)
			info, err := ks.Inspect(ctx, created)
			if err != nil {
				return err
			}
			return printer(cmd).PrintKeyInfo(info)
		})
	},
}

var keysImportCmd = &cobra.Command{
	Use:   "import <id>",
	Short: "Store caller-supplied key material",
	Long: `Store key material read from --file, or from stdin when --file is "-".
The material is decoded with --encoding; use "raw" for binary files.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		encoding, _ := cmd.Flags().GetString("encoding")
		algorithm, _ := cmd.Flags().GetString("algorithm")
		overwrite, _ := cmd.Flags().GetBool("overwrite")

		raw, err := readFile(cmd, file)
		if err != nil {
			return err
		}
		material, err := decodeInput(raw, encoding)
		memguard.WipeBytes(raw)
		if err != nil {
			return fmt.Errorf("failed to decode key material: %w", err)
		}
		key := securebytes.Take(material)
		defer key.Destroy()

		return withKeyStore(cmd, func(ctx context.Context, ks *channel.RemoteKeyStore) error {
			err := ks.Store(ctx, key, args[0], keystore.StoreOptions{
				Overwrite: overwrite,
				Algorithm: algorithm,
			})
			if err != nil {
				return err
			}
			return printer(cmd).PrintSuccess(fmt.Sprintf("Key %s stored", args[0]))
		})
	},
}

var keysRotateCmd = &cobra.Command{
	Use:   "rotate <id>",
	Short: "Replace a key with fresh material of the same shape",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKeyStore(cmd, func(ctx context.Context, ks *channel.RemoteKeyStore) error {
			rot, err := ks.Rotate(ctx, args[0], nil, nil)
			if err != nil {
				return err
			}
			return printer(cmd).PrintKeyInfo(rot.Info)
		})
	},
}

var keysDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKeyStore(cmd, func(ctx context.Context, ks *channel.RemoteKeyStore) error {
			if err := ks.Delete(ctx, args[0]); err != nil {
				return err
			}
			return printer(cmd).PrintSuccess(fmt.Sprintf("Key %s deleted", args[0]))
		})
	},
}

func init() {
	keysGenerateCmd.Flags().String("algorithm", "AES", "key algorithm (AES, CHACHA20, HMAC, ED25519, X25519, ECDSA-P256, RSA, RAW)")
	keysGenerateCmd.Flags().Int("size", 0, "key size in bits (0 selects the algorithm default)")

	keysImportCmd.Flags().StringP("file", "f", "-", `file holding the key material ("-" for stdin)`)
	keysImportCmd.Flags().String("encoding", EncodingHex, "material encoding (hex, base64, raw)")
	keysImportCmd.Flags().String("algorithm", "", "algorithm recorded with the key (default RAW)")
	keysImportCmd.Flags().Bool("overwrite", false, "replace an existing key")

	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysInspectCmd)
	keysCmd.AddCommand(keysGenerateCmd)
	keysCmd.AddCommand(keysImportCmd)
	keysCmd.AddCommand(keysRotateCmd)
	keysCmd.AddCommand(keysDeleteCmd)
}

// withKeyStore connects to the daemon for the duration of fn.
func withKeyStore(cmd *cobra.Command, fn func(context.Context, *channel.RemoteKeyStore) error) error {
	cfg := getConfig()
	client, err := cfg.CreateClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ks, err := cfg.CreateKeyStore(client)
	if err != nil {
		return err
	}
	return fn(cmd.Context(), ks)
}

// readFile reads path, or the command's stdin when path is "-".
func readFile(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
