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
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Run a single security operation on the daemon",
	Long: `Run one security operation through the gateway daemon. The daemon's
default backend serves the request unless --backend names another.

Input is the positional argument taken as raw text, or the contents of
--file decoded with --input-encoding.`,
}

// dataCommand describes an exec subcommand that sends input data and
// prints the returned data.
type dataCommand struct {
	use            string
	short          string
	kind           types.OperationKind
	keyed          bool
	label          string
	inputEncoding  string
	outputEncoding string
}

var dataCommands = []dataCommand{
	{use: "hash", short: "Compute a digest", kind: types.OpHash,
		label: "digest", inputEncoding: EncodingRaw, outputEncoding: EncodingHex},
	{use: "mac", short: "Compute a message authentication code", kind: types.OpMAC, keyed: true,
		label: "mac", inputEncoding: EncodingRaw, outputEncoding: EncodingHex},
	{use: "encrypt", short: "Encrypt with a symmetric key", kind: types.OpEncryptSymmetric, keyed: true,
		label: "ciphertext", inputEncoding: EncodingRaw, outputEncoding: EncodingBase64},
	{use: "decrypt", short: "Decrypt with a symmetric key", kind: types.OpDecryptSymmetric, keyed: true,
		label: "plaintext", inputEncoding: EncodingBase64, outputEncoding: EncodingRaw},
	{use: "sign", short: "Sign data", kind: types.OpSign, keyed: true,
		label: "signature", inputEncoding: EncodingRaw, outputEncoding: EncodingBase64},
}

func (d dataCommand) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   d.use + " [data]",
		Short: d.short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := requestFromFlags(cmd, args, d.kind)
			if err != nil {
				return err
			}
			defer req.Destroy()

			out, err := perform(cmd, req)
			if err != nil {
				return err
			}
			defer out.Data.Destroy()

			encoding, _ := cmd.Flags().GetString("encoding")
			data := out.Data.Bytes()
			defer memguard.WipeBytes(data)
			return printer(cmd).PrintData(d.label, data, encoding)
		},
	}
	addInputFlags(cmd, d.inputEncoding)
	cmd.Flags().String("encoding", d.outputEncoding, "output encoding (hex, base64, raw)")
	cmd.Flags().String("algorithm", "", "algorithm (default chosen by the backend)")
	if d.keyed {
		cmd.Flags().String("key", "", "key identifier")
		_ = cmd.MarkFlagRequired("key")
	}
	return cmd
}

var execVerifyCmd = &cobra.Command{
	Use:   "verify [data]",
	Short: "Verify a signature",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := requestFromFlags(cmd, args, types.OpVerify)
		if err != nil {
			return err
		}
		defer req.Destroy()

		sig, _ := cmd.Flags().GetString("signature")
		raw, err := decodeInput([]byte(sig), EncodingBase64)
		if err != nil {
			return fmt.Errorf("failed to decode signature: %w", err)
		}
		req.Signature = securebytes.Take(raw)

		out, err := perform(cmd, req)
		if err != nil {
			return err
		}
		out.Data.Destroy()
		return printer(cmd).PrintSuccess("Signature valid")
	},
}

var execRandomCmd = &cobra.Command{
	Use:   "random",
	Short: "Generate random bytes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bits, _ := cmd.Flags().GetInt("bits")
		encoding, _ := cmd.Flags().GetString("encoding")

		out, err := perform(cmd, &types.Request{Kind: types.OpGenerateRandom, KeySizeBits: bits})
		if err != nil {
			return err
		}
		defer out.Data.Destroy()

		data := out.Data.Bytes()
		defer memguard.WipeBytes(data)
		return printer(cmd).PrintData("random", data, encoding)
	},
}

func init() {
	for _, d := range dataCommands {
		execCmd.AddCommand(d.command())
	}

	addInputFlags(execVerifyCmd, EncodingRaw)
	execVerifyCmd.Flags().String("key", "", "key identifier")
	execVerifyCmd.Flags().String("signature", "", "base64 signature")
	execVerifyCmd.Flags().String("algorithm", "", "algorithm (default chosen by the backend)")
	_ = execVerifyCmd.MarkFlagRequired("key")
	_ = execVerifyCmd.MarkFlagRequired("signature")
	execCmd.AddCommand(execVerifyCmd)

	execRandomCmd.Flags().Int("bits", 256, "number of random bits, a multiple of 8")
	execRandomCmd.Flags().String("encoding", EncodingHex, "output encoding (hex, base64, raw)")
	execCmd.AddCommand(execRandomCmd)
}

func addInputFlags(cmd *cobra.Command, inputEncoding string) {
	cmd.Flags().StringP("file", "f", "", `read input from a file ("-" for stdin)`)
	cmd.Flags().String("input-encoding", inputEncoding, "input encoding (hex, base64, raw)")
}

// requestFromFlags builds a request of kind from the input and the common
// flags.
func requestFromFlags(cmd *cobra.Command, args []string, kind types.OperationKind) (*types.Request, error) {
	input, err := readInput(cmd, args)
	if err != nil {
		return nil, err
	}
	req := &types.Request{Kind: kind, InputData: securebytes.Take(input)}
	if cmd.Flags().Lookup("key") != nil {
		req.KeyIdentifier, _ = cmd.Flags().GetString("key")
	}
	req.Algorithm, _ = cmd.Flags().GetString("algorithm")
	return req, nil
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	file, _ := cmd.Flags().GetString("file")
	encoding, _ := cmd.Flags().GetString("input-encoding")

	var raw []byte
	switch {
	case file != "" && len(args) > 0:
		return nil, errors.New("give either [data] or --file, not both")
	case file != "":
		data, err := readFile(cmd, file)
		if err != nil {
			return nil, err
		}
		raw = data
	case len(args) == 1:
		raw = []byte(args[0])
	default:
		return nil, errors.New("no input: give [data] or --file")
	}
	defer memguard.WipeBytes(raw)

	out, err := decodeInput(raw, encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}
	return out, nil
}

// perform sends req to the daemon and returns its success value.
func perform(cmd *cobra.Command, req *types.Request) (*types.Success, error) {
	cfg := getConfig()
	client, err := cfg.CreateClient()
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	b, err := cfg.CreateBackend(client)
	if err != nil {
		return nil, err
	}
	printVerbose(cmd.ErrOrStderr(), "sending %s to %s", req.Kind, cfg.SocketPath)

	res := b.Perform(cmd.Context(), req)
	if s, ok := res.Success(); ok {
		return s, nil
	}
	return nil, res.Err()
}
