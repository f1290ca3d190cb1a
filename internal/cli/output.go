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
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-secgateway/pkg/backend/channel"
	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
	OutputFormatYAML OutputFormat = "yaml"
)

// Data encodings for binary output.
const (
	EncodingHex    = "hex"
	EncodingBase64 = "base64"
	EncodingRaw    = "raw"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(strings.ToLower(format)),
		writer: writer,
	}
}

// PrintStatus prints the daemon status snapshot
func (p *Printer) PrintStatus(st *channel.WireStatus) error {
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		return p.printStructured(st)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Gateway:  %s\n", st.Name)
		fmt.Fprintf(p.writer, "Version:  %s\n", st.Version)
		fmt.Fprintf(p.writer, "State:    %s\n", st.State)
		fmt.Fprintf(p.writer, "Started:  %s\n", st.StartedAt.Format(time.RFC3339))
		fmt.Fprintf(p.writer, "Uptime:   %s\n", time.Duration(st.UptimeSeconds)*time.Second)
		if len(st.Backends) > 0 {
			fmt.Fprintln(p.writer, "Components:")
			names := make([]string, 0, len(st.Backends))
			for name := range st.Backends {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(p.writer, "  %-12s %s\n", name, st.Backends[name])
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintKeyList prints a list of key identifiers
func (p *Printer) PrintKeyList(ids []string) error {
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		if ids == nil {
			ids = []string{}
		}
		return p.printStructured(map[string]interface{}{"keys": ids})
	case OutputFormatText:
		if len(ids) == 0 {
			fmt.Fprintln(p.writer, "No keys found")
			return nil
		}
		fmt.Fprintln(p.writer, "Keys:")
		for _, id := range ids {
			fmt.Fprintf(p.writer, "  - %s\n", id)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintKeyInfo prints key metadata
func (p *Printer) PrintKeyInfo(info types.KeyInfo) error {
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		return p.printStructured(info)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Key Information:\n")
		fmt.Fprintf(p.writer, "  Identifier: %s\n", info.Identifier)
		fmt.Fprintf(p.writer, "  Algorithm:  %s\n", info.Algorithm)
		fmt.Fprintf(p.writer, "  Size:       %d bits\n", info.SizeBits)
		fmt.Fprintf(p.writer, "  Version:    %d\n", info.Version)
		if !info.CreatedAt.IsZero() {
			fmt.Fprintf(p.writer, "  Created:    %s\n", info.CreatedAt.Format(time.RFC3339))
		}
		if !info.RotatedAt.IsZero() {
			fmt.Fprintf(p.writer, "  Rotated:    %s\n", info.RotatedAt.Format(time.RFC3339))
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintData prints operation output in the given encoding
func (p *Printer) PrintData(label string, data []byte, encoding string) error {
	encoded, err := encode(data, encoding)
	if err != nil {
		return err
	}
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		return p.printStructured(map[string]interface{}{
			label:      encoded,
			"encoding": encoding,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, encoded)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		return p.printStructured(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message. Security failures keep their kind
// and code.
func (p *Printer) PrintError(err error) error {
	var sf *failure.SecurityFailure
	isFailure := errors.As(err, &sf)

	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		out := map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
		if isFailure {
			out["kind"] = sf.Kind.String()
			out["code"] = sf.Code
		}
		return p.printStructured(out)
	default:
		if isFailure {
			fmt.Fprintf(p.writer, "Error: %s (%s, code %d)\n", sf.Message, sf.Kind, sf.Code)
			return nil
		}
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
}

func (p *Printer) printStructured(v interface{}) error {
	if p.format == OutputFormatYAML {
		return p.printYAML(v)
	}
	return p.printJSON(v)
}

// printJSON prints data as JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// printYAML prints data as YAML
func (p *Printer) printYAML(data interface{}) error {
	encoder := yaml.NewEncoder(p.writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}

func encode(data []byte, encoding string) (string, error) {
	switch encoding {
	case EncodingHex, "":
		return hex.EncodeToString(data), nil
	case EncodingBase64:
		return base64.StdEncoding.EncodeToString(data), nil
	case EncodingRaw:
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown encoding: %s", encoding)
	}
}

// decodeInput returns a new slice holding in decoded from encoding.
func decodeInput(in []byte, encoding string) ([]byte, error) {
	switch encoding {
	case EncodingHex, "":
		return hex.DecodeString(strings.TrimSpace(string(in)))
	case EncodingBase64:
		return base64.StdEncoding.DecodeString(strings.TrimSpace(string(in)))
	case EncodingRaw:
		out := make([]byte, len(in))
		copy(out, in)
		return out, nil
	default:
		return nil, fmt.Errorf("unknown encoding: %s", encoding)
	}
}
