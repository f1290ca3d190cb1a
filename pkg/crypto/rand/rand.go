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

// Package rand resolves the random source used for key generation, nonces
// and the generateRandom operation.
//
// Applications create a Resolver at startup and share it:
//
//	rng, _ := rand.NewResolver(&rand.Config{Mode: rand.ModeSoftware})
//	key, _ := rng.Rand(32)
//
// A Resolver is also an io.Reader, so it can be passed to rsa.GenerateKey
// and friends in place of crypto/rand.Reader.
package rand

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// Mode specifies which RNG source to use.
type Mode string

const (
	// ModeAuto selects the best available source. Only the software
	// source is compiled in, so auto resolves to it.
	ModeAuto Mode = "auto"

	// ModeSoftware uses crypto/rand.
	ModeSoftware Mode = "software"

	// ModeReader draws from Config.Reader. Intended for tests.
	ModeReader Mode = "reader"
)

// ErrShortRead is returned when the source produced fewer bytes than asked.
var ErrShortRead = errors.New("rand: short read from source")

// Config contains RNG configuration.
type Config struct {
	// Mode defaults to ModeAuto.
	Mode Mode

	// Reader is the source for ModeReader.
	Reader io.Reader
}

// Resolver provides random bytes. Implementations are safe for concurrent use
// when their underlying source is.
type Resolver interface {
	// Rand returns n random bytes.
	Rand(n int) ([]byte, error)

	// Read implements io.Reader.
	Read(p []byte) (int, error)

	// Mode reports the source in use.
	Mode() Mode

	// Close releases any resources.
	Close() error
}

// NewResolver creates a resolver for cfg. A nil cfg selects ModeAuto.
func NewResolver(cfg *Config) (Resolver, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	switch cfg.Mode {
	case "", ModeAuto, ModeSoftware:
		return &SoftwareResolver{}, nil
	case ModeReader:
		if cfg.Reader == nil {
			return nil, fmt.Errorf("rand: mode %q requires a reader", ModeReader)
		}
		return &readerResolver{r: cfg.Reader}, nil
	default:
		return nil, fmt.Errorf("rand: unknown RNG mode: %s", cfg.Mode)
	}
}

// Default returns a software resolver.
func Default() Resolver {
	return &SoftwareResolver{}
}

// FromReader wraps r as a Resolver.
func FromReader(r io.Reader) Resolver {
	return &readerResolver{r: r}
}

// SoftwareResolver uses crypto/rand from the Go standard library.
type SoftwareResolver struct{}

var _ Resolver = (*SoftwareResolver)(nil)

func (s *SoftwareResolver) Rand(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("rand: negative length %d", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *SoftwareResolver) Read(p []byte) (int, error) {
	return rand.Read(p)
}

func (s *SoftwareResolver) Mode() Mode {
	return ModeSoftware
}

func (s *SoftwareResolver) Close() error {
	return nil
}

type readerResolver struct {
	r io.Reader
}

func (r *readerResolver) Rand(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("rand: negative length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShortRead, err)
	}
	return buf, nil
}

func (r *readerResolver) Read(p []byte) (int, error) {
	return r.r.Read(p)
}

func (r *readerResolver) Mode() Mode {
	return ModeReader
}

func (r *readerResolver) Close() error {
	if c, ok := r.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
