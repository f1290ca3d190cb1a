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

package modern

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const envelopeVersion byte = 0x01

// ErrMalformedEnvelope is returned when ciphertext cannot be parsed.
var ErrMalformedEnvelope = errors.New("modern: malformed ciphertext envelope")

// envelope is an AEAD ciphertext with the parameters needed to open it.
type envelope struct {
	Algorithm  string
	Nonce      []byte
	Tag        []byte
	Ciphertext []byte
}

// marshal encodes e as:
//
//	version    1 byte (0x01)
//	algorithm  uint16 length + bytes
//	nonce      uint16 length + bytes
//	tag        uint16 length + bytes
//	ciphertext uint32 length + bytes
//
// All lengths are big-endian.
func (e *envelope) marshal() ([]byte, error) {
	if len(e.Algorithm) > 0xffff || len(e.Nonce) > 0xffff || len(e.Tag) > 0xffff {
		return nil, fmt.Errorf("%w: field exceeds 65535 bytes", ErrMalformedEnvelope)
	}
	if uint64(len(e.Ciphertext)) > 0xffffffff {
		return nil, fmt.Errorf("%w: ciphertext too long", ErrMalformedEnvelope)
	}

	buf := bytes.NewBuffer(make([]byte, 0, 1+2+len(e.Algorithm)+2+len(e.Nonce)+2+len(e.Tag)+4+len(e.Ciphertext)))
	buf.WriteByte(envelopeVersion)
	// #nosec G115 - lengths checked above
	_ = binary.Write(buf, binary.BigEndian, uint16(len(e.Algorithm)))
	buf.WriteString(e.Algorithm)
	// #nosec G115
	_ = binary.Write(buf, binary.BigEndian, uint16(len(e.Nonce)))
	buf.Write(e.Nonce)
	// #nosec G115
	_ = binary.Write(buf, binary.BigEndian, uint16(len(e.Tag)))
	buf.Write(e.Tag)
	// #nosec G115
	_ = binary.Write(buf, binary.BigEndian, uint32(len(e.Ciphertext)))
	buf.Write(e.Ciphertext)
	return buf.Bytes(), nil
}

// unmarshalEnvelope parses data produced by marshal. Trailing bytes are
// rejected.
func unmarshalEnvelope(data []byte) (*envelope, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedEnvelope)
	}
	if version != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedEnvelope, version)
	}

	alg, err := readField16(r, "algorithm")
	if err != nil {
		return nil, err
	}
	nonce, err := readField16(r, "nonce")
	if err != nil {
		return nil, err
	}
	tag, err := readField16(r, "tag")
	if err != nil {
		return nil, err
	}

	var ctLen uint32
	if err := binary.Read(r, binary.BigEndian, &ctLen); err != nil {
		return nil, fmt.Errorf("%w: ciphertext length", ErrMalformedEnvelope)
	}
	if int64(ctLen) != int64(r.Len()) {
		return nil, fmt.Errorf("%w: ciphertext length %d, %d bytes remain", ErrMalformedEnvelope, ctLen, r.Len())
	}
	ct := make([]byte, ctLen)
	if _, err := r.Read(ct); err != nil && ctLen > 0 {
		return nil, fmt.Errorf("%w: ciphertext", ErrMalformedEnvelope)
	}

	return &envelope{Algorithm: string(alg), Nonce: nonce, Tag: tag, Ciphertext: ct}, nil
}

func readField16(r *bytes.Reader, name string) ([]byte, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: %s length", ErrMalformedEnvelope, name)
	}
	if int(n) > r.Len() {
		return nil, fmt.Errorf("%w: %s truncated", ErrMalformedEnvelope, name)
	}
	b := make([]byte, n)
	_, _ = r.Read(b)
	return b, nil
}
