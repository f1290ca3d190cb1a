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

package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationKind_Names(t *testing.T) {
	kinds := OperationKinds()
	assert.Len(t, kinds, 16)

	for _, k := range kinds {
		parsed, ok := ParseOperationKind(k.String())
		require.True(t, ok, k.String())
		assert.Equal(t, k, parsed)
	}

	_, ok := ParseOperationKind("launchMissiles")
	assert.False(t, ok)
	assert.False(t, OperationKind(0).Valid())
	assert.Equal(t, "unknown", OperationKind(99).String())
}

func TestOperationKind_IsKeyLifecycle(t *testing.T) {
	lifecycle := map[OperationKind]bool{
		OpGenerateKey: true, OpStoreKey: true, OpRetrieveKey: true,
		OpRotateKey: true, OpDeleteKey: true, OpListKeys: true,
	}
	for _, k := range OperationKinds() {
		assert.Equal(t, lifecycle[k], k.IsKeyLifecycle(), k.String())
	}
}

func TestOperationKind_JSON(t *testing.T) {
	var decoded struct {
		Kind OperationKind `json:"kind"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"rotateKey"}`), &decoded))
	assert.Equal(t, OpRotateKey, decoded.Kind)

	require.NoError(t, json.Unmarshal([]byte(`{"kind":"somethingNew"}`), &decoded))
	assert.False(t, decoded.Kind.Valid())
}

func TestResult_Variants(t *testing.T) {
	ok := Succeed(Success{KeyIdentifier: "k1"})
	assert.True(t, ok.Valid())
	assert.True(t, ok.IsSuccess())
	assert.NoError(t, ok.Err())
	s, has := ok.Success()
	require.True(t, has)
	assert.NotNil(t, s.Metadata)

	bad := Fail(failure.Core(failure.CoreKeyNotFound, "k1"))
	assert.True(t, bad.Valid())
	assert.False(t, bad.IsSuccess())
	assert.Equal(t, failure.KindKeyNotFound, bad.FailureKind())
	_, has = bad.Success()
	assert.False(t, has)

	var zero Result
	assert.False(t, zero.Valid())
	assert.False(t, zero.IsSuccess())
}

func TestResult_FailNilPanics(t *testing.T) {
	assert.Panics(t, func() { Fail(nil) })
	assert.Panics(t, func() { FailWith(nil) })
}

func TestValidate_RequiredFields(t *testing.T) {
	data := securebytes.FromString("hello")
	key := securebytes.New(make([]byte, 32))
	sig := securebytes.New([]byte{1, 2, 3})

	complete := map[OperationKind]*Request{
		OpEncryptSymmetric:  {Kind: OpEncryptSymmetric, InputData: data, Key: key},
		OpDecryptSymmetric:  {Kind: OpDecryptSymmetric, InputData: data, KeyIdentifier: "k1"},
		OpEncryptAsymmetric: {Kind: OpEncryptAsymmetric, InputData: data, Key: key},
		OpDecryptAsymmetric: {Kind: OpDecryptAsymmetric, InputData: data, KeyIdentifier: "k1"},
		OpHash:              {Kind: OpHash, InputData: data},
		OpMAC:               {Kind: OpMAC, InputData: data, Key: key},
		OpSign:              {Kind: OpSign, InputData: data, Key: key},
		OpVerify:            {Kind: OpVerify, InputData: data, Key: key, Signature: sig},
		OpGenerateKey:       {Kind: OpGenerateKey, Algorithm: "AES", KeySizeBits: 256},
		OpStoreKey:          {Kind: OpStoreKey, Key: key, KeyIdentifier: "k1"},
		OpRetrieveKey:       {Kind: OpRetrieveKey, KeyIdentifier: "k1"},
		OpRotateKey:         {Kind: OpRotateKey, KeyIdentifier: "k1"},
		OpDeleteKey:         {Kind: OpDeleteKey, KeyIdentifier: "k1"},
		OpListKeys:          {Kind: OpListKeys},
		OpGenerateRandom:    {Kind: OpGenerateRandom, KeySizeBits: 128},
		OpConfigUpdate:      {Kind: OpConfigUpdate},
	}

	for _, k := range OperationKinds() {
		req, ok := complete[k]
		require.True(t, ok, "missing fixture for %s", k)
		assert.Nil(t, Validate(req), k.String())
	}
}

func TestValidate_MissingFields(t *testing.T) {
	data := securebytes.FromString("hello")
	key := securebytes.New(make([]byte, 32))

	tests := []struct {
		name  string
		req   *Request
		field string
	}{
		{"sign without input", &Request{Kind: OpSign, Key: key}, "inputData"},
		{"sign with empty input", &Request{Kind: OpSign, InputData: securebytes.New(nil), Key: key}, "inputData"},
		{"encrypt without key", &Request{Kind: OpEncryptSymmetric, InputData: data}, "key or keyIdentifier"},
		{"hash without input", &Request{Kind: OpHash}, "inputData"},
		{"verify without signature", &Request{Kind: OpVerify, InputData: data, Key: key}, "signature"},
		{"verify without input", &Request{Kind: OpVerify, Key: key, Signature: data}, "inputData"},
		{"generate without algorithm", &Request{Kind: OpGenerateKey}, "algorithm"},
		{"store without identifier", &Request{Kind: OpStoreKey, Key: key}, "keyIdentifier"},
		{"store without key", &Request{Kind: OpStoreKey, KeyIdentifier: "k1"}, "key"},
		{"delete without identifier", &Request{Kind: OpDeleteKey}, "keyIdentifier"},
		{"random with odd bits", &Request{Kind: OpGenerateRandom, KeySizeBits: 12}, "keySizeBits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Validate(tt.req)
			require.NotNil(t, f)
			assert.Equal(t, failure.KindInvalidInput, f.Kind)
			assert.Equal(t, tt.field, f.Context["field"])
		})
	}
}

func TestValidate_Malformed(t *testing.T) {
	assert.Equal(t, failure.KindInvalidInput, Validate(nil).Kind)
	assert.Equal(t, failure.KindUnsupportedOperation, Validate(&Request{Kind: 42}).Kind)
	assert.Equal(t, failure.KindInvalidInput, Validate(&Request{Kind: OpDeleteKey, KeyIdentifier: "../etc"}).Kind)
	assert.Equal(t, failure.KindInvalidInput, Validate(&Request{Kind: OpGenerateKey, Algorithm: "AES", KeySizeBits: -8}).Kind)
	assert.Equal(t, failure.KindInvalidInput, Validate(&Request{Kind: OpGenerateKey, Algorithm: "AES;"}).Kind)
}

func TestRequiredFields(t *testing.T) {
	assert.Equal(t, []string{"inputData", "key or keyIdentifier"}, RequiredFields(OpSign))
	assert.Nil(t, RequiredFields(OpListKeys))
}

func TestRequest_Destroy(t *testing.T) {
	req := &Request{Kind: OpSign, InputData: securebytes.FromString("m"), Key: securebytes.FromString("k")}
	req.Destroy()
	assert.True(t, req.InputData.IsDestroyed())
	assert.True(t, req.Key.IsDestroyed())
	assert.Nil(t, req.Signature)
}

func TestKeyInfo_Metadata(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 5, time.UTC)
	info := KeyInfo{
		Identifier: "k1",
		Algorithm:  "AES",
		SizeBits:   256,
		Version:    3,
		CreatedAt:  created,
		RotatedAt:  created.Add(time.Hour),
	}

	md := info.Metadata()
	assert.Equal(t, "AES", md[MetaAlgorithm])
	assert.Equal(t, "256", md[MetaSizeBits])
	assert.Equal(t, "3", md[MetaVersion])

	back, err := KeyInfoFromMetadata("k1", md)
	require.NoError(t, err)
	assert.Equal(t, info.Algorithm, back.Algorithm)
	assert.Equal(t, info.SizeBits, back.SizeBits)
	assert.Equal(t, info.Version, back.Version)
	assert.True(t, info.CreatedAt.Equal(back.CreatedAt))
	assert.True(t, info.RotatedAt.Equal(back.RotatedAt))

	_, hasRotated := KeyInfo{Version: 1}.Metadata()[MetaRotatedAt]
	assert.False(t, hasRotated)

	_, err = KeyInfoFromMetadata("k1", map[string]string{MetaVersion: "three"})
	assert.Error(t, err)
}
