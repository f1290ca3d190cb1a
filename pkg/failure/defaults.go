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

package failure

// registerDefaults loads the built-in cases. Within each domain the first
// non-alias code registered for a kind is the one used when translating
// back into that domain.
func (t *Translator) registerDefaults() {
	core := []struct {
		code    CoreCode
		kind    Kind
		message string
		alias   bool
	}{
		{CoreUnknown, KindUnknown, "unknown core error", false},
		{CoreInvalidInput, KindInvalidInput, "invalid input", false},
		{CoreInvalidKey, KindInvalidInput, "invalid key", true},
		{CoreInvalidKeySize, KindInvalidInput, "invalid key size", true},
		{CoreKeyNotFound, KindKeyNotFound, "key not found", false},
		{CoreKeyAlreadyExists, KindDuplicateIdentifier, "key already exists", false},
		{CoreUnsupportedOperation, KindUnsupportedOperation, "unsupported operation", false},
		{CoreUnsupportedAlgorithm, KindUnsupportedOperation, "unsupported algorithm", true},
		{CoreNotImplemented, KindUnsupportedOperation, "not implemented", true},
		{CoreEncryptionFailed, KindEncryptionFailed, "encryption failed", false},
		{CoreDecryptionFailed, KindDecryptionFailed, "decryption failed", false},
		{CoreSigningFailed, KindSignatureFailed, "signing failed", false},
		{CoreVerificationFailed, KindVerificationFailed, "verification failed", false},
		{CoreKeyGenerationFailed, KindKeyGenerationFailed, "key generation failed", false},
		{CoreRandomGenerationFailed, KindRandomGenerationFailed, "random generation failed", false},
		{CoreStorageFailed, KindStorageFailed, "storage failed", false},
		{CoreServiceUnavailable, KindChannelUnavailable, "service unavailable", false},
		{CoreTimeout, KindTimeout, "timed out", false},
		{CoreAccessDenied, KindAuthorizationDenied, "access denied", false},
		{CoreInternal, KindInternalError, "internal error", false},
		{CoreHashFailed, KindInternalError, "hash computation failed", true},
		{CoreMemoryAllocationFailed, KindInternalError, "secure memory allocation failed", true},
	}
	for _, c := range core {
		t.core.register(c.code, c.kind, c.message, c.alias)
	}

	channel := []struct {
		code    ChannelCode
		kind    Kind
		message string
		alias   bool
	}{
		{ChannelUnknown, KindUnknown, "unknown channel error", false},
		{ChannelServiceUnavailable, KindChannelUnavailable, "service unavailable", false},
		{ChannelConnectionInterrupted, KindChannelUnavailable, "connection interrupted", true},
		{ChannelConnectionInvalidated, KindChannelUnavailable, "connection invalidated", true},
		{ChannelRateLimited, KindChannelUnavailable, "rate limited", true},
		{ChannelTimeout, KindTimeout, "timed out", false},
		{ChannelUnauthorized, KindAuthorizationDenied, "unauthorized", false},
		{ChannelInvalidCredentials, KindAuthorizationDenied, "invalid credentials", true},
		{ChannelAccessDenied, KindAuthorizationDenied, "access denied", true},
		{ChannelSessionExpired, KindAuthorizationDenied, "session expired", true},
		{ChannelNotImplemented, KindUnsupportedOperation, "not implemented", false},
		{ChannelEncodingFailed, KindInternalError, "message encoding failed", true},
		{ChannelDecodingFailed, KindInternalError, "message decoding failed", true},
	}
	for _, c := range channel {
		t.channel.register(c.code, c.kind, c.message, c.alias)
	}

	protocol := []struct {
		code    ProtocolCode
		kind    Kind
		message string
		alias   bool
	}{
		{ProtocolUnknown, KindUnknown, "unknown protocol error", false},
		{ProtocolInvalidFormat, KindInvalidInput, "invalid format", false},
		{ProtocolMissingField, KindInvalidInput, "missing required field", true},
		{ProtocolUnsupportedOperation, KindUnsupportedOperation, "unsupported operation", false},
		{ProtocolNotImplemented, KindUnsupportedOperation, "not implemented", true},
		{ProtocolKeyNotFound, KindKeyNotFound, "key not found", false},
		{ProtocolDuplicateKey, KindDuplicateIdentifier, "duplicate key identifier", false},
		{ProtocolEncryptionFailed, KindEncryptionFailed, "encryption failed", false},
		{ProtocolDecryptionFailed, KindDecryptionFailed, "decryption failed", false},
		{ProtocolSigningFailed, KindSignatureFailed, "signing failed", false},
		{ProtocolSignatureInvalid, KindVerificationFailed, "signature invalid", false},
		{ProtocolKeyGenerationFailed, KindKeyGenerationFailed, "key generation failed", false},
		{ProtocolRandomGenerationFailed, KindRandomGenerationFailed, "random generation failed", false},
		{ProtocolStorageFailed, KindStorageFailed, "storage failed", false},
		{ProtocolServiceUnavailable, KindChannelUnavailable, "service unavailable", false},
		{ProtocolRateLimited, KindChannelUnavailable, "rate limited", true},
		{ProtocolTimeout, KindTimeout, "timed out", false},
		{ProtocolUnauthorized, KindAuthorizationDenied, "unauthorized", false},
		{ProtocolInternalError, KindInternalError, "internal error", false},
		{ProtocolInvalidState, KindInternalError, "invalid state", true},
	}
	for _, c := range protocol {
		t.protocol.register(c.code, c.kind, c.message, c.alias)
	}
}
