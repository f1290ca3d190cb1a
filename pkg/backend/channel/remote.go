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

package channel

import (
	"context"
	"strconv"

	"github.com/jeremyhahn/go-secgateway/pkg/adapters/logger"
	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/keystore"
	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

// RemoteKeyStore is a keystore.Manager whose keys live in a remote gateway.
// Every call is one channel exchange; the remote side provides the
// per-identifier ordering.
type RemoteKeyStore struct {
	client *Client
	logger logger.Logger
}

var _ keystore.Manager = (*RemoteKeyStore)(nil)

// NewRemoteKeyStore creates a key manager backed by the gateway client
// talks to.
func NewRemoteKeyStore(client *Client, log logger.Logger) (*RemoteKeyStore, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	if log == nil {
		log = logger.NoOp()
	}
	return &RemoteKeyStore{client: client, logger: log}, nil
}

// Generate implements keystore.Manager.
func (r *RemoteKeyStore) Generate(ctx context.Context, algorithm string, sizeBits int, identifier string) (string, error) {
	s, err := r.call(ctx, &WireRequest{
		Kind:          types.OpGenerateKey,
		Algorithm:     algorithm,
		KeySizeBits:   sizeBits,
		KeyIdentifier: identifier,
	})
	if err != nil {
		return "", err
	}
	return s.KeyIdentifier, nil
}

// Store implements keystore.Manager.
func (r *RemoteKeyStore) Store(ctx context.Context, material *securebytes.SecureBytes, identifier string, opts keystore.StoreOptions) error {
	w := &WireRequest{
		Kind:          types.OpStoreKey,
		Key:           material.Bytes(),
		KeyIdentifier: identifier,
		Algorithm:     opts.Algorithm,
	}
	if opts.Overwrite {
		w.Options = map[string]string{types.OptionOverwrite: strconv.FormatBool(true)}
	}
	_, err := r.call(ctx, w)
	return err
}

// Retrieve implements keystore.Manager.
func (r *RemoteKeyStore) Retrieve(ctx context.Context, identifier string) (*securebytes.SecureBytes, error) {
	s, err := r.call(ctx, &WireRequest{Kind: types.OpRetrieveKey, KeyIdentifier: identifier})
	if err != nil {
		return nil, err
	}
	if securebytes.IsEmpty(s.Data) {
		return nil, failure.Core(failure.CoreInternal, "remote returned no material").
			WithContext("key_id", identifier)
	}
	return s.Data, nil
}

// Rotate implements keystore.Manager. The remote gateway re-encrypts the
// payload with its own backend, so reencrypt is not called and the
// returned Rotation has no NewKey.
func (r *RemoteKeyStore) Rotate(ctx context.Context, identifier string, payload *securebytes.SecureBytes, _ keystore.ReencryptFunc) (*keystore.Rotation, error) {
	s, err := r.call(ctx, &WireRequest{
		Kind:          types.OpRotateKey,
		KeyIdentifier: identifier,
		InputData:     payload.Bytes(),
	})
	if err != nil {
		return nil, err
	}
	info, err := r.info(identifier, s)
	if err != nil {
		s.Data.Destroy()
		return nil, err
	}
	rot := &keystore.Rotation{Info: info}
	if !securebytes.IsEmpty(s.Data) {
		rot.Reencrypted = s.Data
	}
	return rot, nil
}

// Delete implements keystore.Manager.
func (r *RemoteKeyStore) Delete(ctx context.Context, identifier string) error {
	_, err := r.call(ctx, &WireRequest{Kind: types.OpDeleteKey, KeyIdentifier: identifier})
	return err
}

// List implements keystore.Manager.
func (r *RemoteKeyStore) List(ctx context.Context) ([]string, error) {
	s, err := r.call(ctx, &WireRequest{Kind: types.OpListKeys})
	if err != nil {
		return nil, err
	}
	if s.Identifiers == nil {
		return []string{}, nil
	}
	return s.Identifiers, nil
}

// Inspect implements keystore.Manager. The channel has no metadata-only
// operation, so the material is fetched and discarded.
func (r *RemoteKeyStore) Inspect(ctx context.Context, identifier string) (types.KeyInfo, error) {
	s, err := r.call(ctx, &WireRequest{Kind: types.OpRetrieveKey, KeyIdentifier: identifier})
	if err != nil {
		return types.KeyInfo{}, err
	}
	s.Data.Destroy()
	return r.info(identifier, s)
}

func (r *RemoteKeyStore) call(ctx context.Context, w *WireRequest) (*types.Success, error) {
	res := exchange(ctx, r.client, r.logger, w)
	if f, failed := res.Failure(); failed {
		return nil, f
	}
	s, _ := res.Success()
	return s, nil
}

func (r *RemoteKeyStore) info(identifier string, s *types.Success) (types.KeyInfo, error) {
	info, err := types.KeyInfoFromMetadata(identifier, s.Metadata)
	if err != nil {
		return types.KeyInfo{}, failure.ToCanonical(failure.WrapChannelError(
			failure.ChannelDecodingFailed, err, "key metadata"))
	}
	return info, nil
}
