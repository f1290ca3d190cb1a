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

// Package keystore manages the lifecycle of symmetric and asymmetric key
// material held by the gateway.
//
// Key material is sealed in memguard enclaves while resident and persisted
// through a storage.Backend. Mutations on a single identifier are
// serialised; operations on different identifiers proceed in parallel and
// readers never observe a partially written record.
package keystore

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"

	"github.com/jeremyhahn/go-secgateway/pkg/adapters/logger"
	"github.com/jeremyhahn/go-secgateway/pkg/crypto/rand"
	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
	"github.com/jeremyhahn/go-secgateway/pkg/storage"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
	"github.com/jeremyhahn/go-secgateway/pkg/validation"
)

// Manager is the key lifecycle contract. Every error returned by a Manager
// is a *failure.SecurityFailure.
//
// Implementations must be safe for concurrent use. A context cancelled
// before a mutation acquires its identifier aborts the mutation with a
// timeout failure; once acquired the mutation runs to completion or is
// fully rolled back.
type Manager interface {
	// Generate creates fresh material for algorithm and stores it under
	// identifier, or under a new unique identifier when identifier is
	// empty. sizeBits of 0 selects the algorithm default. The identifier
	// used is returned.
	Generate(ctx context.Context, algorithm string, sizeBits int, identifier string) (string, error)

	// Store records caller-supplied material. An existing identifier is a
	// duplicateIdentifier failure unless opts.Overwrite is set.
	Store(ctx context.Context, material *securebytes.SecureBytes, identifier string, opts StoreOptions) error

	// Retrieve returns a copy of the material stored under identifier.
	Retrieve(ctx context.Context, identifier string) (*securebytes.SecureBytes, error)

	// Rotate replaces the material under identifier with fresh material of
	// the same algorithm and size. A non-empty payload is re-encrypted from
	// the old key to the new key with reencrypt before the swap commits.
	Rotate(ctx context.Context, identifier string, payload *securebytes.SecureBytes, reencrypt ReencryptFunc) (*Rotation, error)

	// Delete removes identifier.
	Delete(ctx context.Context, identifier string) error

	// List returns every identifier in lexical order.
	List(ctx context.Context) ([]string, error)

	// Inspect returns the non-secret metadata for identifier.
	Inspect(ctx context.Context, identifier string) (types.KeyInfo, error)
}

// StoreOptions controls Store.
type StoreOptions struct {
	// Overwrite replaces an existing key instead of failing.
	Overwrite bool

	// Algorithm is recorded with the key. Empty records RAW.
	Algorithm string
}

// ReencryptFunc moves payload from oldKey to newKey during a rotation.
type ReencryptFunc func(ctx context.Context, payload, oldKey, newKey *securebytes.SecureBytes, algorithm string) (*securebytes.SecureBytes, error)

// Rotation is the outcome of a successful Rotate.
type Rotation struct {
	// NewKey is a copy of the replacement material. The caller owns it.
	NewKey *securebytes.SecureBytes

	// Reencrypted holds the re-encrypted payload, or nil when no payload
	// was supplied.
	Reencrypted *securebytes.SecureBytes

	Info types.KeyInfo
}

// Config configures a KeyStore.
type Config struct {
	// Storage persists records. Nil keeps keys in memory only.
	Storage storage.Backend

	// Rand supplies entropy for generated material. Defaults to the
	// platform CSPRNG.
	Rand rand.Resolver

	Logger logger.Logger

	// Clock and NewID are overridable for tests.
	Clock func() time.Time
	NewID func() string
}

type record struct {
	info     types.KeyInfo
	material *memguard.Enclave
}

// keyLock is a context-aware mutex. refs counts holders and waiters so
// the entry can be dropped once nobody references the identifier.
type keyLock struct {
	ch   chan struct{}
	refs int
}

// KeyStore is the default Manager.
type KeyStore struct {
	storage storage.Backend
	rng     rand.Resolver
	logger  logger.Logger
	clock   func() time.Time
	newID   func() string

	mu      sync.RWMutex
	records map[string]*record
	locks   map[string]*keyLock
	closed  bool
}

var _ Manager = (*KeyStore)(nil)

// New creates a KeyStore and loads every record already present in
// cfg.Storage.
func New(cfg *Config) (*KeyStore, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	ks := &KeyStore{
		storage: cfg.Storage,
		rng:     cfg.Rand,
		logger:  cfg.Logger,
		clock:   cfg.Clock,
		newID:   cfg.NewID,
		records: make(map[string]*record),
		locks:   make(map[string]*keyLock),
	}
	if ks.rng == nil {
		ks.rng = rand.Default()
	}
	if ks.logger == nil {
		ks.logger = logger.NoOp()
	}
	if ks.clock == nil {
		ks.clock = func() time.Time { return time.Now().UTC() }
	}
	if ks.newID == nil {
		ks.newID = uuid.NewString
	}
	if err := ks.load(); err != nil {
		return nil, err
	}
	return ks, nil
}

func (ks *KeyStore) load() error {
	if ks.storage == nil {
		return nil
	}
	ids, err := storage.ListKeyIDs(ks.storage)
	if err != nil {
		return storageFailure(err, "list persisted keys")
	}
	for _, id := range ids {
		blob, err := ks.storage.Get(storage.KeyPath(id))
		if err != nil {
			return storageFailure(err, "read key "+id)
		}
		info, material, err := decodeRecord(blob)
		memguard.WipeBytes(blob)
		if err != nil {
			return storageFailure(err, "decode key "+id)
		}
		if info.Identifier != id {
			memguard.WipeBytes(material)
			return failure.Core(failure.CoreStorageFailed, "record %s names identifier %q", id, info.Identifier)
		}
		ks.records[id] = &record{info: info, material: memguard.NewEnclave(material)}
	}
	if len(ids) > 0 {
		ks.logger.Info("loaded persisted keys", logger.Int("count", len(ids)))
	}
	return nil
}

// Generate implements Manager.
func (ks *KeyStore) Generate(ctx context.Context, algorithm string, sizeBits int, identifier string) (string, error) {
	alg, ok := CanonicalAlgorithm(algorithm)
	if !ok {
		return "", failure.Core(failure.CoreUnsupportedAlgorithm, "cannot generate %q keys", algorithm)
	}
	if identifier == "" {
		identifier = ks.newID()
	}
	if err := checkIdentifier(identifier); err != nil {
		return "", err
	}

	sizeBits, err := resolveSize(algorithm, sizeBits)
	if err != nil {
		return "", err
	}
	material, bits, err := generateMaterial(ks.rng, alg, sizeBits)
	if err != nil {
		return "", err
	}
	defer memguard.WipeBytes(material)

	unlock, err := ks.acquire(ctx, identifier)
	if err != nil {
		return "", err
	}
	defer unlock()

	if _, exists := ks.lookup(identifier); exists {
		return "", failure.Core(failure.CoreKeyAlreadyExists, "key %q already exists", identifier).
			WithContext("key_id", identifier)
	}

	now := ks.clock()
	info := types.KeyInfo{
		Identifier: identifier,
		Algorithm:  alg,
		SizeBits:   bits,
		Version:    1,
		CreatedAt:  now,
	}
	if err := ks.commit(info, material); err != nil {
		return "", err
	}
	ks.logger.DebugContext(ctx, "key generated",
		logger.String("key_id", identifier),
		logger.String("algorithm", alg),
		logger.Int("size_bits", bits))
	return identifier, nil
}

// Store implements Manager.
func (ks *KeyStore) Store(ctx context.Context, material *securebytes.SecureBytes, identifier string, opts StoreOptions) error {
	if err := checkIdentifier(identifier); err != nil {
		return err
	}
	if securebytes.IsEmpty(material) {
		return failure.Core(failure.CoreInvalidKey, "key material is empty")
	}
	alg := AlgorithmRaw
	if opts.Algorithm != "" {
		if canonical, ok := CanonicalAlgorithm(opts.Algorithm); ok {
			alg = canonical
		} else {
			alg = strings.ToUpper(opts.Algorithm)
		}
	}

	unlock, err := ks.acquire(ctx, identifier)
	if err != nil {
		return err
	}
	defer unlock()

	now := ks.clock()
	info := types.KeyInfo{
		Identifier: identifier,
		Algorithm:  alg,
		SizeBits:   material.Len() * 8,
		Version:    1,
		CreatedAt:  now,
	}
	if existing, exists := ks.lookup(identifier); exists {
		if !opts.Overwrite {
			return failure.Core(failure.CoreKeyAlreadyExists, "key %q already exists", identifier).
				WithContext("key_id", identifier)
		}
		info.Version = existing.info.Version + 1
		info.CreatedAt = existing.info.CreatedAt
		info.RotatedAt = now
	}

	raw := material.Bytes()
	defer memguard.WipeBytes(raw)
	if err := ks.commit(info, raw); err != nil {
		return err
	}
	ks.logger.DebugContext(ctx, "key stored",
		logger.String("key_id", identifier),
		logger.Int("version", info.Version))
	return nil
}

// Retrieve implements Manager.
func (ks *KeyStore) Retrieve(ctx context.Context, identifier string) (*securebytes.SecureBytes, error) {
	if err := contextFailure(ctx); err != nil {
		return nil, err
	}
	if err := checkIdentifier(identifier); err != nil {
		return nil, err
	}
	rec, ok := ks.lookup(identifier)
	if !ok {
		return nil, notFound(identifier)
	}
	return open(rec)
}

// Rotate implements Manager.
func (ks *KeyStore) Rotate(ctx context.Context, identifier string, payload *securebytes.SecureBytes, reencrypt ReencryptFunc) (*Rotation, error) {
	if err := checkIdentifier(identifier); err != nil {
		return nil, err
	}
	if !securebytes.IsEmpty(payload) && reencrypt == nil {
		return nil, failure.Core(failure.CoreInvalidInput, "rotation payload supplied without a re-encryption function")
	}

	unlock, err := ks.acquire(ctx, identifier)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// The identifier is held from here on; the rotation no longer observes
	// cancellation.
	ctx = context.WithoutCancel(ctx)

	rec, ok := ks.lookup(identifier)
	if !ok {
		return nil, notFound(identifier)
	}

	fresh, bits, err := ks.replacementMaterial(rec.info)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(fresh)
	newKey := securebytes.New(fresh)

	var reencrypted *securebytes.SecureBytes
	if !securebytes.IsEmpty(payload) {
		oldKey, err := open(rec)
		if err != nil {
			newKey.Destroy()
			return nil, err
		}
		reencrypted, err = reencrypt(ctx, payload, oldKey, newKey, rec.info.Algorithm)
		oldKey.Destroy()
		if err != nil {
			newKey.Destroy()
			f := failure.ToCanonical(err)
			return nil, f.WithContext("key_id", identifier)
		}
	}

	info := rec.info
	info.SizeBits = bits
	info.Version++
	info.RotatedAt = ks.clock()
	if err := ks.commit(info, fresh); err != nil {
		newKey.Destroy()
		reencrypted.Destroy()
		return nil, err
	}

	ks.logger.InfoContext(ctx, "key rotated",
		logger.String("key_id", identifier),
		logger.Int("version", info.Version))
	return &Rotation{NewKey: newKey, Reencrypted: reencrypted, Info: info}, nil
}

// Delete implements Manager.
func (ks *KeyStore) Delete(ctx context.Context, identifier string) error {
	if err := checkIdentifier(identifier); err != nil {
		return err
	}
	unlock, err := ks.acquire(ctx, identifier)
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := ks.lookup(identifier); !ok {
		return notFound(identifier)
	}
	if ks.storage != nil {
		err := ks.storage.Delete(storage.KeyPath(identifier))
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return storageFailure(err, "delete key "+identifier)
		}
	}

	ks.mu.Lock()
	delete(ks.records, identifier)
	ks.mu.Unlock()

	ks.logger.DebugContext(ctx, "key deleted", logger.String("key_id", identifier))
	return nil
}

// List implements Manager.
func (ks *KeyStore) List(ctx context.Context) ([]string, error) {
	if err := contextFailure(ctx); err != nil {
		return nil, err
	}
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	if ks.closed {
		return nil, closedFailure()
	}
	ids := make([]string, 0, len(ks.records))
	for id := range ks.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Inspect implements Manager.
func (ks *KeyStore) Inspect(ctx context.Context, identifier string) (types.KeyInfo, error) {
	if err := contextFailure(ctx); err != nil {
		return types.KeyInfo{}, err
	}
	rec, ok := ks.lookup(identifier)
	if !ok {
		return types.KeyInfo{}, notFound(identifier)
	}
	return rec.info, nil
}

// ListInfo returns metadata for every key in identifier order.
func (ks *KeyStore) ListInfo(ctx context.Context) ([]types.KeyInfo, error) {
	ids, err := ks.List(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]types.KeyInfo, 0, len(ids))
	for _, id := range ids {
		if rec, ok := ks.lookup(id); ok {
			infos = append(infos, rec.info)
		}
	}
	return infos, nil
}

// Close drops every resident record. Persisted records are untouched.
func (ks *KeyStore) Close() error {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.closed = true
	ks.records = make(map[string]*record)
	return nil
}

// replacementMaterial generates material shaped like info. Imported keys
// whose recorded size the generator rejects fall back to the algorithm
// default, or to raw material of the same length.
func (ks *KeyStore) replacementMaterial(info types.KeyInfo) ([]byte, int, error) {
	alg, ok := CanonicalAlgorithm(info.Algorithm)
	if !ok {
		alg = AlgorithmRaw
	}
	material, bits, err := generateMaterial(ks.rng, alg, info.SizeBits)
	if err == nil || !isKeySizeFailure(err) {
		return material, bits, err
	}
	switch alg {
	case AlgorithmRSA, AlgorithmECDSAP256:
		return generateMaterial(ks.rng, alg, 0)
	default:
		return generateMaterial(ks.rng, AlgorithmRaw, info.SizeBits)
	}
}

func isKeySizeFailure(err error) bool {
	f, ok := failure.As(err)
	return ok && f.Domain == failure.DomainCore && f.Code == int(failure.CoreInvalidKeySize)
}

func (ks *KeyStore) lookup(identifier string) (*record, bool) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	rec, ok := ks.records[identifier]
	return rec, ok
}

// commit persists the record and then publishes it. A failed write leaves
// the previous record in place.
func (ks *KeyStore) commit(info types.KeyInfo, material []byte) error {
	ks.mu.RLock()
	closed := ks.closed
	ks.mu.RUnlock()
	if closed {
		return closedFailure()
	}

	if ks.storage != nil {
		blob, err := encodeRecord(info, material)
		if err != nil {
			return storageFailure(err, "encode key "+info.Identifier)
		}
		err = ks.storage.Put(storage.KeyPath(info.Identifier), blob, storage.DefaultOptions())
		memguard.WipeBytes(blob)
		if err != nil {
			return storageFailure(err, "write key "+info.Identifier)
		}
	}

	sealed := make([]byte, len(material))
	copy(sealed, material)
	rec := &record{info: info, material: memguard.NewEnclave(sealed)}

	ks.mu.Lock()
	ks.records[info.Identifier] = rec
	ks.mu.Unlock()
	return nil
}

// acquire takes the per-identifier lock. A context that is already done,
// or that finishes while waiting, yields a timeout failure.
func (ks *KeyStore) acquire(ctx context.Context, identifier string) (func(), error) {
	if err := contextFailure(ctx); err != nil {
		return nil, err
	}

	ks.mu.Lock()
	if ks.closed {
		ks.mu.Unlock()
		return nil, closedFailure()
	}
	l, ok := ks.locks[identifier]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		ks.locks[identifier] = l
	}
	l.refs++
	ks.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			ks.release(identifier, l)
		}, nil
	case <-ctx.Done():
		ks.release(identifier, l)
		return nil, contextFailure(ctx)
	}
}

func (ks *KeyStore) release(identifier string, l *keyLock) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(ks.locks, identifier)
	}
}

func open(rec *record) (*securebytes.SecureBytes, error) {
	buf, err := rec.material.Open()
	if err != nil {
		return nil, failure.Default().FromCore(
			failure.WrapCoreError(failure.CoreMemoryAllocationFailed, err, "open key enclave"))
	}
	defer buf.Destroy()
	return securebytes.New(buf.Bytes()), nil
}

// persistedRecord is the on-disk JSON form of a key.
type persistedRecord struct {
	types.KeyInfo
	Material []byte `json:"material"`
}

func encodeRecord(info types.KeyInfo, material []byte) ([]byte, error) {
	return json.Marshal(persistedRecord{KeyInfo: info, Material: material})
}

func decodeRecord(blob []byte) (types.KeyInfo, []byte, error) {
	var rec persistedRecord
	if err := json.Unmarshal(blob, &rec); err != nil {
		return types.KeyInfo{}, nil, err
	}
	if len(rec.Material) == 0 {
		return types.KeyInfo{}, nil, errors.New("record has no material")
	}
	return rec.KeyInfo, rec.Material, nil
}

func checkIdentifier(identifier string) error {
	if err := validation.ValidateKeyID(identifier); err != nil {
		return failure.Core(failure.CoreInvalidInput, "%s", err.Error())
	}
	return nil
}

func notFound(identifier string) error {
	return failure.Core(failure.CoreKeyNotFound, "key %q not found", identifier).
		WithContext("key_id", identifier)
}

func storageFailure(err error, reason string) error {
	return failure.Default().FromCore(failure.WrapCoreError(failure.CoreStorageFailed, err, reason))
}

func closedFailure() error {
	return failure.Core(failure.CoreStorageFailed, "key store closed")
}

// contextFailure maps a finished context to a timeout failure.
func contextFailure(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return failure.ToCanonical(err)
	}
	return nil
}
