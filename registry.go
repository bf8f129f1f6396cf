/*
 * Metabox - Size-bounded Asset Metadata Registry
 *
 * Copyright Flow Foundation
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package metabox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Registry stores asset metadata records in a ledger and applies
// batches of operations to them atomically.
type Registry struct {
	cfg

	mtx sync.Mutex

	id      uint64
	address Address
	assets  AssetRegistry
	storage *PersistentBoxStorage
}

// Option represents Registry's constructor option.
type Option func(*cfg)

type cfg struct {
	params        Parameters
	hasher        Hasher
	policy        HashOverridePolicy
	clock         Clock
	transfer      ValueTransfer
	events        EventSink
	netAuth       string
	commitWorkers int
	log           *zap.Logger
	metrics       Metrics
}

func initConfig(c *cfg) {
	*c = cfg{
		params:   DefaultParameters(),
		hasher:   newDefaultHasher(),
		policy:   DefaultHashOverridePolicy{},
		clock:    wallClock{},
		transfer: nopValueTransfer{},
		events:   nopEventSink{},
		log:      zap.NewNop(),
		metrics:  nopMetrics{},
	}
}

// WithParameters returns option to override registry parameters.
func WithParameters(p Parameters) Option {
	return func(c *cfg) {
		c.params = p
	}
}

// WithHasher returns option to set the hash algorithm of record hashes.
func WithHasher(h Hasher) Option {
	return func(c *cfg) {
		c.hasher = h
	}
}

// WithHashOverridePolicy returns option to set how asset metadata hashes
// are applied to new records.
func WithHashOverridePolicy(p HashOverridePolicy) Option {
	return func(c *cfg) {
		c.policy = p
	}
}

// WithClock returns option to set the source of rounds and timestamps.
func WithClock(clock Clock) Option {
	return func(c *cfg) {
		c.clock = clock
	}
}

// WithValueTransfer returns option to set how rent refunds are paid.
func WithValueTransfer(t ValueTransfer) Option {
	return func(c *cfg) {
		c.transfer = t
	}
}

// WithEventSink returns option to set the receiver of committed events.
func WithEventSink(s EventSink) Option {
	return func(c *cfg) {
		c.events = s
	}
}

// WithNetAuth returns option to set the network authority of
// registry URIs, e.g. "net:testnet". Mainnet registries have none.
func WithNetAuth(netAuth string) Option {
	return func(c *cfg) {
		c.netAuth = netAuth
	}
}

// WithCommitWorkers returns option to encode records in parallel on commit.
// Values below 2 commit sequentially.
func WithCommitWorkers(n int) Option {
	return func(c *cfg) {
		c.commitWorkers = n
	}
}

// WithLogger returns option to set the registry logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *cfg) {
		c.log = l
	}
}

// WithMetrics returns option to set the registry metrics.
func WithMetrics(m Metrics) Option {
	return func(c *cfg) {
		c.metrics = m
	}
}

// NewRegistry returns a registry with the given id and account address
// storing records in base.
func NewRegistry(id uint64, address Address, base BaseStorage, assets AssetRegistry, opts ...Option) (*Registry, error) {
	if id == 0 {
		return nil, NewInvalidRegistryIDError(id)
	}

	r := &Registry{
		id:      id,
		address: address,
		assets:  assets,
	}
	initConfig(&r.cfg)

	for i := range opts {
		opts[i](&r.cfg)
	}

	err := r.params.Validate()
	if err != nil {
		// err is categorized already by Parameters.Validate()
		return nil, err
	}

	r.storage = NewPersistentBoxStorage(base, WithMaxMetadataSize(r.params.MaxMetadataSize))
	r.log = r.log.With(zap.Uint64("registry_id", id))

	return r, nil
}

// ID returns the registry id.
func (r *Registry) ID() uint64 {
	return r.id
}

// Address returns the registry account address receiving rent payments.
func (r *Registry) Address() Address {
	return r.address
}

// Parameters returns the registry parameters.
func (r *Registry) Parameters() Parameters {
	return r.params
}

// PartialURI returns the ARC-90 URI prefix of the registry's records.
func (r *Registry) PartialURI() URI {
	return PartialURI(r.netAuth, r.id)
}

// OperationResult is the outcome of one operation of a batch.
// RentDelta is nil for operations that don't change rent.
type OperationResult struct {
	Method    Method
	AssetID   AssetID
	RentDelta *RentDelta
}

// BatchResult is the outcome of a committed batch.
type BatchResult struct {
	BatchID uuid.UUID
	Results []OperationResult
}

// ExecuteBatch applies all operations of b or none of them.
// Events are emitted after the batch is committed.
// A failing operation is reported as BatchError.
func (r *Registry) ExecuteBatch(ctx context.Context, b *Batch) (BatchResult, error) {
	if b == nil {
		return BatchResult{}, NewBatchError(-1, MethodUndefined, NewUserError(fmt.Errorf("nil batch")))
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()

	log := r.log.With(zap.String("batch_id", b.ID.String()))

	e := newBatchExecutor(ctx, r, log)

	err := e.execute(b.Operations)
	if err == nil {
		err = e.settle()
	}
	if err != nil {
		r.storage.DropDeltas()
		r.metrics.BatchRolledBack()
		log.Warn("batch rolled back", zap.Int("operations", len(b.Operations)), zap.Error(err))
		return BatchResult{}, err
	}

	bytesStored := r.storage.DeltasSize()
	if r.commitWorkers > 1 {
		err = r.storage.FastCommit(r.commitWorkers)
	} else {
		err = r.storage.Commit()
	}
	if err != nil {
		// Base storage may hold part of the batch: drop cached records
		// so that later reads go to base storage.
		r.storage.DropDeltas()
		r.storage.DropCache()
		reverseErr := e.reverseRefunds()
		if reverseErr != nil {
			log.Error("failed to reverse refunds of rolled back batch", zap.Error(reverseErr))
		}
		r.metrics.BatchRolledBack()
		log.Warn("batch commit failed", zap.Error(err))
		return BatchResult{}, NewBatchError(-1, MethodUndefined, multierr.Append(err, reverseErr))
	}

	r.metrics.BatchCommitted(len(b.Operations), bytesStored)
	r.metrics.RentCollected(e.collected)
	r.metrics.RentRefunded(e.refunded)
	log.Info("batch committed",
		zap.Int("operations", len(b.Operations)),
		zap.Int("events", len(e.events)),
		zap.Uint64("bytes_stored", bytesStored),
	)

	for _, ev := range e.events {
		err := r.events.Emit(ev)
		if err != nil {
			// Batch is committed already, so event delivery errors are only logged.
			log.Error("failed to emit event", zap.Uint64("asset_id", uint64(ev.EventAssetID())), zap.Error(err))
		}
	}

	return BatchResult{BatchID: b.ID, Results: e.results}, nil
}

// nextRound returns the round assigned to a mutation of a record last
// modified in round prev.
func (r *Registry) nextRound(prev uint64) uint64 {
	return max(r.clock.Round(), prev+1)
}

func (r *Registry) computeHash(id AssetID, rec *Record) (Hash, error) {
	// err is categorized already by ComputeMetadataHash()
	return ComputeMetadataHash(r.hasher, r.params.PageSize, id, rec)
}

// retrieve returns the record of id, or NotFoundError.
func (r *Registry) retrieve(id AssetID) (*Record, error) {
	rec, found, err := r.storage.Retrieve(id)
	if err != nil {
		// err is categorized already by PersistentBoxStorage.Retrieve()
		return nil, err
	}
	if !found {
		return nil, NewNotFoundError(id)
	}
	return rec, nil
}

type wallClock struct{}

var _ Clock = wallClock{}

func (wallClock) Round() uint64 {
	return uint64(time.Now().Unix())
}

func (wallClock) Timestamp() uint64 {
	return uint64(time.Now().Unix())
}

type nopValueTransfer struct{}

var _ ValueTransfer = nopValueTransfer{}

func (nopValueTransfer) Transfer(context.Context, Address, Address, uint64) error {
	return nil
}

func (r *Registry) String() string {
	return fmt.Sprintf("Registry{id: %d, address: %s, %s}", r.id, r.address, r.params)
}
