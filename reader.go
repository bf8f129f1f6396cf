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

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// RecordSource serves committed records of one registry. Registry implements it.
type RecordSource interface {
	ID() uint64
	GetHeader(ctx context.Context, id AssetID) (Header, error)
	GetPagination(ctx context.Context, id AssetID) (Pagination, error)
	GetMetadata(ctx context.Context, id AssetID, index int) (PaginatedMetadata, error)
}

var _ RecordSource = &Registry{}

// SourceResolver finds the record source of a registry id.
type SourceResolver interface {
	Source(registryID uint64) (RecordSource, bool)
}

// SourceMap resolves record sources by registry id.
type SourceMap map[uint64]RecordSource

var _ SourceResolver = SourceMap{}

func NewSourceMap(sources ...RecordSource) SourceMap {
	m := make(SourceMap, len(sources))
	for _, s := range sources {
		m[s.ID()] = s
	}
	return m
}

func (m SourceMap) Source(registryID uint64) (RecordSource, bool) {
	s, ok := m[registryID]
	return s, ok
}

const (
	DefaultPageBatchSize      = 10
	DefaultMaxDeprecationHops = 5
	DefaultReaderCacheSize    = 1024
)

// ResolvedRecord is a record read from the registry that serves it after
// following deprecations.
type ResolvedRecord struct {
	RegistryID uint64
	AssetID    AssetID
	Record     *Record
	Pagination Pagination
}

type readerCacheKey struct {
	registryID uint64
	assetID    AssetID
}

type readerCacheEntry struct {
	record     *Record
	pagination Pagination
}

// Reader reassembles paged records and verifies them.
type Reader struct {
	readerCfg

	sources SourceResolver
	cache   *lru.Cache[readerCacheKey, readerCacheEntry]
}

type ReaderOption func(*readerCfg)

type readerCfg struct {
	pageBatchSize      int
	maxDeprecationHops int
	cacheSize          int
	verify             bool
	hasher             Hasher
	log                *zap.Logger
	metrics            Metrics
}

// WithPageBatchSize returns option to set how many pages are read
// between context checks.
func WithPageBatchSize(n int) ReaderOption {
	return func(c *readerCfg) {
		c.pageBatchSize = n
	}
}

// WithMaxDeprecationHops returns option to limit how many successor
// registries are followed.
func WithMaxDeprecationHops(n int) ReaderOption {
	return func(c *readerCfg) {
		c.maxDeprecationHops = n
	}
}

// WithCacheSize returns option to set the number of cached records.
func WithCacheSize(n int) ReaderOption {
	return func(c *readerCfg) {
		c.cacheSize = n
	}
}

// WithVerification returns option to verify metadata hashes of read records.
func WithVerification(verify bool) ReaderOption {
	return func(c *readerCfg) {
		c.verify = verify
	}
}

// WithReaderHasher returns option to set the hash algorithm used to verify records.
func WithReaderHasher(h Hasher) ReaderOption {
	return func(c *readerCfg) {
		c.hasher = h
	}
}

func WithReaderLogger(l *zap.Logger) ReaderOption {
	return func(c *readerCfg) {
		c.log = l
	}
}

func WithReaderMetrics(m Metrics) ReaderOption {
	return func(c *readerCfg) {
		c.metrics = m
	}
}

func NewReader(sources SourceResolver, opts ...ReaderOption) (*Reader, error) {
	r := &Reader{
		sources: sources,
		readerCfg: readerCfg{
			pageBatchSize:      DefaultPageBatchSize,
			maxDeprecationHops: DefaultMaxDeprecationHops,
			cacheSize:          DefaultReaderCacheSize,
			verify:             true,
			hasher:             newDefaultHasher(),
			log:                zap.NewNop(),
			metrics:            nopMetrics{},
		},
	}

	for i := range opts {
		opts[i](&r.readerCfg)
	}

	if r.pageBatchSize <= 0 {
		return nil, NewUserError(fmt.Errorf("page batch size %d must be positive", r.pageBatchSize))
	}

	var err error
	r.cache, err = lru.New[readerCacheKey, readerCacheEntry](r.cacheSize)
	if err != nil {
		return nil, NewUserError(fmt.Errorf("failed to create record cache: %w", err))
	}

	return r, nil
}

// ReadRecord reads the record of asset id from registry registryID,
// following deprecations to successor registries.
func (r *Reader) ReadRecord(ctx context.Context, registryID uint64, id AssetID) (*ResolvedRecord, error) {
	current := registryID

	for hop := 0; ; hop++ {
		src, ok := r.sources.Source(current)
		if !ok {
			return nil, NewUserError(fmt.Errorf("unknown registry %d", current))
		}

		res, err := r.read(ctx, src, id)
		if err != nil {
			// err is categorized already by Reader.read()
			return nil, err
		}

		next := res.Record.DeprecatedBy
		if next == 0 || next == current {
			return res, nil
		}

		if hop >= r.maxDeprecationHops {
			r.log.Warn("too many deprecation hops",
				zap.Uint64("asset_id", uint64(id)),
				zap.Uint64("registry_id", current),
				zap.Int("hops", hop),
			)
			return res, nil
		}

		if _, ok := r.sources.Source(next); !ok {
			r.log.Debug("successor registry unknown",
				zap.Uint64("asset_id", uint64(id)),
				zap.Uint64("registry_id", current),
				zap.Uint64("deprecated_by", next),
			)
			return res, nil
		}

		current = next
	}
}

// read reads one record from src, reusing the cached record when it
// wasn't modified since.
func (r *Reader) read(ctx context.Context, src RecordSource, id AssetID) (*ResolvedRecord, error) {
	header, err := src.GetHeader(ctx, id)
	if err != nil {
		// Wrap err as external error (if needed) because err is returned by RecordSource interface.
		return nil, wrapErrorfAsExternalErrorIfNeeded(err, fmt.Sprintf("failed to get header of %d", id))
	}

	key := readerCacheKey{registryID: src.ID(), assetID: id}
	if cached, ok := r.cache.Get(key); ok {
		if cached.record.Header == header {
			return &ResolvedRecord{
				RegistryID: key.registryID,
				AssetID:    id,
				Record:     cached.record.Clone(),
				Pagination: cached.pagination,
			}, nil
		}
		r.cache.Remove(key)
	}

	pagination, err := src.GetPagination(ctx, id)
	if err != nil {
		// Wrap err as external error (if needed) because err is returned by RecordSource interface.
		return nil, wrapErrorfAsExternalErrorIfNeeded(err, fmt.Sprintf("failed to get pagination of %d", id))
	}

	body := make([]byte, 0, pagination.MetadataSize)

	for start := 0; start < pagination.TotalPages; start += r.pageBatchSize {
		err := ctx.Err()
		if err != nil {
			return nil, err
		}

		end := min(start+r.pageBatchSize, pagination.TotalPages)
		for i := start; i < end; i++ {
			page, err := src.GetMetadata(ctx, id, i)
			if err != nil {
				// Wrap err as external error (if needed) because err is returned by RecordSource interface.
				return nil, wrapErrorfAsExternalErrorIfNeeded(err, fmt.Sprintf("failed to get page %d of %d", i, id))
			}
			if page.LastModifiedRound != header.LastModifiedRound {
				r.metrics.DriftDetected()
				return nil, NewDriftDetectedError(id, header.LastModifiedRound, page.LastModifiedRound)
			}
			body = append(body, page.Content...)
		}
	}

	if len(body) != pagination.MetadataSize {
		return nil, NewMalformedRecordErrorf(
			"record %d has %d bytes in pages, pagination reports %d",
			id,
			len(body),
			pagination.MetadataSize,
		)
	}

	rec := &Record{Header: header, Body: body}

	if r.verify {
		err = r.VerifyRecord(id, rec, pagination.PageSize)
		if err != nil {
			// err is categorized already by Reader.VerifyRecord()
			return nil, err
		}
	}

	r.cache.Add(key, readerCacheEntry{record: rec.Clone(), pagination: pagination})

	return &ResolvedRecord{
		RegistryID: key.registryID,
		AssetID:    id,
		Record:     rec,
		Pagination: pagination,
	}, nil
}

// VerifyRecord recomputes the metadata hash of rec and compares it with
// the stored one. Records storing an asset provided hash aren't checked.
func (r *Reader) VerifyRecord(id AssetID, rec *Record, pageSize int) error {
	if usesHashOverride(rec.Header) {
		return nil
	}

	computed, err := ComputeMetadataHash(r.hasher, pageSize, id, rec)
	if err != nil {
		// err is categorized already by ComputeMetadataHash()
		return err
	}
	if computed != rec.MetadataHash {
		return NewHashMismatchError(id, rec.MetadataHash, computed)
	}
	return nil
}

// ResolveURI reads the record an ARC-90 URI points to.
func (r *Reader) ResolveURI(ctx context.Context, uri string) (*ResolvedRecord, error) {
	u, err := ParseURI(uri)
	if err != nil {
		// err is categorized already by ParseURI()
		return nil, err
	}

	id, ok := u.AssetID()
	if !ok {
		return nil, NewInvalidURIError(uri, "URI has no asset box")
	}

	// err is categorized already by Reader.ReadRecord()
	return r.ReadRecord(ctx, u.RegistryID, id)
}
