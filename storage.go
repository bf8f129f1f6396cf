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
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"
)

type BaseStorageUsageReporter interface {
	BytesRetrieved() int
	BytesStored() int
	SegmentsReturned() int
	SegmentsUpdated() int
	SegmentsTouched() int
	ResetReporter()
}

// BaseStorage stores encoded records by asset id.
type BaseStorage interface {
	Store(AssetID, []byte) error
	Retrieve(AssetID) ([]byte, bool, error)
	Remove(AssetID) error
	BaseStorageUsageReporter
}

// BaseStorageEntry is a pending write. Nil Data removes the record.
type BaseStorageEntry struct {
	ID   AssetID
	Data []byte
}

// BatchBaseStorage can apply many writes atomically.
type BatchBaseStorage interface {
	BaseStorage
	StoreBatch([]BaseStorageEntry) error
}

// Ledger is the host cell storage. Cells have a hard size ceiling of MaxBoxSize.
type Ledger interface {
	// GetCell returns the value of the cell with the given key.
	GetCell(key []byte) (value []byte, found bool, err error)
	// PutCell creates or overwrites the cell with the given key.
	PutCell(key, value []byte) error
	// DeleteCell deletes the cell with the given key, if any.
	DeleteCell(key []byte) error
}

// LedgerWriter writes cells inside a ledger update.
type LedgerWriter interface {
	PutCell(key, value []byte) error
	DeleteCell(key []byte) error
}

// BatchLedger applies all writes of fn atomically, or none if fn fails.
type BatchLedger interface {
	Ledger
	Update(fn func(LedgerWriter) error) error
}

type LedgerBaseStorage struct {
	ledger         Ledger
	bytesRetrieved int
	bytesStored    int
}

var _ BatchBaseStorage = &LedgerBaseStorage{}

func NewLedgerBaseStorage(ledger Ledger) *LedgerBaseStorage {
	return &LedgerBaseStorage{
		ledger:         ledger,
		bytesRetrieved: 0,
		bytesStored:    0,
	}
}

func (s *LedgerBaseStorage) Retrieve(id AssetID) ([]byte, bool, error) {
	v, found, err := s.ledger.GetCell(id.BoxKey())
	s.bytesRetrieved += len(v)

	if err != nil {
		// Wrap err as external error (if needed) because err is returned by Ledger interface.
		return nil, false, wrapErrorfAsExternalErrorIfNeeded(err, fmt.Sprintf("failed to retrieve record %d", id))
	}

	return v, found, nil
}

func (s *LedgerBaseStorage) Store(id AssetID, data []byte) error {
	if len(data) > MaxBoxSize {
		return NewSizeExceededError(SizeLimitCell, uint64(len(data)), MaxBoxSize)
	}

	s.bytesStored += len(data)
	err := s.ledger.PutCell(id.BoxKey(), data)

	if err != nil {
		// Wrap err as external error (if needed) because err is returned by Ledger interface.
		return wrapErrorfAsExternalErrorIfNeeded(err, fmt.Sprintf("failed to store record %d", id))
	}

	return nil
}

func (s *LedgerBaseStorage) Remove(id AssetID) error {
	err := s.ledger.DeleteCell(id.BoxKey())

	if err != nil {
		// Wrap err as external error (if needed) because err is returned by Ledger interface.
		return wrapErrorfAsExternalErrorIfNeeded(err, fmt.Sprintf("failed to remove record %d", id))
	}

	return nil
}

// StoreBatch applies entries in a single ledger update if the ledger
// supports it. Otherwise cells are written one by one and restored to
// their prior contents if a write fails.
func (s *LedgerBaseStorage) StoreBatch(entries []BaseStorageEntry) error {
	for _, e := range entries {
		if len(e.Data) > MaxBoxSize {
			return NewSizeExceededError(SizeLimitCell, uint64(len(e.Data)), MaxBoxSize)
		}
	}

	batchLedger, ok := s.ledger.(BatchLedger)
	if !ok {
		// err is categorized already by storeEntries()
		return storeEntries(entries, s.retrieveCell, s.Store, s.Remove)
	}

	bytesStored := 0
	err := batchLedger.Update(func(w LedgerWriter) error {
		for _, e := range entries {
			if e.Data == nil {
				err := w.DeleteCell(e.ID.BoxKey())
				if err != nil {
					return fmt.Errorf("failed to remove record %d: %w", e.ID, err)
				}
				continue
			}
			err := w.PutCell(e.ID.BoxKey(), e.Data)
			if err != nil {
				return fmt.Errorf("failed to store record %d: %w", e.ID, err)
			}
			bytesStored += len(e.Data)
		}
		return nil
	})
	if err != nil {
		// Wrap err as external error (if needed) because err is returned by BatchLedger interface.
		return wrapErrorfAsExternalErrorIfNeeded(err, fmt.Sprintf("failed to commit %d records", len(entries)))
	}

	s.bytesStored += bytesStored
	return nil
}

// retrieveCell reads a cell without counting it as retrieved.
func (s *LedgerBaseStorage) retrieveCell(id AssetID) ([]byte, bool, error) {
	v, found, err := s.ledger.GetCell(id.BoxKey())
	if err != nil {
		// Wrap err as external error (if needed) because err is returned by Ledger interface.
		return nil, false, wrapErrorfAsExternalErrorIfNeeded(err, fmt.Sprintf("failed to retrieve record %d", id))
	}
	return v, found, nil
}

// storeEntries writes entries one at a time. If a write fails, cells
// written before it are restored from their pre-images.
func storeEntries(
	entries []BaseStorageEntry,
	retrieve func(AssetID) ([]byte, bool, error),
	store func(AssetID, []byte) error,
	remove func(AssetID) error,
) error {
	// Nil Data marks a cell that didn't exist.
	preImages := make([]BaseStorageEntry, 0, len(entries))

	for _, e := range entries {
		old, found, err := retrieve(e.ID)
		if err != nil {
			return multierr.Append(err, restoreEntries(preImages, store, remove))
		}
		switch {
		case !found:
			old = nil
		case old == nil:
			old = []byte{}
		}
		preImages = append(preImages, BaseStorageEntry{ID: e.ID, Data: old})

		if e.Data == nil {
			err = remove(e.ID)
		} else {
			err = store(e.ID, e.Data)
		}
		if err != nil {
			return multierr.Append(err, restoreEntries(preImages, store, remove))
		}
	}

	return nil
}

func restoreEntries(preImages []BaseStorageEntry, store func(AssetID, []byte) error, remove func(AssetID) error) error {
	var errs error
	for i := len(preImages) - 1; i >= 0; i-- {
		e := preImages[i]
		var err error
		if e.Data == nil {
			err = remove(e.ID)
		} else {
			err = store(e.ID, e.Data)
		}
		errs = multierr.Append(errs, err)
	}

	if errs != nil {
		return NewFatalError(fmt.Errorf("failed to restore %d records after partial write: %w", len(preImages), errs))
	}
	return nil
}

func (s *LedgerBaseStorage) BytesRetrieved() int {
	return s.bytesRetrieved
}

func (s *LedgerBaseStorage) BytesStored() int {
	return s.bytesStored
}

func (s *LedgerBaseStorage) SegmentsReturned() int {
	// Ledger doesn't report cell counts.
	return 0
}

func (s *LedgerBaseStorage) SegmentsUpdated() int {
	return 0
}

func (s *LedgerBaseStorage) SegmentsTouched() int {
	return 0
}

func (s *LedgerBaseStorage) ResetReporter() {
	s.bytesStored = 0
	s.bytesRetrieved = 0
}

// PersistentBoxStorage buffers record changes of a batch in deltas on top
// of a read cache and a base storage. Commit writes deltas to the base
// storage, DropDeltas discards them.
type PersistentBoxStorage struct {
	baseStorage     BaseStorage
	cache           map[AssetID]*Record
	deltas          map[AssetID]*Record
	maxMetadataSize int
}

type StorageOption func(st *PersistentBoxStorage) *PersistentBoxStorage

// WithMaxMetadataSize sets the largest body accepted when decoding stored records.
func WithMaxMetadataSize(size int) StorageOption {
	return func(st *PersistentBoxStorage) *PersistentBoxStorage {
		st.maxMetadataSize = size
		return st
	}
}

func NewPersistentBoxStorage(base BaseStorage, opts ...StorageOption) *PersistentBoxStorage {
	storage := &PersistentBoxStorage{
		baseStorage:     base,
		cache:           make(map[AssetID]*Record),
		deltas:          make(map[AssetID]*Record),
		maxMetadataSize: DefaultMaxMetadataSize,
	}

	for _, applyOption := range opts {
		storage = applyOption(storage)
	}

	return storage
}

// HasUnsavedChanges returns true if the record of id is modified and unsaved.
func (s *PersistentBoxStorage) HasUnsavedChanges(id AssetID) bool {
	_, ok := s.deltas[id]
	return ok
}

func (s *PersistentBoxStorage) sortedDeltaKeys() []AssetID {
	keys := make([]AssetID, 0, len(s.deltas))
	for k := range s.deltas {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		return keys[i] < keys[j]
	})
	return keys
}

func encodeRecordForStorage(id AssetID, r *Record) ([]byte, error) {
	data := EncodeRecord(r)
	if len(data) > MaxBoxSize {
		return nil, NewFatalError(
			fmt.Errorf(
				"record %d is %d bytes, exceeding cell size limit %d",
				id,
				len(data),
				MaxBoxSize,
			),
		)
	}
	return data, nil
}

func (s *PersistentBoxStorage) Commit() error {

	// this part ensures the keys are sorted so commit operation is deterministic
	keys := s.sortedDeltaKeys()

	entries := make([]BaseStorageEntry, 0, len(keys))
	for _, id := range keys {
		r := s.deltas[id]

		// deleted records
		if r == nil {
			entries = append(entries, BaseStorageEntry{ID: id})
			continue
		}

		// serialize
		data, err := encodeRecordForStorage(id, r)
		if err != nil {
			// err is categorized already by encodeRecordForStorage()
			return err
		}
		entries = append(entries, BaseStorageEntry{ID: id, Data: data})
	}

	return s.commit(entries)
}

func (s *PersistentBoxStorage) commit(entries []BaseStorageEntry) error {
	if len(entries) == 0 {
		return nil
	}

	if batchStorage, ok := s.baseStorage.(BatchBaseStorage); ok {
		err := batchStorage.StoreBatch(entries)
		if err != nil {
			// Wrap err as external error (if needed) because err is returned by BatchBaseStorage interface.
			return wrapErrorfAsExternalErrorIfNeeded(err, "failed to commit records")
		}
	} else {
		err := storeEntries(entries, s.baseStorage.Retrieve, s.baseStorage.Store, s.baseStorage.Remove)
		if err != nil {
			// Wrap err as external error (if needed) because err is returned by BaseStorage interface.
			return wrapErrorfAsExternalErrorIfNeeded(err, "failed to commit records")
		}
	}

	for _, e := range entries {
		// Committed records are moved from deltas to read cache so that:
		// 1. next read is from in-memory read cache
		// 2. records are not re-committed in next commit
		s.cache[e.ID] = s.deltas[e.ID]
		delete(s.deltas, e.ID)
	}

	return nil
}

// FastCommit encodes records in parallel and commits them in key order.
func (s *PersistentBoxStorage) FastCommit(numWorkers int) error {

	// this part ensures the keys are sorted so commit operation is deterministic
	keys := s.sortedDeltaKeys()

	if len(keys) == 0 {
		return nil
	}

	// limit the number of workers to the number of keys
	if numWorkers > len(keys) {
		numWorkers = len(keys)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	// construct job queue
	jobs := make(chan AssetID, len(keys))
	for _, id := range keys {
		jobs <- id
	}
	close(jobs)

	type encodedRecord struct {
		id   AssetID
		data []byte
		err  error
	}

	// construct result queue
	results := make(chan *encodedRecord, len(keys))

	// define encoders (workers) and launch them
	encoder := func(wg *sync.WaitGroup, done <-chan struct{}, jobs <-chan AssetID, results chan<- *encodedRecord) {
		defer wg.Done()

		for id := range jobs {
			// Check if goroutine is signaled to stop before proceeding.
			select {
			case <-done:
				return
			default:
			}

			r := s.deltas[id]
			if r == nil {
				results <- &encodedRecord{id: id}
				continue
			}
			// serialize
			data, err := encodeRecordForStorage(id, r)
			results <- &encodedRecord{
				id:   id,
				data: data,
				err:  err,
			}
		}
	}

	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for i := 0; i < numWorkers; i++ {
		go encoder(&wg, done, jobs, results)
	}

	defer func() {
		// This ensures that all goroutines are stopped before output channel is closed.

		// Wait for all goroutines to finish
		wg.Wait()

		// Close output channel
		close(results)
	}()

	// process the results while encoders are working
	// we need to capture them inside a map
	// again so we can apply them in order of keys
	encodedByID := make(map[AssetID][]byte, len(keys))
	for i := 0; i < len(keys); i++ {
		result := <-results
		// if any error return
		if result.err != nil {
			// Closing done channel signals goroutines to stop.
			close(done)
			// result.err is already categorized by encodeRecordForStorage().
			return result.err
		}
		encodedByID[result.id] = result.data
	}

	entries := make([]BaseStorageEntry, len(keys))
	for i, id := range keys {
		entries[i] = BaseStorageEntry{ID: id, Data: encodedByID[id]}
	}

	return s.commit(entries)
}

func (s *PersistentBoxStorage) DropDeltas() {
	s.deltas = make(map[AssetID]*Record)
}

func (s *PersistentBoxStorage) DropCache() {
	s.cache = make(map[AssetID]*Record)
}

func (s *PersistentBoxStorage) RetrieveIgnoringDeltas(id AssetID) (*Record, bool, error) {

	// check the read cache next
	if r, ok := s.cache[id]; ok {
		return r, r != nil, nil
	}

	// fetch from base storage last
	data, ok, err := s.baseStorage.Retrieve(id)
	if err != nil {
		// Wrap err as external error (if needed) because err is returned by BaseStorage interface.
		return nil, ok, wrapErrorfAsExternalErrorIfNeeded(err, fmt.Sprintf("failed to retrieve record %d", id))
	}
	if !ok {
		return nil, ok, nil
	}

	r, err := DecodeRecord(data, s.maxMetadataSize)
	if err != nil {
		return nil, ok, NewFatalError(fmt.Errorf("stored record %d is corrupt: %w", id, err))
	}

	// save decoded record to cache
	s.cache[id] = r

	return r, ok, nil
}

// Retrieve returns the record of id. The returned record must not be
// modified: Store a modified clone instead.
func (s *PersistentBoxStorage) Retrieve(id AssetID) (*Record, bool, error) {
	// check deltas first
	if r, ok := s.deltas[id]; ok {
		return r, r != nil, nil
	}

	// Don't need to wrap error as external error because err is already categorized by PersistentBoxStorage.RetrieveIgnoringDeltas().
	return s.RetrieveIgnoringDeltas(id)
}

func (s *PersistentBoxStorage) Store(id AssetID, r *Record) error {
	if r == nil {
		return NewFatalError(fmt.Errorf("failed to store nil record %d", id))
	}
	// add to deltas
	s.deltas[id] = r
	return nil
}

func (s *PersistentBoxStorage) Remove(id AssetID) error {
	// add nil to deltas under that id
	s.deltas[id] = nil
	return nil
}

// Deltas returns number of uncommitted records.
func (s *PersistentBoxStorage) Deltas() uint {
	return uint(len(s.deltas))
}

// DeltasSize returns the encoded size of uncommitted records.
func (s *PersistentBoxStorage) DeltasSize() uint64 {
	size := uint64(0)
	for _, r := range s.deltas {
		if r != nil {
			size += uint64(r.EncodedSize())
		}
	}
	return size
}
