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

package test_utils

import (
	"bytes"
	"errors"
	"sync"

	"github.com/onflow/metabox"
)

type InMemBaseStorage struct {
	segments         map[metabox.AssetID][]byte
	bytesRetrieved   int
	bytesStored      int
	segmentsReturned map[metabox.AssetID]struct{}
	segmentsUpdated  map[metabox.AssetID]struct{}
	segmentsTouched  map[metabox.AssetID]struct{}
}

var _ metabox.BaseStorage = &InMemBaseStorage{}

func NewInMemBaseStorage() *InMemBaseStorage {
	return NewInMemBaseStorageFromMap(
		make(map[metabox.AssetID][]byte),
	)
}

func NewInMemBaseStorageFromMap(segments map[metabox.AssetID][]byte) *InMemBaseStorage {
	return &InMemBaseStorage{
		segments:         segments,
		segmentsReturned: make(map[metabox.AssetID]struct{}),
		segmentsUpdated:  make(map[metabox.AssetID]struct{}),
		segmentsTouched:  make(map[metabox.AssetID]struct{}),
	}
}

func (s *InMemBaseStorage) Retrieve(id metabox.AssetID) ([]byte, bool, error) {
	seg, ok := s.segments[id]
	s.bytesRetrieved += len(seg)
	s.segmentsReturned[id] = struct{}{}
	s.segmentsTouched[id] = struct{}{}
	return seg, ok, nil
}

func (s *InMemBaseStorage) Store(id metabox.AssetID, data []byte) error {
	s.segments[id] = data
	s.bytesStored += len(data)
	s.segmentsUpdated[id] = struct{}{}
	s.segmentsTouched[id] = struct{}{}
	return nil
}

func (s *InMemBaseStorage) Remove(id metabox.AssetID) error {
	s.segmentsUpdated[id] = struct{}{}
	s.segmentsTouched[id] = struct{}{}
	delete(s.segments, id)
	return nil
}

func (s *InMemBaseStorage) SegmentCounts() int {
	return len(s.segments)
}

func (s *InMemBaseStorage) Size() int {
	total := 0
	for _, seg := range s.segments {
		total += len(seg)
	}
	return total
}

func (s *InMemBaseStorage) BytesRetrieved() int {
	return s.bytesRetrieved
}

func (s *InMemBaseStorage) BytesStored() int {
	return s.bytesStored
}

func (s *InMemBaseStorage) SegmentsReturned() int {
	return len(s.segmentsReturned)
}

func (s *InMemBaseStorage) SegmentsUpdated() int {
	return len(s.segmentsUpdated)
}

func (s *InMemBaseStorage) SegmentsTouched() int {
	return len(s.segmentsTouched)
}

func (s *InMemBaseStorage) ResetReporter() {
	s.bytesStored = 0
	s.bytesRetrieved = 0
	s.segmentsReturned = make(map[metabox.AssetID]struct{})
	s.segmentsUpdated = make(map[metabox.AssetID]struct{})
	s.segmentsTouched = make(map[metabox.AssetID]struct{})
}

var ErrInjectedFailure = errors.New("injected ledger failure")

// InMemLedger is a cell store with atomic updates. Writes fail with
// ErrInjectedFailure once FailWrites is set.
type InMemLedger struct {
	mu         sync.Mutex
	cells      map[string][]byte
	FailWrites bool
}

var _ metabox.BatchLedger = &InMemLedger{}

func NewInMemLedger() *InMemLedger {
	return &InMemLedger{cells: make(map[string][]byte)}
}

func (l *InMemLedger) GetCell(key []byte) ([]byte, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.cells[string(key)]
	return bytes.Clone(v), ok, nil
}

func (l *InMemLedger) PutCell(key, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.FailWrites {
		return ErrInjectedFailure
	}
	l.cells[string(key)] = bytes.Clone(value)
	return nil
}

func (l *InMemLedger) DeleteCell(key []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.FailWrites {
		return ErrInjectedFailure
	}
	delete(l.cells, string(key))
	return nil
}

type inMemLedgerTx struct {
	puts    map[string][]byte
	deletes map[string]struct{}
}

func (tx *inMemLedgerTx) PutCell(key, value []byte) error {
	delete(tx.deletes, string(key))
	tx.puts[string(key)] = bytes.Clone(value)
	return nil
}

func (tx *inMemLedgerTx) DeleteCell(key []byte) error {
	delete(tx.puts, string(key))
	tx.deletes[string(key)] = struct{}{}
	return nil
}

func (l *InMemLedger) Update(fn func(metabox.LedgerWriter) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.FailWrites {
		return ErrInjectedFailure
	}

	tx := &inMemLedgerTx{
		puts:    make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
	err := fn(tx)
	if err != nil {
		return err
	}

	for k := range tx.deletes {
		delete(l.cells, k)
	}
	for k, v := range tx.puts {
		l.cells[k] = v
	}
	return nil
}

// Len returns the number of cells.
func (l *InMemLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.cells)
}
