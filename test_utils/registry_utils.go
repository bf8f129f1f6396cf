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
	"context"
	"sync"

	"github.com/onflow/metabox"
)

type InMemAssetRegistry struct {
	mu     sync.Mutex
	assets map[metabox.AssetID]metabox.AssetInfo
	err    error
}

var _ metabox.AssetRegistry = &InMemAssetRegistry{}

func NewInMemAssetRegistry(assets ...metabox.AssetInfo) *InMemAssetRegistry {
	r := &InMemAssetRegistry{assets: make(map[metabox.AssetID]metabox.AssetInfo)}
	for _, a := range assets {
		r.assets[a.ID] = a
	}
	return r
}

func (r *InMemAssetRegistry) LookupAsset(_ context.Context, id metabox.AssetID) (metabox.AssetInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return metabox.AssetInfo{}, r.err
	}
	info, ok := r.assets[id]
	if !ok {
		return metabox.AssetInfo{}, metabox.NewAssetNotFoundError(id)
	}
	return info, nil
}

func (r *InMemAssetRegistry) Put(info metabox.AssetInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.assets[info.ID] = info
}

// Destroy removes the asset.
func (r *InMemAssetRegistry) Destroy(id metabox.AssetID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.assets, id)
}

// SetError makes every lookup fail with err. Nil err restores lookups.
func (r *InMemAssetRegistry) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.err = err
}

// ManualClock is a clock advanced by tests.
type ManualClock struct {
	mu        sync.Mutex
	round     uint64
	timestamp uint64
}

var _ metabox.Clock = &ManualClock{}

func NewManualClock(round uint64) *ManualClock {
	return &ManualClock{round: round, timestamp: round * 3}
}

func (c *ManualClock) Round() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.round
}

func (c *ManualClock) Timestamp() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.timestamp
}

// Advance moves the clock n rounds forward.
func (c *ManualClock) Advance(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.round += n
	c.timestamp += 3 * n
}

type EventRecorder struct {
	mu     sync.Mutex
	events []metabox.Event
}

var _ metabox.EventSink = &EventRecorder{}

func (r *EventRecorder) Emit(e metabox.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
	return nil
}

func (r *EventRecorder) Events() []metabox.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]metabox.Event(nil), r.events...)
}

func (r *EventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = nil
}

type Transfer struct {
	From   metabox.Address
	To     metabox.Address
	Amount uint64
}

// TransferRecorder records transfers. Transfers fail with Err if set.
// If FailOn is also set, only the FailOn-th call (1-based) fails.
type TransferRecorder struct {
	mu        sync.Mutex
	transfers []Transfer
	calls     int
	Err       error
	FailOn    int
}

var _ metabox.ValueTransfer = &TransferRecorder{}

func (r *TransferRecorder) Transfer(_ context.Context, from, to metabox.Address, amount uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if r.Err != nil && (r.FailOn == 0 || r.FailOn == r.calls) {
		return r.Err
	}
	r.transfers = append(r.transfers, Transfer{From: from, To: to, Amount: amount})
	return nil
}

func (r *TransferRecorder) Transfers() []Transfer {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Transfer(nil), r.transfers...)
}
