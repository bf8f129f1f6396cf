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

package main

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/onflow/metabox/test_utils"
)

type registryStatus struct {
	lock sync.RWMutex

	startTime time.Time
	ledger    *test_utils.InMemLedger

	records   uint64
	bodyBytes uint64

	createOps   uint64
	replaceOps  uint64
	sliceOps    uint64
	flagOps     uint64
	deleteOps   uint64
	rejectedOps uint64
}

var _ Status = &registryStatus{}

func newRegistryStatus(ledger *test_utils.InMemLedger) *registryStatus {
	return &registryStatus{startTime: time.Now(), ledger: ledger}
}

func (status *registryStatus) String() string {
	status.lock.RLock()
	defer status.lock.RUnlock()

	duration := time.Since(status.startTime)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return fmt.Sprintf("duration %s, heapAlloc %d MiB, %d cells, %d records (%d KiB), %d creates, %d replaces, %d slices, %d flags, %d deletes, %d rejected",
		duration.Truncate(time.Second).String(),
		m.Alloc/1024/1024,
		status.ledger.Len(),
		status.records,
		status.bodyBytes/1024,
		status.createOps,
		status.replaceOps,
		status.sliceOps,
		status.flagOps,
		status.deleteOps,
		status.rejectedOps,
	)
}

func (status *registryStatus) incCreate(size int) {
	status.lock.Lock()
	defer status.lock.Unlock()

	status.createOps++
	status.records++
	status.bodyBytes += uint64(size)
}

func (status *registryStatus) incReplace(oldSize, newSize int) {
	status.lock.Lock()
	defer status.lock.Unlock()

	status.replaceOps++
	status.bodyBytes = status.bodyBytes - uint64(oldSize) + uint64(newSize)
}

func (status *registryStatus) incSlice() {
	status.lock.Lock()
	defer status.lock.Unlock()

	status.sliceOps++
}

func (status *registryStatus) incFlag() {
	status.lock.Lock()
	defer status.lock.Unlock()

	status.flagOps++
}

func (status *registryStatus) incDelete(size int) {
	status.lock.Lock()
	defer status.lock.Unlock()

	status.deleteOps++
	status.records--
	status.bodyBytes -= uint64(size)
}

func (status *registryStatus) incRejected() {
	status.lock.Lock()
	defer status.lock.Unlock()

	status.rejectedOps++
}

func (status *registryStatus) Write() {
	writeStatus(status.String())
}
