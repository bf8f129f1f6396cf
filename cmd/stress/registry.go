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
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/onflow/metabox"
	"github.com/onflow/metabox/test_utils"
)

const registryID = 752790676

const (
	createOp = iota
	replaceOp
	replaceSliceOp
	reversibleFlagOp
	irreversibleFlagOp
	immutableOp
	deleteOp
	rejectedOp
	maxRegistryOp
)

// Every fullCheckInterval operations all records are read back.
const fullCheckInterval = 1000

var (
	registryAddress = metabox.Address{0xaa, 0x55}

	letters = []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

	r *rand.Rand
)

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	fmt.Printf("rand seed 0x%x\n", seed)
	return rand.New(rand.NewSource(seed))
}

func randBody(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[r.Intn(len(letters))]
	}
	return b
}

type expectedRecord struct {
	body      []byte
	immutable bool
}

type stressEnv struct {
	registry *metabox.Registry
	reader   *metabox.Reader
	clock    *test_utils.ManualClock
	managers map[metabox.AssetID]metabox.Address
	expected map[metabox.AssetID]*expectedRecord
}

func newStressEnv(ledger *test_utils.InMemLedger, clock *test_utils.ManualClock, hasher metabox.Hasher, log *zap.Logger) (*stressEnv, error) {
	partial := metabox.PartialURI("", registryID).String()

	managers := make(map[metabox.AssetID]metabox.Address, flagAssets)
	assets := test_utils.NewInMemAssetRegistry()
	for i := uint64(1); i <= flagAssets; i++ {
		id := metabox.AssetID(i)

		var manager metabox.Address
		r.Read(manager[:])
		managers[id] = manager

		info := metabox.AssetInfo{ID: id, Manager: manager}
		// Even assets point at the registry and are created ARC-89 native.
		if i%2 == 0 {
			info.URL = partial
		}
		assets.Put(info)
	}

	registry, err := metabox.NewRegistry(
		registryID,
		registryAddress,
		metabox.NewLedgerBaseStorage(ledger),
		assets,
		metabox.WithHasher(hasher),
		metabox.WithClock(clock),
		metabox.WithValueTransfer(&test_utils.TransferRecorder{}),
		metabox.WithCommitWorkers(flagCommitWorkers),
		metabox.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	reader, err := metabox.NewReader(
		metabox.NewSourceMap(registry),
		metabox.WithReaderHasher(hasher),
		metabox.WithReaderLogger(log),
	)
	if err != nil {
		return nil, err
	}

	return &stressEnv{
		registry: registry,
		reader:   reader,
		clock:    clock,
		managers: managers,
		expected: make(map[metabox.AssetID]*expectedRecord),
	}, nil
}

func (env *stressEnv) writer(id metabox.AssetID) *metabox.Writer {
	return metabox.NewWriter(env.registry.Parameters(), registryAddress, env.managers[id], env.registry)
}

// execute returns a function executing a built batch one round later,
// for use as env.execute(ctx)(w.BuildXxx(...)).
func (env *stressEnv) execute(ctx context.Context) func(*metabox.Batch, error) error {
	return func(b *metabox.Batch, err error) error {
		if err != nil {
			return err
		}
		env.clock.Advance(1)
		_, err = env.registry.ExecuteBatch(ctx, b)
		return err
	}
}

// check reads the record of id back and compares it with the expected body.
func (env *stressEnv) check(ctx context.Context, id metabox.AssetID) error {
	want, exists := env.expected[id]

	resolved, err := env.reader.ReadRecord(ctx, registryID, id)
	if !exists {
		var notFoundErr *metabox.NotFoundError
		if !errors.As(err, &notFoundErr) {
			return fmt.Errorf("read of deleted record %d returned %v, want NotFoundError", id, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read record %d: %w", id, err)
	}
	if !bytes.Equal(want.body, resolved.Record.Body) {
		return fmt.Errorf("record %d body (%d bytes) differs from expected (%d bytes)", id, resolved.Record.Size(), len(want.body))
	}
	if want.immutable != resolved.Record.IsImmutable() {
		return fmt.Errorf("record %d immutable %t, want %t", id, resolved.Record.IsImmutable(), want.immutable)
	}
	return nil
}

func testRegistry(ctx context.Context, env *stressEnv, status *registryStatus) error {

	opCount := uint64(0)

	for ctx.Err() == nil {

		id := metabox.AssetID(1 + r.Uint64()%flagAssets)
		rec, exists := env.expected[id]
		w := env.writer(id)

		nextOp := r.Intn(maxRegistryOp)
		if !exists {
			nextOp = createOp
		}

		opCount++

		var err error

		switch nextOp {

		case createOp:
			if exists {
				err = env.execute(ctx)(w.BuildCreate(id, metabox.ReversibleFlags{}, metabox.IrreversibleFlags{}, nil))
				if !isError[*metabox.AlreadyExistsError](err) {
					return fmt.Errorf("create of existing record %d returned %v", id, err)
				}
				status.incRejected()
				break
			}

			body := randBody(r.Intn(flagMaxSize + 1))
			irr := metabox.IrreversibleFlags{
				ARC89Native: id%2 == 0,
				Immutable:   r.Intn(20) == 0,
			}
			rev := metabox.ReversibleFlagsFromByte(byte(r.Intn(256)))

			err = env.execute(ctx)(w.BuildCreate(id, rev, irr, body))
			if err != nil {
				return fmt.Errorf("failed to create record %d: %w", id, err)
			}
			env.expected[id] = &expectedRecord{body: body, immutable: irr.Immutable}
			status.incCreate(len(body))

		case replaceOp:
			body := randBody(r.Intn(flagMaxSize + 1))

			err = env.execute(ctx)(w.BuildReplace(ctx, id, body))
			if rec.immutable {
				if !isError[*metabox.ImmutableError](err) {
					return fmt.Errorf("replace of immutable record %d returned %v", id, err)
				}
				status.incRejected()
				break
			}
			if err != nil {
				return fmt.Errorf("failed to replace record %d: %w", id, err)
			}
			status.incReplace(len(rec.body), len(body))
			rec.body = body

		case replaceSliceOp:
			if len(rec.body) == 0 {
				continue
			}
			offset := r.Intn(len(rec.body))
			payload := randBody(r.Intn(min(len(rec.body)-offset, 4*metabox.DefaultReplacePayloadMaxSize) + 1))

			err = env.execute(ctx)(w.BuildReplaceSlice(id, offset, payload))
			if rec.immutable {
				if !isError[*metabox.ImmutableError](err) {
					return fmt.Errorf("slice replace of immutable record %d returned %v", id, err)
				}
				status.incRejected()
				break
			}
			if err != nil {
				return fmt.Errorf("failed to replace slice [%d, %d) of record %d: %w", offset, offset+len(payload), id, err)
			}
			copy(rec.body[offset:], payload)
			status.incSlice()

		case reversibleFlagOp, irreversibleFlagOp:
			if nextOp == reversibleFlagOp {
				err = env.execute(ctx)(w.BuildSetReversibleFlag(id, uint8(r.Intn(8)), r.Intn(2) == 0))
			} else {
				index := metabox.IrreversibleFlagReservedMin + uint8(r.Intn(int(metabox.IrreversibleFlagReservedMax-metabox.IrreversibleFlagReservedMin)+1))
				err = env.execute(ctx)(w.BuildSetIrreversibleFlag(id, index))
			}
			if rec.immutable {
				if !isError[*metabox.ImmutableError](err) {
					return fmt.Errorf("flag change of immutable record %d returned %v", id, err)
				}
				status.incRejected()
				break
			}
			if err != nil {
				return fmt.Errorf("failed to set flag of record %d: %w", id, err)
			}
			status.incFlag()

		case immutableOp:
			// Keep most records mutable.
			if r.Intn(10) != 0 {
				continue
			}
			err = env.execute(ctx)(w.BuildSetImmutable(id))
			if rec.immutable {
				if !isError[*metabox.ImmutableError](err) {
					return fmt.Errorf("set immutable of immutable record %d returned %v", id, err)
				}
				status.incRejected()
				break
			}
			if err != nil {
				return fmt.Errorf("failed to set record %d immutable: %w", id, err)
			}
			rec.immutable = true
			status.incFlag()

		case deleteOp:
			err = env.execute(ctx)(w.BuildDelete(id))
			if rec.immutable {
				if !isError[*metabox.ImmutableError](err) {
					return fmt.Errorf("delete of immutable record %d returned %v", id, err)
				}
				status.incRejected()
				break
			}
			if err != nil {
				return fmt.Errorf("failed to delete record %d: %w", id, err)
			}
			delete(env.expected, id)
			status.incDelete(len(rec.body))

		case rejectedOp:
			// A replacement declaring one byte more than it carries is
			// rejected and must leave the record untouched.
			if rec.immutable || len(rec.body) == 0 {
				continue
			}
			size := len(rec.body)
			chunk := rec.body[:min(size-1, metabox.DefaultFirstPayloadMaxSize)]
			b := metabox.NewBatch(metabox.NewReplaceOperation(env.managers[id], id, uint16(size), chunk))

			err = env.execute(ctx)(b, nil)
			if !metabox.IsSizeExceededError(err, metabox.SizeLimitSizeMismatch) {
				return fmt.Errorf("short replacement of record %d returned %v", id, err)
			}
			status.incRejected()
		}

		err = env.check(ctx, id)
		if err != nil {
			return err
		}

		if opCount%fullCheckInterval == 0 {
			for i := uint64(1); i <= flagAssets; i++ {
				err = env.check(ctx, metabox.AssetID(i))
				if err != nil {
					return err
				}
			}
			runtime.GC()
		}
	}

	return nil
}

func isError[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
