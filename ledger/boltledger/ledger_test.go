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

package boltledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onflow/metabox"
	"github.com/onflow/metabox/test_utils"
)

func openTestLedger(t *testing.T, path string, opts ...Option) *Ledger {
	l, err := Open(path, opts...)
	require.NoError(t, err)
	return l
}

func TestLedgerCells(t *testing.T) {
	l := openTestLedger(t, filepath.Join(t.TempDir(), "cells.db"))
	defer func() {
		require.NoError(t, l.Close())
	}()

	key := metabox.AssetID(7).BoxKey()

	_, found, err := l.GetCell(key)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, l.PutCell(key, []byte("value")))

	v, found, err := l.GetCell(key)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("value"), v)

	require.NoError(t, l.PutCell(key, []byte("other")))

	v, _, err = l.GetCell(key)
	require.NoError(t, err)
	require.Equal(t, []byte("other"), v)

	require.NoError(t, l.DeleteCell(key))

	_, found, err = l.GetCell(key)
	require.NoError(t, err)
	require.False(t, found)

	// Deleting a missing cell is not an error.
	require.NoError(t, l.DeleteCell(key))
}

func TestLedgerUpdate(t *testing.T) {
	l := openTestLedger(t, filepath.Join(t.TempDir(), "cells.db"))
	defer func() {
		require.NoError(t, l.Close())
	}()

	k1 := metabox.AssetID(1).BoxKey()
	k2 := metabox.AssetID(2).BoxKey()
	k3 := metabox.AssetID(3).BoxKey()

	require.NoError(t, l.PutCell(k3, []byte{3}))

	failure := errors.New("abort")
	err := l.Update(func(w metabox.LedgerWriter) error {
		require.NoError(t, w.PutCell(k1, []byte{1}))
		require.NoError(t, w.DeleteCell(k3))
		return failure
	})
	require.ErrorIs(t, err, failure)

	_, found, err := l.GetCell(k1)
	require.NoError(t, err)
	require.False(t, found)
	_, found, err = l.GetCell(k3)
	require.NoError(t, err)
	require.True(t, found)

	err = l.Update(func(w metabox.LedgerWriter) error {
		if err := w.PutCell(k2, []byte{2}); err != nil {
			return err
		}
		if err := w.PutCell(k1, []byte{1}); err != nil {
			return err
		}
		return w.DeleteCell(k3)
	})
	require.NoError(t, err)

	var keys [][]byte
	err = l.ForEach(func(key, value []byte) error {
		keys = append(keys, append([]byte(nil), key...))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, [][]byte{k1, k2}, keys)

	n, err := l.Len()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	stop := errors.New("stop")
	err = l.ForEach(func(key, value []byte) error {
		return stop
	})
	require.ErrorIs(t, err, stop)
}

func TestLedgerReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cells.db")
	key := metabox.AssetID(1).BoxKey()

	l := openTestLedger(t, path)
	require.NoError(t, l.PutCell(key, []byte{1}))
	require.NoError(t, l.Close())

	l = openTestLedger(t, path, WithReadOnly(true))
	defer func() {
		require.NoError(t, l.Close())
	}()

	v, found, err := l.GetCell(key)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte{1}, v)

	require.ErrorIs(t, l.PutCell(key, []byte{2}), ErrReadOnly)
	require.ErrorIs(t, l.DeleteCell(key), ErrReadOnly)
	require.ErrorIs(t, l.Update(func(metabox.LedgerWriter) error { return nil }), ErrReadOnly)
}

func TestLedgerRegistry(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cells.db")

	const id metabox.AssetID = 1001
	manager := metabox.Address{0xbb}
	registryAddress := metabox.Address{0xaa}
	body := []byte(`{"name":"persisted"}`)

	newRegistry := func(l *Ledger) *metabox.Registry {
		r, err := metabox.NewRegistry(
			1,
			registryAddress,
			metabox.NewLedgerBaseStorage(l),
			test_utils.NewInMemAssetRegistry(metabox.AssetInfo{ID: id, Manager: manager}),
			metabox.WithClock(test_utils.NewManualClock(100)),
			metabox.WithValueTransfer(&test_utils.TransferRecorder{}),
		)
		require.NoError(t, err)
		return r
	}

	l := openTestLedger(t, path)
	r := newRegistry(l)

	b, err := metabox.NewWriter(r.Parameters(), registryAddress, manager, r).BuildCreate(id, metabox.ReversibleFlags{}, metabox.IrreversibleFlags{}, body)
	require.NoError(t, err)
	_, err = r.ExecuteBatch(ctx, b)
	require.NoError(t, err)

	hash, err := r.GetMetadataHash(ctx, id)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l = openTestLedger(t, path)
	defer func() {
		require.NoError(t, l.Close())
	}()
	r = newRegistry(l)

	page, err := r.GetMetadata(ctx, id, 0)
	require.NoError(t, err)
	require.Equal(t, body, page.Content)
	require.Equal(t, uint64(100), page.LastModifiedRound)

	header, err := r.GetHeader(ctx, id)
	require.NoError(t, err)
	require.Equal(t, hash, header.MetadataHash)
}
