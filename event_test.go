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

package metabox_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onflow/metabox"
)

func TestEventEncoding(t *testing.T) {
	events := []metabox.Event{
		&metabox.MetadataUpdated{
			AssetID:           testAssetID,
			Round:             testRound,
			Timestamp:         testRound * 3,
			ReversibleFlags:   0x01,
			IrreversibleFlags: 0x81,
			IsShort:           true,
			Hash:              metabox.Hash{1, 2, 3},
		},
		&metabox.MetadataMigrated{AssetID: testAssetID, Round: testRound, Timestamp: 7, NewRegistryID: 42},
		&metabox.MetadataDeleted{AssetID: testAssetID, Round: testRound, Timestamp: 7},
	}

	for _, e := range events {
		data, err := metabox.EncodeEvent(e)
		require.NoError(t, err)

		decoded, err := metabox.DecodeEvent(data)
		require.NoError(t, err)
		require.Equal(t, e, decoded)
		require.Equal(t, testAssetID, decoded.EventAssetID())
	}

	t.Run("batch tag", func(t *testing.T) {
		data, err := metabox.EncodeBatch(metabox.NewBatch(metabox.NewDeleteOperation(testManager, testAssetID)))
		require.NoError(t, err)

		_, err = metabox.DecodeEvent(data)
		var decodingErr *metabox.DecodingError
		require.ErrorAs(t, err, &decodingErr)
	})

	t.Run("not cbor", func(t *testing.T) {
		_, err := metabox.DecodeEvent([]byte{0xff, 0x00})
		var decodingErr *metabox.DecodingError
		require.ErrorAs(t, err, &decodingErr)
	})
}

func TestBatchEncoding(t *testing.T) {
	w := metabox.NewWriter(metabox.DefaultParameters(), testRegistryAddress, testManager, nil, metabox.WithMinFee(1000))

	b, err := w.BuildCreate(testAssetID, metabox.ReversibleFlags{ARC62: true}, metabox.IrreversibleFlags{ARC89Native: true}, testBody(3000))
	require.NoError(t, err)

	data, err := metabox.EncodeBatch(b)
	require.NoError(t, err)

	decoded, err := metabox.DecodeBatch(data)
	require.NoError(t, err)
	require.Equal(t, b, decoded)

	// A decoded batch executes like the original.
	f := newRegistryFixture(t)
	url, err := metabox.CompletePartialAssetURL(f.registry.PartialURI().String(), testAssetID)
	require.NoError(t, err)
	f.assets.Put(metabox.AssetInfo{ID: testAssetID, Manager: testManager, URL: url})

	_, err = f.registry.ExecuteBatch(context.Background(), decoded)
	require.NoError(t, err)

	body, err := f.registry.GetSlice(context.Background(), testAssetID, 0, 10)
	require.NoError(t, err)
	require.Equal(t, testBody(10), body)

	t.Run("event tag", func(t *testing.T) {
		data, err := metabox.EncodeEvent(&metabox.MetadataDeleted{AssetID: testAssetID})
		require.NoError(t, err)

		_, err = metabox.DecodeBatch(data)
		var decodingErr *metabox.DecodingError
		require.ErrorAs(t, err, &decodingErr)
	})
}

func TestEventSinkFunc(t *testing.T) {
	f := newRegistryFixture(t)

	var emitted []metabox.Event
	sink := metabox.EventSinkFunc(func(e metabox.Event) error {
		emitted = append(emitted, e)
		return nil
	})

	registry, err := metabox.NewRegistry(
		testRegistryID,
		testRegistryAddress,
		metabox.NewLedgerBaseStorage(f.ledger),
		f.assets,
		metabox.WithClock(f.clock),
		metabox.WithEventSink(sink),
	)
	require.NoError(t, err)

	w := metabox.NewWriter(registry.Parameters(), testRegistryAddress, testManager, registry)
	b, err := w.BuildCreate(testAssetID, metabox.ReversibleFlags{}, metabox.IrreversibleFlags{}, []byte("{}"))
	require.NoError(t, err)

	_, err = registry.ExecuteBatch(context.Background(), b)
	require.NoError(t, err)
	require.Equal(t, 1, len(emitted))

	updated, ok := emitted[0].(*metabox.MetadataUpdated)
	require.True(t, ok)
	require.Equal(t, testAssetID, updated.AssetID)
	require.Equal(t, testRound, updated.Round)
	require.Equal(t, testRound*3, updated.Timestamp)
	require.True(t, updated.IsShort)
}
