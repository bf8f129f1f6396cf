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
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onflow/metabox"
)

type countingSource struct {
	metabox.RecordSource
	pageReads int
}

func (s *countingSource) GetMetadata(ctx context.Context, id metabox.AssetID, index int) (metabox.PaginatedMetadata, error) {
	s.pageReads++
	return s.RecordSource.GetMetadata(ctx, id, index)
}

// driftingSource reports a newer round for one page, as if the record
// changed between page reads.
type driftingSource struct {
	metabox.RecordSource
	driftPage int
}

func (s *driftingSource) GetMetadata(ctx context.Context, id metabox.AssetID, index int) (metabox.PaginatedMetadata, error) {
	page, err := s.RecordSource.GetMetadata(ctx, id, index)
	if err == nil && index == s.driftPage {
		page.LastModifiedRound++
	}
	return page, err
}

type tamperingSource struct {
	metabox.RecordSource
}

func (s *tamperingSource) GetMetadata(ctx context.Context, id metabox.AssetID, index int) (metabox.PaginatedMetadata, error) {
	page, err := s.RecordSource.GetMetadata(ctx, id, index)
	if err == nil && len(page.Content) > 0 {
		content := append([]byte(nil), page.Content...)
		content[0] ^= 0xff
		page.Content = content
	}
	return page, err
}

type countingMetrics struct {
	drifts atomic.Int64
}

func (m *countingMetrics) OperationExecuted(metabox.Method, error) {}
func (m *countingMetrics) BatchCommitted(int, uint64)              {}
func (m *countingMetrics) BatchRolledBack()                        {}
func (m *countingMetrics) RentCollected(uint64)                    {}
func (m *countingMetrics) RentRefunded(uint64)                     {}
func (m *countingMetrics) DriftDetected()                          { m.drifts.Add(1) }

func pagedFixture(t *testing.T, registryID uint64, body []byte) *registryFixture {
	params := metabox.DefaultParameters()
	params.PageSize = 128
	f := newRegistryFixtureWithID(t, registryID, metabox.WithParameters(params))
	f.create(t, testAssetID, metabox.IrreversibleFlags{}, body)
	return f
}

func TestReaderReadRecord(t *testing.T) {
	ctx := context.Background()
	body := testBody(300)
	f := pagedFixture(t, testRegistryID, body)

	src := &countingSource{RecordSource: f.registry}
	reader, err := metabox.NewReader(metabox.NewSourceMap(src), metabox.WithPageBatchSize(2))
	require.NoError(t, err)

	rr, err := reader.ReadRecord(ctx, testRegistryID, testAssetID)
	require.NoError(t, err)
	require.Equal(t, testRegistryID, rr.RegistryID)
	require.Equal(t, body, rr.Record.Body)
	require.Equal(t, 3, rr.Pagination.TotalPages)
	require.Equal(t, 3, src.pageReads)

	t.Run("cached", func(t *testing.T) {
		rr, err := reader.ReadRecord(ctx, testRegistryID, testAssetID)
		require.NoError(t, err)
		require.Equal(t, body, rr.Record.Body)
		require.Equal(t, 3, src.pageReads)
	})

	t.Run("modified record is read again", func(t *testing.T) {
		_, err := f.execute(t)(f.writer.BuildReplaceSlice(testAssetID, 0, []byte{0xfe}))
		require.NoError(t, err)

		rr, err := reader.ReadRecord(ctx, testRegistryID, testAssetID)
		require.NoError(t, err)
		require.Equal(t, byte(0xfe), rr.Record.Body[0])
		require.Equal(t, 6, src.pageReads)
	})

	t.Run("unknown registry", func(t *testing.T) {
		_, err := reader.ReadRecord(ctx, testRegistryID+1, testAssetID)
		var userErr *metabox.UserError
		require.ErrorAs(t, err, &userErr)
	})

	t.Run("missing record", func(t *testing.T) {
		_, err := reader.ReadRecord(ctx, testRegistryID, testAssetID+1)
		require.True(t, metabox.IsNotFoundError(err))
	})

	t.Run("canceled context", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := reader.ReadRecord(canceled, testRegistryID, testAssetID)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestReaderDriftDetected(t *testing.T) {
	ctx := context.Background()
	f := pagedFixture(t, testRegistryID, testBody(300))

	metrics := &countingMetrics{}
	src := &driftingSource{RecordSource: f.registry, driftPage: 2}
	reader, err := metabox.NewReader(metabox.NewSourceMap(src), metabox.WithReaderMetrics(metrics))
	require.NoError(t, err)

	_, err = reader.ReadRecord(ctx, testRegistryID, testAssetID)
	var driftErr *metabox.DriftDetectedError
	require.ErrorAs(t, err, &driftErr)
	require.Equal(t, int64(1), metrics.drifts.Load())
}

func TestReaderVerifyRecord(t *testing.T) {
	ctx := context.Background()
	f := pagedFixture(t, testRegistryID, testBody(300))

	src := &tamperingSource{RecordSource: f.registry}

	reader, err := metabox.NewReader(metabox.NewSourceMap(src))
	require.NoError(t, err)

	_, err = reader.ReadRecord(ctx, testRegistryID, testAssetID)
	var hashErr *metabox.HashMismatchError
	require.ErrorAs(t, err, &hashErr)

	reader, err = metabox.NewReader(metabox.NewSourceMap(src), metabox.WithVerification(false))
	require.NoError(t, err)

	rr, err := reader.ReadRecord(ctx, testRegistryID, testAssetID)
	require.NoError(t, err)

	err = reader.VerifyRecord(testAssetID, rr.Record, rr.Pagination.PageSize)
	require.ErrorAs(t, err, &hashErr)
}

func TestReaderDeprecation(t *testing.T) {
	ctx := context.Background()

	const (
		firstID  uint64 = 11
		secondID uint64 = 12
	)

	first := pagedFixture(t, firstID, testBody(10))
	second := pagedFixture(t, secondID, testBody(20))

	_, err := first.execute(t)(first.writer.BuildMigrate(testAssetID, secondID))
	require.NoError(t, err)

	sources := metabox.NewSourceMap(first.registry, second.registry)

	t.Run("successor", func(t *testing.T) {
		reader, err := metabox.NewReader(sources)
		require.NoError(t, err)

		rr, err := reader.ReadRecord(ctx, firstID, testAssetID)
		require.NoError(t, err)
		require.Equal(t, secondID, rr.RegistryID)
		require.Equal(t, testBody(20), rr.Record.Body)
	})

	t.Run("unknown successor", func(t *testing.T) {
		reader, err := metabox.NewReader(metabox.NewSourceMap(first.registry))
		require.NoError(t, err)

		rr, err := reader.ReadRecord(ctx, firstID, testAssetID)
		require.NoError(t, err)
		require.Equal(t, firstID, rr.RegistryID)
		require.Equal(t, secondID, rr.Record.DeprecatedBy)
	})

	t.Run("cycle stops after max hops", func(t *testing.T) {
		_, err := second.execute(t)(second.writer.BuildMigrate(testAssetID, firstID))
		require.NoError(t, err)

		src := &countingSource{RecordSource: second.registry}
		reader, err := metabox.NewReader(
			metabox.NewSourceMap(first.registry, src),
			metabox.WithMaxDeprecationHops(3),
			metabox.WithCacheSize(1),
		)
		require.NoError(t, err)

		rr, err := reader.ReadRecord(ctx, firstID, testAssetID)
		require.NoError(t, err)
		// first, second, first, second
		require.Equal(t, secondID, rr.RegistryID)
	})
}

func TestReaderResolveURI(t *testing.T) {
	ctx := context.Background()
	body := testBody(300)
	f := pagedFixture(t, testRegistryID, body)

	reader, err := metabox.NewReader(metabox.NewSourceMap(f.registry))
	require.NoError(t, err)

	uri := f.registry.PartialURI().WithAssetID(testAssetID).WithCompliance(metabox.Compliance{89}).String()

	rr, err := reader.ResolveURI(ctx, uri)
	require.NoError(t, err)
	require.Equal(t, body, rr.Record.Body)

	_, err = reader.ResolveURI(ctx, f.registry.PartialURI().String())
	var uriErr *metabox.InvalidURIError
	require.ErrorAs(t, err, &uriErr)
}
