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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/onflow/metabox"
	"github.com/onflow/metabox/test_utils"
)

type countingAssetRegistry struct {
	metabox.AssetRegistry
	lookups int
}

func (r *countingAssetRegistry) LookupAsset(ctx context.Context, id metabox.AssetID) (metabox.AssetInfo, error) {
	r.lookups++
	return r.AssetRegistry.LookupAsset(ctx, id)
}

func TestCachedAssetRegistry(t *testing.T) {
	ctx := context.Background()

	assets := test_utils.NewInMemAssetRegistry(metabox.AssetInfo{ID: testAssetID, Manager: testManager})
	counting := &countingAssetRegistry{AssetRegistry: assets}
	cached := metabox.NewCachedAssetRegistry(counting, time.Hour)

	for i := 0; i < 3; i++ {
		info, err := cached.LookupAsset(ctx, testAssetID)
		require.NoError(t, err)
		require.Equal(t, testManager, info.Manager)
	}
	require.Equal(t, 1, counting.lookups)

	// Unknown assets aren't cached.
	for i := 0; i < 2; i++ {
		_, err := cached.LookupAsset(ctx, 2)
		require.True(t, metabox.IsAssetNotFoundError(err))
	}
	require.Equal(t, 3, counting.lookups)

	assets.Put(metabox.AssetInfo{ID: testAssetID, Manager: testStranger})

	info, err := cached.LookupAsset(ctx, testAssetID)
	require.NoError(t, err)
	require.Equal(t, testManager, info.Manager)

	cached.Invalidate(testAssetID)

	info, err = cached.LookupAsset(ctx, testAssetID)
	require.NoError(t, err)
	require.Equal(t, testStranger, info.Manager)
	require.Equal(t, 4, counting.lookups)

	t.Run("lookup failure", func(t *testing.T) {
		failure := errors.New("node unavailable")
		assets.SetError(failure)
		defer assets.SetError(nil)

		_, err := cached.LookupAsset(ctx, 3)
		require.ErrorIs(t, err, failure)
	})
}

func TestAssetCompliance(t *testing.T) {
	partial := metabox.PartialURI("net:testnet", testRegistryID).String()

	testCases := []struct {
		name  string
		info  metabox.AssetInfo
		arc3  bool
		arc89 bool
	}{
		{"plain", metabox.AssetInfo{Name: "token", URL: "https://example.com"}, false, false},
		{"arc3 name", metabox.AssetInfo{Name: "arc3"}, true, false},
		{"arc3 name suffix", metabox.AssetInfo{Name: "token@arc3"}, true, false},
		{"arc3 url suffix", metabox.AssetInfo{URL: "ipfs://cid#arc3"}, true, false},
		{"arc3 in the middle", metabox.AssetInfo{Name: "arc3 token"}, false, false},
		{"arc89 url", metabox.AssetInfo{URL: partial}, false, true},
		{"arc89 url with arc3", metabox.AssetInfo{Name: "token@arc3", URL: partial + "AAAAAAAAA-k%3D#arc3"}, true, true},
		{"other registry", metabox.AssetInfo{URL: metabox.PartialURI("net:testnet", 1).String()}, false, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.arc3, metabox.IsARC3Compliant(tc.info))
			require.Equal(t, tc.arc89, metabox.IsARC89Compliant(tc.info, partial))
		})
	}
}
