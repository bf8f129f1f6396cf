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
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// AssetInfo is what the registry needs to know about an asset.
type AssetInfo struct {
	ID           AssetID
	Manager      Address
	Name         string
	URL          string
	MetadataHash Hash
}

// AssetRegistry looks up assets. LookupAsset returns AssetNotFoundError
// for unknown assets.
type AssetRegistry interface {
	LookupAsset(ctx context.Context, id AssetID) (AssetInfo, error)
}

// ValueTransfer moves value between accounts. Refunds move value out of
// the registry account; refunds of a rolled back batch are reversed by a
// transfer back into it.
type ValueTransfer interface {
	Transfer(ctx context.Context, from, to Address, amount uint64) error
}

// Clock supplies the host round and timestamp.
type Clock interface {
	Round() uint64
	Timestamp() uint64
}

// lookupAsset returns (info, true) for existing assets and (_, false) for
// unknown ones.
func lookupAsset(ctx context.Context, assets AssetRegistry, id AssetID) (AssetInfo, bool, error) {
	info, err := assets.LookupAsset(ctx, id)
	if err != nil {
		if IsAssetNotFoundError(err) {
			return AssetInfo{}, false, nil
		}
		// Wrap err as external error (if needed) because err is returned by AssetRegistry interface.
		return AssetInfo{}, false, wrapErrorfAsExternalErrorIfNeeded(err, fmt.Sprintf("failed to look up asset %d", id))
	}
	return info, true, nil
}

const (
	arc3Name       = "arc3"
	arc3NameSuffix = "@arc3"
	arc3URLSuffix  = "#arc3"
)

// IsARC3Compliant returns true if the asset's name or URL marks it as ARC-3.
func IsARC3Compliant(info AssetInfo) bool {
	return info.Name == arc3Name ||
		strings.HasSuffix(info.Name, arc3NameSuffix) ||
		strings.HasSuffix(info.URL, arc3URLSuffix)
}

// IsARC89Compliant returns true if the asset's URL points at the registry
// with the given partial URI.
func IsARC89Compliant(info AssetInfo, partialURI string) bool {
	return strings.HasPrefix(info.URL, partialURI)
}

// CachedAssetRegistry caches asset lookups for a fixed time.
// Unknown assets aren't cached.
//
// A cached entry, including its manager, can be stale until it expires.
// Long-lived processes must not authorize writes through it unless they
// call Invalidate whenever an asset's manager changes.
type CachedAssetRegistry struct {
	assets AssetRegistry
	cache  *gocache.Cache
}

var _ AssetRegistry = &CachedAssetRegistry{}

const (
	DefaultAssetCacheExpiration = time.Minute
	assetCacheCleanupInterval   = 5 * time.Minute
)

func NewCachedAssetRegistry(assets AssetRegistry, expiration time.Duration) *CachedAssetRegistry {
	if expiration <= 0 {
		expiration = DefaultAssetCacheExpiration
	}
	return &CachedAssetRegistry{
		assets: assets,
		cache:  gocache.New(expiration, assetCacheCleanupInterval),
	}
}

func (r *CachedAssetRegistry) LookupAsset(ctx context.Context, id AssetID) (AssetInfo, error) {
	key := id.String()

	if v, found := r.cache.Get(key); found {
		return v.(AssetInfo), nil
	}

	info, err := r.assets.LookupAsset(ctx, id)
	if err != nil {
		// Don't need to wrap err because callers categorize errors of AssetRegistry interface.
		return AssetInfo{}, err
	}

	r.cache.SetDefault(key, info)
	return info, nil
}

// Invalidate drops the cached asset.
func (r *CachedAssetRegistry) Invalidate(id AssetID) {
	r.cache.Delete(id.String())
}
