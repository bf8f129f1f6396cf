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
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/onflow/metabox"
)

type assetEntry struct {
	Manager      string `json:"manager"`
	Name         string `json:"name,omitempty"`
	URL          string `json:"url,omitempty"`
	MetadataHash string `json:"metadata_hash,omitempty"`
}

// fileAssetRegistry is a development asset registry kept in a JSON file
// keyed by decimal asset id.
type fileAssetRegistry struct {
	path   string
	assets map[string]assetEntry
}

var _ metabox.AssetRegistry = &fileAssetRegistry{}

func loadFileAssetRegistry(path string) (*fileAssetRegistry, error) {
	r := &fileAssetRegistry{
		path:   path,
		assets: make(map[string]assetEntry),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("can't read asset registry %s: %w", path, err)
	}

	err = json.Unmarshal(data, &r.assets)
	if err != nil {
		return nil, fmt.Errorf("can't decode asset registry %s: %w", path, err)
	}
	return r, nil
}

func (r *fileAssetRegistry) LookupAsset(_ context.Context, id metabox.AssetID) (metabox.AssetInfo, error) {
	entry, ok := r.assets[id.String()]
	if !ok {
		return metabox.AssetInfo{}, metabox.NewAssetNotFoundError(id)
	}

	manager, err := metabox.ParseAddress(entry.Manager)
	if err != nil {
		return metabox.AssetInfo{}, fmt.Errorf("asset %d: %w", id, err)
	}

	info := metabox.AssetInfo{
		ID:      id,
		Manager: manager,
		Name:    entry.Name,
		URL:     entry.URL,
	}

	if entry.MetadataHash != "" {
		b, err := hex.DecodeString(entry.MetadataHash)
		if err != nil || len(b) != metabox.MetadataHashLength {
			return metabox.AssetInfo{}, fmt.Errorf("asset %d: invalid metadata hash %q", id, entry.MetadataHash)
		}
		copy(info.MetadataHash[:], b)
	}

	return info, nil
}

func (r *fileAssetRegistry) put(info metabox.AssetInfo) {
	entry := assetEntry{
		Manager: info.Manager.String(),
		Name:    info.Name,
		URL:     info.URL,
	}
	if !info.MetadataHash.IsZero() {
		entry.MetadataHash = hex.EncodeToString(info.MetadataHash[:])
	}
	r.assets[info.ID.String()] = entry
}

func (r *fileAssetRegistry) destroy(id metabox.AssetID) {
	delete(r.assets, id.String())
}

func (r *fileAssetRegistry) save() error {
	data, err := json.MarshalIndent(r.assets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.path, data, 0o600)
}
