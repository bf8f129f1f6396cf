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
)

// readRecord returns a copy of the committed record of id, or NotFoundError.
func (r *Registry) readRecord(ctx context.Context, id AssetID) (*Record, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()

	rec, err := r.retrieve(id)
	if err != nil {
		// err is categorized already by Registry.retrieve()
		return nil, err
	}
	return rec.Clone(), nil
}

// GetMBRDelta returns the rent delta of writing a body of newSize bytes
// for asset id.
func (r *Registry) GetMBRDelta(ctx context.Context, id AssetID, newSize int) (RentDelta, error) {
	if newSize < 0 || newSize > r.params.MaxMetadataSize {
		return RentDelta{}, NewSizeExceededError(SizeLimitMaxMetadata, uint64(max(newSize, 0)), uint64(r.params.MaxMetadataSize))
	}

	rec, err := r.readRecord(ctx, id)
	if err != nil {
		if IsNotFoundError(err) {
			return r.params.CreateDelta(newSize), nil
		}
		// err is categorized already by Registry.readRecord()
		return RentDelta{}, err
	}
	return r.params.ResizeDelta(rec.Size(), newSize), nil
}

// CheckMetadataExists returns whether the asset and its record exist.
func (r *Registry) CheckMetadataExists(ctx context.Context, id AssetID) (assetExists bool, metadataExists bool, err error) {
	_, assetExists, err = lookupAsset(ctx, r.assets, id)
	if err != nil {
		// err is categorized already by lookupAsset()
		return false, false, err
	}

	_, err = r.readRecord(ctx, id)
	if err != nil {
		if IsNotFoundError(err) {
			return assetExists, false, nil
		}
		// err is categorized already by Registry.readRecord()
		return false, false, err
	}
	return assetExists, true, nil
}

// IsImmutable returns true if the record is flagged immutable or its
// asset has no manager left to change it.
func (r *Registry) IsImmutable(ctx context.Context, id AssetID) (bool, error) {
	rec, err := r.readRecord(ctx, id)
	if err != nil {
		// err is categorized already by Registry.readRecord()
		return false, err
	}
	if rec.IsImmutable() {
		return true, nil
	}

	info, found, err := lookupAsset(ctx, r.assets, id)
	if err != nil {
		// err is categorized already by lookupAsset()
		return false, err
	}
	return found && info.Manager.IsZero(), nil
}

// IsShort returns the short identifier and the last modified round of the record.
func (r *Registry) IsShort(ctx context.Context, id AssetID) (bool, uint64, error) {
	rec, err := r.readRecord(ctx, id)
	if err != nil {
		// err is categorized already by Registry.readRecord()
		return false, 0, err
	}
	return rec.IsShort(), rec.LastModifiedRound, nil
}

func (r *Registry) GetHeader(ctx context.Context, id AssetID) (Header, error) {
	rec, err := r.readRecord(ctx, id)
	if err != nil {
		// err is categorized already by Registry.readRecord()
		return Header{}, err
	}
	return rec.Header, nil
}

func (r *Registry) GetPagination(ctx context.Context, id AssetID) (Pagination, error) {
	rec, err := r.readRecord(ctx, id)
	if err != nil {
		// err is categorized already by Registry.readRecord()
		return Pagination{}, err
	}
	return newPagination(rec.Size(), r.params.PageSize), nil
}

// GetMetadata returns page index of the record body with the round the
// record was last modified in.
func (r *Registry) GetMetadata(ctx context.Context, id AssetID, index int) (PaginatedMetadata, error) {
	rec, err := r.readRecord(ctx, id)
	if err != nil {
		// err is categorized already by Registry.readRecord()
		return PaginatedMetadata{}, err
	}

	content, err := Page(rec.Body, r.params.PageSize, index)
	if err != nil {
		// err is categorized already by Page()
		return PaginatedMetadata{}, err
	}

	return PaginatedMetadata{
		HasNextPage:       index+1 < TotalPages(rec.Size(), r.params.PageSize),
		LastModifiedRound: rec.LastModifiedRound,
		Content:           content,
	}, nil
}

// GetSlice returns size bytes of the record body starting at offset.
// size can't exceed the page size.
func (r *Registry) GetSlice(ctx context.Context, id AssetID, offset int, size int) ([]byte, error) {
	if size < 0 || offset < 0 {
		return nil, NewUserError(fmt.Errorf("invalid slice offset %d and size %d", offset, size))
	}
	if size > r.params.PageSize {
		return nil, NewSizeExceededError(SizeLimitPageSize, uint64(size), uint64(r.params.PageSize))
	}

	rec, err := r.readRecord(ctx, id)
	if err != nil {
		// err is categorized already by Registry.readRecord()
		return nil, err
	}

	end := offset + size
	if end > rec.Size() {
		return nil, NewSizeExceededError(SizeLimitMetadataRange, uint64(end), uint64(rec.Size()))
	}
	return rec.Body[offset:end], nil
}

func (r *Registry) GetHeaderHash(ctx context.Context, id AssetID) (Hash, error) {
	rec, err := r.readRecord(ctx, id)
	if err != nil {
		// err is categorized already by Registry.readRecord()
		return Hash{}, err
	}
	// err is categorized already by HeaderHash()
	return HeaderHash(r.hasher, id, rec.Identifiers, rec.ReversibleFlags, rec.IrreversibleFlags, rec.Size())
}

func (r *Registry) GetPageHash(ctx context.Context, id AssetID, index int) (Hash, error) {
	rec, err := r.readRecord(ctx, id)
	if err != nil {
		// err is categorized already by Registry.readRecord()
		return Hash{}, err
	}
	if rec.Size() == 0 {
		return Hash{}, NewEmptyMetadataError(id)
	}

	content, err := Page(rec.Body, r.params.PageSize, index)
	if err != nil {
		// err is categorized already by Page()
		return Hash{}, err
	}
	// err is categorized already by PageHash()
	return PageHash(r.hasher, id, index, content)
}

// GetMetadataHash returns the stored metadata hash.
func (r *Registry) GetMetadataHash(ctx context.Context, id AssetID) (Hash, error) {
	rec, err := r.readRecord(ctx, id)
	if err != nil {
		// err is categorized already by Registry.readRecord()
		return Hash{}, err
	}
	return rec.MetadataHash, nil
}

// shortBody returns the body of a short record.
func (r *Registry) shortBody(ctx context.Context, id AssetID) ([]byte, error) {
	rec, err := r.readRecord(ctx, id)
	if err != nil {
		// err is categorized already by Registry.readRecord()
		return nil, err
	}
	if !rec.IsShort() {
		return nil, NewNotShortError(id)
	}
	return rec.Body, nil
}

func (r *Registry) checkPageSize(size int) error {
	if size > r.params.PageSize {
		return NewSizeExceededError(SizeLimitPageSize, uint64(size), uint64(r.params.PageSize))
	}
	return nil
}

// GetStringByKey returns the string value of a top-level key of a short
// JSON record.
func (r *Registry) GetStringByKey(ctx context.Context, id AssetID, key string) (string, error) {
	body, err := r.shortBody(ctx, id)
	if err != nil {
		// err is categorized already by Registry.shortBody()
		return "", err
	}

	v, err := jsonStringByKey(body, key)
	if err != nil {
		// err is categorized already by jsonStringByKey()
		return "", err
	}
	err = r.checkPageSize(len(v))
	if err != nil {
		return "", err
	}
	return v, nil
}

// GetUint64ByKey returns the integer value of a top-level key of a short
// JSON record.
func (r *Registry) GetUint64ByKey(ctx context.Context, id AssetID, key string) (uint64, error) {
	body, err := r.shortBody(ctx, id)
	if err != nil {
		// err is categorized already by Registry.shortBody()
		return 0, err
	}
	// err is categorized already by jsonUint64ByKey()
	return jsonUint64ByKey(body, key)
}

// GetObjectByKey returns the raw JSON object of a top-level key of a
// short JSON record.
func (r *Registry) GetObjectByKey(ctx context.Context, id AssetID, key string) (string, error) {
	body, err := r.shortBody(ctx, id)
	if err != nil {
		// err is categorized already by Registry.shortBody()
		return "", err
	}

	v, err := jsonObjectByKey(body, key)
	if err != nil {
		// err is categorized already by jsonObjectByKey()
		return "", err
	}
	err = r.checkPageSize(len(v))
	if err != nil {
		return "", err
	}
	return v, nil
}

// GetB64BytesByKey returns the decoded base64 string value of a top-level
// key of a short JSON record.
func (r *Registry) GetB64BytesByKey(ctx context.Context, id AssetID, key string, encoding B64Encoding) ([]byte, error) {
	body, err := r.shortBody(ctx, id)
	if err != nil {
		// err is categorized already by Registry.shortBody()
		return nil, err
	}

	v, err := jsonB64BytesByKey(body, key, encoding)
	if err != nil {
		// err is categorized already by jsonB64BytesByKey()
		return nil, err
	}
	err = r.checkPageSize(len(v))
	if err != nil {
		return nil, err
	}
	return v, nil
}
