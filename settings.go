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

import "fmt"

// Host limits of the box storage the registry runs on.
const (
	// MaxBoxSize is the maximum size of a cell value (box key excluded).
	MaxBoxSize = 32768

	// MaxArgSize is the maximum size of all arguments of a single call.
	MaxArgSize = 2048

	// MaxLogSize is the maximum size of a call's return value log.
	MaxLogSize = 1024

	// MaxGroupSize is the maximum number of operations submitted atomically.
	MaxGroupSize = 16
)

// Call overheads used to derive payload and page sizes.
const (
	methodSelectorSize = 4
	returnPrefixSize   = 4
	uint64ArgSize      = 8
	uint16ArgSize      = 2
	byteArgSize        = 1
	dynamicHeadSize    = 2 // offset of a dynamic argument
	dynamicLengthSize  = 2 // length prefix of a dynamic argument

	// create(asset_id, reversible_flags, irreversible_flags, metadata_size, payload, payment)
	createCallOverhead = methodSelectorSize + uint64ArgSize + 2*byteArgSize + uint16ArgSize + dynamicLengthSize

	// extra_payload(asset_id, payload)
	extraPayloadCallOverhead = methodSelectorSize + uint64ArgSize + dynamicLengthSize

	// replace_metadata_slice(asset_id, offset, payload)
	replaceSliceCallOverhead = methodSelectorSize + uint64ArgSize + uint16ArgSize + dynamicLengthSize

	// (has_next_page, last_modified_round, page_content)
	paginatedReturnOverhead = returnPrefixSize + byteArgSize + uint64ArgSize + dynamicHeadSize + dynamicLengthSize

	// a group holds the head operation, its rent payment and extra payloads.
	maxExtraPayloadCalls = MaxGroupSize - 2
)

// Default registry parameters.
const (
	DefaultFirstPayloadMaxSize   = MaxArgSize - createCallOverhead       // 2030
	DefaultExtraPayloadMaxSize   = MaxArgSize - extraPayloadCallOverhead // 2034
	DefaultReplacePayloadMaxSize = MaxArgSize - replaceSliceCallOverhead // 2032
	DefaultPageSize              = MaxLogSize - paginatedReturnOverhead  // 1007

	DefaultMaxMetadataSize   = DefaultFirstPayloadMaxSize + maxExtraPayloadCalls*DefaultExtraPayloadMaxSize // 30506
	DefaultShortMetadataSize = 4096

	// DefaultFlatMBR is the flat minimum balance requirement of a box (micro units).
	DefaultFlatMBR = 2500

	// DefaultByteMBR is the minimum balance requirement per box byte, key included (micro units).
	DefaultByteMBR = 400
)

// Parameters are the size and rent constants of a registry.
// They're read-only after the registry is constructed.
type Parameters struct {
	KeySize               int    `json:"key_size" mapstructure:"key_size"`
	HeaderSize            int    `json:"header_size" mapstructure:"header_size"`
	MaxMetadataSize       int    `json:"max_metadata_size" mapstructure:"max_metadata_size"`
	ShortMetadataSize     int    `json:"short_metadata_size" mapstructure:"short_metadata_size"`
	PageSize              int    `json:"page_size" mapstructure:"page_size"`
	FirstPayloadMaxSize   int    `json:"first_payload_max_size" mapstructure:"first_payload_max_size"`
	ExtraPayloadMaxSize   int    `json:"extra_payload_max_size" mapstructure:"extra_payload_max_size"`
	ReplacePayloadMaxSize int    `json:"replace_payload_max_size" mapstructure:"replace_payload_max_size"`
	FlatMBR               uint64 `json:"flat_mbr" mapstructure:"flat_mbr"`
	ByteMBR               uint64 `json:"byte_mbr" mapstructure:"byte_mbr"`
}

// DefaultParameters returns parameters matching the host limits.
func DefaultParameters() Parameters {
	return Parameters{
		KeySize:               AssetIDLength,
		HeaderSize:            HeaderSize,
		MaxMetadataSize:       DefaultMaxMetadataSize,
		ShortMetadataSize:     DefaultShortMetadataSize,
		PageSize:              DefaultPageSize,
		FirstPayloadMaxSize:   DefaultFirstPayloadMaxSize,
		ExtraPayloadMaxSize:   DefaultExtraPayloadMaxSize,
		ReplacePayloadMaxSize: DefaultReplacePayloadMaxSize,
		FlatMBR:               DefaultFlatMBR,
		ByteMBR:               DefaultByteMBR,
	}
}

// Validate returns InvalidParametersError if parameters are inconsistent.
func (p Parameters) Validate() error {
	if p.KeySize != AssetIDLength {
		return NewInvalidParametersErrorf("key size %d, want %d", p.KeySize, AssetIDLength)
	}
	if p.HeaderSize != HeaderSize {
		return NewInvalidParametersErrorf("header size %d, want %d", p.HeaderSize, HeaderSize)
	}
	if p.PageSize <= 0 {
		return NewInvalidParametersErrorf("page size %d must be positive", p.PageSize)
	}
	if p.FirstPayloadMaxSize <= 0 || p.ExtraPayloadMaxSize <= 0 || p.ReplacePayloadMaxSize <= 0 {
		return NewInvalidParametersErrorf(
			"payload sizes (%d, %d, %d) must be positive",
			p.FirstPayloadMaxSize,
			p.ExtraPayloadMaxSize,
			p.ReplacePayloadMaxSize,
		)
	}
	if p.MaxMetadataSize < 0 || p.MaxMetadataSize > MaxBoxSize-p.HeaderSize {
		return NewInvalidParametersErrorf(
			"max metadata size %d exceeds box capacity %d",
			p.MaxMetadataSize,
			MaxBoxSize-p.HeaderSize,
		)
	}
	if p.MaxMetadataSize > maxHashedLength {
		return NewInvalidParametersErrorf("max metadata size %d exceeds %d", p.MaxMetadataSize, maxHashedLength)
	}
	if TotalPages(p.MaxMetadataSize, p.PageSize) > maxPageCount {
		return NewInvalidParametersErrorf(
			"page size %d yields more than %d pages for max metadata size %d",
			p.PageSize,
			maxPageCount,
			p.MaxMetadataSize,
		)
	}
	if p.ShortMetadataSize < 0 || p.ShortMetadataSize > p.MaxMetadataSize {
		return NewInvalidParametersErrorf(
			"short metadata size %d must be in [0, %d]",
			p.ShortMetadataSize,
			p.MaxMetadataSize,
		)
	}
	return nil
}

func (p Parameters) String() string {
	return fmt.Sprintf(
		"Parameters{header: %d, max: %d, short: %d, page: %d, payloads: %d/%d/%d, mbr: %d+%d/byte}",
		p.HeaderSize,
		p.MaxMetadataSize,
		p.ShortMetadataSize,
		p.PageSize,
		p.FirstPayloadMaxSize,
		p.ExtraPayloadMaxSize,
		p.ReplacePayloadMaxSize,
		p.FlatMBR,
		p.ByteMBR,
	)
}
