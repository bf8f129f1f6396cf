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

import "encoding/binary"

// DecodeHeader parses the header prefix of data.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, NewMalformedRecordErrorf("data is %d bytes, header needs %d", len(data), HeaderSize)
	}

	var h Header
	h.Identifiers = IdentifiersFromByte(data[identifiersOffset])
	h.ReversibleFlags = ReversibleFlagsFromByte(data[reversibleFlagsOffset])
	h.IrreversibleFlags = IrreversibleFlagsFromByte(data[irreversibleFlagsOffset])
	copy(h.MetadataHash[:], data[metadataHashOffset:lastModifiedRoundOffset])
	h.LastModifiedRound = binary.BigEndian.Uint64(data[lastModifiedRoundOffset:deprecatedByOffset])
	h.DeprecatedBy = binary.BigEndian.Uint64(data[deprecatedByOffset:bodyOffset])
	return h, nil
}

// DecodeRecord parses a box value. Body bytes are copied.
// Flags aren't validated: any header byte values decode.
func DecodeRecord(data []byte, maxMetadataSize int) (*Record, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		// err is categorized already by DecodeHeader()
		return nil, err
	}

	bodySize := len(data) - HeaderSize
	if bodySize > maxMetadataSize {
		return nil, NewMalformedRecordErrorf("body is %d bytes, max metadata size is %d", bodySize, maxMetadataSize)
	}

	body := make([]byte, bodySize)
	copy(body, data[bodyOffset:])

	return &Record{Header: h, Body: body}, nil
}
