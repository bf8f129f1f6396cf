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

// EncodeHeader writes the header to b, which must be at least HeaderSize bytes.
func EncodeHeader(h Header, b []byte) {
	b[identifiersOffset] = h.Identifiers.ToByte()
	b[reversibleFlagsOffset] = h.ReversibleFlags.ToByte()
	b[irreversibleFlagsOffset] = h.IrreversibleFlags.ToByte()
	copy(b[metadataHashOffset:lastModifiedRoundOffset], h.MetadataHash[:])
	binary.BigEndian.PutUint64(b[lastModifiedRoundOffset:deprecatedByOffset], h.LastModifiedRound)
	binary.BigEndian.PutUint64(b[deprecatedByOffset:bodyOffset], h.DeprecatedBy)
}

// EncodeRecord returns header || body.
func EncodeRecord(r *Record) []byte {
	b := make([]byte, HeaderSize+len(r.Body))
	EncodeHeader(r.Header, b)
	copy(b[bodyOffset:], r.Body)
	return b
}
