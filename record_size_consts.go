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

// NOTE: sizes here are encoded sizes (in bytes) of the record stored in a box,
// not Go type sizes.
const (
	// identifiers (1 byte) + reversible flags (1 byte) + irreversible flags (1 byte)
	flagsSize = 3

	// metadata hash: SHA-512/256 digest
	MetadataHashLength = 32

	// last modified round: big-endian uint64
	lastModifiedRoundSize = 8

	// deprecated by: big-endian uint64 registry id
	deprecatedBySize = 8

	// record header size:
	//   identifiers (1 byte) +
	//   reversible flags (1 byte) +
	//   irreversible flags (1 byte) +
	//   metadata hash (32 bytes) +
	//   last modified round (8 bytes) +
	//   deprecated by (8 bytes)
	HeaderSize = flagsSize + MetadataHashLength + lastModifiedRoundSize + deprecatedBySize

	// header field offsets
	identifiersOffset       = 0
	reversibleFlagsOffset   = 1
	irreversibleFlagsOffset = 2
	metadataHashOffset      = 3
	lastModifiedRoundOffset = metadataHashOffset + MetadataHashLength
	deprecatedByOffset      = lastModifiedRoundOffset + lastModifiedRoundSize
	bodyOffset              = deprecatedByOffset + deprecatedBySize
)

// Hash input sizes.
const (
	// page index is hashed as a single byte, so metadata has at most 256 pages.
	maxPageCount = 256

	// body and page lengths are hashed as big-endian uint16.
	maxHashedLength = 1<<16 - 1
)
