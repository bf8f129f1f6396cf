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
	"bytes"
	"encoding/hex"
)

// Hash is a 32-byte metadata, header or page digest.
type Hash [MetadataHashLength]byte

var HashUndefined = Hash{}

func (h Hash) IsZero() bool {
	return h == HashUndefined
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Header is the fixed-size prefix of a record.
type Header struct {
	Identifiers       Identifiers
	ReversibleFlags   ReversibleFlags
	IrreversibleFlags IrreversibleFlags
	MetadataHash      Hash
	LastModifiedRound uint64
	DeprecatedBy      uint64
}

func (h Header) IsShort() bool {
	return h.Identifiers.Short
}

func (h Header) IsImmutable() bool {
	return h.IrreversibleFlags.Immutable
}

// IsDeprecated returns true if the record points to a successor registry
// other than registryID.
func (h Header) IsDeprecated(registryID uint64) bool {
	return h.DeprecatedBy != 0 && h.DeprecatedBy != registryID
}

// Record is the metadata stored in an asset's box.
type Record struct {
	Header
	Body []byte
}

// Size returns the body size.
func (r *Record) Size() int {
	return len(r.Body)
}

// EncodedSize returns the box value size.
func (r *Record) EncodedSize() int {
	return HeaderSize + len(r.Body)
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	return &Record{
		Header: r.Header,
		Body:   bytes.Clone(r.Body),
	}
}

// Equal returns true if r and other have identical headers and bodies.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.Header == other.Header && bytes.Equal(r.Body, other.Body)
}
