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
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/zeebo/blake3"
)

// Hash domains separate header, page and aggregate digests.
const (
	HashDomainHeader   = "arc0089/header"
	HashDomainPage     = "arc0089/page"
	HashDomainMetadata = "arc0089/am"
)

const (
	HashAlgorithmSHA512_256 = "sha512_256"
	HashAlgorithmBLAKE3     = "blake3"
)

// Hasher creates the 256-bit hash function used for metadata digests.
type Hasher interface {
	Name() string
	New() hash.Hash
}

type sha512_256Hasher struct{}

var _ Hasher = sha512_256Hasher{}

// NewSHA512_256Hasher returns the default hasher, compatible with
// hashes computed by other registry implementations.
func NewSHA512_256Hasher() Hasher {
	return sha512_256Hasher{}
}

func (sha512_256Hasher) Name() string {
	return HashAlgorithmSHA512_256
}

func (sha512_256Hasher) New() hash.Hash {
	return sha512.New512_256()
}

type blake3Hasher struct{}

var _ Hasher = blake3Hasher{}

// NewBLAKE3Hasher returns a BLAKE3-256 hasher. Hashes it produces are
// only verifiable by readers configured with the same algorithm.
func NewBLAKE3Hasher() Hasher {
	return blake3Hasher{}
}

func (blake3Hasher) Name() string {
	return HashAlgorithmBLAKE3
}

func (blake3Hasher) New() hash.Hash {
	return blake3.New()
}

func newDefaultHasher() Hasher {
	return NewSHA512_256Hasher()
}

// NewHasher returns the hasher with the given algorithm name.
func NewHasher(algorithm string) (Hasher, error) {
	switch algorithm {
	case HashAlgorithmSHA512_256, "":
		return NewSHA512_256Hasher(), nil
	case HashAlgorithmBLAKE3:
		return NewBLAKE3Hasher(), nil
	default:
		return nil, NewUserError(fmt.Errorf("unsupported hash algorithm %q", algorithm))
	}
}

func sum(h hash.Hash) Hash {
	var digest Hash
	copy(digest[:], h.Sum(nil))
	return digest
}

// HeaderHash returns
// H("arc0089/header" || asset id || identifiers || reversible || irreversible || u16(body size)).
func HeaderHash(
	hasher Hasher,
	id AssetID,
	ids Identifiers,
	rev ReversibleFlags,
	irr IrreversibleFlags,
	bodySize int,
) (Hash, error) {
	if bodySize < 0 || bodySize > maxHashedLength {
		return Hash{}, NewHashError(fmt.Errorf("body size %d can't be hashed as uint16", bodySize))
	}

	var buf [AssetIDLength + flagsSize + 2]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	buf[AssetIDLength] = ids.ToByte()
	buf[AssetIDLength+1] = rev.ToByte()
	buf[AssetIDLength+2] = irr.ToByte()
	binary.BigEndian.PutUint16(buf[AssetIDLength+flagsSize:], uint16(bodySize))

	h := hasher.New()
	h.Write([]byte(HashDomainHeader))
	h.Write(buf[:])
	return sum(h), nil
}

// PageHash returns
// H("arc0089/page" || asset id || u8(page index) || u16(len(content)) || content).
func PageHash(hasher Hasher, id AssetID, pageIndex int, content []byte) (Hash, error) {
	if pageIndex < 0 || pageIndex >= maxPageCount {
		return Hash{}, NewHashError(fmt.Errorf("page index %d can't be hashed as uint8", pageIndex))
	}
	if len(content) > maxHashedLength {
		return Hash{}, NewHashError(fmt.Errorf("page size %d can't be hashed as uint16", len(content)))
	}

	var buf [AssetIDLength + 1 + 2]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	buf[AssetIDLength] = byte(pageIndex)
	binary.BigEndian.PutUint16(buf[AssetIDLength+1:], uint16(len(content)))

	h := hasher.New()
	h.Write([]byte(HashDomainPage))
	h.Write(buf[:])
	h.Write(content)
	return sum(h), nil
}

// AggregateHash returns H("arc0089/am" || header hash || page hash 0 || ...).
func AggregateHash(hasher Hasher, headerHash Hash, pageHashes []Hash) Hash {
	h := hasher.New()
	h.Write([]byte(HashDomainMetadata))
	h.Write(headerHash[:])
	for _, ph := range pageHashes {
		h.Write(ph[:])
	}
	return sum(h)
}

// PageHashes returns hashes of all pages of body.
func PageHashes(hasher Hasher, id AssetID, body []byte, pageSize int) ([]Hash, error) {
	pages := Pages(body, pageSize)
	hashes := make([]Hash, len(pages))
	for i, content := range pages {
		ph, err := PageHash(hasher, id, i, content)
		if err != nil {
			// err is categorized already by PageHash()
			return nil, err
		}
		hashes[i] = ph
	}
	return hashes, nil
}

// ComputeMetadataHash runs the three hash tiers over a record.
// The header's metadata hash, round and deprecation aren't hashed.
func ComputeMetadataHash(hasher Hasher, pageSize int, id AssetID, r *Record) (Hash, error) {
	hh, err := HeaderHash(
		hasher,
		id,
		r.Identifiers,
		r.ReversibleFlags,
		r.IrreversibleFlags,
		len(r.Body),
	)
	if err != nil {
		// err is categorized already by HeaderHash()
		return Hash{}, err
	}

	pageHashes, err := PageHashes(hasher, id, r.Body, pageSize)
	if err != nil {
		// err is categorized already by PageHashes()
		return Hash{}, err
	}

	return AggregateHash(hasher, hh, pageHashes), nil
}
