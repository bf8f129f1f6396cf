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
	"crypto/sha512"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strconv"
)

const (
	AssetIDLength = 8

	AddressLength         = 32
	addressChecksumLength = 4
)

type (
	// AssetID identifies an asset and keys its record box.
	AssetID uint64

	// Address is an account public key.
	Address [AddressLength]byte
)

var AddressUndefined = Address{}

var addressEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// AssetID

// BoxKey returns the 8-byte big-endian box key of the record.
func (id AssetID) BoxKey() []byte {
	var key [AssetIDLength]byte
	binary.BigEndian.PutUint64(key[:], uint64(id))
	return key[:]
}

// NewAssetIDFromBoxKey parses a box key.
func NewAssetIDFromBoxKey(b []byte) (AssetID, error) {
	if len(b) != AssetIDLength {
		return 0, NewMalformedRecordErrorf("incorrect box key length %d", len(b))
	}
	return AssetID(binary.BigEndian.Uint64(b)), nil
}

func (id AssetID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Address

// ParseAddress parses the base32 checksummed form of an address.
func ParseAddress(s string) (Address, error) {
	b, err := addressEncoding.DecodeString(s)
	if err != nil {
		return Address{}, NewUserError(fmt.Errorf("failed to decode address %q: %w", s, err))
	}
	if len(b) != AddressLength+addressChecksumLength {
		return Address{}, NewUserError(fmt.Errorf("incorrect address %q length %d", s, len(b)))
	}

	var address Address
	copy(address[:], b)

	if !bytes.Equal(address.checksum(), b[AddressLength:]) {
		return Address{}, NewUserError(fmt.Errorf("address %q has a wrong checksum", s))
	}
	return address, nil
}

func (a Address) checksum() []byte {
	digest := sha512.Sum512_256(a[:])
	return digest[MetadataHashLength-addressChecksumLength:]
}

func (a Address) String() string {
	b := make([]byte, 0, AddressLength+addressChecksumLength)
	b = append(b, a[:]...)
	b = append(b, a.checksum()...)
	return addressEncoding.EncodeToString(b)
}

func (a Address) IsZero() bool {
	return a == AddressUndefined
}
