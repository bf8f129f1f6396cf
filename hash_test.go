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
	"testing"

	"github.com/stretchr/testify/require"
	blake3zeebo "github.com/zeebo/blake3"
	blake3luke "lukechampine.com/blake3"
)

func mustDecodeHash(t *testing.T, s string) Hash {
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	require.Equal(t, MetadataHashLength, len(b))

	var h Hash
	copy(h[:], b)
	return h
}

func TestHashVectors(t *testing.T) {
	hasher := NewSHA512_256Hasher()

	t.Run("empty metadata", func(t *testing.T) {
		r := &Record{Header: Header{Identifiers: Identifiers{Short: true}}}

		hh, err := HeaderHash(hasher, 1, r.Identifiers, r.ReversibleFlags, r.IrreversibleFlags, 0)
		require.NoError(t, err)
		require.Equal(t, mustDecodeHash(t, "172c52da1d4de7e93cf40a2203c12e61facf9d47b21ec3db7639412ed540dffc"), hh)

		am, err := ComputeMetadataHash(hasher, DefaultPageSize, 1, r)
		require.NoError(t, err)
		require.Equal(t, mustDecodeHash(t, "557038bccd57a1543ff3669f2fe78dfd651a5b6bcd5a7baa48e47de299ef17ac"), am)
		require.Equal(t, AggregateHash(hasher, hh, nil), am)
	})

	t.Run("short json", func(t *testing.T) {
		r := &Record{
			Header: Header{
				Identifiers:     Identifiers{Short: true},
				ReversibleFlags: ReversibleFlags{ARC20: true},
			},
			Body: []byte(`{"name":"Silvio","answer":42}`),
		}

		am, err := ComputeMetadataHash(hasher, DefaultPageSize, 42, r)
		require.NoError(t, err)
		require.Equal(t, mustDecodeHash(t, "072b76af06475b14d04d9118c8e9def9ee5f90b3635b94ee8f75e852675fc5d5"), am)
	})

	t.Run("multiple pages", func(t *testing.T) {
		body := make([]byte, 300)
		for i := range body {
			body[i] = byte(i % 251)
		}
		r := &Record{
			Header: Header{
				Identifiers:       Identifiers{Short: true},
				IrreversibleFlags: IrreversibleFlags{Immutable: true},
			},
			Body: body,
		}

		ph, err := PageHash(hasher, 7, 0, body[:128])
		require.NoError(t, err)
		require.Equal(t, mustDecodeHash(t, "8757936c422348a8a91321375421e180077309c78d8a3e678845c55b8a5798bc"), ph)

		am, err := ComputeMetadataHash(hasher, 128, 7, r)
		require.NoError(t, err)
		require.Equal(t, mustDecodeHash(t, "90c6f83d89e546b5e340f34c0c3aaa8ba5bd95c3ff2c3fee8509f9c381f3e023"), am)

		pageHashes, err := PageHashes(hasher, 7, body, 128)
		require.NoError(t, err)
		require.Equal(t, 3, len(pageHashes))
		require.Equal(t, ph, pageHashes[0])
	})
}

func TestHashSensitivity(t *testing.T) {
	hasher := NewSHA512_256Hasher()

	body := bytes.Repeat([]byte("metadata"), 200)
	r := &Record{Body: body}

	want, err := ComputeMetadataHash(hasher, DefaultPageSize, 9, r)
	require.NoError(t, err)

	// deterministic
	got, err := ComputeMetadataHash(hasher, DefaultPageSize, 9, r.Clone())
	require.NoError(t, err)
	require.Equal(t, want, got)

	// every body byte
	for i := 0; i < len(body); i += 97 {
		changed := r.Clone()
		changed.Body[i] ^= 0x01

		got, err := ComputeMetadataHash(hasher, DefaultPageSize, 9, changed)
		require.NoError(t, err)
		require.NotEqual(t, want, got, "byte %d", i)
	}

	// asset id
	got, err = ComputeMetadataHash(hasher, DefaultPageSize, 10, r)
	require.NoError(t, err)
	require.NotEqual(t, want, got)

	// flags
	for _, change := range []func(*Record){
		func(r *Record) { r.Identifiers.Short = true },
		func(r *Record) { r.ReversibleFlags.ARC62 = true },
		func(r *Record) { r.IrreversibleFlags.Reserved4 = true },
	} {
		changed := r.Clone()
		change(changed)

		got, err := ComputeMetadataHash(hasher, DefaultPageSize, 9, changed)
		require.NoError(t, err)
		require.NotEqual(t, want, got)
	}

	// round, deprecation and stored hash aren't hashed
	unhashed := r.Clone()
	unhashed.LastModifiedRound = 100
	unhashed.DeprecatedBy = 5
	unhashed.MetadataHash = want
	got, err = ComputeMetadataHash(hasher, DefaultPageSize, 9, unhashed)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestHashLimits(t *testing.T) {
	hasher := NewSHA512_256Hasher()

	_, err := PageHash(hasher, 1, maxPageCount, nil)
	require.Error(t, err)
	require.True(t, IsFatalError(err))

	var hashError *HashError
	require.ErrorAs(t, err, &hashError)

	_, err = PageHash(hasher, 1, maxPageCount-1, nil)
	require.NoError(t, err)

	_, err = HeaderHash(hasher, 1, Identifiers{}, ReversibleFlags{}, IrreversibleFlags{}, maxHashedLength+1)
	require.ErrorAs(t, err, &hashError)
}

func TestHasherSelection(t *testing.T) {
	h, err := NewHasher("")
	require.NoError(t, err)
	require.Equal(t, HashAlgorithmSHA512_256, h.Name())

	h, err = NewHasher(HashAlgorithmBLAKE3)
	require.NoError(t, err)
	require.Equal(t, HashAlgorithmBLAKE3, h.Name())

	_, err = NewHasher("md5")
	require.Error(t, err)
}

func TestBLAKE3Hasher(t *testing.T) {
	hasher := NewBLAKE3Hasher()

	r := &Record{Body: bytes.Repeat([]byte{0xab}, 5000)}

	blake3Hash, err := ComputeMetadataHash(hasher, DefaultPageSize, 3, r)
	require.NoError(t, err)

	sha512Hash, err := ComputeMetadataHash(NewSHA512_256Hasher(), DefaultPageSize, 3, r)
	require.NoError(t, err)
	require.NotEqual(t, sha512Hash, blake3Hash)

	// Check digests against a second BLAKE3 implementation for
	// input sizes crossing the 1KiB chunk boundary.
	data := make([]byte, 8193)
	for i := range data {
		data[i] = byte(i % 251)
	}
	for _, n := range []int{0, 1, 63, 64, 65, 1023, 1024, 1025, 2048, 4097, 8193} {
		h := hasher.New()
		_, err := h.Write(data[:n])
		require.NoError(t, err)

		want := blake3luke.Sum256(data[:n])
		require.Equal(t, want[:], h.Sum(nil), "size %d", n)
		require.Equal(t, blake3zeebo.Sum256(data[:n]), want, "size %d", n)
	}
}
