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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCompliance(t *testing.T) {
	testCases := []struct {
		fragment string
		want     Compliance
	}{
		{"", nil},
		{"#arc3", Compliance{3}},
		{"arc89", Compliance{89}},
		{"#arc89+62+20", Compliance{89, 62, 20}},
		{"#arc3+89", nil},
		{"#arc", nil},
		{"#arc089", nil},
		{"#arc89+", nil},
		{"#arc89+x", nil},
		{"#ARC89", nil},
		{"#nft", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.fragment, func(t *testing.T) {
			require.Equal(t, tc.want, ParseCompliance(tc.fragment))
		})
	}
}

func TestComplianceFragment(t *testing.T) {
	fragment, err := Compliance{89, 62}.Fragment()
	require.NoError(t, err)
	require.Equal(t, "arc89+62", fragment)

	fragment, err = Compliance(nil).Fragment()
	require.NoError(t, err)
	require.Equal(t, "", fragment)

	_, err = Compliance{3, 89}.Fragment()
	var uriErr *InvalidURIError
	require.ErrorAs(t, err, &uriErr)
}

func TestParseURI(t *testing.T) {
	t.Run("testnet", func(t *testing.T) {
		u, err := ParseURI("algorand://net:testnet/app/752790676?box=AAAAAAAAA-k%3D#arc89")
		require.NoError(t, err)
		require.Equal(t, "net:testnet", u.NetAuth)
		require.Equal(t, uint64(752790676), u.RegistryID)
		require.Equal(t, Compliance{89}, u.Compliance)
		require.False(t, u.IsPartial())

		id, ok := u.AssetID()
		require.True(t, ok)
		require.Equal(t, AssetID(1001), id)

		b64, err := u.BoxNameBase64()
		require.NoError(t, err)
		require.Equal(t, "AAAAAAAAA+k=", b64)
	})

	t.Run("mainnet", func(t *testing.T) {
		u, err := ParseURI("algorand://app/123?box=AAAAAAAAAAE%3D")
		require.NoError(t, err)
		require.Equal(t, "", u.NetAuth)
		require.Equal(t, uint64(123), u.RegistryID)

		id, ok := u.AssetID()
		require.True(t, ok)
		require.Equal(t, AssetID(1), id)
	})

	t.Run("unpadded box", func(t *testing.T) {
		u, err := ParseURI("algorand://app/123?box=AAAAAAAAAAE")
		require.NoError(t, err)
		id, _ := u.AssetID()
		require.Equal(t, AssetID(1), id)
	})

	t.Run("partial", func(t *testing.T) {
		u, err := ParseURI("algorand://net:localnet/app/5?box=")
		require.NoError(t, err)
		require.True(t, u.IsPartial())

		_, ok := u.AssetID()
		require.False(t, ok)

		_, err = u.BoxNameBase64()
		var uriErr *InvalidURIError
		require.ErrorAs(t, err, &uriErr)
	})

	invalid := []string{
		"https://app/123?box=AAAAAAAAAAE%3D",
		"algorand://app/123",
		"algorand://app/123?foo=bar",
		"algorand://app/x?box=",
		"algorand://net:testnet/123?box=",
		"algorand://net:testnet/asset/123?box=",
		"algorand://app/123?box=AAAA",
		"algorand://app/123?box=!!!",
	}
	for _, s := range invalid {
		t.Run(s, func(t *testing.T) {
			_, err := ParseURI(s)
			var uriErr *InvalidURIError
			require.ErrorAs(t, err, &uriErr)
		})
	}
}

func TestURIString(t *testing.T) {
	partial := PartialURI("net:testnet", 752790676)
	require.Equal(t, "algorand://net:testnet/app/752790676?box=", partial.String())
	require.Equal(t, "algorand://app/1?box=", PartialURI("", 1).String())

	full := partial.WithAssetID(1001).WithCompliance(Compliance{89, 62})
	require.Equal(t, "algorand://net:testnet/app/752790676?box=AAAAAAAAA-k%3D#arc89+62", full.String())

	parsed, err := ParseURI(full.String())
	require.NoError(t, err)
	require.Equal(t, full, parsed)

	_, err = full.WithCompliance(Compliance{3, 62}).Render()
	var uriErr *InvalidURIError
	require.ErrorAs(t, err, &uriErr)
}

func TestCompletePartialAssetURL(t *testing.T) {
	s, err := CompletePartialAssetURL("algorand://net:testnet/app/752790676?box=#arc3", 1001)
	require.NoError(t, err)
	require.Equal(t, "algorand://net:testnet/app/752790676?box=AAAAAAAAA-k%3D#arc3", s)

	// complete URIs keep their box
	s, err = CompletePartialAssetURL("algorand://app/1?box=AAAAAAAAAAE%3D", 1001)
	require.NoError(t, err)
	require.Equal(t, "algorand://app/1?box=AAAAAAAAAAE%3D", s)

	_, err = CompletePartialAssetURL("ipfs://bafy", 1001)
	var uriErr *InvalidURIError
	require.ErrorAs(t, err, &uriErr)
}
