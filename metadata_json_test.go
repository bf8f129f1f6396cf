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
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeMetadataJSON(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		obj, err := DecodeMetadataJSON(nil)
		require.NoError(t, err)
		require.Equal(t, map[string]interface{}{}, obj)
	})

	t.Run("object", func(t *testing.T) {
		obj, err := DecodeMetadataJSON([]byte(`{"name":"Silvio","answer":42,"big":18446744073709551615}`))
		require.NoError(t, err)
		require.Equal(t, "Silvio", obj["name"])
		require.Equal(t, json.Number("42"), obj["answer"])
		require.Equal(t, json.Number("18446744073709551615"), obj["big"])
	})

	invalid := map[string][]byte{
		"bom":          append([]byte{0xEF, 0xBB, 0xBF}, []byte(`{}`)...),
		"invalid utf8": {'{', '"', 'a', '"', ':', '"', 0xff, '"', '}'},
		"not json":     []byte(`{"a":`),
		"trailing":     []byte(`{} {}`),
		"array":        []byte(`[1,2]`),
		"string":       []byte(`"x"`),
	}
	for name, data := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeMetadataJSON(data)
			var jsonErr *InvalidMetadataJSONError
			require.ErrorAs(t, err, &jsonErr)
		})
	}
}

func TestEncodeMetadataJSON(t *testing.T) {
	data, err := EncodeMetadataJSON(map[string]interface{}{
		"name": "<b>&",
		"n":    json.Number("42"),
	})
	require.NoError(t, err)
	require.Equal(t, `{"n":42,"name":"<b>&"}`, string(data))

	data, err = EncodeMetadataJSON(nil)
	require.NoError(t, err)
	require.Equal(t, `{}`, string(data))

	obj, err := DecodeMetadataJSON(data)
	require.NoError(t, err)
	require.Equal(t, 0, len(obj))
}

func TestComputeARC3MetadataHash(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		h, err := ComputeARC3MetadataHash([]byte(`{"name":"x"}`))
		require.NoError(t, err)
		require.Equal(t, "0229d37e33daae149bf40543a5ce1db4459d10f830d5139279aa2bfd5f6485a1", hex.EncodeToString(h[:]))
	})

	t.Run("extra metadata", func(t *testing.T) {
		h, err := ComputeARC3MetadataHash([]byte(`{"name":"x","extra_metadata":"iHcUslDaL/jEM/oTxqEX++4CS8o3+IZp7/V5Rgchqwc="}`))
		require.NoError(t, err)
		require.Equal(t, "cb5e71c9114c8cf3745d0338fe1642c1294cf627f955e6d57c8b8db0b0be3e8e", hex.EncodeToString(h[:]))
	})

	t.Run("invalid extra metadata", func(t *testing.T) {
		var jsonErr *InvalidMetadataJSONError

		_, err := ComputeARC3MetadataHash([]byte(`{"extra_metadata":42}`))
		require.ErrorAs(t, err, &jsonErr)

		_, err = ComputeARC3MetadataHash([]byte(`{"extra_metadata":"not base64!"}`))
		require.ErrorAs(t, err, &jsonErr)
	})
}

func TestJSONValueByKey(t *testing.T) {
	data := []byte(`{"a.b":"dotted","a":{"b":"nested"},"dup":1,"dup":2}`)

	s, err := jsonStringByKey(data, "a.b")
	require.NoError(t, err)
	require.Equal(t, "dotted", s)

	obj, err := jsonObjectByKey(data, "a")
	require.NoError(t, err)
	require.Equal(t, `{"b":"nested"}`, obj)

	n, err := jsonUint64ByKey(data, "dup")
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)

	var keyErr *JSONKeyError

	_, err = jsonUint64ByKey([]byte(`{"n":-1}`), "n")
	require.ErrorAs(t, err, &keyErr)

	_, err = jsonUint64ByKey([]byte(`{"n":1.5}`), "n")
	require.ErrorAs(t, err, &keyErr)

	_, err = jsonB64BytesByKey([]byte(`{"b":"AQID"}`), "b", B64Encoding(7))
	require.ErrorAs(t, err, &keyErr)

	_, err = jsonB64BytesByKey([]byte(`{"b":"_-8="}`), "b", B64EncodingStd)
	require.ErrorAs(t, err, &keyErr)

	_, err = jsonStringByKey(nil, "a")
	require.ErrorAs(t, err, &keyErr)
}
