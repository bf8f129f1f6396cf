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
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"strconv"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

const (
	arc3HashDomainMetadata = "arc0003/am"
	arc3HashDomainJSON     = "arc0003/amj"
	arc3ExtraMetadataKey   = "extra_metadata"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// B64Encoding selects the alphabet of a base64 JSON value.
type B64Encoding uint8

const (
	B64EncodingURL B64Encoding = 0
	B64EncodingStd B64Encoding = 1
)

func (e B64Encoding) encoding() (*base64.Encoding, bool) {
	switch e {
	case B64EncodingURL:
		return base64.URLEncoding.Strict(), true
	case B64EncodingStd:
		return base64.StdEncoding.Strict(), true
	default:
		return nil, false
	}
}

// validateMetadataJSON checks that data is a UTF-8 JSON object without BOM.
// Empty data is valid and stands for {}.
func validateMetadataJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if bytes.HasPrefix(data, utf8BOM) {
		return NewInvalidMetadataJSONError("metadata must not start with a UTF-8 BOM")
	}
	if !utf8.Valid(data) {
		return NewInvalidMetadataJSONError("metadata is not valid UTF-8")
	}
	if !gjson.ValidBytes(data) {
		return NewInvalidMetadataJSONError("metadata is not valid JSON")
	}
	if !gjson.ParseBytes(data).IsObject() {
		return NewInvalidMetadataJSONError("metadata JSON must be an object")
	}
	return nil
}

// DecodeMetadataJSON decodes a record body as a JSON object.
// Numbers are decoded as json.Number.
func DecodeMetadataJSON(data []byte) (map[string]interface{}, error) {
	err := validateMetadataJSON(data)
	if err != nil {
		// err is categorized already by validateMetadataJSON()
		return nil, err
	}

	obj := make(map[string]interface{})
	if len(data) == 0 {
		return obj, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	err = dec.Decode(&obj)
	if err != nil {
		return nil, NewInvalidMetadataJSONError(err.Error())
	}
	return obj, nil
}

// EncodeMetadataJSON encodes obj compactly as UTF-8 without escaping HTML.
func EncodeMetadataJSON(obj map[string]interface{}) ([]byte, error) {
	if obj == nil {
		obj = map[string]interface{}{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(obj)
	if err != nil {
		return nil, NewEncodingError(err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// ComputeARC3MetadataHash returns the ARC-3 metadata hash of a JSON document:
// sha512/256("arc0003/am" || sha512/256("arc0003/amj" || json) || extra)
// if it has an "extra_metadata" base64 string, sha256(json) otherwise.
func ComputeARC3MetadataHash(data []byte) (Hash, error) {
	extra := gjson.GetBytes(data, arc3ExtraMetadataKey)
	if !extra.Exists() {
		return Hash(sha256.Sum256(data)), nil
	}

	if extra.Type != gjson.String {
		return Hash{}, NewInvalidMetadataJSONError(`"extra_metadata" must be a base64 string`)
	}
	extraBytes, err := base64.StdEncoding.Strict().DecodeString(extra.Str)
	if err != nil {
		return Hash{}, NewInvalidMetadataJSONError(`"extra_metadata" is not valid base64`)
	}

	h := sha512.New512_256()
	h.Write([]byte(arc3HashDomainJSON))
	h.Write(data)
	jsonHash := h.Sum(nil)

	h = sha512.New512_256()
	h.Write([]byte(arc3HashDomainMetadata))
	h.Write(jsonHash)
	h.Write(extraBytes)
	return sum(h), nil
}

// jsonValueByKey returns the value of a top-level key of a JSON object.
// Keys are matched literally, without gjson path syntax.
func jsonValueByKey(data []byte, key string) (gjson.Result, error) {
	err := validateMetadataJSON(data)
	if err != nil {
		// err is categorized already by validateMetadataJSON()
		return gjson.Result{}, err
	}

	var value gjson.Result
	found := false
	gjson.ParseBytes(data).ForEach(func(k, v gjson.Result) bool {
		if k.Str == key {
			value = v
			found = true
			return false
		}
		return true
	})
	if !found {
		return gjson.Result{}, NewJSONKeyError(key, "key not found")
	}
	return value, nil
}

func jsonStringByKey(data []byte, key string) (string, error) {
	v, err := jsonValueByKey(data, key)
	if err != nil {
		// err is categorized already by jsonValueByKey()
		return "", err
	}
	if v.Type != gjson.String {
		return "", NewJSONKeyError(key, "value is not a string")
	}
	return v.Str, nil
}

func jsonUint64ByKey(data []byte, key string) (uint64, error) {
	v, err := jsonValueByKey(data, key)
	if err != nil {
		// err is categorized already by jsonValueByKey()
		return 0, err
	}
	if v.Type != gjson.Number {
		return 0, NewJSONKeyError(key, "value is not a number")
	}
	// v.Num is a float64, parse raw text to keep full uint64 precision.
	n, err := strconv.ParseUint(v.Raw, 10, 64)
	if err != nil {
		return 0, NewJSONKeyError(key, "value is not a uint64")
	}
	return n, nil
}

func jsonObjectByKey(data []byte, key string) (string, error) {
	v, err := jsonValueByKey(data, key)
	if err != nil {
		// err is categorized already by jsonValueByKey()
		return "", err
	}
	if !v.IsObject() {
		return "", NewJSONKeyError(key, "value is not an object")
	}
	return v.Raw, nil
}

func jsonB64BytesByKey(data []byte, key string, encoding B64Encoding) ([]byte, error) {
	enc, ok := encoding.encoding()
	if !ok {
		return nil, NewJSONKeyError(key, "unknown base64 encoding "+strconv.Itoa(int(encoding)))
	}

	s, err := jsonStringByKey(data, key)
	if err != nil {
		// err is categorized already by jsonStringByKey()
		return nil, err
	}

	b, err := enc.DecodeString(s)
	if err != nil {
		return nil, NewJSONKeyError(key, "value is not valid base64")
	}
	return b, nil
}
