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
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Place limits on number of array elements to improve security.
const (
	maxCBORArrayElements = 1024
	maxCBORMapPairs      = 64
)

var (
	// encOptions specifies how events and batches are encoded.
	encOptions = cbor.EncOptions{
		IndefLength: cbor.IndefLengthForbidden,
		Sort:        cbor.SortCoreDeterministic,
		TagsMd:      cbor.TagsAllowed,
	}

	// decOptions specifies how events and batches are decoded.
	decOptions = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
		IndefLength:       cbor.IndefLengthForbidden,
		MaxArrayElements:  maxCBORArrayElements,
		MaxMapPairs:       maxCBORMapPairs,
		TagsMd:            cbor.TagsAllowed,
	}

	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = encOptions.EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = decOptions.DecMode(); err != nil {
		panic(err)
	}
}

func marshalCBOR(src interface{}) ([]byte, error) {
	data, err := encMode.Marshal(src)
	if err != nil {
		return nil, NewEncodingError(err)
	}
	return data, nil
}

func unmarshalCBOR(data []byte, dst interface{}) error {
	err := decMode.Unmarshal(data, dst)
	if err != nil {
		return NewDecodingError(err)
	}
	return nil
}

func cborTag(number uint64, content interface{}) cbor.Tag {
	return cbor.Tag{Number: number, Content: content}
}

// untagCBOR returns the tag number and content of a CBOR item tagged
// with one of numbers.
func untagCBOR(data []byte, numbers ...uint64) (uint64, cbor.RawMessage, error) {
	var raw cbor.RawTag
	err := unmarshalCBOR(data, &raw)
	if err != nil {
		// err is categorized already by unmarshalCBOR()
		return 0, nil, err
	}

	for _, number := range numbers {
		if raw.Number == number {
			return raw.Number, raw.Content, nil
		}
	}
	return 0, nil, NewDecodingError(fmt.Errorf("unexpected CBOR tag number %d", raw.Number))
}
