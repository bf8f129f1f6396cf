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
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/circlehash"
	"github.com/google/uuid"
)

// Method names a registry operation.
type Method uint8

const (
	MethodUndefined Method = iota
	MethodCreate
	MethodReplace
	MethodReplaceLarger
	MethodReplaceSlice
	MethodExtraPayload
	MethodSetReversibleFlag
	MethodSetIrreversibleFlag
	MethodSetImmutable
	MethodMigrate
	MethodDelete
	MethodExtraResources
)

func (m Method) String() string {
	switch m {
	case MethodCreate:
		return "create_metadata"
	case MethodReplace:
		return "replace_metadata"
	case MethodReplaceLarger:
		return "replace_metadata_larger"
	case MethodReplaceSlice:
		return "replace_metadata_slice"
	case MethodExtraPayload:
		return "extra_payload"
	case MethodSetReversibleFlag:
		return "set_reversible_flag"
	case MethodSetIrreversibleFlag:
		return "set_irreversible_flag"
	case MethodSetImmutable:
		return "set_immutable"
	case MethodMigrate:
		return "migrate_metadata"
	case MethodDelete:
		return "delete_metadata"
	case MethodExtraResources:
		return "extra_resources"
	default:
		return fmt.Sprintf("Method(%d)", uint8(m))
	}
}

// isPayloadHead returns true if the method opens a chunked body write.
func (m Method) isPayloadHead() bool {
	return m == MethodCreate || m == MethodReplace || m == MethodReplaceLarger
}

// Payment is a value transfer into the registry carried by an operation.
type Payment struct {
	Sender   Address `cbor:"1,keyasint"`
	Receiver Address `cbor:"2,keyasint"`
	Amount   uint64  `cbor:"3,keyasint"`
}

// Operation is a single registry call.
// Sender is the authority asserted by the submitter.
type Operation struct {
	Method            Method   `cbor:"1,keyasint"`
	Sender            Address  `cbor:"2,keyasint"`
	AssetID           AssetID  `cbor:"3,keyasint,omitempty"`
	ReversibleFlags   byte     `cbor:"4,keyasint,omitempty"`
	IrreversibleFlags byte     `cbor:"5,keyasint,omitempty"`
	MetadataSize      uint16   `cbor:"6,keyasint,omitempty"`
	Offset            uint16   `cbor:"7,keyasint,omitempty"`
	Payload           []byte   `cbor:"8,keyasint,omitempty"`
	FlagIndex         uint8    `cbor:"9,keyasint,omitempty"`
	FlagValue         bool     `cbor:"10,keyasint,omitempty"`
	NewRegistryID     uint64   `cbor:"11,keyasint,omitempty"`
	Payment           *Payment `cbor:"12,keyasint,omitempty"`
	Fee               uint64   `cbor:"13,keyasint,omitempty"`
	Note              uint64   `cbor:"14,keyasint,omitempty"`
}

// NewCreateOperation returns the head operation of a metadata creation.
func NewCreateOperation(
	sender Address,
	id AssetID,
	rev ReversibleFlags,
	irr IrreversibleFlags,
	metadataSize uint16,
	payload []byte,
	payment *Payment,
) Operation {
	return Operation{
		Method:            MethodCreate,
		Sender:            sender,
		AssetID:           id,
		ReversibleFlags:   rev.ToByte(),
		IrreversibleFlags: irr.ToByte(),
		MetadataSize:      metadataSize,
		Payload:           payload,
		Payment:           payment,
	}
}

// NewReplaceOperation returns the head operation of a replacement with
// a body no larger than the current one.
func NewReplaceOperation(sender Address, id AssetID, metadataSize uint16, payload []byte) Operation {
	return Operation{
		Method:       MethodReplace,
		Sender:       sender,
		AssetID:      id,
		MetadataSize: metadataSize,
		Payload:      payload,
	}
}

// NewReplaceLargerOperation returns the head operation of a replacement
// with a larger body.
func NewReplaceLargerOperation(
	sender Address,
	id AssetID,
	metadataSize uint16,
	payload []byte,
	payment *Payment,
) Operation {
	return Operation{
		Method:       MethodReplaceLarger,
		Sender:       sender,
		AssetID:      id,
		MetadataSize: metadataSize,
		Payload:      payload,
		Payment:      payment,
	}
}

func NewReplaceSliceOperation(sender Address, id AssetID, offset uint16, payload []byte) Operation {
	return Operation{
		Method:  MethodReplaceSlice,
		Sender:  sender,
		AssetID: id,
		Offset:  offset,
		Payload: payload,
	}
}

func NewExtraPayloadOperation(sender Address, id AssetID, payload []byte) Operation {
	return Operation{
		Method:  MethodExtraPayload,
		Sender:  sender,
		AssetID: id,
		Payload: payload,
	}
}

func NewSetReversibleFlagOperation(sender Address, id AssetID, index uint8, value bool) Operation {
	return Operation{
		Method:    MethodSetReversibleFlag,
		Sender:    sender,
		AssetID:   id,
		FlagIndex: index,
		FlagValue: value,
	}
}

func NewSetIrreversibleFlagOperation(sender Address, id AssetID, index uint8) Operation {
	return Operation{
		Method:    MethodSetIrreversibleFlag,
		Sender:    sender,
		AssetID:   id,
		FlagIndex: index,
	}
}

func NewSetImmutableOperation(sender Address, id AssetID) Operation {
	return Operation{
		Method:  MethodSetImmutable,
		Sender:  sender,
		AssetID: id,
	}
}

func NewMigrateOperation(sender Address, id AssetID, newRegistryID uint64) Operation {
	return Operation{
		Method:        MethodMigrate,
		Sender:        sender,
		AssetID:       id,
		NewRegistryID: newRegistryID,
	}
}

func NewDeleteOperation(sender Address, id AssetID) Operation {
	return Operation{
		Method:  MethodDelete,
		Sender:  sender,
		AssetID: id,
	}
}

func NewExtraResourcesOperation(sender Address) Operation {
	return Operation{
		Method: MethodExtraResources,
		Sender: sender,
	}
}

const noteSeed = 0x6172_6330_3038_39 // "arc0089"

// operationNote returns a fingerprint that keeps otherwise identical
// operations of a batch distinct.
func operationNote(id AssetID, method Method, index int) uint64 {
	var buf [AssetIDLength + 1 + 8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	buf[AssetIDLength] = byte(method)
	binary.BigEndian.PutUint64(buf[AssetIDLength+1:], uint64(index))
	return circlehash.Hash64(buf[:], noteSeed)
}

// Batch is a group of operations applied all-or-nothing.
type Batch struct {
	ID         uuid.UUID   `cbor:"1,keyasint"`
	Operations []Operation `cbor:"2,keyasint"`
}

// NewBatch returns a batch with a new random id.
func NewBatch(ops ...Operation) *Batch {
	return &Batch{
		ID:         uuid.New(),
		Operations: ops,
	}
}

// EncodeBatch encodes b as a tagged CBOR item for journaling.
func EncodeBatch(b *Batch) ([]byte, error) {
	// err is categorized already by marshalCBOR()
	return marshalCBOR(cborTag(CBORTagBatch, b))
}

// DecodeBatch decodes a batch encoded by EncodeBatch.
func DecodeBatch(data []byte) (*Batch, error) {
	_, content, err := untagCBOR(data, CBORTagBatch)
	if err != nil {
		// err is categorized already by untagCBOR()
		return nil, err
	}

	var b Batch
	err = unmarshalCBOR(content, &b)
	if err != nil {
		// err is categorized already by unmarshalCBOR()
		return nil, err
	}
	return &b, nil
}
