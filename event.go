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

import "fmt"

// Event is emitted after a batch that changed a record is committed.
type Event interface {
	EventAssetID() AssetID
	eventTagNumber() uint64
}

// MetadataUpdated is emitted when a record is created or its body,
// flags or hash change.
type MetadataUpdated struct {
	AssetID           AssetID `cbor:"1,keyasint"`
	Round             uint64  `cbor:"2,keyasint"`
	Timestamp         uint64  `cbor:"3,keyasint"`
	ReversibleFlags   byte    `cbor:"4,keyasint"`
	IrreversibleFlags byte    `cbor:"5,keyasint"`
	IsShort           bool    `cbor:"6,keyasint"`
	Hash              Hash    `cbor:"7,keyasint"`
}

// MetadataMigrated is emitted when a record is deprecated by a successor registry.
type MetadataMigrated struct {
	AssetID       AssetID `cbor:"1,keyasint"`
	Round         uint64  `cbor:"2,keyasint"`
	Timestamp     uint64  `cbor:"3,keyasint"`
	NewRegistryID uint64  `cbor:"4,keyasint"`
}

// MetadataDeleted is emitted when a record is deleted.
type MetadataDeleted struct {
	AssetID   AssetID `cbor:"1,keyasint"`
	Round     uint64  `cbor:"2,keyasint"`
	Timestamp uint64  `cbor:"3,keyasint"`
}

var (
	_ Event = &MetadataUpdated{}
	_ Event = &MetadataMigrated{}
	_ Event = &MetadataDeleted{}
)

func (e *MetadataUpdated) EventAssetID() AssetID  { return e.AssetID }
func (e *MetadataMigrated) EventAssetID() AssetID { return e.AssetID }
func (e *MetadataDeleted) EventAssetID() AssetID  { return e.AssetID }

func (e *MetadataUpdated) eventTagNumber() uint64  { return CBORTagMetadataUpdated }
func (e *MetadataMigrated) eventTagNumber() uint64 { return CBORTagMetadataMigrated }
func (e *MetadataDeleted) eventTagNumber() uint64  { return CBORTagMetadataDeleted }

func newMetadataUpdated(id AssetID, h Header, timestamp uint64) *MetadataUpdated {
	return &MetadataUpdated{
		AssetID:           id,
		Round:             h.LastModifiedRound,
		Timestamp:         timestamp,
		ReversibleFlags:   h.ReversibleFlags.ToByte(),
		IrreversibleFlags: h.IrreversibleFlags.ToByte(),
		IsShort:           h.IsShort(),
		Hash:              h.MetadataHash,
	}
}

// EncodeEvent encodes e as a tagged CBOR item.
func EncodeEvent(e Event) ([]byte, error) {
	// err is categorized already by marshalCBOR()
	return marshalCBOR(cborTag(e.eventTagNumber(), e))
}

// DecodeEvent decodes an event encoded by EncodeEvent.
func DecodeEvent(data []byte) (Event, error) {
	number, content, err := untagCBOR(
		data,
		CBORTagMetadataUpdated,
		CBORTagMetadataMigrated,
		CBORTagMetadataDeleted,
	)
	if err != nil {
		// err is categorized already by untagCBOR()
		return nil, err
	}

	var e Event
	switch number {
	case CBORTagMetadataUpdated:
		e = &MetadataUpdated{}
	case CBORTagMetadataMigrated:
		e = &MetadataMigrated{}
	case CBORTagMetadataDeleted:
		e = &MetadataDeleted{}
	default:
		return nil, NewDecodingError(fmt.Errorf("unexpected event tag number %d", number))
	}

	err = unmarshalCBOR(content, e)
	if err != nil {
		// err is categorized already by unmarshalCBOR()
		return nil, err
	}
	return e, nil
}

// EventSink receives events of committed batches in operation order.
type EventSink interface {
	Emit(Event) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event) error

func (f EventSinkFunc) Emit(e Event) error {
	return f(e)
}

type nopEventSink struct{}

func (nopEventSink) Emit(Event) error {
	return nil
}
