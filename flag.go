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

// Identifier masks for the 1st byte of an encoded record.
// Identifiers are derived by the registry and never set by callers.
const (
	maskIdentifierShort byte = 0b0000_0001
)

// Reversible flag masks for the 2nd byte of an encoded record.
const (
	maskReversibleARC20 byte = 0b0000_0001
	maskReversibleARC62 byte = 0b0000_0010
	// bits 2..7 are reserved
)

// Irreversible flag masks for the 3rd byte of an encoded record.
const (
	// creation-only flags
	maskIrreversibleARC3        byte = 0b0000_0001
	maskIrreversibleARC89Native byte = 0b0000_0010

	// bits 2..6 are reserved, settable after creation

	maskIrreversibleImmutable byte = 0b1000_0000

	maskIrreversibleCreationOnly = maskIrreversibleARC3 | maskIrreversibleARC89Native
)

// Flag indices accepted by the flag setters.
const (
	ReversibleFlagARC20 uint8 = 0
	ReversibleFlagARC62 uint8 = 1
	ReversibleFlagMax   uint8 = 7

	IrreversibleFlagARC3            uint8 = 0
	IrreversibleFlagARC89Native     uint8 = 1
	IrreversibleFlagReservedMin     uint8 = 2
	IrreversibleFlagReservedMax     uint8 = 6
	IrreversibleFlagImmutable       uint8 = 7
	irreversibleFlagCreationOnlyMax uint8 = IrreversibleFlagARC89Native
)

func bitSet(b byte, index uint8) bool {
	return b&(1<<index) != 0
}

func withBit(b byte, index uint8, value bool) byte {
	if value {
		return b | 1<<index
	}
	return b &^ (1 << index)
}

// Identifiers is the decoded 1st header byte.
// Reserved bits are kept so the codec round-trips any byte.
type Identifiers struct {
	Short     bool
	Reserved1 bool
	Reserved2 bool
	Reserved3 bool
	Reserved4 bool
	Reserved5 bool
	Reserved6 bool
	Reserved7 bool
}

// IdentifiersFromByte decodes identifiers.
func IdentifiersFromByte(b byte) Identifiers {
	return Identifiers{
		Short:     b&maskIdentifierShort != 0,
		Reserved1: bitSet(b, 1),
		Reserved2: bitSet(b, 2),
		Reserved3: bitSet(b, 3),
		Reserved4: bitSet(b, 4),
		Reserved5: bitSet(b, 5),
		Reserved6: bitSet(b, 6),
		Reserved7: bitSet(b, 7),
	}
}

func (ids Identifiers) ToByte() byte {
	var b byte
	for i, set := range [8]bool{
		ids.Short,
		ids.Reserved1,
		ids.Reserved2,
		ids.Reserved3,
		ids.Reserved4,
		ids.Reserved5,
		ids.Reserved6,
		ids.Reserved7,
	} {
		b = withBit(b, uint8(i), set)
	}
	return b
}

// deriveIdentifiers returns identifiers for a body of bodySize bytes.
// Reserved bits are always cleared.
func deriveIdentifiers(bodySize int, shortMetadataSize int) Identifiers {
	return Identifiers{Short: bodySize <= shortMetadataSize}
}

// ReversibleFlags can be set and cleared while the record is mutable.
type ReversibleFlags struct {
	ARC20     bool
	ARC62     bool
	Reserved2 bool
	Reserved3 bool
	Reserved4 bool
	Reserved5 bool
	Reserved6 bool
	Reserved7 bool
}

// ReversibleFlagsFromByte decodes reversible flags.
func ReversibleFlagsFromByte(b byte) ReversibleFlags {
	return ReversibleFlags{
		ARC20:     b&maskReversibleARC20 != 0,
		ARC62:     b&maskReversibleARC62 != 0,
		Reserved2: bitSet(b, 2),
		Reserved3: bitSet(b, 3),
		Reserved4: bitSet(b, 4),
		Reserved5: bitSet(b, 5),
		Reserved6: bitSet(b, 6),
		Reserved7: bitSet(b, 7),
	}
}

func (f ReversibleFlags) ToByte() byte {
	var b byte
	for i, set := range [8]bool{
		f.ARC20,
		f.ARC62,
		f.Reserved2,
		f.Reserved3,
		f.Reserved4,
		f.Reserved5,
		f.Reserved6,
		f.Reserved7,
	} {
		b = withBit(b, uint8(i), set)
	}
	return b
}

// Get returns the flag at index.
func (f ReversibleFlags) Get(index uint8) (bool, error) {
	if index > ReversibleFlagMax {
		return false, NewInvalidFlagIndexError("reversible", index, "index must be in [0, 7]")
	}
	return bitSet(f.ToByte(), index), nil
}

// With returns a copy of f with the flag at index set to value.
func (f ReversibleFlags) With(index uint8, value bool) (ReversibleFlags, error) {
	if index > ReversibleFlagMax {
		return f, NewInvalidFlagIndexError("reversible", index, "index must be in [0, 7]")
	}
	return ReversibleFlagsFromByte(withBit(f.ToByte(), index, value)), nil
}

// IrreversibleFlags can only be set, never cleared.
// ARC3 and ARC89Native are set at creation only.
type IrreversibleFlags struct {
	ARC3        bool
	ARC89Native bool
	Reserved2   bool
	Reserved3   bool
	Reserved4   bool
	Reserved5   bool
	Reserved6   bool
	Immutable   bool
}

// IrreversibleFlagsFromByte decodes irreversible flags.
func IrreversibleFlagsFromByte(b byte) IrreversibleFlags {
	return IrreversibleFlags{
		ARC3:        b&maskIrreversibleARC3 != 0,
		ARC89Native: b&maskIrreversibleARC89Native != 0,
		Reserved2:   bitSet(b, 2),
		Reserved3:   bitSet(b, 3),
		Reserved4:   bitSet(b, 4),
		Reserved5:   bitSet(b, 5),
		Reserved6:   bitSet(b, 6),
		Immutable:   b&maskIrreversibleImmutable != 0,
	}
}

func (f IrreversibleFlags) ToByte() byte {
	var b byte
	for i, set := range [8]bool{
		f.ARC3,
		f.ARC89Native,
		f.Reserved2,
		f.Reserved3,
		f.Reserved4,
		f.Reserved5,
		f.Reserved6,
		f.Immutable,
	} {
		b = withBit(b, uint8(i), set)
	}
	return b
}

// Get returns the flag at index.
func (f IrreversibleFlags) Get(index uint8) (bool, error) {
	if index > IrreversibleFlagImmutable {
		return false, NewInvalidFlagIndexError("irreversible", index, "index must be in [0, 7]")
	}
	return bitSet(f.ToByte(), index), nil
}

// with returns a copy of f with the flag at index set.
// Callers check which indices are allowed in the record's state.
func (f IrreversibleFlags) with(index uint8) IrreversibleFlags {
	return IrreversibleFlagsFromByte(withBit(f.ToByte(), index, true))
}

// creationOnlyBits returns the creation-only flags as a masked byte.
func (f IrreversibleFlags) creationOnlyBits() byte {
	return f.ToByte() & maskIrreversibleCreationOnly
}
