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

// RentSign is the direction of a rent delta.
type RentSign uint8

const (
	RentSignNull     RentSign = 0
	RentSignPositive RentSign = 1
	RentSignNegative RentSign = 255
)

func (s RentSign) String() string {
	switch s {
	case RentSignNull:
		return "null"
	case RentSignPositive:
		return "positive"
	case RentSignNegative:
		return "negative"
	default:
		return fmt.Sprintf("RentSign(%d)", uint8(s))
	}
}

// RentDelta is the change in minimum balance requirement caused by an operation.
// Positive deltas are paid by the caller, negative deltas are refunded.
type RentDelta struct {
	Sign   RentSign
	Amount uint64
}

var RentDeltaNull = RentDelta{Sign: RentSignNull}

func newRentDelta(oldRent, newRent uint64) RentDelta {
	switch {
	case newRent > oldRent:
		return RentDelta{Sign: RentSignPositive, Amount: newRent - oldRent}
	case newRent < oldRent:
		return RentDelta{Sign: RentSignNegative, Amount: oldRent - newRent}
	default:
		return RentDeltaNull
	}
}

// SignedAmount returns the delta as a signed value.
func (d RentDelta) SignedAmount() int64 {
	switch d.Sign {
	case RentSignPositive:
		return int64(d.Amount)
	case RentSignNegative:
		return -int64(d.Amount)
	default:
		return 0
	}
}

func (d RentDelta) String() string {
	return fmt.Sprintf("%+d", d.SignedAmount())
}

// RentForSize returns the minimum balance requirement of a record box
// with a body of bodySize bytes.
func (p Parameters) RentForSize(bodySize int) uint64 {
	return p.FlatMBR + p.ByteMBR*uint64(p.KeySize+p.HeaderSize+bodySize)
}

// CreateDelta returns the rent delta of creating a record.
func (p Parameters) CreateDelta(newSize int) RentDelta {
	return newRentDelta(0, p.RentForSize(newSize))
}

// ResizeDelta returns the rent delta of replacing a body of oldSize bytes
// with a body of newSize bytes.
func (p Parameters) ResizeDelta(oldSize, newSize int) RentDelta {
	return newRentDelta(p.RentForSize(oldSize), p.RentForSize(newSize))
}

// DeleteDelta returns the rent delta of deleting a record.
func (p Parameters) DeleteDelta(oldSize int) RentDelta {
	return newRentDelta(p.RentForSize(oldSize), 0)
}
