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

func TestFlagIdentifiersRoundTrip(t *testing.T) {
	for i := 0; i <= 255; i++ {
		ids := IdentifiersFromByte(byte(i))
		require.Equal(t, byte(i), ids.ToByte())
		require.Equal(t, byte(i)&maskIdentifierShort != 0, ids.Short)
	}
}

func TestFlagReversibleRoundTrip(t *testing.T) {
	for i := 0; i <= 255; i++ {
		f := ReversibleFlagsFromByte(byte(i))
		require.Equal(t, byte(i), f.ToByte())
		require.Equal(t, byte(i)&maskReversibleARC20 != 0, f.ARC20)
		require.Equal(t, byte(i)&maskReversibleARC62 != 0, f.ARC62)
	}
}

func TestFlagIrreversibleRoundTrip(t *testing.T) {
	for i := 0; i <= 255; i++ {
		f := IrreversibleFlagsFromByte(byte(i))
		require.Equal(t, byte(i), f.ToByte())
		require.Equal(t, byte(i)&maskIrreversibleARC3 != 0, f.ARC3)
		require.Equal(t, byte(i)&maskIrreversibleARC89Native != 0, f.ARC89Native)
		require.Equal(t, i >= 0x80, f.Immutable)
	}
}

func TestFlagReversibleWith(t *testing.T) {
	t.Run("set and clear", func(t *testing.T) {
		for index := uint8(0); index <= ReversibleFlagMax; index++ {
			f, err := ReversibleFlags{}.With(index, true)
			require.NoError(t, err)
			require.Equal(t, byte(1)<<index, f.ToByte())

			value, err := f.Get(index)
			require.NoError(t, err)
			require.True(t, value)

			f, err = f.With(index, false)
			require.NoError(t, err)
			require.Equal(t, ReversibleFlags{}, f)
		}
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := ReversibleFlags{}.With(8, true)
		require.Error(t, err)

		var flagIndexError *InvalidFlagIndexError
		require.ErrorAs(t, err, &flagIndexError)

		var userError *UserError
		require.ErrorAs(t, err, &userError)

		_, err = ReversibleFlags{}.Get(8)
		require.ErrorAs(t, err, &flagIndexError)
	})
}

func TestFlagIrreversibleWith(t *testing.T) {
	f := IrreversibleFlags{ARC3: true}
	require.Equal(t, maskIrreversibleARC3, f.creationOnlyBits())

	f = f.with(IrreversibleFlagImmutable)
	require.True(t, f.Immutable)
	require.True(t, f.ARC3)
	require.Equal(t, maskIrreversibleARC3, f.creationOnlyBits())

	f = f.with(IrreversibleFlagReservedMin)
	require.True(t, f.Reserved2)
	require.Equal(t, byte(0b1000_0101), f.ToByte())

	_, err := f.Get(8)
	require.Error(t, err)
}

func TestFlagDeriveIdentifiers(t *testing.T) {
	require.True(t, deriveIdentifiers(0, DefaultShortMetadataSize).Short)
	require.True(t, deriveIdentifiers(DefaultShortMetadataSize, DefaultShortMetadataSize).Short)
	require.False(t, deriveIdentifiers(DefaultShortMetadataSize+1, DefaultShortMetadataSize).Short)
	require.Equal(t, byte(0), deriveIdentifiers(DefaultShortMetadataSize+1, DefaultShortMetadataSize).ToByte())
}
