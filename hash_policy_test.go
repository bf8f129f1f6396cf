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

func TestHashOverridePolicy(t *testing.T) {
	policy := DefaultHashOverridePolicy{}

	computed := Hash{1}
	override := Hash{2}

	t.Run("no override", func(t *testing.T) {
		h, err := policy.Resolve(1, IrreversibleFlags{}, computed, HashUndefined)
		require.NoError(t, err)
		require.Equal(t, computed, h)
	})

	t.Run("override requires immutable", func(t *testing.T) {
		_, err := policy.Resolve(1, IrreversibleFlags{ARC3: true}, computed, override)
		var requiresImmutableError *RequiresImmutableError
		require.ErrorAs(t, err, &requiresImmutableError)
	})

	t.Run("override accepted", func(t *testing.T) {
		h, err := policy.Resolve(1, IrreversibleFlags{Immutable: true}, computed, override)
		require.NoError(t, err)
		require.Equal(t, override, h)

		h, err = policy.Resolve(1, IrreversibleFlags{Immutable: true, ARC3: true, ARC89Native: true}, computed, override)
		require.NoError(t, err)
		require.Equal(t, override, h)
	})

	t.Run("native must match", func(t *testing.T) {
		flags := IrreversibleFlags{Immutable: true, ARC89Native: true}

		_, err := policy.Resolve(1, flags, computed, override)
		var hashMismatchError *HashMismatchError
		require.ErrorAs(t, err, &hashMismatchError)

		h, err := policy.Resolve(1, flags, computed, computed)
		require.NoError(t, err)
		require.Equal(t, computed, h)
	})

	t.Run("ignore", func(t *testing.T) {
		h, err := IgnoreHashOverridePolicy{}.Resolve(1, IrreversibleFlags{}, computed, override)
		require.NoError(t, err)
		require.Equal(t, computed, h)
	})
}

func TestUsesHashOverride(t *testing.T) {
	require.False(t, usesHashOverride(Header{}))
	require.True(t, usesHashOverride(Header{IrreversibleFlags: IrreversibleFlags{Immutable: true}}))
	require.False(t, usesHashOverride(Header{IrreversibleFlags: IrreversibleFlags{Immutable: true, ARC89Native: true}}))
	require.True(t, usesHashOverride(Header{IrreversibleFlags: IrreversibleFlags{Immutable: true, ARC89Native: true, ARC3: true}}))
}
