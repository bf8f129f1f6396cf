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

func TestApplyTransition(t *testing.T) {
	const id AssetID = 7

	missing := RecordState{AssetID: id}
	mutable := RecordState{
		AssetID: id,
		Exists:  true,
		Header: Header{
			ReversibleFlags:   ReversibleFlags{ARC20: true},
			IrreversibleFlags: IrreversibleFlags{ARC3: true},
			LastModifiedRound: 10,
		},
	}
	immutable := mutable
	immutable.Header.IrreversibleFlags.Immutable = true

	t.Run("phases", func(t *testing.T) {
		require.Equal(t, PhaseNonExistent, missing.Phase())
		require.Equal(t, PhaseMutable, mutable.Phase())
		require.Equal(t, PhaseImmutable, immutable.Phase())
	})

	t.Run("create", func(t *testing.T) {
		req := TransitionRequest{
			Kind:              TransitionCreate,
			ReversibleFlags:   ReversibleFlags{ARC62: true},
			IrreversibleFlags: IrreversibleFlags{ARC89Native: true, Immutable: true},
		}

		next, err := ApplyTransition(missing, req)
		require.NoError(t, err)
		require.Equal(t, PhaseImmutable, next.Phase())
		require.Equal(t, req.ReversibleFlags, next.Header.ReversibleFlags)

		_, err = ApplyTransition(mutable, req)
		var existsErr *AlreadyExistsError
		require.ErrorAs(t, err, &existsErr)
	})

	t.Run("mutation of missing record", func(t *testing.T) {
		for _, kind := range []TransitionKind{
			TransitionWriteBody,
			TransitionSetReversibleFlag,
			TransitionSetIrreversibleFlag,
			TransitionSetImmutable,
			TransitionMigrate,
			TransitionDelete,
		} {
			_, err := ApplyTransition(missing, TransitionRequest{Kind: kind, FlagIndex: 2, NewRegistryID: 2})
			var notFoundErr *NotFoundError
			require.ErrorAs(t, err, &notFoundErr)
		}
	})

	t.Run("mutation of immutable record", func(t *testing.T) {
		for _, kind := range []TransitionKind{
			TransitionWriteBody,
			TransitionSetReversibleFlag,
			TransitionSetIrreversibleFlag,
			TransitionSetImmutable,
			TransitionDelete,
		} {
			_, err := ApplyTransition(immutable, TransitionRequest{Kind: kind, FlagIndex: 2})
			var immutableErr *ImmutableError
			require.ErrorAs(t, err, &immutableErr)
		}

		next, err := ApplyTransition(immutable, TransitionRequest{Kind: TransitionDelete, AssetDestroyed: true})
		require.NoError(t, err)
		require.False(t, next.Exists)
	})

	t.Run("reversible flag", func(t *testing.T) {
		next, err := ApplyTransition(mutable, TransitionRequest{Kind: TransitionSetReversibleFlag, FlagIndex: 5, FlagValue: true})
		require.NoError(t, err)
		require.True(t, next.Header.ReversibleFlags.Reserved5)
		require.True(t, mutable.changed(next))

		next, err = ApplyTransition(mutable, TransitionRequest{Kind: TransitionSetReversibleFlag, FlagIndex: ReversibleFlagARC20, FlagValue: true})
		require.NoError(t, err)
		require.False(t, mutable.changed(next))

		_, err = ApplyTransition(mutable, TransitionRequest{Kind: TransitionSetReversibleFlag, FlagIndex: 8})
		var flagErr *InvalidFlagIndexError
		require.ErrorAs(t, err, &flagErr)
	})

	t.Run("irreversible flag", func(t *testing.T) {
		for index := IrreversibleFlagReservedMin; index <= IrreversibleFlagReservedMax; index++ {
			next, err := ApplyTransition(mutable, TransitionRequest{Kind: TransitionSetIrreversibleFlag, FlagIndex: index})
			require.NoError(t, err)
			set, err := next.Header.IrreversibleFlags.Get(index)
			require.NoError(t, err)
			require.True(t, set)

			again, err := ApplyTransition(next, TransitionRequest{Kind: TransitionSetIrreversibleFlag, FlagIndex: index})
			require.NoError(t, err)
			require.False(t, next.changed(again))
		}

		for _, index := range []uint8{IrreversibleFlagARC3, IrreversibleFlagARC89Native, IrreversibleFlagImmutable, 8} {
			_, err := ApplyTransition(mutable, TransitionRequest{Kind: TransitionSetIrreversibleFlag, FlagIndex: index})
			var flagErr *InvalidFlagIndexError
			require.ErrorAs(t, err, &flagErr)
		}
	})

	t.Run("set immutable", func(t *testing.T) {
		next, err := ApplyTransition(mutable, TransitionRequest{Kind: TransitionSetImmutable})
		require.NoError(t, err)
		require.True(t, next.Header.IsImmutable())
		require.True(t, next.Header.IrreversibleFlags.ARC3)
	})

	t.Run("migrate", func(t *testing.T) {
		for _, current := range []RecordState{mutable, immutable} {
			next, err := ApplyTransition(current, TransitionRequest{Kind: TransitionMigrate, NewRegistryID: 2, CurrentRegistryID: 1})
			require.NoError(t, err)
			require.Equal(t, uint64(2), next.Header.DeprecatedBy)
			require.Equal(t, current.Header.LastModifiedRound, next.Header.LastModifiedRound)
		}

		for _, newID := range []uint64{0, 1} {
			_, err := ApplyTransition(mutable, TransitionRequest{Kind: TransitionMigrate, NewRegistryID: newID, CurrentRegistryID: 1})
			var idErr *InvalidRegistryIDError
			require.ErrorAs(t, err, &idErr)
		}
	})

	t.Run("delete", func(t *testing.T) {
		next, err := ApplyTransition(mutable, TransitionRequest{Kind: TransitionDelete})
		require.NoError(t, err)
		require.Equal(t, PhaseNonExistent, next.Phase())
	})
}
