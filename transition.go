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

// Phase is the lifecycle phase of a record.
type Phase uint8

const (
	PhaseNonExistent Phase = iota
	PhaseMutable
	PhaseImmutable
)

func (p Phase) String() string {
	switch p {
	case PhaseNonExistent:
		return "non-existent"
	case PhaseMutable:
		return "mutable"
	case PhaseImmutable:
		return "immutable"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

// RecordState is the part of a record the lifecycle rules look at.
type RecordState struct {
	AssetID AssetID
	Exists  bool
	Header  Header
}

func (s RecordState) Phase() Phase {
	switch {
	case !s.Exists:
		return PhaseNonExistent
	case s.Header.IsImmutable():
		return PhaseImmutable
	default:
		return PhaseMutable
	}
}

// TransitionKind identifies a lifecycle change.
type TransitionKind uint8

const (
	TransitionCreate TransitionKind = iota + 1
	TransitionWriteBody
	TransitionSetReversibleFlag
	TransitionSetIrreversibleFlag
	TransitionSetImmutable
	TransitionMigrate
	TransitionDelete
)

// TransitionRequest describes a requested lifecycle change.
// Only fields used by Kind are read.
type TransitionRequest struct {
	Kind TransitionKind

	// TransitionCreate
	ReversibleFlags   ReversibleFlags
	IrreversibleFlags IrreversibleFlags

	// TransitionSetReversibleFlag, TransitionSetIrreversibleFlag
	FlagIndex uint8
	FlagValue bool

	// TransitionMigrate
	NewRegistryID     uint64
	CurrentRegistryID uint64

	// TransitionDelete: records of destroyed assets can be deleted
	// even when immutable. This is the only exception to records being
	// deleted only while mutable.
	AssetDestroyed bool
}

// ApplyTransition returns the state after req is applied to current,
// or an error if the lifecycle rules reject it.
// Requests that don't change anything return current unchanged.
// Identifiers, hash and round aren't touched: the registry derives them
// after the transition.
func ApplyTransition(current RecordState, req TransitionRequest) (RecordState, error) {
	id := current.AssetID

	if req.Kind == TransitionCreate {
		if current.Exists {
			return current, NewAlreadyExistsError(id)
		}
		next := RecordState{
			AssetID: id,
			Exists:  true,
			Header: Header{
				ReversibleFlags:   req.ReversibleFlags,
				IrreversibleFlags: req.IrreversibleFlags,
			},
		}
		return next, nil
	}

	if !current.Exists {
		return current, NewNotFoundError(id)
	}

	// Migration is allowed on immutable records.
	if current.Header.IsImmutable() &&
		req.Kind != TransitionMigrate &&
		!(req.Kind == TransitionDelete && req.AssetDestroyed) {
		return current, NewImmutableError(id)
	}

	next := current

	switch req.Kind {
	case TransitionWriteBody:
		return next, nil

	case TransitionSetReversibleFlag:
		flags, err := current.Header.ReversibleFlags.With(req.FlagIndex, req.FlagValue)
		if err != nil {
			// err is categorized already by ReversibleFlags.With()
			return current, err
		}
		next.Header.ReversibleFlags = flags
		return next, nil

	case TransitionSetIrreversibleFlag:
		if req.FlagIndex <= irreversibleFlagCreationOnlyMax {
			return current, NewInvalidFlagIndexError("irreversible", req.FlagIndex, "flag can only be set at creation")
		}
		if req.FlagIndex == IrreversibleFlagImmutable {
			return current, NewInvalidFlagIndexError("irreversible", req.FlagIndex, "use set immutable")
		}
		if req.FlagIndex > IrreversibleFlagReservedMax {
			return current, NewInvalidFlagIndexError("irreversible", req.FlagIndex, "index must be in [2, 6]")
		}
		next.Header.IrreversibleFlags = current.Header.IrreversibleFlags.with(req.FlagIndex)
		return next, nil

	case TransitionSetImmutable:
		next.Header.IrreversibleFlags = current.Header.IrreversibleFlags.with(IrreversibleFlagImmutable)
		return next, nil

	case TransitionMigrate:
		if req.NewRegistryID == 0 || req.NewRegistryID == req.CurrentRegistryID {
			return current, NewInvalidRegistryIDError(req.NewRegistryID)
		}
		next.Header.DeprecatedBy = req.NewRegistryID
		return next, nil

	case TransitionDelete:
		next.Exists = false
		next.Header = Header{}
		return next, nil

	default:
		return current, NewUserError(fmt.Errorf("unsupported transition %d", req.Kind))
	}
}

// changed returns true if next differs from current.
func (s RecordState) changed(next RecordState) bool {
	return s.Exists != next.Exists || s.Header != next.Header
}
