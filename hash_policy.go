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

// HashOverridePolicy decides which metadata hash a new record stores
// when the asset already carries a metadata hash of its own.
type HashOverridePolicy interface {
	Resolve(id AssetID, flags IrreversibleFlags, computed Hash, override Hash) (Hash, error)
}

// DefaultHashOverridePolicy accepts a non-zero override only on immutable
// records. ARC-89 native records that aren't ARC-3 must use the computed hash.
type DefaultHashOverridePolicy struct{}

var _ HashOverridePolicy = DefaultHashOverridePolicy{}

func (DefaultHashOverridePolicy) Resolve(
	id AssetID,
	flags IrreversibleFlags,
	computed Hash,
	override Hash,
) (Hash, error) {
	if override.IsZero() {
		return computed, nil
	}
	if !flags.Immutable {
		return Hash{}, NewRequiresImmutableError(id)
	}
	if flags.ARC89Native && !flags.ARC3 && override != computed {
		return Hash{}, NewHashMismatchError(id, computed, override)
	}
	return override, nil
}

// IgnoreHashOverridePolicy always stores the computed hash.
type IgnoreHashOverridePolicy struct{}

var _ HashOverridePolicy = IgnoreHashOverridePolicy{}

func (IgnoreHashOverridePolicy) Resolve(_ AssetID, _ IrreversibleFlags, computed Hash, _ Hash) (Hash, error) {
	return computed, nil
}

// usesHashOverride returns true if a record's stored hash may legitimately
// differ from its computed hash.
func usesHashOverride(h Header) bool {
	return h.IrreversibleFlags.Immutable && !(h.IrreversibleFlags.ARC89Native && !h.IrreversibleFlags.ARC3)
}
