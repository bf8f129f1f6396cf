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

const (
	// Metabox uses CBOR tag numbers [240, 255] for events and batches.
	// Replace _ when new tag number is needed (use higher tag numbers first).

	_ = 240
	_ = 241
	_ = 242
	_ = 243
	_ = 244
	_ = 245
	_ = 246
	_ = 247
	_ = 248
	_ = 249
	_ = 250
	_ = 251

	CBORTagBatch = 252

	CBORTagMetadataDeleted  = 253
	CBORTagMetadataMigrated = 254
	CBORTagMetadataUpdated  = 255
)
