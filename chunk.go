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

// SplitPayload splits body into a head chunk of at most headMax bytes
// followed by extra chunks of at most extraMax bytes.
// Empty bodies yield a single empty head chunk.
func SplitPayload(body []byte, headMax int, extraMax int) ([][]byte, error) {
	if headMax <= 0 || extraMax <= 0 {
		return nil, NewInvalidParametersErrorf("payload sizes (%d, %d) must be positive", headMax, extraMax)
	}

	if len(body) <= headMax {
		return [][]byte{body}, nil
	}

	chunks := make([][]byte, 0, 1+TotalPages(len(body)-headMax, extraMax))
	chunks = append(chunks, body[:headMax])
	for start := headMax; start < len(body); start += extraMax {
		chunks = append(chunks, body[start:min(start+extraMax, len(body))])
	}
	return chunks, nil
}

// SplitSlice splits payload into chunks of at most maxSize bytes.
func SplitSlice(payload []byte, maxSize int) ([][]byte, error) {
	if maxSize <= 0 {
		return nil, NewInvalidParametersErrorf("payload size %d must be positive", maxSize)
	}

	chunks := make([][]byte, 0, TotalPages(len(payload), maxSize))
	for start := 0; start < len(payload); start += maxSize {
		chunks = append(chunks, payload[start:min(start+maxSize, len(payload))])
	}
	return chunks, nil
}
