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

// Pagination describes how a record body splits into pages.
type Pagination struct {
	MetadataSize int
	PageSize     int
	TotalPages   int
}

// PaginatedMetadata is one page of a record body.
type PaginatedMetadata struct {
	HasNextPage       bool
	LastModifiedRound uint64
	Content           []byte
}

// TotalPages returns ceil(size / pageSize).
func TotalPages(size int, pageSize int) int {
	if size <= 0 {
		return 0
	}
	return (size + pageSize - 1) / pageSize
}

func newPagination(size int, pageSize int) Pagination {
	return Pagination{
		MetadataSize: size,
		PageSize:     pageSize,
		TotalPages:   TotalPages(size, pageSize),
	}
}

// Page returns page index of body. The returned slice aliases body.
// Empty bodies have a single empty page 0.
func Page(body []byte, pageSize int, index int) ([]byte, error) {
	totalPages := TotalPages(len(body), pageSize)

	if len(body) == 0 {
		if index != 0 {
			return nil, NewPageIndexOutOfRangeError(index, totalPages)
		}
		return []byte{}, nil
	}

	if index < 0 || index >= totalPages {
		return nil, NewPageIndexOutOfRangeError(index, totalPages)
	}

	start := index * pageSize
	end := min(start+pageSize, len(body))
	return body[start:end], nil
}

// Pages returns all pages of body. Empty bodies have no pages.
func Pages(body []byte, pageSize int) [][]byte {
	totalPages := TotalPages(len(body), pageSize)
	pages := make([][]byte, 0, totalPages)
	for start := 0; start < len(body); start += pageSize {
		pages = append(pages, body[start:min(start+pageSize, len(body))])
	}
	return pages
}
