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
	"errors"
	"fmt"
)

// ExternalError is a generic error returned by host collaborators
// (Ledger, AssetRegistry, ValueTransfer, EventSink).
type ExternalError struct {
	msg string
	err error
}

// NewExternalError constructs an ExternalError.
func NewExternalError(err error, msg string) *ExternalError {
	return &ExternalError{msg: msg, err: err}
}

func (e *ExternalError) Error() string {
	if e.msg == "" {
		return e.err.Error()
	}
	return fmt.Sprintf("%s: %s", e.msg, e.err.Error())
}

func (e *ExternalError) Unwrap() error {
	return e.err
}

// UserError is a generic error caused by caller input.
type UserError struct {
	err error
}

// NewUserError constructs a UserError.
func NewUserError(err error) *UserError {
	return &UserError{err: err}
}

func (e *UserError) Error() string {
	return e.err.Error()
}

func (e *UserError) Unwrap() error {
	return e.err
}

// FatalError is a generic error for broken internal invariants,
// e.g. a stored record that can't be decoded.
type FatalError struct {
	err error
}

// NewFatalError constructs a FatalError.
func NewFatalError(err error) *FatalError {
	return &FatalError{err: err}
}

func (e *FatalError) Error() string {
	return e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err
}

// IsFatalError returns true if err is or wraps a FatalError.
func IsFatalError(err error) bool {
	var fatalError *FatalError
	return errors.As(err, &fatalError)
}

// wrapErrorAsExternalErrorIfNeeded wraps err as ExternalError
// unless err is already categorized.
func wrapErrorAsExternalErrorIfNeeded(err error) error {
	return wrapErrorfAsExternalErrorIfNeeded(err, "")
}

// wrapErrorfAsExternalErrorIfNeeded wraps err with msg as ExternalError
// unless err is already categorized.
func wrapErrorfAsExternalErrorIfNeeded(err error, msg string) error {
	if err == nil {
		return nil
	}

	var userError *UserError
	var externalError *ExternalError
	var fatalError *FatalError
	if errors.As(err, &userError) ||
		errors.As(err, &externalError) ||
		errors.As(err, &fatalError) {
		return err
	}

	return NewExternalError(err, msg)
}

// MalformedRecordError is returned when bytes can't be decoded as a record.
type MalformedRecordError struct {
	msg string
}

// NewMalformedRecordErrorf constructs a MalformedRecordError.
func NewMalformedRecordErrorf(msg string, args ...interface{}) error {
	return NewUserError(&MalformedRecordError{msg: fmt.Sprintf(msg, args...)})
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record: %s", e.msg)
}

// SizeLimitKind identifies which size constraint a SizeExceededError violates.
type SizeLimitKind uint8

const (
	SizeLimitMaxMetadata SizeLimitKind = iota
	SizeLimitPayloadOverflow
	SizeLimitSizeMismatch
	SizeLimitPageSize
	SizeLimitMetadataRange
	SizeLimitNotSmaller
	SizeLimitNotLarger
	SizeLimitCell
	SizeLimitPayloadChunk
)

func (k SizeLimitKind) String() string {
	switch k {
	case SizeLimitMaxMetadata:
		return "max metadata size"
	case SizeLimitPayloadOverflow:
		return "payload overflow"
	case SizeLimitSizeMismatch:
		return "size mismatch"
	case SizeLimitPageSize:
		return "page size"
	case SizeLimitMetadataRange:
		return "metadata range"
	case SizeLimitNotSmaller:
		return "not smaller than current size"
	case SizeLimitNotLarger:
		return "not larger than current size"
	case SizeLimitCell:
		return "cell size"
	case SizeLimitPayloadChunk:
		return "payload chunk size"
	default:
		return fmt.Sprintf("SizeLimitKind(%d)", uint8(k))
	}
}

// SizeExceededError is returned when a size or range constraint is violated.
type SizeExceededError struct {
	kind  SizeLimitKind
	size  uint64
	limit uint64
}

// NewSizeExceededError constructs a SizeExceededError.
func NewSizeExceededError(kind SizeLimitKind, size, limit uint64) error {
	return NewUserError(&SizeExceededError{kind: kind, size: size, limit: limit})
}

func (e *SizeExceededError) Kind() SizeLimitKind {
	return e.kind
}

func (e *SizeExceededError) Error() string {
	switch e.kind {
	case SizeLimitMaxMetadata:
		return fmt.Sprintf("metadata size %d exceeds maximum %d", e.size, e.limit)
	case SizeLimitPayloadOverflow:
		return fmt.Sprintf("payload overflow: %d bytes exceed declared metadata size %d", e.size, e.limit)
	case SizeLimitSizeMismatch:
		return fmt.Sprintf("metadata size mismatch: received %d bytes, declared %d", e.size, e.limit)
	case SizeLimitPageSize:
		return fmt.Sprintf("%d bytes exceed page size %d", e.size, e.limit)
	case SizeLimitMetadataRange:
		return fmt.Sprintf("range end %d exceeds metadata size %d", e.size, e.limit)
	case SizeLimitNotSmaller:
		return fmt.Sprintf("metadata size %d is larger than current size %d", e.size, e.limit)
	case SizeLimitNotLarger:
		return fmt.Sprintf("metadata size %d is not larger than current size %d", e.size, e.limit)
	case SizeLimitCell:
		return fmt.Sprintf("cell value size %d exceeds cell size limit %d", e.size, e.limit)
	case SizeLimitPayloadChunk:
		return fmt.Sprintf("payload chunk of %d bytes exceeds maximum %d", e.size, e.limit)
	default:
		return fmt.Sprintf("size %d exceeds limit %d (%s)", e.size, e.limit, e.kind)
	}
}

// IsSizeExceededError returns true if err is a SizeExceededError of the given kind.
func IsSizeExceededError(err error, kind SizeLimitKind) bool {
	var sizeError *SizeExceededError
	return errors.As(err, &sizeError) && sizeError.kind == kind
}

// PageIndexOutOfRangeError is returned when a page index is not less than the page count.
type PageIndexOutOfRangeError struct {
	index      int
	totalPages int
}

// NewPageIndexOutOfRangeError constructs a PageIndexOutOfRangeError.
func NewPageIndexOutOfRangeError(index, totalPages int) error {
	return NewUserError(&PageIndexOutOfRangeError{index: index, totalPages: totalPages})
}

func (e *PageIndexOutOfRangeError) Error() string {
	return fmt.Sprintf("page index %d out of range: metadata has %d pages", e.index, e.totalPages)
}

// DriftDetectedError is returned when a paginated read observes records
// modified at different rounds.
type DriftDetectedError struct {
	assetID  AssetID
	expected uint64
	got      uint64
}

// NewDriftDetectedError constructs a DriftDetectedError.
func NewDriftDetectedError(assetID AssetID, expected, got uint64) error {
	return &DriftDetectedError{assetID: assetID, expected: expected, got: got}
}

func (e *DriftDetectedError) Error() string {
	return fmt.Sprintf(
		"metadata of asset %d changed during read: last modified round %d, then %d",
		e.assetID,
		e.expected,
		e.got,
	)
}

// HashMismatchError is returned when a metadata hash doesn't match the expected hash.
type HashMismatchError struct {
	assetID  AssetID
	expected Hash
	got      Hash
}

// NewHashMismatchError constructs a HashMismatchError.
func NewHashMismatchError(assetID AssetID, expected, got Hash) error {
	return NewUserError(&HashMismatchError{assetID: assetID, expected: expected, got: got})
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("metadata hash mismatch for asset %d: expected %s, got %s", e.assetID, e.expected, e.got)
}

// RequiresImmutableError is returned when a hash override is supplied for a mutable record.
type RequiresImmutableError struct {
	assetID AssetID
}

// NewRequiresImmutableError constructs a RequiresImmutableError.
func NewRequiresImmutableError(assetID AssetID) error {
	return NewUserError(&RequiresImmutableError{assetID: assetID})
}

func (e *RequiresImmutableError) Error() string {
	return fmt.Sprintf("asset %d has a metadata hash override: record must be created immutable", e.assetID)
}

// UnauthorizedError is returned when the sender isn't the asset manager.
type UnauthorizedError struct {
	assetID AssetID
	sender  Address
	manager Address
}

// NewUnauthorizedError constructs an UnauthorizedError.
func NewUnauthorizedError(assetID AssetID, sender, manager Address) error {
	return NewUserError(&UnauthorizedError{assetID: assetID, sender: sender, manager: manager})
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("sender %s is not the manager %s of asset %d", e.sender, e.manager, e.assetID)
}

// AlreadyExistsError is returned when creating a record that exists.
type AlreadyExistsError struct {
	assetID AssetID
}

// NewAlreadyExistsError constructs an AlreadyExistsError.
func NewAlreadyExistsError(assetID AssetID) error {
	return NewUserError(&AlreadyExistsError{assetID: assetID})
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("metadata of asset %d already exists", e.assetID)
}

// NotFoundError is returned when a record doesn't exist.
type NotFoundError struct {
	assetID AssetID
}

// NewNotFoundError constructs a NotFoundError.
func NewNotFoundError(assetID AssetID) error {
	return NewUserError(&NotFoundError{assetID: assetID})
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("metadata of asset %d not found", e.assetID)
}

// IsNotFoundError returns true if err is a NotFoundError.
func IsNotFoundError(err error) bool {
	var notFoundError *NotFoundError
	return errors.As(err, &notFoundError)
}

// AssetNotFoundError is returned when the asset registry doesn't know the asset.
type AssetNotFoundError struct {
	assetID AssetID
}

// NewAssetNotFoundError constructs an AssetNotFoundError.
func NewAssetNotFoundError(assetID AssetID) error {
	return NewUserError(&AssetNotFoundError{assetID: assetID})
}

func (e *AssetNotFoundError) Error() string {
	return fmt.Sprintf("asset %d not found", e.assetID)
}

// IsAssetNotFoundError returns true if err is an AssetNotFoundError.
func IsAssetNotFoundError(err error) bool {
	var assetNotFoundError *AssetNotFoundError
	return errors.As(err, &assetNotFoundError)
}

// ImmutableError is returned when mutating an immutable record.
type ImmutableError struct {
	assetID AssetID
}

// NewImmutableError constructs an ImmutableError.
func NewImmutableError(assetID AssetID) error {
	return NewUserError(&ImmutableError{assetID: assetID})
}

func (e *ImmutableError) Error() string {
	return fmt.Sprintf("metadata of asset %d is immutable", e.assetID)
}

// InvalidFlagIndexError is returned when a flag index can't be set by the operation.
type InvalidFlagIndexError struct {
	flags string
	index uint8
	msg   string
}

// NewInvalidFlagIndexError constructs an InvalidFlagIndexError.
func NewInvalidFlagIndexError(flags string, index uint8, msg string) error {
	return NewUserError(&InvalidFlagIndexError{flags: flags, index: index, msg: msg})
}

func (e *InvalidFlagIndexError) Error() string {
	return fmt.Sprintf("invalid %s flag index %d: %s", e.flags, e.index, e.msg)
}

// RentPaymentInvalidError is returned when the rent payment is missing,
// goes to the wrong receiver, or doesn't cover the rent delta.
type RentPaymentInvalidError struct {
	msg string
}

// NewRentPaymentInvalidErrorf constructs a RentPaymentInvalidError.
func NewRentPaymentInvalidErrorf(msg string, args ...interface{}) error {
	return NewUserError(&RentPaymentInvalidError{msg: fmt.Sprintf(msg, args...)})
}

func (e *RentPaymentInvalidError) Error() string {
	return fmt.Sprintf("invalid rent payment: %s", e.msg)
}

// NoPayloadHeadError is returned when an extra payload isn't preceded
// by a create or replace operation for the same asset in the batch.
type NoPayloadHeadError struct {
	assetID AssetID
}

// NewNoPayloadHeadError constructs a NoPayloadHeadError.
func NewNoPayloadHeadError(assetID AssetID) error {
	return NewUserError(&NoPayloadHeadError{assetID: assetID})
}

func (e *NoPayloadHeadError) Error() string {
	return fmt.Sprintf("extra payload for asset %d has no preceding create or replace in the batch", e.assetID)
}

// InvalidRegistryIDError is returned when migrating to the current registry or to zero.
type InvalidRegistryIDError struct {
	registryID uint64
}

// NewInvalidRegistryIDError constructs an InvalidRegistryIDError.
func NewInvalidRegistryIDError(registryID uint64) error {
	return NewUserError(&InvalidRegistryIDError{registryID: registryID})
}

func (e *InvalidRegistryIDError) Error() string {
	return fmt.Sprintf("invalid registry id %d", e.registryID)
}

// EmptyMetadataError is returned when hashing a page of empty metadata.
type EmptyMetadataError struct {
	assetID AssetID
}

// NewEmptyMetadataError constructs an EmptyMetadataError.
func NewEmptyMetadataError(assetID AssetID) error {
	return NewUserError(&EmptyMetadataError{assetID: assetID})
}

func (e *EmptyMetadataError) Error() string {
	return fmt.Sprintf("metadata of asset %d is empty", e.assetID)
}

// NotShortError is returned by key getters on metadata that isn't short.
type NotShortError struct {
	assetID AssetID
}

// NewNotShortError constructs a NotShortError.
func NewNotShortError(assetID AssetID) error {
	return NewUserError(&NotShortError{assetID: assetID})
}

func (e *NotShortError) Error() string {
	return fmt.Sprintf("metadata of asset %d is not short", e.assetID)
}

// JSONKeyError is returned when a key is missing or has an unexpected type.
type JSONKeyError struct {
	key string
	msg string
}

// NewJSONKeyError constructs a JSONKeyError.
func NewJSONKeyError(key string, msg string) error {
	return NewUserError(&JSONKeyError{key: key, msg: msg})
}

func (e *JSONKeyError) Error() string {
	return fmt.Sprintf("metadata key %q: %s", e.key, e.msg)
}

// InvalidMetadataJSONError is returned when metadata isn't a UTF-8 JSON object.
type InvalidMetadataJSONError struct {
	msg string
}

// NewInvalidMetadataJSONError constructs an InvalidMetadataJSONError.
func NewInvalidMetadataJSONError(msg string) error {
	return NewUserError(&InvalidMetadataJSONError{msg: msg})
}

func (e *InvalidMetadataJSONError) Error() string {
	return fmt.Sprintf("invalid metadata json: %s", e.msg)
}

// InvalidURIError is returned when an ARC-90 URI can't be parsed or rendered.
type InvalidURIError struct {
	uri string
	msg string
}

// NewInvalidURIError constructs an InvalidURIError.
func NewInvalidURIError(uri string, msg string) error {
	return NewUserError(&InvalidURIError{uri: uri, msg: msg})
}

func (e *InvalidURIError) Error() string {
	if e.uri == "" {
		return fmt.Sprintf("invalid uri: %s", e.msg)
	}
	return fmt.Sprintf("invalid uri %q: %s", e.uri, e.msg)
}

// ComplianceError is returned when the asset doesn't satisfy an ARC
// the record claims compliance with.
type ComplianceError struct {
	assetID AssetID
	arc     int
	msg     string
}

// NewComplianceError constructs a ComplianceError.
func NewComplianceError(assetID AssetID, arc int, msg string) error {
	return NewUserError(&ComplianceError{assetID: assetID, arc: arc, msg: msg})
}

func (e *ComplianceError) Error() string {
	return fmt.Sprintf("asset %d is not ARC-%d compliant: %s", e.assetID, e.arc, e.msg)
}

// InvalidParametersError is returned by Parameters.Validate.
type InvalidParametersError struct {
	msg string
}

// NewInvalidParametersErrorf constructs an InvalidParametersError.
func NewInvalidParametersErrorf(msg string, args ...interface{}) error {
	return NewUserError(&InvalidParametersError{msg: fmt.Sprintf(msg, args...)})
}

func (e *InvalidParametersError) Error() string {
	return fmt.Sprintf("invalid registry parameters: %s", e.msg)
}

// HashError is a wrapper for errors from the hasher.
type HashError struct {
	err error
}

// NewHashError constructs a HashError.
func NewHashError(err error) error {
	return NewFatalError(&HashError{err: err})
}

func (e *HashError) Error() string {
	return fmt.Sprintf("hasher error: %s", e.err.Error())
}

func (e *HashError) Unwrap() error {
	return e.err
}

// EncodingError is a wrapper for CBOR encoding errors.
type EncodingError struct {
	err error
}

// NewEncodingError constructs an EncodingError.
func NewEncodingError(err error) error {
	return NewFatalError(&EncodingError{err: err})
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding error: %s", e.err.Error())
}

func (e *EncodingError) Unwrap() error {
	return e.err
}

// DecodingError is a wrapper for CBOR decoding errors.
type DecodingError struct {
	err error
}

// NewDecodingError constructs a DecodingError.
func NewDecodingError(err error) error {
	return NewUserError(&DecodingError{err: err})
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("decoding error: %s", e.err.Error())
}

func (e *DecodingError) Unwrap() error {
	return e.err
}

// BatchError reports the operation that aborted a batch.
type BatchError struct {
	Index  int
	Method Method
	Err    error
}

// NewBatchError constructs a BatchError.
func NewBatchError(index int, method Method, err error) *BatchError {
	return &BatchError{Index: index, Method: method, Err: err}
}

func (e *BatchError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("batch aborted: %s", e.Err.Error())
	}
	return fmt.Sprintf("batch aborted at operation %d (%s): %s", e.Index, e.Method, e.Err.Error())
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
