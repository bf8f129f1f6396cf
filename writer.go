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
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// BatchSubmitter executes batches atomically. Registry implements it.
type BatchSubmitter interface {
	ExecuteBatch(ctx context.Context, b *Batch) (BatchResult, error)
}

var _ BatchSubmitter = &Registry{}

// Writer builds operation batches that write records of one sender
// to one registry.
type Writer struct {
	params          Parameters
	registryAddress Address
	sender          Address
	source          RecordSource

	minFee         uint64
	feePadding     int
	extraResources int
	log            *zap.Logger
}

type WriterOption func(*Writer)

// WithMinFee returns option to pool the fees of a batch on its first
// operation, minFee per operation.
func WithMinFee(minFee uint64) WriterOption {
	return func(w *Writer) {
		w.minFee = minFee
	}
}

// WithFeePadding returns option to add n operations worth of fees to the pooled fee.
func WithFeePadding(n int) WriterOption {
	return func(w *Writer) {
		w.feePadding = n
	}
}

// WithExtraResources returns option to append n extra resources
// operations to every batch.
func WithExtraResources(n int) WriterOption {
	return func(w *Writer) {
		w.extraResources = n
	}
}

// WithWriterLogger returns option to set the writer logger.
func WithWriterLogger(l *zap.Logger) WriterOption {
	return func(w *Writer) {
		w.log = l
	}
}

// NewWriter returns a writer for sender. source is used to look up
// current record sizes for replacements.
func NewWriter(params Parameters, registryAddress Address, sender Address, source RecordSource, opts ...WriterOption) *Writer {
	w := &Writer{
		params:          params,
		registryAddress: registryAddress,
		sender:          sender,
		source:          source,
		log:             zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Writer) checkSize(size int) error {
	if size > w.params.MaxMetadataSize {
		return NewSizeExceededError(SizeLimitMaxMetadata, uint64(size), uint64(w.params.MaxMetadataSize))
	}
	return nil
}

func (w *Writer) payment(delta RentDelta) *Payment {
	p := &Payment{Sender: w.sender, Receiver: w.registryAddress}
	if delta.Sign == RentSignPositive {
		p.Amount = delta.Amount
	}
	return p
}

// payloadOperations returns head followed by extra payload operations
// carrying the remaining chunks of body.
func (w *Writer) payloadOperations(id AssetID, body []byte, head func(chunk []byte) Operation) ([]Operation, error) {
	chunks, err := SplitPayload(body, w.params.FirstPayloadMaxSize, w.params.ExtraPayloadMaxSize)
	if err != nil {
		// err is categorized already by SplitPayload()
		return nil, err
	}

	ops := make([]Operation, 0, len(chunks))
	ops = append(ops, head(chunks[0]))
	for _, chunk := range chunks[1:] {
		ops = append(ops, NewExtraPayloadOperation(w.sender, id, chunk))
	}
	return ops, nil
}

// BuildCreate returns the batch creating the record of asset id.
func (w *Writer) BuildCreate(id AssetID, rev ReversibleFlags, irr IrreversibleFlags, body []byte) (*Batch, error) {
	err := w.checkSize(len(body))
	if err != nil {
		return nil, err
	}

	payment := w.payment(w.params.CreateDelta(len(body)))

	ops, err := w.payloadOperations(id, body, func(chunk []byte) Operation {
		return NewCreateOperation(w.sender, id, rev, irr, uint16(len(body)), chunk, payment)
	})
	if err != nil {
		// err is categorized already by Writer.payloadOperations()
		return nil, err
	}

	// err is categorized already by Writer.finish()
	return w.finish(ops)
}

// BuildReplace returns the batch replacing the body of asset id.
// The current record size selects between a replacement paying rent and
// one that is refunded.
func (w *Writer) BuildReplace(ctx context.Context, id AssetID, body []byte) (*Batch, error) {
	err := w.checkSize(len(body))
	if err != nil {
		return nil, err
	}
	if w.source == nil {
		return nil, NewUserError(fmt.Errorf("writer has no record source to look up current size of %d", id))
	}

	pagination, err := w.source.GetPagination(ctx, id)
	if err != nil {
		// Wrap err as external error (if needed) because err is returned by RecordSource interface.
		return nil, wrapErrorfAsExternalErrorIfNeeded(err, fmt.Sprintf("failed to get pagination of %d", id))
	}

	size := uint16(len(body))

	var head func(chunk []byte) Operation
	if len(body) <= pagination.MetadataSize {
		head = func(chunk []byte) Operation {
			return NewReplaceOperation(w.sender, id, size, chunk)
		}
	} else {
		payment := w.payment(w.params.ResizeDelta(pagination.MetadataSize, len(body)))
		head = func(chunk []byte) Operation {
			return NewReplaceLargerOperation(w.sender, id, size, chunk, payment)
		}
	}

	ops, err := w.payloadOperations(id, body, head)
	if err != nil {
		// err is categorized already by Writer.payloadOperations()
		return nil, err
	}

	// err is categorized already by Writer.finish()
	return w.finish(ops)
}

// BuildReplaceSlice returns the batch overwriting the body of asset id
// from offset with payload.
func (w *Writer) BuildReplaceSlice(id AssetID, offset int, payload []byte) (*Batch, error) {
	end := offset + len(payload)
	if offset < 0 || end > math.MaxUint16 {
		return nil, NewSizeExceededError(SizeLimitMetadataRange, uint64(max(end, 0)), math.MaxUint16)
	}

	chunks, err := SplitSlice(payload, w.params.ReplacePayloadMaxSize)
	if err != nil {
		// err is categorized already by SplitSlice()
		return nil, err
	}
	if len(chunks) == 0 {
		chunks = [][]byte{payload}
	}

	ops := make([]Operation, 0, len(chunks))
	for _, chunk := range chunks {
		ops = append(ops, NewReplaceSliceOperation(w.sender, id, uint16(offset), chunk))
		offset += len(chunk)
	}

	// err is categorized already by Writer.finish()
	return w.finish(ops)
}

func (w *Writer) BuildDelete(id AssetID) (*Batch, error) {
	// err is categorized already by Writer.finish()
	return w.finish([]Operation{NewDeleteOperation(w.sender, id)})
}

func (w *Writer) BuildSetReversibleFlag(id AssetID, index uint8, value bool) (*Batch, error) {
	// err is categorized already by Writer.finish()
	return w.finish([]Operation{NewSetReversibleFlagOperation(w.sender, id, index, value)})
}

func (w *Writer) BuildSetIrreversibleFlag(id AssetID, index uint8) (*Batch, error) {
	// err is categorized already by Writer.finish()
	return w.finish([]Operation{NewSetIrreversibleFlagOperation(w.sender, id, index)})
}

func (w *Writer) BuildSetImmutable(id AssetID) (*Batch, error) {
	// err is categorized already by Writer.finish()
	return w.finish([]Operation{NewSetImmutableOperation(w.sender, id)})
}

func (w *Writer) BuildMigrate(id AssetID, newRegistryID uint64) (*Batch, error) {
	// err is categorized already by Writer.finish()
	return w.finish([]Operation{NewMigrateOperation(w.sender, id, newRegistryID)})
}

// finish pads ops with extra resources, fingerprints every operation
// and pools fees on the first one.
func (w *Writer) finish(ops []Operation) (*Batch, error) {
	for i := 0; i < w.extraResources; i++ {
		ops = append(ops, NewExtraResourcesOperation(w.sender))
	}

	// A rent payment travels as its own call in the group.
	calls := len(ops)
	if ops[0].Payment != nil {
		calls++
	}
	if calls > MaxGroupSize {
		return nil, NewUserError(fmt.Errorf("batch needs %d calls, exceeding group size %d", calls, MaxGroupSize))
	}

	for i := range ops {
		ops[i].Note = operationNote(ops[i].AssetID, ops[i].Method, i)
	}

	if w.minFee > 0 {
		ops[0].Fee = uint64(calls+w.feePadding) * w.minFee
	}

	return NewBatch(ops...), nil
}

// Submit executes b with s.
func (w *Writer) Submit(ctx context.Context, s BatchSubmitter, b *Batch) (BatchResult, error) {
	res, err := s.ExecuteBatch(ctx, b)
	if err != nil {
		w.log.Debug("batch rejected", zap.String("batch_id", b.ID.String()), zap.Error(err))
		// Don't need to wrap error because registries report categorized errors in BatchError.
		return BatchResult{}, err
	}
	w.log.Debug("batch submitted", zap.String("batch_id", b.ID.String()), zap.Int("operations", len(b.Operations)))
	return res, nil
}
