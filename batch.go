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
	"bytes"
	"context"
	"fmt"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// payloadSession accumulates the chunks of one body write, opened by a
// head operation and closed by the next non-extra operation on the same
// asset or by the end of the batch.
type payloadSession struct {
	index        int
	method       Method
	assetID      AssetID
	asset        AssetInfo
	declaredSize int
	body         []byte

	// MethodCreate
	rev ReversibleFlags
	irr IrreversibleFlags

	// MethodCreate, MethodReplaceLarger
	payment *Payment
}

type refund struct {
	index  int
	method Method
	to     Address
	amount uint64
}

// batchExecutor applies the operations of one batch to registry storage deltas.
type batchExecutor struct {
	ctx       context.Context
	r         *Registry
	log       *zap.Logger
	timestamp uint64

	sessions map[AssetID]*payloadSession
	results  []OperationResult
	events   []Event
	refunds  []refund
	paid     []refund

	collected uint64
	refunded  uint64
}

func newBatchExecutor(ctx context.Context, r *Registry, log *zap.Logger) *batchExecutor {
	return &batchExecutor{
		ctx:       ctx,
		r:         r,
		log:       log,
		timestamp: r.clock.Timestamp(),
		sessions:  make(map[AssetID]*payloadSession),
	}
}

func (e *batchExecutor) execute(ops []Operation) error {
	e.results = make([]OperationResult, 0, len(ops))

	for i := range ops {
		op := &ops[i]

		err := e.ctx.Err()
		if err != nil {
			return NewBatchError(i, op.Method, err)
		}

		// Any other operation on the asset ends its body write.
		if op.Method != MethodExtraPayload && op.Method != MethodExtraResources {
			if s, ok := e.sessions[op.AssetID]; ok {
				err = e.closeSession(s)
				if err != nil {
					return NewBatchError(s.index, s.method, err)
				}
			}
		}

		e.results = append(e.results, OperationResult{Method: op.Method, AssetID: op.AssetID})

		err = e.apply(i, op)
		e.r.metrics.OperationExecuted(op.Method, err)
		if err != nil {
			return NewBatchError(i, op.Method, err)
		}

		e.log.Debug("operation executed",
			zap.Int("index", i),
			zap.Stringer("method", op.Method),
			zap.Uint64("asset_id", uint64(op.AssetID)),
		)
	}

	open := make([]*payloadSession, 0, len(e.sessions))
	for _, s := range e.sessions {
		open = append(open, s)
	}
	sort.Slice(open, func(i, j int) bool {
		return open[i].index < open[j].index
	})

	for _, s := range open {
		err := e.closeSession(s)
		if err != nil {
			return NewBatchError(s.index, s.method, err)
		}
	}

	return nil
}

func (e *batchExecutor) apply(index int, op *Operation) error {
	if op.Method.isPayloadHead() {
		return e.openSession(index, op)
	}

	switch op.Method {
	case MethodExtraPayload:
		return e.appendPayload(op)
	case MethodReplaceSlice:
		return e.replaceSlice(op)
	case MethodSetReversibleFlag, MethodSetIrreversibleFlag, MethodSetImmutable:
		return e.setFlag(op)
	case MethodMigrate:
		return e.migrate(op)
	case MethodDelete:
		return e.delete(index, op)
	case MethodExtraResources:
		return nil
	default:
		return NewUserError(fmt.Errorf("unsupported method %s", op.Method))
	}
}

// settle pays refunds of the batch. If a refund fails, refunds paid
// before it are reversed.
func (e *batchExecutor) settle() error {
	for _, rf := range e.refunds {
		if rf.amount == 0 {
			continue
		}
		err := e.r.transfer.Transfer(e.ctx, e.r.address, rf.to, rf.amount)
		if err != nil {
			// Wrap err as external error (if needed) because err is returned by ValueTransfer interface.
			err = wrapErrorfAsExternalErrorIfNeeded(err, fmt.Sprintf("failed to refund %d to %s", rf.amount, rf.to))
			return NewBatchError(rf.index, rf.method, multierr.Append(err, e.reverseRefunds()))
		}
		e.paid = append(e.paid, rf)
		e.refunded += rf.amount
	}
	return nil
}

// reverseRefunds takes back refunds paid by settle, latest first.
// Reversals run even if the batch context is canceled.
func (e *batchExecutor) reverseRefunds() error {
	ctx := context.WithoutCancel(e.ctx)

	var errs error
	for i := len(e.paid) - 1; i >= 0; i-- {
		rf := e.paid[i]
		err := e.r.transfer.Transfer(ctx, rf.to, e.r.address, rf.amount)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to reverse refund %d from %s: %w", rf.amount, rf.to, err))
			continue
		}
		e.refunded -= rf.amount
		e.log.Debug("refund reversed", zap.Stringer("from", rf.to), zap.Uint64("amount", rf.amount))
	}
	e.paid = nil

	if errs != nil {
		return NewFatalError(errs)
	}
	return nil
}

// authorize returns the asset of id if sender is its manager.
func (e *batchExecutor) authorize(id AssetID, sender Address) (AssetInfo, error) {
	info, found, err := lookupAsset(e.ctx, e.r.assets, id)
	if err != nil {
		// err is categorized already by lookupAsset()
		return AssetInfo{}, err
	}
	if !found {
		return AssetInfo{}, NewAssetNotFoundError(id)
	}
	if info.Manager != sender {
		return AssetInfo{}, NewUnauthorizedError(id, sender, info.Manager)
	}
	return info, nil
}

// state returns the lifecycle state and the record of id.
// The record is nil if it doesn't exist.
func (e *batchExecutor) state(id AssetID) (RecordState, *Record, error) {
	rec, found, err := e.r.storage.Retrieve(id)
	if err != nil {
		// err is categorized already by PersistentBoxStorage.Retrieve()
		return RecordState{}, nil, err
	}
	if !found {
		return RecordState{AssetID: id}, nil, nil
	}
	return RecordState{AssetID: id, Exists: true, Header: rec.Header}, rec, nil
}

func (e *batchExecutor) checkPaymentReceiver(p *Payment) error {
	if p == nil {
		return NewRentPaymentInvalidErrorf("missing rent payment")
	}
	if p.Receiver != e.r.address {
		return NewRentPaymentInvalidErrorf("payment receiver %s is not registry address %s", p.Receiver, e.r.address)
	}
	return nil
}

func checkPaymentAmount(p *Payment, delta RentDelta) error {
	if delta.Sign != RentSignPositive {
		return nil
	}
	if p == nil || p.Amount < delta.Amount {
		var paid uint64
		if p != nil {
			paid = p.Amount
		}
		return NewRentPaymentInvalidErrorf("payment %d is less than rent delta %d", paid, delta.Amount)
	}
	return nil
}

func (e *batchExecutor) openSession(index int, op *Operation) error {
	asset, err := e.authorize(op.AssetID, op.Sender)
	if err != nil {
		// err is categorized already by batchExecutor.authorize()
		return err
	}

	params := e.r.params
	size := int(op.MetadataSize)

	if size > params.MaxMetadataSize {
		return NewSizeExceededError(SizeLimitMaxMetadata, uint64(size), uint64(params.MaxMetadataSize))
	}
	if len(op.Payload) > params.FirstPayloadMaxSize {
		return NewSizeExceededError(SizeLimitPayloadChunk, uint64(len(op.Payload)), uint64(params.FirstPayloadMaxSize))
	}
	if len(op.Payload) > size {
		return NewSizeExceededError(SizeLimitPayloadOverflow, uint64(len(op.Payload)), uint64(size))
	}

	current, rec, err := e.state(op.AssetID)
	if err != nil {
		// err is categorized already by batchExecutor.state()
		return err
	}

	s := &payloadSession{
		index:        index,
		method:       op.Method,
		assetID:      op.AssetID,
		asset:        asset,
		declaredSize: size,
		body:         append(make([]byte, 0, size), op.Payload...),
		payment:      op.Payment,
	}

	switch op.Method {
	case MethodCreate:
		_, err = ApplyTransition(current, TransitionRequest{Kind: TransitionCreate})
		if err != nil {
			// err is categorized already by ApplyTransition()
			return err
		}
		err = e.checkPaymentReceiver(op.Payment)
		if err != nil {
			return err
		}
		s.rev = ReversibleFlagsFromByte(op.ReversibleFlags)
		s.irr = IrreversibleFlagsFromByte(op.IrreversibleFlags)

	case MethodReplace:
		_, err = ApplyTransition(current, TransitionRequest{Kind: TransitionWriteBody})
		if err != nil {
			// err is categorized already by ApplyTransition()
			return err
		}
		if size > rec.Size() {
			return NewSizeExceededError(SizeLimitNotSmaller, uint64(size), uint64(rec.Size()))
		}

	case MethodReplaceLarger:
		_, err = ApplyTransition(current, TransitionRequest{Kind: TransitionWriteBody})
		if err != nil {
			// err is categorized already by ApplyTransition()
			return err
		}
		if size <= rec.Size() {
			return NewSizeExceededError(SizeLimitNotLarger, uint64(size), uint64(rec.Size()))
		}
		err = e.checkPaymentReceiver(op.Payment)
		if err != nil {
			return err
		}
	}

	e.sessions[op.AssetID] = s
	return nil
}

func (e *batchExecutor) appendPayload(op *Operation) error {
	s, ok := e.sessions[op.AssetID]
	if !ok {
		return NewNoPayloadHeadError(op.AssetID)
	}
	if op.Sender != s.asset.Manager {
		return NewUnauthorizedError(op.AssetID, op.Sender, s.asset.Manager)
	}

	limit := e.r.params.ExtraPayloadMaxSize
	if len(op.Payload) > limit {
		return NewSizeExceededError(SizeLimitPayloadChunk, uint64(len(op.Payload)), uint64(limit))
	}

	received := len(s.body) + len(op.Payload)
	if received > s.declaredSize {
		return NewSizeExceededError(SizeLimitPayloadOverflow, uint64(received), uint64(s.declaredSize))
	}

	s.body = append(s.body, op.Payload...)
	return nil
}

func (e *batchExecutor) closeSession(s *payloadSession) error {
	delete(e.sessions, s.assetID)

	if len(s.body) != s.declaredSize {
		return NewSizeExceededError(SizeLimitSizeMismatch, uint64(len(s.body)), uint64(s.declaredSize))
	}

	if s.method == MethodCreate {
		return e.finishCreate(s)
	}
	return e.finishReplace(s)
}

func (e *batchExecutor) finishCreate(s *payloadSession) error {
	id := s.assetID
	params := e.r.params

	current, _, err := e.state(id)
	if err != nil {
		// err is categorized already by batchExecutor.state()
		return err
	}

	next, err := ApplyTransition(current, TransitionRequest{
		Kind:              TransitionCreate,
		ReversibleFlags:   s.rev,
		IrreversibleFlags: s.irr,
	})
	if err != nil {
		// err is categorized already by ApplyTransition()
		return err
	}

	rec := &Record{Header: next.Header, Body: s.body}
	rec.Identifiers = deriveIdentifiers(len(rec.Body), params.ShortMetadataSize)

	computed, err := e.r.computeHash(id, rec)
	if err != nil {
		// err is categorized already by Registry.computeHash()
		return err
	}

	rec.MetadataHash, err = e.r.policy.Resolve(id, rec.IrreversibleFlags, computed, s.asset.MetadataHash)
	if err != nil {
		// Wrap err as external error (if needed) because err is returned by HashOverridePolicy interface.
		return wrapErrorfAsExternalErrorIfNeeded(err, fmt.Sprintf("failed to resolve metadata hash of %d", id))
	}

	err = e.checkCompliance(id, s.asset, rec.IrreversibleFlags)
	if err != nil {
		return err
	}

	delta := params.CreateDelta(len(rec.Body))
	err = checkPaymentAmount(s.payment, delta)
	if err != nil {
		return err
	}

	rec.LastModifiedRound = e.r.nextRound(0)
	rec.DeprecatedBy = 0

	err = e.r.storage.Store(id, rec)
	if err != nil {
		// err is categorized already by PersistentBoxStorage.Store()
		return err
	}

	e.collected += delta.Amount
	e.results[s.index].RentDelta = &delta
	e.events = append(e.events, newMetadataUpdated(id, rec.Header, e.timestamp))
	return nil
}

func (e *batchExecutor) checkCompliance(id AssetID, asset AssetInfo, flags IrreversibleFlags) error {
	if flags.ARC3 && !IsARC3Compliant(asset) {
		return NewComplianceError(id, 3, "asset name or URL isn't marked as ARC-3")
	}
	if flags.ARC89Native && !IsARC89Compliant(asset, e.r.PartialURI().String()) {
		return NewComplianceError(id, 89, "asset URL doesn't start with the registry partial URI")
	}
	return nil
}

func (e *batchExecutor) finishReplace(s *payloadSession) error {
	id := s.assetID

	current, rec, err := e.state(id)
	if err != nil {
		// err is categorized already by batchExecutor.state()
		return err
	}

	_, err = ApplyTransition(current, TransitionRequest{Kind: TransitionWriteBody})
	if err != nil {
		// err is categorized already by ApplyTransition()
		return err
	}

	delta := e.r.params.ResizeDelta(rec.Size(), len(s.body))
	e.results[s.index].RentDelta = &delta

	if bytes.Equal(rec.Body, s.body) {
		return nil
	}

	if s.method == MethodReplaceLarger {
		err = checkPaymentAmount(s.payment, delta)
		if err != nil {
			return err
		}
		e.collected += delta.Amount
	} else if delta.Sign == RentSignNegative {
		e.refunds = append(e.refunds, refund{index: s.index, method: s.method, to: s.asset.Manager, amount: delta.Amount})
	}

	next := &Record{Header: rec.Header, Body: s.body}

	// err is categorized already by batchExecutor.update()
	return e.update(id, next, rec.LastModifiedRound)
}

// update rehashes rec, assigns its round and stores it.
func (e *batchExecutor) update(id AssetID, rec *Record, prevRound uint64) error {
	rec.Identifiers = deriveIdentifiers(len(rec.Body), e.r.params.ShortMetadataSize)

	h, err := e.r.computeHash(id, rec)
	if err != nil {
		// err is categorized already by Registry.computeHash()
		return err
	}
	rec.MetadataHash = h
	rec.LastModifiedRound = e.r.nextRound(prevRound)

	err = e.r.storage.Store(id, rec)
	if err != nil {
		// err is categorized already by PersistentBoxStorage.Store()
		return err
	}

	e.events = append(e.events, newMetadataUpdated(id, rec.Header, e.timestamp))
	return nil
}

func (e *batchExecutor) replaceSlice(op *Operation) error {
	_, err := e.authorize(op.AssetID, op.Sender)
	if err != nil {
		// err is categorized already by batchExecutor.authorize()
		return err
	}

	current, rec, err := e.state(op.AssetID)
	if err != nil {
		// err is categorized already by batchExecutor.state()
		return err
	}

	_, err = ApplyTransition(current, TransitionRequest{Kind: TransitionWriteBody})
	if err != nil {
		// err is categorized already by ApplyTransition()
		return err
	}

	limit := e.r.params.ReplacePayloadMaxSize
	if len(op.Payload) > limit {
		return NewSizeExceededError(SizeLimitPayloadChunk, uint64(len(op.Payload)), uint64(limit))
	}

	start := int(op.Offset)
	end := start + len(op.Payload)
	if end > rec.Size() {
		return NewSizeExceededError(SizeLimitMetadataRange, uint64(end), uint64(rec.Size()))
	}

	if bytes.Equal(rec.Body[start:end], op.Payload) {
		return nil
	}

	next := rec.Clone()
	copy(next.Body[start:end], op.Payload)

	// err is categorized already by batchExecutor.update()
	return e.update(op.AssetID, next, rec.LastModifiedRound)
}

func (e *batchExecutor) setFlag(op *Operation) error {
	_, err := e.authorize(op.AssetID, op.Sender)
	if err != nil {
		// err is categorized already by batchExecutor.authorize()
		return err
	}

	current, rec, err := e.state(op.AssetID)
	if err != nil {
		// err is categorized already by batchExecutor.state()
		return err
	}

	req := TransitionRequest{
		FlagIndex: op.FlagIndex,
		FlagValue: op.FlagValue,
	}
	switch op.Method {
	case MethodSetReversibleFlag:
		req.Kind = TransitionSetReversibleFlag
	case MethodSetIrreversibleFlag:
		req.Kind = TransitionSetIrreversibleFlag
	case MethodSetImmutable:
		req.Kind = TransitionSetImmutable
	}

	next, err := ApplyTransition(current, req)
	if err != nil {
		// err is categorized already by ApplyTransition()
		return err
	}
	if !current.changed(next) {
		return nil
	}

	updated := rec.Clone()
	updated.Header = next.Header

	// err is categorized already by batchExecutor.update()
	return e.update(op.AssetID, updated, rec.LastModifiedRound)
}

func (e *batchExecutor) migrate(op *Operation) error {
	_, err := e.authorize(op.AssetID, op.Sender)
	if err != nil {
		// err is categorized already by batchExecutor.authorize()
		return err
	}

	current, rec, err := e.state(op.AssetID)
	if err != nil {
		// err is categorized already by batchExecutor.state()
		return err
	}

	next, err := ApplyTransition(current, TransitionRequest{
		Kind:              TransitionMigrate,
		NewRegistryID:     op.NewRegistryID,
		CurrentRegistryID: e.r.id,
	})
	if err != nil {
		// err is categorized already by ApplyTransition()
		return err
	}
	if !current.changed(next) {
		return nil
	}

	// Deprecation isn't hashed and doesn't bump the round.
	updated := rec.Clone()
	updated.DeprecatedBy = next.Header.DeprecatedBy

	err = e.r.storage.Store(op.AssetID, updated)
	if err != nil {
		// err is categorized already by PersistentBoxStorage.Store()
		return err
	}

	e.events = append(e.events, &MetadataMigrated{
		AssetID:       op.AssetID,
		Round:         e.r.clock.Round(),
		Timestamp:     e.timestamp,
		NewRegistryID: op.NewRegistryID,
	})
	return nil
}

func (e *batchExecutor) delete(index int, op *Operation) error {
	current, rec, err := e.state(op.AssetID)
	if err != nil {
		// err is categorized already by batchExecutor.state()
		return err
	}
	if !current.Exists {
		return NewNotFoundError(op.AssetID)
	}

	asset, found, err := lookupAsset(e.ctx, e.r.assets, op.AssetID)
	if err != nil {
		// err is categorized already by lookupAsset()
		return err
	}
	if found && asset.Manager != op.Sender {
		return NewUnauthorizedError(op.AssetID, op.Sender, asset.Manager)
	}

	_, err = ApplyTransition(current, TransitionRequest{Kind: TransitionDelete, AssetDestroyed: !found})
	if err != nil {
		// err is categorized already by ApplyTransition()
		return err
	}

	err = e.r.storage.Remove(op.AssetID)
	if err != nil {
		// err is categorized already by PersistentBoxStorage.Remove()
		return err
	}

	// Destroyed assets have no manager: the sender gets the refund.
	to := op.Sender
	if found {
		to = asset.Manager
	}

	delta := e.r.params.DeleteDelta(rec.Size())
	e.results[index].RentDelta = &delta
	e.refunds = append(e.refunds, refund{index: index, method: op.Method, to: to, amount: delta.Amount})

	e.events = append(e.events, &MetadataDeleted{
		AssetID:   op.AssetID,
		Round:     e.r.clock.Round(),
		Timestamp: e.timestamp,
	})
	return nil
}
