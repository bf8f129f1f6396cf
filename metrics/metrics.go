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

package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/onflow/metabox"
)

const (
	namespace = "metabox"

	registrySubsystem = "registry"
	readerSubsystem   = "reader"

	methodLabelKey = "method"
	resultLabelKey = "result"
)

// Operation results.
const (
	resultOK       = "ok"
	resultUser     = "user_error"
	resultExternal = "external_error"
	resultFatal    = "fatal_error"
)

// RegistryMetrics implements metabox.Metrics with prometheus collectors.
type RegistryMetrics struct {
	operations *prometheus.CounterVec

	batchesCommitted  prometheus.Counter
	batchesRolledBack prometheus.Counter
	batchSize         prometheus.Histogram
	bytesStored       prometheus.Counter

	rentCollected prometheus.Counter
	rentRefunded  prometheus.Counter

	drift prometheus.Counter
}

var _ metabox.Metrics = &RegistryMetrics{}

// NewRegistryMetrics returns metrics registered with reg.
// Nil reg uses the default prometheus registerer.
func NewRegistryMetrics(reg prometheus.Registerer) *RegistryMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	var (
		operations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: registrySubsystem,
			Name:      "operations_total",
			Help:      "Number of executed registry operations",
		}, []string{methodLabelKey, resultLabelKey})

		batchesCommitted = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: registrySubsystem,
			Name:      "batches_committed_total",
			Help:      "Number of committed batches",
		})

		batchesRolledBack = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: registrySubsystem,
			Name:      "batches_rolled_back_total",
			Help:      "Number of rolled back batches",
		})

		batchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: registrySubsystem,
			Name:      "batch_operations",
			Help:      "Number of operations in committed batches",
			Buckets:   prometheus.LinearBuckets(1, 3, metabox.MaxGroupSize/3+1),
		})

		bytesStored = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: registrySubsystem,
			Name:      "bytes_stored_total",
			Help:      "Number of record bytes written to the ledger",
		})

		rentCollected = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: registrySubsystem,
			Name:      "rent_collected_total",
			Help:      "Rent paid into the registry account",
		})

		rentRefunded = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: registrySubsystem,
			Name:      "rent_refunded_total",
			Help:      "Rent refunded from the registry account",
		})

		drift = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: readerSubsystem,
			Name:      "drift_detected_total",
			Help:      "Number of paginated reads that observed a concurrent modification",
		})
	)

	reg.MustRegister(
		operations,
		batchesCommitted,
		batchesRolledBack,
		batchSize,
		bytesStored,
		rentCollected,
		rentRefunded,
		drift,
	)

	return &RegistryMetrics{
		operations:        operations,
		batchesCommitted:  batchesCommitted,
		batchesRolledBack: batchesRolledBack,
		batchSize:         batchSize,
		bytesStored:       bytesStored,
		rentCollected:     rentCollected,
		rentRefunded:      rentRefunded,
		drift:             drift,
	}
}

func resultOf(err error) string {
	if err == nil {
		return resultOK
	}
	var fatalError *metabox.FatalError
	if errors.As(err, &fatalError) {
		return resultFatal
	}
	var externalError *metabox.ExternalError
	if errors.As(err, &externalError) {
		return resultExternal
	}
	return resultUser
}

func (m *RegistryMetrics) OperationExecuted(method metabox.Method, err error) {
	m.operations.With(prometheus.Labels{
		methodLabelKey: method.String(),
		resultLabelKey: resultOf(err),
	}).Inc()
}

func (m *RegistryMetrics) BatchCommitted(operations int, bytesStored uint64) {
	m.batchesCommitted.Inc()
	m.batchSize.Observe(float64(operations))
	m.bytesStored.Add(float64(bytesStored))
}

func (m *RegistryMetrics) BatchRolledBack() {
	m.batchesRolledBack.Inc()
}

func (m *RegistryMetrics) RentCollected(amount uint64) {
	m.rentCollected.Add(float64(amount))
}

func (m *RegistryMetrics) RentRefunded(amount uint64) {
	m.rentRefunded.Add(float64(amount))
}

func (m *RegistryMetrics) DriftDetected() {
	m.drift.Inc()
}
