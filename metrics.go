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

// Metrics receives registry and reader measurements.
// Implementations must be safe for concurrent use.
type Metrics interface {
	// OperationExecuted is called once per executed operation with
	// the error it failed with, if any.
	OperationExecuted(method Method, err error)
	BatchCommitted(operations int, bytesStored uint64)
	BatchRolledBack()
	RentCollected(amount uint64)
	RentRefunded(amount uint64)
	DriftDetected()
}

type nopMetrics struct{}

var _ Metrics = nopMetrics{}

func (nopMetrics) OperationExecuted(Method, error) {}
func (nopMetrics) BatchCommitted(int, uint64)      {}
func (nopMetrics) BatchRolledBack()                {}
func (nopMetrics) RentCollected(uint64)            {}
func (nopMetrics) RentRefunded(uint64)             {}
func (nopMetrics) DriftDetected()                  {}
