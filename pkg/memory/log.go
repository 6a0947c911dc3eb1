// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package memory

// Log is the append-only sequence of access records for one execution
// segment.  The controller owns it exclusively during execution; once
// execution finishes, it is consumed (read-only) by the offline consistency
// check.
type Log struct {
	records []AccessRecord
}

// NewLog constructs an empty access log.
func NewLog() *Log {
	return &Log{}
}

// Append a record to this log.
func (p *Log) Append(record AccessRecord) {
	p.records = append(p.records, record)
}

// Len returns the number of records in this log.
func (p *Log) Len() uint {
	return uint(len(p.records))
}

// Records returns the records of this log, in execution order.  The
// returned slice must not be mutated.
func (p *Log) Records() []AccessRecord {
	return p.records
}

// Rotate clears this log at a segment boundary, returning the records of
// the closing segment.
func (p *Log) Rotate() []AccessRecord {
	records := p.records
	p.records = nil
	//
	return records
}
