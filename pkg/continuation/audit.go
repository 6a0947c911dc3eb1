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
package continuation

import (
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/osrm/openvm/pkg/trace"
)

// AuditRecord accounts for one equipartition chunk touched during a
// segment: the words it held under the initial digest, the words it holds
// under the final digest, and the timestamp of the last write into it.  On
// the bus, the initial words are produced at timestamp zero and the final
// words consumed back at the last timestamp, so a chunk's whole history
// reconciles against the access log.  Chunks never touched contribute no
// record: their subtree hashes carry over unchanged, so untouched memory is
// neither free to forge nor required to be replayed.
type AuditRecord struct {
	// Leaf index of the chunk within the equipartition tree.
	Leaf uint64
	// Initial words of the chunk, flattened in address order.
	Initial []fr.Element
	// Final words of the chunk, flattened in address order.
	Final []fr.Element
	// Timestamp of the last write into this chunk.
	LastTimestamp uint64
}

// AuditChip emits one trace row per touched chunk.
type AuditChip struct {
	records []AuditRecord
	// Field elements per chunk.
	chunkElems uint
}

// NewAuditChip constructs an audit chip over a set of records.
func NewAuditChip(records []AuditRecord, chunkElems uint) *AuditChip {
	return &AuditChip{records, chunkElems}
}

// Records returns the audit records, in ascending leaf order.
func (p *AuditChip) Records() []AuditRecord {
	return p.records
}

// Name implementation for the schema.Chip interface.
func (p *AuditChip) Name() string {
	return "memory.audit"
}

// Width implementation for the schema.Chip interface.  Columns are: leaf
// index, initial chunk words, final chunk words, last write timestamp.
func (p *AuditChip) Width() uint {
	return 2 + 2*p.chunkElems
}

// Trace implementation for the schema.Chip interface.
func (p *AuditChip) Trace() (*trace.Matrix, error) {
	matrix := trace.NewMatrix(p.Width())
	//
	for _, r := range p.records {
		row := trace.OfUint64(r.Leaf)
		row = append(row, r.Initial...)
		row = append(row, r.Final...)
		row = append(row, trace.OfUint64(r.LastTimestamp)...)
		//
		matrix.AppendRow(row...)
	}
	//
	return matrix, nil
}
