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
	"errors"
	"fmt"

	"github.com/osrm/openvm/pkg/memory"
	"github.com/osrm/openvm/pkg/memory/merkle"
)

// ErrChunkSizeMismatch indicates that two segments of one logical run
// disagree on the equipartition constant (or word size).  This is a
// configuration error: fatal and non-retryable.
var ErrChunkSizeMismatch = errors.New("memory layout differs between segments")

// ErrBrokenLink indicates that a segment's claimed initial digest does not
// match its predecessor's final digest.
var ErrBrokenLink = errors.New("segment boundary digests do not match")

// Result captures everything a finalised segment hands to its successor and
// to the proof-assembly layer: the pair of digests bounding the segment,
// the audit records proving the delta between them, and (for volatile runs)
// the boundary table standing in for the digests.
type Result struct {
	// Index of this segment within the logical run.
	Index uint
	// Configured memory layout, carried for cross-segment agreement checks.
	ChunkSize uint
	WordSize  uint
	// Persistent signals whether the digests below are meaningful.
	Persistent bool
	// InitialDigest is the claimed memory state at segment start.
	InitialDigest merkle.Digest
	// FinalDigest is the committed memory state at segment end.
	FinalDigest merkle.Digest
	// Audit records for every chunk touched during the segment.
	Audit []AuditRecord
	// Boundary table (volatile runs only).
	Boundary []Boundary
	// Commitment over the boundary table (volatile runs only).
	Commitment [32]byte
	// Final image, carried forward as the next segment's claimed initial
	// state.
	image map[memory.Location]memory.Word
}

// Image returns the final memory image of this segment.
func (r *Result) Image() map[memory.Location]memory.Word {
	clone := make(map[memory.Location]memory.Word, len(r.image))
	//
	for loc, word := range r.image {
		clone[loc] = word.Clone()
	}
	//
	return clone
}

// Segment is one provable chunk of execution between two continuation
// boundaries.  It owns the memory controller for the duration of the
// segment and, on finalisation, reconciles the boundary state.
type Segment struct {
	index     uint
	ctrl      *memory.Controller
	finalised bool
}

// Begin a segment.  The first segment of a run passes nil for prev and
// starts from an empty image; subsequent segments boot from their
// predecessor's final image, whose digest becomes this segment's claimed
// initial digest.  Changing the memory layout between segments is a
// configuration error.
func Begin(cfg memory.Config, prev *Result) (*Segment, error) {
	var index uint
	//
	if prev != nil {
		if prev.ChunkSize != cfg.ChunkSize || prev.WordSize != cfg.WordSize {
			return nil, fmt.Errorf("%w: chunk %d/%d, word %d/%d", ErrChunkSizeMismatch,
				prev.ChunkSize, cfg.ChunkSize, prev.WordSize, cfg.WordSize)
		}
		//
		index = prev.Index + 1
	}
	//
	ctrl, err := memory.NewController(cfg)
	if err != nil {
		return nil, err
	}
	//
	if prev != nil {
		if err := ctrl.Boot(prev.Image()); err != nil {
			return nil, err
		}
	}
	//
	return &Segment{index: index, ctrl: ctrl}, nil
}

// Index returns the position of this segment within the logical run.
func (p *Segment) Index() uint {
	return p.index
}

// Controller returns the memory controller owned by this segment.
func (p *Segment) Controller() *memory.Controller {
	return p.ctrl
}

// Finalize reconciles the boundary state of this segment: all dirty chunks
// are rehashed, affected Merkle paths recomputed, and the audit records
// derived.  A segment finalises exactly once.
func (p *Segment) Finalize() (*Result, error) {
	if p.finalised {
		return nil, errors.New("segment already finalised")
	}
	//
	p.finalised = true
	//
	cfg := p.ctrl.Config()
	//
	result := &Result{
		Index:      p.index,
		ChunkSize:  cfg.ChunkSize,
		WordSize:   cfg.WordSize,
		Persistent: cfg.Persistent,
		image:      p.ctrl.Image(),
	}
	//
	if cfg.Persistent {
		tree := p.ctrl.Tree()
		result.InitialDigest = p.ctrl.InitialDigest()
		result.FinalDigest = tree.Root()
		result.Audit = p.auditRecords()
	} else {
		result.Boundary = BuildBoundaryTable(p.ctrl.InitialImage(), p.ctrl.Image(), cfg.WordSize)
		result.Commitment = CommitBoundaryTable(result.Boundary)
	}
	//
	return result, nil
}

// Derive the audit records for all chunks touched during this segment.
func (p *Segment) auditRecords() []AuditRecord {
	var (
		records   []AuditRecord
		lastWrite = make(map[uint64]uint64)
	)
	// Determine last write timestamp per chunk
	for _, r := range p.ctrl.Log().Records() {
		if r.Kind == memory.Write {
			leaf := p.ctrl.LeafOf(r.Location())
			lastWrite[leaf] = max(lastWrite[leaf], r.Timestamp)
		}
	}
	//
	for _, leaf := range p.ctrl.Tree().Touched() {
		records = append(records, AuditRecord{
			Leaf:          leaf,
			Initial:       p.ctrl.InitialChunkWords(leaf),
			Final:         p.ctrl.ChunkWords(leaf),
			LastTimestamp: lastWrite[leaf],
		})
	}
	//
	return records
}
