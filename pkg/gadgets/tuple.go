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
package gadgets

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/osrm/openvm/pkg/rangecheck"
)

// TupleComparator certifies strict lexicographic ordering between two
// limb-decomposed tuples of equal shape.  Tuples are little-limb-first, so
// the most significant limb is the last.  Limb widths are declared up front
// and may differ per position.
//
// A comparison is witnessed with a kind of bit multiplexing: a selector bit
// per limb, of which at most one is set, identifying the most significant
// limb at which the two tuples differ.  The absolute difference at that limb
// (minus one, certifying strictness) is decomposed into chunks no wider than
// the range checker's maximum width, and every chunk is certified through
// the bounded-value lookup service.  Padding chunk slots certify zero, so
// every comparison issues exactly the same number of lookups regardless of
// which limb differed.
type TupleComparator struct {
	limbBits []uint
	// Chunk widths per limb, least significant chunk first.
	chunks [][]uint
	// Largest chunk count across all limbs.
	maxChunks uint
	rc        *rangecheck.Checker
}

// Witness carries the advice values certifying one comparison: the one-hot
// selector bits, the range-checked difference chunks, and the comparison
// outcome itself.
type Witness struct {
	// Less holds the comparison outcome (x < y).
	Less bool
	// Selector holds the one-hot limb selector.  All bits clear means the
	// tuples are equal.
	Selector []bool
	// DeltaChunks holds the decomposed strict difference at the selected
	// limb, least significant chunk first, padded with zeros.
	DeltaChunks []uint64
}

// NewTupleComparator constructs a comparator for tuples of the given limb
// shape, certifying differences through the given range checker.
// Comparisons need at least one limb, so a zero-length shape is rejected.
func NewTupleComparator(limbBits []uint, rc *rangecheck.Checker) (*TupleComparator, error) {
	if len(limbBits) == 0 {
		return nil, errors.New("tuple comparator requires at least one limb")
	}
	//
	var (
		chunks    = make([][]uint, len(limbBits))
		maxChunks = uint(0)
	)
	//
	for i, width := range limbBits {
		if width == 0 || width > 64 {
			return nil, fmt.Errorf("limb %d has unsupported width %d", i, width)
		}
		//
		chunks[i] = splitWidth(width, rc.MaxBits())
		maxChunks = max(maxChunks, uint(len(chunks[i])))
	}
	//
	return &TupleComparator{limbBits, chunks, maxChunks, rc}, nil
}

// AuxWidth returns the number of advice columns one comparison contributes
// to a trace row: one selector bit per limb, plus the difference chunks.
func (p *TupleComparator) AuxWidth() uint {
	return uint(len(p.limbBits)) + p.maxChunks
}

// Compare two tuples, producing the witness certifying the outcome.  Both
// tuples must match the declared shape, and every limb must fit its declared
// width.
func (p *TupleComparator) Compare(x []uint64, y []uint64) (Witness, error) {
	if len(x) != len(p.limbBits) || len(y) != len(p.limbBits) {
		return Witness{}, fmt.Errorf("malformed tuple (expected %d limbs, got %d/%d)", len(p.limbBits), len(x), len(y))
	}
	//
	for i, width := range p.limbBits {
		if width < 64 && (x[i] >= 1<<width || y[i] >= 1<<width) {
			return Witness{}, fmt.Errorf("limb %d exceeds declared width %d", i, width)
		}
	}
	//
	witness := Witness{
		Selector:    make([]bool, len(p.limbBits)),
		DeltaChunks: make([]uint64, p.maxChunks),
	}
	// Find most significant differing limb
	for i := len(x) - 1; i >= 0; i-- {
		if x[i] == y[i] {
			continue
		}
		// Certify strict difference at limb i
		witness.Selector[i] = true
		witness.Less = x[i] < y[i]
		//
		delta := x[i] - y[i] - 1
		if witness.Less {
			delta = y[i] - x[i] - 1
		}
		//
		p.certify(delta, p.chunks[i], witness.DeltaChunks)
		//
		return witness, nil
	}
	// Tuples are equal; certify a zero difference so this comparison still
	// issues a uniform number of lookups.
	p.certify(0, nil, witness.DeltaChunks)
	//
	return witness, nil
}

// CompareRows is the transition-mode evaluation: it compares the key tuple
// of one trace row against the key tuple of the next.  The certification is
// identical to Compare; the distinction matters only to the constraint
// system, where the two tuples are drawn from adjacent rows rather than one.
func (p *TupleComparator) CompareRows(prev []uint64, next []uint64) (Witness, error) {
	return p.Compare(prev, next)
}

// Columns flattens this witness into trace cells: selector bits first, then
// difference chunks.
func (w Witness) Columns() []fr.Element {
	cells := make([]fr.Element, 0, len(w.Selector)+len(w.DeltaChunks))
	//
	for _, bit := range w.Selector {
		var cell fr.Element
		if bit {
			cell.SetOne()
		}
		//
		cells = append(cells, cell)
	}
	//
	for _, chunk := range w.DeltaChunks {
		var cell fr.Element
		cell.SetUint64(chunk)
		cells = append(cells, cell)
	}
	//
	return cells
}

// Certify a difference value by decomposing it into the given chunk widths,
// requesting one bounded-value check per chunk.  Chunk slots beyond the
// limb's own decomposition certify zero at the maximum width, keeping the
// lookup count uniform across rows.
func (p *TupleComparator) certify(delta uint64, widths []uint, out []uint64) {
	i := 0
	//
	for _, width := range widths {
		chunk := delta & ((1 << width) - 1)
		out[i] = chunk
		p.rc.RequestCheck(chunk, width)
		delta >>= width
		i++
	}
	//
	for ; i < len(out); i++ {
		out[i] = 0
		p.rc.RequestCheck(0, p.rc.MaxBits())
	}
}

// Split a limb width into chunks no wider than the range checker's maximum,
// least significant chunk first.
func splitWidth(width uint, maxBits uint) []uint {
	var widths []uint
	//
	for width > maxBits {
		widths = append(widths, maxBits)
		width -= maxBits
	}
	//
	return append(widths, width)
}
