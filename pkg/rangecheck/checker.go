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
package rangecheck

import (
	"fmt"
	"math/bits"
	"sync/atomic"

	"github.com/osrm/openvm/pkg/schema"
	"github.com/osrm/openvm/pkg/trace"
)

// MaxSupportedBits is a hard ceiling on the configurable bit-width, since the
// checker materialises one counter (and ultimately one trace row) per value
// below 2^(maxBits+1).
const MaxSupportedBits = 29

// Checker is a shared lookup table proving claims of the form "value v fits
// in b bits", for any b up to a configured maximum.  Each such claim
// increments an occurrence counter at index 2^b + v; offsetting by 2^b
// guarantees no index collision between different widths.  Index 0 is
// reserved as a "no check" row, giving padding rows in dependent chips a
// well-defined zero-cost lookup target.
//
// Counters are plain atomics so that multiple trace-generating chips can
// request checks concurrently.  The multiset argument reconciling requested
// counts against the emitted table is delegated to the backend; this chip is
// responsible only for the count bookkeeping.
type Checker struct {
	bus     schema.Bus
	maxBits uint
	counts  []atomic.Uint32
	// Set once all dependent chips have finalised their traces.  Further
	// requests after this point indicate a build-order violation.
	frozen atomic.Bool
}

// New constructs a checker accepting checks for widths 1 up to maxBits
// inclusive.  The count table is allocated once, here, and reused (via
// Clear) across proof attempts.
func New(bus schema.Bus, maxBits uint) (*Checker, error) {
	if maxBits == 0 || maxBits > MaxSupportedBits {
		return nil, fmt.Errorf("range checker bit-width %d outside supported range [1,%d]", maxBits, MaxSupportedBits)
	}
	//
	return &Checker{
		bus:     bus,
		maxBits: maxBits,
		counts:  make([]atomic.Uint32, 1<<(maxBits+1)),
	}, nil
}

// Bus returns the lookup bus this checker reconciles over.
func (p *Checker) Bus() schema.Bus {
	return p.bus
}

// MaxBits returns the largest bit-width this checker accepts.
func (p *Checker) MaxBits() uint {
	return p.maxBits
}

// RequestCheck asserts 0 <= value < 2^bits by incrementing the occurrence
// counter at index 2^bits + value.  Safe for concurrent use.  Requesting a
// width above the configured maximum, or requesting after the checker has
// been frozen, is a build error and panics.
func (p *Checker) RequestCheck(value uint64, bits uint) {
	if bits == 0 || bits > p.maxBits {
		panic(fmt.Sprintf("range check width %d outside configured range [1,%d]", bits, p.maxBits))
	} else if p.frozen.Load() {
		panic("range check requested after checker was frozen")
	}
	//
	index := (uint64(1) << bits) + value
	if index >= uint64(len(p.counts)) {
		panic(fmt.Sprintf("range check index exceeded: %d >= %d", index, len(p.counts)))
	}
	//
	p.counts[index].Add(1)
}

// Count returns the number of checks requested so far for a given
// (value, bits) pair.
func (p *Checker) Count(value uint64, bits uint) uint32 {
	return p.counts[(uint64(1)<<bits)+value].Load()
}

// TotalCount returns the total number of checks requested so far, across all
// widths.
func (p *Checker) TotalCount() uint64 {
	var total uint64
	//
	for i := range p.counts {
		total += uint64(p.counts[i].Load())
	}
	//
	return total
}

// Freeze bars any further check requests.  Called exactly once per proving
// pass, after every dependent chip has finalised its trace and before this
// chip's own trace is generated.
func (p *Checker) Freeze() {
	p.frozen.Store(true)
}

// Frozen reports whether this checker has been frozen.
func (p *Checker) Frozen() bool {
	return p.frozen.Load()
}

// Clear resets all counters (and the frozen flag), allowing the checker to
// be reused for another proving attempt without reallocation.
func (p *Checker) Clear() {
	for i := range p.counts {
		p.counts[i].Store(0)
	}
	//
	p.frozen.Store(false)
}

// Name implementation for the schema.Chip interface.
func (p *Checker) Name() string {
	return "rangecheck"
}

// Width implementation for the schema.Chip interface.  Columns are: value,
// bits, multiplicity.
func (p *Checker) Width() uint {
	return 3
}

// Trace implementation for the schema.Chip interface.  One row is emitted
// per table index: the reserved no-check row at index 0, then all valid
// (bits, value) pairs with their accumulated multiplicities.  The checker
// must be frozen first; emitting the table whilst counts can still move
// would unbalance the lookup argument.
func (p *Checker) Trace() (*trace.Matrix, error) {
	if !p.frozen.Load() {
		panic("range checker trace generated before freeze")
	}
	//
	matrix := trace.NewMatrix(p.Width())
	//
	for i := range p.counts {
		value, width := decodeIndex(uint64(i))
		matrix.AppendRow(trace.OfUint64(value, uint64(width), uint64(p.counts[i].Load()))...)
	}
	//
	return matrix, nil
}

// Decode a table index back into its (value, bits) pair.  Indices 0 and 1
// precede the first valid band [2^1, 2^2) and decode as the no-check pair.
func decodeIndex(index uint64) (uint64, uint) {
	if index < 2 {
		return 0, 0
	}
	//
	width := uint(bits.Len64(index)) - 1
	//
	return index - (uint64(1) << width), width
}
