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

import "fmt"

// Space is a small integer tag partitioning the address space into disjoint
// regions (e.g. registers versus heap).  Cells in distinct spaces never
// alias, even at the same address.
type Space uint32

// Address is an integer offset, unique only together with its Space.
type Address uint64

// Location identifies one memory cell.
type Location struct {
	Space   Space
	Address Address
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Space, l.Address)
}

// Kind distinguishes the two primitive memory operations.
type Kind uint8

const (
	// Read returns the value of the most recent write to a cell (or the
	// default word if the cell was never written).
	Read Kind = iota
	// Write replaces the value of a cell.
	Write
)

func (k Kind) String() string {
	if k == Write {
		return "write"
	}
	//
	return "read"
}

// AccessRecord describes one primitive memory operation.  Records are
// created exactly once by the controller, appended to the access log, and
// never mutated afterwards.  The Previous word (which, for reads, simply
// repeats Word) supports undo and boundary accounting.
type AccessRecord struct {
	Space     Space
	Address   Address
	Timestamp uint64
	Kind      Kind
	// Word holds the value read, or the value written.
	Word Word
	// Previous holds the value the cell held before this operation.
	Previous Word
}

// Location returns the cell this record touched.
func (r *AccessRecord) Location() Location {
	return Location{r.Space, r.Address}
}

// Key returns the sort key of this record as a little-limb-first tuple
// (timestamp, address, space), matching the shape declared by
// Config.KeyBits.
func (r *AccessRecord) Key() []uint64 {
	return []uint64{r.Timestamp, uint64(r.Address), uint64(r.Space)}
}
