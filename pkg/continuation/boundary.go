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
	"encoding/binary"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/osrm/openvm/pkg/memory"
)

// Boundary records the initial and final word of one cell touched during a
// volatile (single-segment) run.  Volatile runs have no Merkle commitment;
// the sorted boundary table plays the digest's role instead.
type Boundary struct {
	Location memory.Location
	Initial  memory.Word
	Final    memory.Word
}

// BuildBoundaryTable derives the boundary table of a segment from its
// initial and final images, sorted by (space, address) for determinism.
func BuildBoundaryTable(initial map[memory.Location]memory.Word, final map[memory.Location]memory.Word,
	wordSize uint) []Boundary {
	locations := make(map[memory.Location]bool)
	//
	for loc := range initial {
		locations[loc] = true
	}
	//
	for loc := range final {
		locations[loc] = true
	}
	//
	table := make([]Boundary, 0, len(locations))
	//
	for loc := range locations {
		entry := Boundary{loc, initial[loc], final[loc]}
		//
		if entry.Initial == nil {
			entry.Initial = memory.ZeroWord(wordSize)
		}
		//
		if entry.Final == nil {
			entry.Final = memory.ZeroWord(wordSize)
		}
		//
		table = append(table, entry)
	}
	//
	sort.Slice(table, func(i, j int) bool {
		l, r := table[i].Location, table[j].Location
		//
		if l.Space != r.Space {
			return l.Space < r.Space
		}
		//
		return l.Address < r.Address
	})
	//
	return table
}

// CommitBoundaryTable commits a boundary table into a single hash.  This
// stands in for the Merkle digest in volatile mode, giving tests (and the
// proof-assembly layer) a stable identity for the table.
func CommitBoundaryTable(table []Boundary) [32]byte {
	hasher, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	//
	var buf [12]byte
	//
	for _, entry := range table {
		binary.BigEndian.PutUint32(buf[:4], uint32(entry.Location.Space))
		binary.BigEndian.PutUint64(buf[4:], uint64(entry.Location.Address))
		hasher.Write(buf[:])
		//
		for i := range entry.Initial {
			bytes := entry.Initial[i].Bytes()
			hasher.Write(bytes[:])
		}
		//
		for i := range entry.Final {
			bytes := entry.Final[i].Bytes()
			hasher.Write(bytes[:])
		}
	}
	//
	var commitment [32]byte
	copy(commitment[:], hasher.Sum(nil))
	//
	return commitment
}
