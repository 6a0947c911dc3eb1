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
package merkle

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr/mimc"
)

// Digest is the committed root of a memory image: a single field element.
type Digest = fr.Element

// Tree is a sparse, fixed-depth binary Merkle tree over an equipartition of
// the address space: leaf i commits (via a field-friendly hash) to the chunk
// of words at indices [i*chunkSize, (i+1)*chunkSize).  Only non-default
// nodes are materialised; a subtree which was never written hashes to a
// precomputed per-level default.
//
// Leaf updates are cheap: the new leaf hash is stored and its path marked
// stale, with interior nodes recomputed lazily by Root.  The tree also
// tracks which leaves have been touched since the last checkpoint, which is
// what the continuation audit consumes.
type Tree struct {
	height uint
	// Number of field elements per leaf chunk.
	chunkSize uint
	// Sparse node storage, one map per level.  Level 0 holds leaf hashes;
	// level height holds the root at index 0.
	levels []map[uint64]fr.Element
	// Default hash per level, covering all-zero subtrees.
	defaults []fr.Element
	// Leaves whose ancestors are stale and need recomputing.
	stale *bitset.BitSet
	// Leaves written since the last checkpoint.
	touched *bitset.BitSet
}

// NewTree constructs an all-default tree of the given height, committing to
// chunks of the given size.
func NewTree(height uint, chunkSize uint) (*Tree, error) {
	if height == 0 || height > 36 {
		return nil, fmt.Errorf("tree height %d outside supported range [1,36]", height)
	} else if chunkSize == 0 {
		return nil, fmt.Errorf("chunk size cannot be zero")
	}
	//
	var (
		levels   = make([]map[uint64]fr.Element, height+1)
		defaults = make([]fr.Element, height+1)
	)
	//
	for i := range levels {
		levels[i] = make(map[uint64]fr.Element)
	}
	// Default leaf commits to the all-zero chunk
	defaults[0] = HashChunk(make([]fr.Element, chunkSize))
	//
	for i := uint(1); i <= height; i++ {
		defaults[i] = Compress(defaults[i-1], defaults[i-1])
	}
	//
	return &Tree{
		height:    height,
		chunkSize: chunkSize,
		levels:    levels,
		defaults:  defaults,
		stale:     bitset.New(64),
		touched:   bitset.New(64),
	}, nil
}

// Height returns the depth of this tree.
func (p *Tree) Height() uint {
	return p.height
}

// ChunkSize returns the number of field elements per leaf chunk.
func (p *Tree) ChunkSize() uint {
	return p.chunkSize
}

// Leaves returns the number of leaves in this tree.
func (p *Tree) Leaves() uint64 {
	return uint64(1) << p.height
}

// SetLeaf updates the chunk committed at a given leaf, marking the leaf
// dirty.  The root is not recomputed until requested.
func (p *Tree) SetLeaf(leaf uint64, chunk []fr.Element) {
	if leaf >= p.Leaves() {
		panic(fmt.Sprintf("leaf %d out of bounds", leaf))
	} else if uint(len(chunk)) != p.chunkSize {
		panic(fmt.Sprintf("malformed chunk (%d elements, expected %d)", len(chunk), p.chunkSize))
	}
	//
	p.levels[0][leaf] = HashChunk(chunk)
	p.stale.Set(uint(leaf))
	p.touched.Set(uint(leaf))
}

// Leaf returns the hash currently committed at a given leaf.
func (p *Tree) Leaf(leaf uint64) fr.Element {
	return p.node(0, leaf)
}

// Root recomputes all stale paths and returns the resulting digest.
func (p *Tree) Root() Digest {
	for leaf, ok := p.stale.NextSet(0); ok; leaf, ok = p.stale.NextSet(leaf + 1) {
		p.recomputePath(uint64(leaf))
	}
	//
	p.stale.ClearAll()
	//
	return p.node(p.height, 0)
}

// Touched returns the leaves written since the last checkpoint, in
// ascending order.
func (p *Tree) Touched() []uint64 {
	var leaves []uint64
	//
	for leaf, ok := p.touched.NextSet(0); ok; leaf, ok = p.touched.NextSet(leaf + 1) {
		leaves = append(leaves, uint64(leaf))
	}
	//
	return leaves
}

// Checkpoint clears the touched-leaf set, establishing the baseline against
// which the next segment's audit is computed.
func (p *Tree) Checkpoint() {
	p.touched.ClearAll()
}

// Recompute the ancestors of a given leaf, bottom up.
func (p *Tree) recomputePath(leaf uint64) {
	index := leaf
	//
	for level := uint(0); level < p.height; level++ {
		var (
			left   = p.node(level, index&^1)
			right  = p.node(level, index|1)
			parent = Compress(left, right)
		)
		//
		index >>= 1
		p.levels[level+1][index] = parent
	}
}

// Node returns the hash at a given position, falling back on the per-level
// default for positions never written.
func (p *Tree) node(level uint, index uint64) fr.Element {
	if hash, ok := p.levels[level][index]; ok {
		return hash
	}
	//
	return p.defaults[level]
}

// HashChunk commits a chunk of field elements into a single leaf hash.
func HashChunk(chunk []fr.Element) fr.Element {
	var (
		hasher = mimc.NewMiMC()
		out    fr.Element
	)
	//
	for i := range chunk {
		bytes := chunk[i].Bytes()
		//
		if _, err := hasher.Write(bytes[:]); err != nil {
			panic(err)
		}
	}
	//
	out.SetBytes(hasher.Sum(nil))
	//
	return out
}

// Compress is the fixed-arity (binary) compression function used for
// interior nodes.
func Compress(left fr.Element, right fr.Element) fr.Element {
	var (
		hasher     = mimc.NewMiMC()
		leftBytes  = left.Bytes()
		rightBytes = right.Bytes()
		out        fr.Element
	)
	//
	if _, err := hasher.Write(leftBytes[:]); err != nil {
		panic(err)
	}
	//
	if _, err := hasher.Write(rightBytes[:]); err != nil {
		panic(err)
	}
	//
	out.SetBytes(hasher.Sum(nil))
	//
	return out
}
