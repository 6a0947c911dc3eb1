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

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/osrm/openvm/pkg/memory/merkle"
)

// ErrTimestampOverflow indicates an execution too long for the configured
// timestamp counter width.  This aborts the whole run.
var ErrTimestampOverflow = errors.New("timestamp counter overflow")

// ErrOutOfBounds indicates an access outside the configured address space.
// This aborts the whole run.
var ErrOutOfBounds = errors.New("access outside configured address space")

// Controller is the central memory authority of one execution segment.  It
// issues timestamps, performs reads and writes against a "big flat array"
// image (untouched cells read as the zero word), records every operation in
// the access log and, for persistent configurations, keeps the equipartition
// Merkle tree in step with the image.
//
// Reads and writes are synchronous and totally ordered: instruction
// executors drive one controller from a single logical execution thread.
type Controller struct {
	cfg   Config
	clock uint64
	// Current memory image.  Absent cells hold the zero word.
	image map[Location]Word
	// Image as it stood at segment start, for boundary accounting.
	initial map[Location]Word
	log     *Log
	// Equipartition tree; nil for volatile configurations.
	tree *merkle.Tree
	// Root as it stood at segment start.
	initialDigest merkle.Digest
}

// NewController constructs a controller with an empty initial image.
func NewController(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	//
	var tree *merkle.Tree
	//
	if cfg.Persistent {
		var err error
		//
		if tree, err = merkle.NewTree(cfg.TreeHeight(), cfg.ChunkSize*cfg.WordSize); err != nil {
			return nil, err
		}
	}
	//
	p := &Controller{
		cfg:     cfg,
		image:   make(map[Location]Word),
		initial: make(map[Location]Word),
		log:     NewLog(),
		tree:    tree,
	}
	//
	if tree != nil {
		p.initialDigest = tree.Root()
	}
	//
	return p, nil
}

// Boot installs a claimed initial image (e.g. the final image of the
// previous segment of a continuation).  Booting is only permitted before
// any access has been performed.
func (p *Controller) Boot(image map[Location]Word) error {
	if p.clock != 0 || p.log.Len() != 0 {
		return errors.New("cannot boot controller after execution has started")
	}
	//
	for loc, word := range image {
		if err := p.checkBounds(loc.Space, loc.Address); err != nil {
			return err
		} else if uint(len(word)) != p.cfg.WordSize {
			return fmt.Errorf("malformed word %s at %s in initial image", word, loc)
		}
		//
		p.image[loc] = word.Clone()
		p.initial[loc] = word.Clone()
		//
		if p.tree != nil {
			leaf := p.leafIndex(loc)
			p.tree.SetLeaf(leaf, p.chunkData(leaf))
		}
	}
	//
	if p.tree != nil {
		p.initialDigest = p.tree.Root()
		// Booted leaves are the baseline, not segment writes
		p.tree.Checkpoint()
	}
	//
	return nil
}

// Config returns the configuration of this controller.
func (p *Controller) Config() Config {
	return p.cfg
}

// Timestamp returns the current value of the timestamp counter, i.e. the
// timestamp issued to the most recent operation.  Instruction executors
// embed this in their own trace rows to correlate with the access log.
func (p *Controller) Timestamp() uint64 {
	return p.clock
}

// Log returns the access log of this controller.
func (p *Controller) Log() *Log {
	return p.log
}

// Tree returns the equipartition tree, or nil for volatile configurations.
func (p *Controller) Tree() *merkle.Tree {
	return p.tree
}

// InitialDigest returns the Merkle root as it stood at segment start.  Only
// meaningful for persistent configurations.
func (p *Controller) InitialDigest() merkle.Digest {
	return p.initialDigest
}

// Read returns the word held at a given cell, i.e. the value of the most
// recent write, or the default (zero) word for a cell never initialised.
// The operation is timestamped and recorded.
func (p *Controller) Read(space Space, addr Address) (Word, AccessRecord, error) {
	if err := p.checkBounds(space, addr); err != nil {
		return nil, AccessRecord{}, err
	}
	//
	timestamp, err := p.tick()
	if err != nil {
		return nil, AccessRecord{}, err
	}
	//
	word := p.lookup(Location{space, addr})
	//
	record := AccessRecord{
		Space:     space,
		Address:   addr,
		Timestamp: timestamp,
		Kind:      Read,
		Word:      word,
		Previous:  word.Clone(),
	}
	//
	p.log.Append(record)
	//
	return word.Clone(), record, nil
}

// Write replaces the word held at a given cell, returning the prior value.
// The operation is timestamped and recorded and, for persistent
// configurations, the corresponding Merkle leaf is updated and its chunk
// marked dirty for later root recomputation.
func (p *Controller) Write(space Space, addr Address, word Word) (Word, AccessRecord, error) {
	if err := p.checkBounds(space, addr); err != nil {
		return nil, AccessRecord{}, err
	} else if uint(len(word)) != p.cfg.WordSize {
		return nil, AccessRecord{}, fmt.Errorf("malformed word (%d limbs, expected %d)", len(word), p.cfg.WordSize)
	}
	//
	timestamp, err := p.tick()
	if err != nil {
		return nil, AccessRecord{}, err
	}
	//
	var (
		loc      = Location{space, addr}
		previous = p.lookup(loc)
	)
	//
	p.image[loc] = word.Clone()
	//
	if p.tree != nil {
		leaf := p.leafIndex(loc)
		p.tree.SetLeaf(leaf, p.chunkData(leaf))
	}
	//
	record := AccessRecord{
		Space:     space,
		Address:   addr,
		Timestamp: timestamp,
		Kind:      Write,
		Word:      word.Clone(),
		Previous:  previous,
	}
	//
	p.log.Append(record)
	//
	return previous.Clone(), record, nil
}

// Image returns a snapshot of the current memory image.
func (p *Controller) Image() map[Location]Word {
	return cloneImage(p.image)
}

// InitialImage returns a snapshot of the image as it stood at segment
// start.
func (p *Controller) InitialImage() map[Location]Word {
	return cloneImage(p.initial)
}

// InitialWord returns the word a given cell held at segment start.
func (p *Controller) InitialWord(loc Location) Word {
	if word, ok := p.initial[loc]; ok {
		return word.Clone()
	}
	//
	return ZeroWord(p.cfg.WordSize)
}

// Issue the next timestamp.  Timestamps start at 1, with 0 reserved for the
// initial memory state.
func (p *Controller) tick() (uint64, error) {
	if p.clock >= p.cfg.MaxTimestamp() {
		return 0, ErrTimestampOverflow
	}
	//
	p.clock++
	//
	return p.clock, nil
}

func (p *Controller) checkBounds(space Space, addr Address) error {
	if uint64(space) >= uint64(1)<<p.cfg.SpaceBits || uint64(addr) >= uint64(1)<<p.cfg.AddressBits {
		return fmt.Errorf("%w: %s", ErrOutOfBounds, Location{space, addr})
	}
	//
	return nil
}

func (p *Controller) lookup(loc Location) Word {
	if word, ok := p.image[loc]; ok {
		return word.Clone()
	}
	//
	return ZeroWord(p.cfg.WordSize)
}

// LeafOf returns the equipartition leaf covering a given cell.
func (p *Controller) LeafOf(loc Location) uint64 {
	return p.leafIndex(loc)
}

func (p *Controller) leafIndex(loc Location) uint64 {
	global := uint64(loc.Space)<<p.cfg.AddressBits | uint64(loc.Address)
	//
	return global / uint64(p.cfg.ChunkSize)
}

// ChunkData flattens the words of a given chunk (in address order) into the
// field elements committed at its leaf.
func (p *Controller) chunkData(leaf uint64) []fr.Element {
	var (
		chunk = make([]fr.Element, 0, p.cfg.ChunkSize*p.cfg.WordSize)
		base  = leaf * uint64(p.cfg.ChunkSize)
	)
	//
	for i := uint64(0); i < uint64(p.cfg.ChunkSize); i++ {
		var (
			global = base + i
			space  = Space(global >> p.cfg.AddressBits)
			addr   = Address(global & ((uint64(1) << p.cfg.AddressBits) - 1))
		)
		//
		chunk = append(chunk, p.lookup(Location{space, addr})...)
	}
	//
	return chunk
}

// ChunkWords returns the current words of a given chunk, flattened in
// address order.  Used by the continuation audit.
func (p *Controller) ChunkWords(leaf uint64) []fr.Element {
	return p.chunkData(leaf)
}

// InitialChunkWords returns the words a given chunk held at segment start,
// flattened in address order.
func (p *Controller) InitialChunkWords(leaf uint64) []fr.Element {
	var (
		chunk = make([]fr.Element, 0, p.cfg.ChunkSize*p.cfg.WordSize)
		base  = leaf * uint64(p.cfg.ChunkSize)
	)
	//
	for i := uint64(0); i < uint64(p.cfg.ChunkSize); i++ {
		var (
			global = base + i
			space  = Space(global >> p.cfg.AddressBits)
			addr   = Address(global & ((uint64(1) << p.cfg.AddressBits) - 1))
		)
		//
		chunk = append(chunk, p.InitialWord(Location{space, addr})...)
	}
	//
	return chunk
}

func cloneImage(image map[Location]Word) map[Location]Word {
	clone := make(map[Location]Word, len(image))
	//
	for loc, word := range image {
		clone[loc] = word.Clone()
	}
	//
	return clone
}
