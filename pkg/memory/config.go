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
	"fmt"
	"math/bits"
)

// Config fixes the shape of one memory controller.  All fields are agreed
// at machine construction; for continuation-enabled runs they must also
// agree between the segments of one logical run.
type Config struct {
	// WordSize is the number of field elements per word.
	WordSize uint
	// SpaceBits bounds address-space tags to [0, 2^SpaceBits).
	SpaceBits uint
	// AddressBits bounds addresses to [0, 2^AddressBits).
	AddressBits uint
	// TimestampBits bounds the timestamp counter.  An execution long enough
	// to exhaust the counter is fatal.
	TimestampBits uint
	// Persistent selects the Merkle-committed memory image required for
	// continuations.  Volatile runs use a plain boundary table instead.
	Persistent bool
	// ChunkSize is the equipartition constant: the number of consecutive
	// words per Merkle leaf.  Must be a power of two.  Only meaningful for
	// persistent memory.
	ChunkSize uint
}

// Validate checks this configuration for internal consistency.  Violations
// are configuration errors: fatal, non-retryable, and surfaced before any
// execution or proving work starts.
func (c Config) Validate() error {
	switch {
	case c.WordSize == 0:
		return fmt.Errorf("word size cannot be zero")
	case c.SpaceBits == 0 || c.SpaceBits > 32:
		return fmt.Errorf("space width %d outside supported range [1,32]", c.SpaceBits)
	case c.AddressBits == 0 || c.AddressBits > 40:
		return fmt.Errorf("address width %d outside supported range [1,40]", c.AddressBits)
	case c.TimestampBits == 0 || c.TimestampBits > 64:
		return fmt.Errorf("timestamp width %d outside supported range [1,64]", c.TimestampBits)
	}
	//
	if c.Persistent {
		switch {
		case c.ChunkSize == 0 || bits.OnesCount(c.ChunkSize) != 1:
			return fmt.Errorf("chunk size %d is not a power of two", c.ChunkSize)
		case uint(bits.TrailingZeros(c.ChunkSize)) > c.AddressBits:
			return fmt.Errorf("chunk size %d exceeds one address space", c.ChunkSize)
		case c.TreeHeight() > 36:
			return fmt.Errorf("equipartition tree height %d too large", c.TreeHeight())
		}
	}
	//
	return nil
}

// MaxTimestamp returns the largest timestamp the counter may reach before
// overflowing.
func (c Config) MaxTimestamp() uint64 {
	if c.TimestampBits == 64 {
		return ^uint64(0)
	}
	//
	return (uint64(1) << c.TimestampBits) - 1
}

// KeyBits returns the limb widths of the (space, address, timestamp) sort
// key, little-limb-first: the timestamp is least significant and the space
// most significant.
func (c Config) KeyBits() []uint {
	return []uint{c.TimestampBits, c.AddressBits, c.SpaceBits}
}

// TreeHeight returns the depth of the equipartition Merkle tree: one leaf
// per chunk of the full (space, address) index space.
func (c Config) TreeHeight() uint {
	return c.SpaceBits + c.AddressBits - uint(bits.TrailingZeros(c.ChunkSize))
}
