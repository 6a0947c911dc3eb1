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
package schema

import (
	"fmt"

	"github.com/osrm/openvm/pkg/trace"
)

// Chip is any component which contributes a table of rows to the overall
// proof.  Every chip declares a fixed row shape (its width) up front, whilst
// its height is determined only when the trace is generated.  Trace
// generation may fail (e.g. an inconsistent access log), in which case the
// whole segment is rejected.
type Chip interface {
	// Name returns a unique (within one machine) handle for this chip.
	Name() string
	// Width returns the number of columns in this chip's trace.
	Width() uint
	// Trace generates the trace rows for this chip.
	Trace() (*trace.Matrix, error)
}

// Role identifies the capability under which a chip is registered.  The role
// determines where in the build order a chip's trace is generated: executors
// run first (they produce the access log and other raw events), whilst
// periphery chips (consistency checkers, audit, lookup tables) run
// afterwards against the frozen logs.
type Role uint8

const (
	// Executor chips perform reads/writes through the memory controller
	// during execution, and generate their traces first.
	Executor Role = iota
	// Periphery chips consume resources owned by executor chips (access
	// logs, range-check counters) and generate their traces afterwards.
	Periphery
)

func (r Role) String() string {
	switch r {
	case Executor:
		return "executor"
	case Periphery:
		return "periphery"
	default:
		return fmt.Sprintf("role#%d", r)
	}
}

// Registry holds the chips of one machine, keyed by capability role.  Chips
// are resolved by role (or name) rather than by runtime type inspection, and
// insertion order is preserved so that trace and constraint ordering is
// deterministic across runs.
type Registry struct {
	chips []registration
	index map[string]uint
}

type registration struct {
	role Role
	chip Chip
}

// NewRegistry constructs an empty chip registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]uint)}
}

// Register a chip under a given role.  Registering two chips with the same
// name is a configuration error.
func (p *Registry) Register(role Role, chip Chip) error {
	if _, ok := p.index[chip.Name()]; ok {
		return fmt.Errorf("duplicate chip registration %q", chip.Name())
	}
	//
	p.index[chip.Name()] = uint(len(p.chips))
	p.chips = append(p.chips, registration{role, chip})
	//
	return nil
}

// Chips returns all chips registered under the given role, in registration
// order.
func (p *Registry) Chips(role Role) []Chip {
	var chips []Chip
	//
	for _, r := range p.chips {
		if r.role == role {
			chips = append(chips, r.chip)
		}
	}
	//
	return chips
}

// All returns every registered chip, in registration order.
func (p *Registry) All() []Chip {
	chips := make([]Chip, len(p.chips))
	//
	for i, r := range p.chips {
		chips[i] = r.chip
	}
	//
	return chips
}

// Get returns the chip registered under a given name, if one exists.
func (p *Registry) Get(name string) (Chip, bool) {
	if i, ok := p.index[name]; ok {
		return p.chips[i].chip, true
	}
	//
	return nil, false
}
