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

import "fmt"

// Bus identifies a named channel over which chips exchange multiset
// "interaction" events.  The backend enforces that, for every bus, the
// multiset of events sent equals the multiset of events received across the
// whole proof.  A bus identifier is only meaningful within the machine
// instance whose allocator issued it.
type Bus struct {
	id   uint
	name string
}

// Id returns the numeric identifier of this bus, which is unique within one
// machine instance.
func (b Bus) Id() uint {
	return b.id
}

// Name returns the (descriptive) name of this bus.
func (b Bus) Name() string {
	return b.name
}

func (b Bus) String() string {
	return fmt.Sprintf("%s#%d", b.name, b.id)
}

// BusAllocator issues bus identifiers at machine-construction time.  All
// identifiers issued by one allocator are distinct, ensuring no two buses of
// the same machine can alias.  Identifiers are never hardcoded by chips.
type BusAllocator struct {
	buses []Bus
}

// NewBusAllocator constructs an empty allocator.
func NewBusAllocator() *BusAllocator {
	return &BusAllocator{}
}

// Allocate a fresh bus with the given name.
func (p *BusAllocator) Allocate(name string) Bus {
	bus := Bus{uint(len(p.buses)), name}
	p.buses = append(p.buses, bus)
	//
	return bus
}

// Buses returns all buses allocated so far, in allocation order.
func (p *BusAllocator) Buses() []Bus {
	return p.buses
}
