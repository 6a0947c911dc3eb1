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
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/osrm/openvm/pkg/memory"
	"github.com/osrm/openvm/pkg/memory/offline"
	"github.com/osrm/openvm/pkg/rangecheck"
	"github.com/osrm/openvm/pkg/schema"
	"github.com/osrm/openvm/pkg/trace"
	"github.com/osrm/openvm/pkg/util"
)

// Machine is the arena-style owner of all shared resources of one proving
// run: the memory controller (via the current segment), the range checker,
// the bus allocator and the chip registry.  Instruction executors and other
// chips hold non-owning handles into the machine and never outlive it.
//
// The machine also owns composition ordering.  Trace generation runs chips
// concurrently where possible, but the build order between resource owners
// is fixed by construction: log-producing executor chips finalise first,
// then the offline consistency check (and audit), and the range checker
// strictly last, once its counters are frozen.  A chip finalised out of
// order, or a check requested after the freeze, panics rather than erroring
// since it indicates a programming mistake, not a runtime condition.
type Machine struct {
	cfg      memory.Config
	buses    *schema.BusAllocator
	access   schema.Bus
	lookup   schema.Bus
	boundary schema.Bus
	rc       *rangecheck.Checker
	registry *schema.Registry
	segment  *Segment
	// Set once trace generation for the current segment has run.
	built bool
}

// NewMachine constructs a machine, allocating its buses and shared
// resources.  maxBits configures the range checker ceiling.
func NewMachine(cfg memory.Config, maxBits uint) (*Machine, error) {
	var (
		m   Machine
		err error
	)
	//
	m.cfg = cfg
	m.buses = schema.NewBusAllocator()
	m.access = m.buses.Allocate("memory.access")
	m.lookup = m.buses.Allocate("rangecheck.lookup")
	m.boundary = m.buses.Allocate("memory.boundary")
	//
	if m.rc, err = rangecheck.New(m.lookup, maxBits); err != nil {
		return nil, err
	}
	//
	m.registry = schema.NewRegistry()
	//
	if m.segment, err = Begin(cfg, nil); err != nil {
		return nil, err
	}
	//
	return &m, nil
}

// Segment returns the currently executing segment.
func (p *Machine) Segment() *Segment {
	return p.segment
}

// Controller returns the memory controller of the current segment.
func (p *Machine) Controller() *memory.Controller {
	return p.segment.Controller()
}

// RangeChecker returns the shared bounded-value lookup service.
func (p *Machine) RangeChecker() *rangecheck.Checker {
	return p.rc
}

// AccessBus returns the bus reconciling controller accesses against the
// offline checker.
func (p *Machine) AccessBus() schema.Bus {
	return p.access
}

// BoundaryBus returns the bus reconciling audit rows against the access
// log.
func (p *Machine) BoundaryBus() schema.Bus {
	return p.boundary
}

// Register an executor chip with this machine.  Executors perform memory
// accesses during execution and have their traces generated first.
func (p *Machine) Register(role schema.Role, chip schema.Chip) error {
	return p.registry.Register(role, chip)
}

// Chips returns all registered chips in deterministic registration order.
func (p *Machine) Chips() []schema.Chip {
	return p.registry.All()
}

// BuildTraces generates the traces of every chip for the current segment,
// together with the memory consistency and audit traces, in the enforced
// build order.  Chips within one stage run concurrently; the range checker
// is frozen at the join point and emitted last.
func (p *Machine) BuildTraces() (map[string]*trace.Matrix, error) {
	if p.built {
		panic("traces already built for this segment")
	}
	//
	p.built = true
	start := time.Now()
	//
	checker, err := offline.NewChecker(p.Controller(), p.rc)
	if err != nil {
		return nil, err
	}
	//
	var (
		mutex   sync.Mutex
		traces  = make(map[string]*trace.Matrix)
		chips   = p.registry.Chips(schema.Executor)
		nchips  = uint(len(chips))
		jobs    []util.Job
		deps    []uint
		collect = func(chip schema.Chip) func() error {
			return func() error {
				matrix, err := chip.Trace()
				if err != nil {
					return err
				}
				//
				mutex.Lock()
				defer mutex.Unlock()
				traces[chip.Name()] = matrix
				//
				return nil
			}
		}
	)
	// Stage 1: executor chips (log producers)
	for i, chip := range chips {
		jobs = append(jobs, util.Job{Id: uint(i), Run: collect(chip)})
		deps = append(deps, uint(i))
	}
	// Stage 2: offline consistency check and audit, plus periphery chips
	stage2 := []schema.Chip{checker}
	//
	if p.cfg.Persistent {
		// Force root recomputation so the audit sees final chunk state
		p.Controller().Tree().Root()
		audit := NewAuditChip(p.segment.auditRecords(), p.cfg.ChunkSize*p.cfg.WordSize)
		stage2 = append(stage2, audit)
	}
	//
	stage2 = append(stage2, p.registry.Chips(schema.Periphery)...)
	//
	var stage2Ids []uint
	//
	for i, chip := range stage2 {
		id := nchips + uint(i)
		jobs = append(jobs, util.Job{Id: id, Dependencies: deps, Run: collect(chip)})
		stage2Ids = append(stage2Ids, id)
	}
	// Stage 3: range checker, strictly last
	jobs = append(jobs, util.Job{
		Id:           nchips + uint(len(stage2)),
		Dependencies: stage2Ids,
		Run: func() error {
			p.rc.Freeze()
			//
			return collect(p.rc)()
		},
	})
	//
	if err := util.RunJobs(jobs); err != nil {
		return nil, err
	}
	//
	log.Debugf("generated %d traces in %s", len(traces), time.Since(start))
	//
	return traces, nil
}

// NextSegment finalises the current segment and begins its successor,
// booting it from the finalised image.  The range checker is cleared for
// the next proving pass.
func (p *Machine) NextSegment() (*Result, error) {
	result, err := p.segment.Finalize()
	if err != nil {
		return nil, err
	}
	//
	if p.segment, err = Begin(p.cfg, result); err != nil {
		return nil, err
	}
	//
	p.rc.Clear()
	p.registry = schema.NewRegistry()
	p.built = false
	//
	return result, nil
}

// VerifyLink checks that two consecutive segment results form a valid
// continuation: agreed memory layout, and the successor's claimed initial
// state matching the predecessor's final state.
func VerifyLink(prev *Result, next *Result) error {
	if prev.ChunkSize != next.ChunkSize || prev.WordSize != next.WordSize {
		return fmt.Errorf("%w: chunk %d/%d, word %d/%d", ErrChunkSizeMismatch,
			prev.ChunkSize, next.ChunkSize, prev.WordSize, next.WordSize)
	}
	//
	if prev.Persistent && !next.InitialDigest.Equal(&prev.FinalDigest) {
		return fmt.Errorf("%w: segments %d and %d", ErrBrokenLink, prev.Index, next.Index)
	}
	//
	return nil
}
