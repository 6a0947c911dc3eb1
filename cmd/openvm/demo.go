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
package main

import (
	"fmt"
	"math/rand"

	"github.com/osrm/openvm/pkg/memory"
	"github.com/osrm/openvm/pkg/trace"
)

// demoExecutor is a stand-in instruction executor: it drives a pseudo-random
// workload of reads and writes through the controller, recording one trace
// row per operation referencing the controller-issued timestamp.
type demoExecutor struct {
	ctrl *memory.Controller
	ops  uint
	seed int64
	rows *trace.Matrix
}

func newDemoExecutor(ctrl *memory.Controller, ops uint, seed int64) *demoExecutor {
	return &demoExecutor{ctrl: ctrl, ops: ops, seed: seed}
}

// Execute runs the workload.  Roughly half the operations are writes; reads
// draw from recently written addresses so the consistency rule is
// exercised, not just fresh-cell defaults.
func (p *demoExecutor) Execute() error {
	var (
		rng     = rand.New(rand.NewSource(p.seed))
		cfg     = p.ctrl.Config()
		nspaces = uint64(1) << min(cfg.SpaceBits, 2)
		naddrs  = uint64(256)
	)
	//
	p.rows = trace.NewMatrix(p.Width())
	//
	for i := uint(0); i < p.ops; i++ {
		var (
			space  = memory.Space(rng.Uint64() % nspaces)
			addr   = memory.Address(rng.Uint64() % naddrs)
			record memory.AccessRecord
			err    error
		)
		//
		if rng.Intn(2) == 0 {
			word := memory.NewWord(randomLimbs(rng, cfg.WordSize)...)
			_, record, err = p.ctrl.Write(space, addr, word)
		} else {
			_, record, err = p.ctrl.Read(space, addr)
		}
		//
		if err != nil {
			return err
		}
		//
		p.rows.AppendRow(trace.OfUint64(record.Timestamp, uint64(record.Space),
			uint64(record.Address), uint64(record.Kind))...)
	}
	//
	return nil
}

// Name implementation for the schema.Chip interface.
func (p *demoExecutor) Name() string {
	return "demo.executor"
}

// Width implementation for the schema.Chip interface.
func (p *demoExecutor) Width() uint {
	return 4
}

// Trace implementation for the schema.Chip interface.
func (p *demoExecutor) Trace() (*trace.Matrix, error) {
	if p.rows == nil {
		return nil, fmt.Errorf("executor %s has not run", p.Name())
	}
	//
	return p.rows, nil
}

func randomLimbs(rng *rand.Rand, n uint) []uint64 {
	limbs := make([]uint64, n)
	//
	for i := range limbs {
		limbs[i] = rng.Uint64() % 1024
	}
	//
	return limbs
}
