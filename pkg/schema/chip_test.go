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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/osrm/openvm/pkg/trace"
)

type stubChip struct {
	name  string
	width uint
}

func (p *stubChip) Name() string { return p.name }

func (p *stubChip) Width() uint { return p.width }

func (p *stubChip) Trace() (*trace.Matrix, error) {
	return trace.NewMatrix(p.width), nil
}

func Test_Bus_01(t *testing.T) {
	// Identifiers are unique within one allocator.
	allocator := NewBusAllocator()
	//
	a := allocator.Allocate("memory.access")
	b := allocator.Allocate("rangecheck.lookup")
	//
	assert.NotEqual(t, a.Id(), b.Id())
	assert.Equal(t, "memory.access", a.Name())
	assert.Equal(t, 2, len(allocator.Buses()))
}

func Test_Registry_01(t *testing.T) {
	// Chips resolve by role, in deterministic registration order.
	registry := NewRegistry()
	//
	assert.NoError(t, registry.Register(Executor, &stubChip{"alu", 4}))
	assert.NoError(t, registry.Register(Periphery, &stubChip{"lookup", 3}))
	assert.NoError(t, registry.Register(Executor, &stubChip{"load", 2}))
	//
	executors := registry.Chips(Executor)
	assert.Equal(t, 2, len(executors))
	assert.Equal(t, "alu", executors[0].Name())
	assert.Equal(t, "load", executors[1].Name())
	//
	chip, ok := registry.Get("lookup")
	assert.True(t, ok)
	assert.Equal(t, uint(3), chip.Width())
}

func Test_Registry_02(t *testing.T) {
	// Duplicate names are rejected.
	registry := NewRegistry()
	//
	assert.NoError(t, registry.Register(Executor, &stubChip{"alu", 4}))
	assert.Error(t, registry.Register(Periphery, &stubChip{"alu", 4}))
}
