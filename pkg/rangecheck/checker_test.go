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
package rangecheck

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/osrm/openvm/pkg/schema"
)

func Test_RangeCheck_01(t *testing.T) {
	// request_check(15, 4) twice => count at index 16+15 is 2.
	checker := newChecker(t, 8)
	//
	checker.RequestCheck(15, 4)
	checker.RequestCheck(15, 4)
	//
	assert.Equal(t, uint32(2), checker.Count(15, 4))
	assert.Equal(t, uint64(2), checker.TotalCount())
}

func Test_RangeCheck_02(t *testing.T) {
	// Same value at different widths must not collide.
	checker := newChecker(t, 8)
	//
	checker.RequestCheck(3, 2)
	checker.RequestCheck(3, 4)
	checker.RequestCheck(3, 8)
	//
	assert.Equal(t, uint32(1), checker.Count(3, 2))
	assert.Equal(t, uint32(1), checker.Count(3, 4))
	assert.Equal(t, uint32(1), checker.Count(3, 8))
	assert.Equal(t, uint64(3), checker.TotalCount())
}

func Test_RangeCheck_03(t *testing.T) {
	// Concurrent increments from many generator goroutines.
	const (
		workers = 8
		each    = 1000
	)
	//
	var (
		checker = newChecker(t, 10)
		wg      sync.WaitGroup
	)
	//
	for w := 0; w < workers; w++ {
		wg.Add(1)
		//
		go func() {
			defer wg.Done()
			//
			for i := 0; i < each; i++ {
				checker.RequestCheck(uint64(i%64), 6)
			}
		}()
	}
	//
	wg.Wait()
	//
	assert.Equal(t, uint64(workers*each), checker.TotalCount())
}

func Test_RangeCheck_04(t *testing.T) {
	// Clear resets counters and unfreezes, without reconstruction.
	checker := newChecker(t, 8)
	//
	checker.RequestCheck(7, 3)
	checker.Freeze()
	checker.Clear()
	//
	assert.Equal(t, uint64(0), checker.TotalCount())
	assert.False(t, checker.Frozen())
	// Usable again
	checker.RequestCheck(7, 3)
	assert.Equal(t, uint32(1), checker.Count(7, 3))
}

func Test_RangeCheck_05(t *testing.T) {
	// One trace row per table index, with accumulated multiplicities.
	checker := newChecker(t, 4)
	//
	checker.RequestCheck(15, 4)
	checker.RequestCheck(15, 4)
	checker.Freeze()
	//
	matrix, err := checker.Trace()
	assert.NoError(t, err)
	assert.Equal(t, uint(3), matrix.Width())
	assert.Equal(t, uint(1<<5), matrix.Height())
	// Row at index 16+15 holds (15, 4, 2)
	row := matrix.Row(31)
	assert.Equal(t, uint64(15), row[0].Uint64())
	assert.Equal(t, uint64(4), row[1].Uint64())
	assert.Equal(t, uint64(2), row[2].Uint64())
}

func Test_RangeCheck_06(t *testing.T) {
	// Width ceilings are configuration errors, caught at construction.
	bus := schema.NewBusAllocator().Allocate("rangecheck.lookup")
	//
	_, err := New(bus, 0)
	assert.Error(t, err)
	//
	_, err = New(bus, MaxSupportedBits+1)
	assert.Error(t, err)
}

func Test_RangeCheck_07(t *testing.T) {
	// Oversized width requests and post-freeze requests panic.
	checker := newChecker(t, 8)
	//
	assert.Panics(t, func() { checker.RequestCheck(1, 9) })
	//
	checker.Freeze()
	assert.Panics(t, func() { checker.RequestCheck(1, 4) })
}

func Test_RangeCheck_08(t *testing.T) {
	// Emitting the table before the freeze is a build-order violation.
	checker := newChecker(t, 4)
	//
	assert.Panics(t, func() { _, _ = checker.Trace() })
}

// ===================================================================
// Test Helpers
// ===================================================================

func newChecker(t *testing.T, maxBits uint) *Checker {
	bus := schema.NewBusAllocator().Allocate("rangecheck.lookup")
	//
	checker, err := New(bus, maxBits)
	if err != nil {
		t.Fatal(err)
	}
	//
	return checker
}
