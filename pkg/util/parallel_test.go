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
package util

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_RunJobs_01(t *testing.T) {
	// Dependent jobs observe their dependencies' effects.
	var (
		order [3]int32
		next  atomic.Int32
	)
	//
	mark := func(i int) func() error {
		return func() error {
			order[i] = next.Add(1)
			//
			return nil
		}
	}
	//
	err := RunJobs([]Job{
		{Id: 0, Dependencies: []uint{1, 2}, Run: mark(0)},
		{Id: 1, Run: mark(1)},
		{Id: 2, Dependencies: []uint{1}, Run: mark(2)},
	})
	//
	assert.NoError(t, err)
	assert.Less(t, order[1], order[2])
	assert.Less(t, order[2], order[0])
}

func Test_RunJobs_02(t *testing.T) {
	// A failing wave halts execution; downstream jobs never run.
	var ran atomic.Bool
	//
	err := RunJobs([]Job{
		{Id: 0, Run: func() error { return errors.New("boom") }},
		{Id: 1, Dependencies: []uint{0}, Run: func() error {
			ran.Store(true)
			//
			return nil
		}},
	})
	//
	assert.Error(t, err)
	assert.False(t, ran.Load())
}

func Test_RunJobs_03(t *testing.T) {
	// A dependency cycle is a build-order violation.
	assert.Panics(t, func() {
		_ = RunJobs([]Job{
			{Id: 0, Dependencies: []uint{1}, Run: func() error { return nil }},
			{Id: 1, Dependencies: []uint{0}, Run: func() error { return nil }},
		})
	})
}
