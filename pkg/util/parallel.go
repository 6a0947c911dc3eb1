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

import "sync"

// Job represents an atomic unit of work with zero or more dependencies on
// other jobs.  A job may only run once all of its dependencies have
// completed.
type Job struct {
	// Id uniquely identifies this job within one worklist.
	Id uint
	// Dependencies identifies jobs which must complete before this one can
	// run.
	Dependencies []uint
	// Run executes this job.
	Run func() error
}

// RunJobs executes a set of jobs, respecting their dependencies.  Jobs whose
// dependencies are all satisfied run concurrently (one goroutine each);
// remaining jobs wait for the next "wave".  Execution stops after the first
// failing wave, and the first error encountered is returned.  A worklist
// whose dependencies can never be satisfied (e.g. a cycle) results in a
// panic, since that indicates a chip build-order violation rather than a
// recoverable runtime failure.
func RunJobs(jobs []Job) error {
	todo := initToDoList(jobs)
	//
	for len(jobs) > 0 {
		var wave []Job
		// Select all ready jobs
		wave, jobs = selectWave(todo, jobs)
		// Execute wave concurrently
		if err := runWave(wave); err != nil {
			return err
		}
		// Mark wave as done
		for _, j := range wave {
			todo[j.Id] = false
		}
	}
	// Done
	return nil
}

// Execute all jobs in a given wave concurrently, returning the first error
// encountered (if any).
func runWave(wave []Job) error {
	var (
		wg   sync.WaitGroup
		errs = make([]error, len(wave))
	)
	//
	for i, job := range wave {
		wg.Add(1)
		//
		go func(i int, job Job) {
			defer wg.Done()
			errs[i] = job.Run()
		}(i, job)
	}
	//
	wg.Wait()
	// Report first error (if any)
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	//
	return nil
}

// Initialise the set of jobs which remain to be completed.  Jobs not present
// in the worklist are assumed to be already completed.
func initToDoList(jobs []Job) []bool {
	n := uint(0)
	// Determine largest job identifier
	for _, j := range jobs {
		n = max(n, j.Id+1)
	}
	// Construct todo list
	todo := make([]bool, n)
	//
	for _, j := range jobs {
		todo[j.Id] = true
	}
	// Done
	return todo
}

// Select and remove all "ready" jobs from the worklist.  A job is ready if
// all of its dependencies have completed.  If no job is ready, then the
// worklist contains a dependency cycle.
func selectWave(todo []bool, jobs []Job) ([]Job, []Job) {
	var wave, rest []Job
	//
	for _, j := range jobs {
		if readyJob(todo, j) {
			wave = append(wave, j)
		} else {
			rest = append(rest, j)
		}
	}
	//
	if len(wave) == 0 {
		panic("no job is ready to run")
	}
	//
	return wave, rest
}

// ReadyJob determines whether a given job is ready to run.  Specifically, a
// job is ready when all its dependencies have been completed.
func readyJob(todo []bool, job Job) bool {
	for _, d := range job.Dependencies {
		if d < uint(len(todo)) && todo[d] {
			return false
		}
	}
	//
	return true
}
