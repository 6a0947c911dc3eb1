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
package offline

import (
	"fmt"
	"sort"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/osrm/openvm/pkg/gadgets"
	"github.com/osrm/openvm/pkg/memory"
	"github.com/osrm/openvm/pkg/rangecheck"
	"github.com/osrm/openvm/pkg/trace"
)

// Entry is one row of the sorted access view: the access log re-keyed by
// (space, address, timestamp).  Entries are ephemeral, recomputed per
// proving pass.
type Entry struct {
	Space     memory.Space
	Address   memory.Address
	Timestamp uint64
	Kind      memory.Kind
	Word      memory.Word
}

// Key returns this entry's sort key as a little-limb-first tuple, matching
// memory.Config.KeyBits.
func (e Entry) Key() []uint64 {
	return []uint64{e.Timestamp, uint64(e.Address), uint64(e.Space)}
}

// Violation is a memory-consistency failure: an access log which no honest
// execution could have produced.  A single violation invalidates the whole
// segment; there is no retry.
type Violation struct {
	// Row within the sorted view at which the violation was detected.
	Row uint
	// Human-readable description of the broken rule.
	Reason string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("memory consistency violation at row %d: %s", v.Row, v.Reason)
}

// Checker replays the access log in (space, address, timestamp) order and
// proves, row by row, that values only change on writes and that time only
// moves forward.  Adjacent sort keys are certified through the tuple-order
// gadget in transition mode, with every limb difference range-checked
// through the bounded-value lookup service.
type Checker struct {
	cfg memory.Config
	log *memory.Log
	// Initial word of a cell, i.e. its value before the first access of
	// this segment.
	initial func(memory.Location) memory.Word
	cmp     *gadgets.TupleComparator
}

// NewChecker constructs an offline checker over a controller's access log.
func NewChecker(ctrl *memory.Controller, rc *rangecheck.Checker) (*Checker, error) {
	return NewCheckerFromLog(ctrl.Config(), ctrl.Log(), ctrl.InitialWord, rc)
}

// NewCheckerFromLog constructs an offline checker over a raw access log.
// This is the path by which adversarially supplied logs are checked: any
// log a controller could not have produced must surface a violation.
func NewCheckerFromLog(cfg memory.Config, log *memory.Log, initial func(memory.Location) memory.Word,
	rc *rangecheck.Checker) (*Checker, error) {
	cmp, err := gadgets.NewTupleComparator(cfg.KeyBits(), rc)
	if err != nil {
		return nil, err
	}
	//
	return &Checker{cfg, log, initial, cmp}, nil
}

// SortedView derives the sorted access view from the log.  Ordering is by
// (space, address, timestamp); in the degenerate case of two accesses to
// one cell sharing a timestamp, writes sort first and log order breaks any
// remaining tie.
func (p *Checker) SortedView() []Entry {
	var (
		records = p.log.Records()
		entries = make([]Entry, len(records))
	)
	//
	for i, r := range records {
		entries[i] = Entry{r.Space, r.Address, r.Timestamp, r.Kind, r.Word}
	}
	//
	sort.SliceStable(entries, func(i, j int) bool {
		l, r := &entries[i], &entries[j]
		//
		switch {
		case l.Space != r.Space:
			return l.Space < r.Space
		case l.Address != r.Address:
			return l.Address < r.Address
		case l.Timestamp != r.Timestamp:
			return l.Timestamp < r.Timestamp
		default:
			return l.Kind == memory.Write && r.Kind == memory.Read
		}
	})
	//
	return entries
}

// Check verifies the consistency rule over the sorted view: (a) timestamps
// strictly increase within each cell; (b) a read repeats the word of its
// cell's preceding access; (c) the first access of a fresh cell either is a
// write, or reads back the cell's initial (default) word.  Any violation is
// unconditionally fatal for the segment.
func (p *Checker) Check() error {
	return p.check(p.SortedView())
}

func (p *Checker) check(entries []Entry) error {
	for i := range entries {
		var (
			entry = &entries[i]
			row   = uint(i)
		)
		// Fresh cell?
		if i == 0 || entries[i-1].Space != entry.Space || entries[i-1].Address != entry.Address {
			if entry.Kind == memory.Read {
				initial := p.initial(memory.Location{Space: entry.Space, Address: entry.Address})
				//
				if !entry.Word.Equal(initial) {
					return &Violation{row, fmt.Sprintf("read %s from untouched cell holding %s", entry.Word, initial)}
				}
			}
			//
			continue
		}
		// Same cell as predecessor
		prev := &entries[i-1]
		//
		if entry.Timestamp <= prev.Timestamp {
			return &Violation{row, fmt.Sprintf("timestamp %d does not advance past %d", entry.Timestamp, prev.Timestamp)}
		}
		//
		if entry.Kind == memory.Read && !entry.Word.Equal(prev.Word) {
			return &Violation{row, fmt.Sprintf("read %s but preceding access left %s", entry.Word, prev.Word)}
		}
	}
	//
	return nil
}

// Name implementation for the schema.Chip interface.
func (p *Checker) Name() string {
	return "memory.offline"
}

// Width implementation for the schema.Chip interface.  Columns are: space,
// address, timestamp, kind, the word limbs, the less-than-next bit, and the
// comparator witness.
func (p *Checker) Width() uint {
	return 4 + p.cfg.WordSize + 1 + p.cmp.AuxWidth()
}

// Trace implementation for the schema.Chip interface.  The consistency rule
// is verified first; a violating log yields an error rather than rows, as
// no satisfying trace exists for it.  Each transition certifies, via the
// tuple-order gadget, that the sort key strictly increases.
func (p *Checker) Trace() (*trace.Matrix, error) {
	entries := p.SortedView()
	//
	if err := p.check(entries); err != nil {
		return nil, err
	}
	//
	matrix := trace.NewMatrix(p.Width())
	//
	for i, entry := range entries {
		var (
			less    fr.Element
			witness gadgets.Witness
		)
		//
		if i+1 < len(entries) {
			var err error
			//
			if witness, err = p.cmp.CompareRows(entry.Key(), entries[i+1].Key()); err != nil {
				return nil, err
			}
			//
			if witness.Less {
				less.SetOne()
			}
		} else {
			witness = gadgets.Witness{
				Selector:    make([]bool, len(p.cfg.KeyBits())),
				DeltaChunks: make([]uint64, p.cmp.AuxWidth()-uint(len(p.cfg.KeyBits()))),
			}
		}
		//
		row := trace.OfUint64(uint64(entry.Space), uint64(entry.Address), entry.Timestamp, uint64(entry.Kind))
		row = append(row, entry.Word...)
		row = append(row, less)
		row = append(row, witness.Columns()...)
		//
		matrix.AppendRow(row...)
	}
	//
	return matrix, nil
}
