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
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
)

// Word is the fixed-size tuple of field elements stored at one memory cell.
// The width is a machine configuration constant; all words flowing through
// one controller have the same width.
type Word []fr.Element

// ZeroWord constructs the default word of a given width, as held by every
// cell which has never been written.
func ZeroWord(width uint) Word {
	return make(Word, width)
}

// NewWord constructs a word from a sequence of machine integers.
func NewWord(values ...uint64) Word {
	word := make(Word, len(values))
	//
	for i, v := range values {
		word[i].SetUint64(v)
	}
	//
	return word
}

// Clone returns a fresh copy of this word.
func (w Word) Clone() Word {
	word := make(Word, len(w))
	copy(word, w)
	//
	return word
}

// Equal determines whether two words hold identical values.
func (w Word) Equal(o Word) bool {
	if len(w) != len(o) {
		return false
	}
	//
	for i := range w {
		if !w[i].Equal(&o[i]) {
			return false
		}
	}
	//
	return true
}

func (w Word) String() string {
	var builder strings.Builder
	//
	builder.WriteString("[")
	//
	for i := range w {
		if i != 0 {
			builder.WriteString(",")
		}
		//
		builder.WriteString(w[i].String())
	}
	//
	builder.WriteString("]")
	//
	return builder.String()
}
