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
package trace

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
)

// Matrix is a rectangular table of field elements with a fixed width, as
// produced by a single chip.  Rows are appended during trace generation and
// thereafter read-only.
type Matrix struct {
	width uint
	rows  [][]fr.Element
}

// NewMatrix constructs an empty matrix of the given width.
func NewMatrix(width uint) *Matrix {
	if width == 0 {
		panic("zero-width trace matrix")
	}
	//
	return &Matrix{width: width}
}

// Width returns the (fixed) number of columns in this matrix.
func (p *Matrix) Width() uint {
	return p.width
}

// Height returns the number of rows appended so far.
func (p *Matrix) Height() uint {
	return uint(len(p.rows))
}

// AppendRow adds a row to this matrix.  The row must match the declared
// width exactly.
func (p *Matrix) AppendRow(row ...fr.Element) {
	if uint(len(row)) != p.width {
		panic(fmt.Sprintf("malformed trace row (%d cells, expected %d)", len(row), p.width))
	}
	//
	p.rows = append(p.rows, row)
}

// Row returns the ith row of this matrix.
func (p *Matrix) Row(i uint) []fr.Element {
	return p.rows[i]
}

// Cell returns the value in a given column of a given row.
func (p *Matrix) Cell(col uint, row uint) fr.Element {
	return p.rows[row][col]
}

// OfUint64 lifts a sequence of machine integers into a row of field
// elements.
func OfUint64(values ...uint64) []fr.Element {
	row := make([]fr.Element, len(values))
	//
	for i, v := range values {
		row[i].SetUint64(v)
	}
	//
	return row
}
