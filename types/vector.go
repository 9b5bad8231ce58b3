// Copyright 2019 The go-ultiledger Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Cell is one entry of a command vector: a revealed bit or a mask.
type Cell uint8

const (
	Masked Cell = iota
	Zero
	One
)

// CellOf reveals the bit b.
func CellOf(b bool) Cell {
	if b {
		return One
	}
	return Zero
}

// Is reports whether the cell reveals exactly the bit b.
// A masked cell never equals any bit.
func (c Cell) Is(b bool) bool {
	return c != Masked && c == CellOf(b)
}

// Flip swaps a revealed bit and keeps masks untouched.
func (c Cell) Flip() Cell {
	switch c {
	case Zero:
		return One
	case One:
		return Zero
	default:
		return c
	}
}

func (c Cell) String() string {
	switch c {
	case Zero:
		return "0"
	case One:
		return "1"
	default:
		return "_"
	}
}

// BitVector holds a player's measured outcomes, M tuples of
// width N-1 laid out tuple after tuple.
type BitVector []bool

// At returns the bit at pos; positions past the end read as false.
func (v BitVector) At(pos int) bool {
	if pos < 0 || pos >= len(v) {
		return false
	}
	return v[pos]
}

// Clone returns an independent copy.
func (v BitVector) Clone() BitVector {
	if v == nil {
		return nil
	}
	c := make(BitVector, len(v))
	copy(c, v)
	return c
}

// CommandVector is the Commander's selective reveal of its own
// bit vector for one Lieutenant.
type CommandVector []Cell

// At returns the cell at pos. Vectors sent by traitors may be
// short, positions past the end read as masked.
func (v CommandVector) At(pos int) Cell {
	if pos < 0 || pos >= len(v) {
		return Masked
	}
	return v[pos]
}

// Clone returns an independent copy.
func (v CommandVector) Clone() CommandVector {
	if v == nil {
		return nil
	}
	c := make(CommandVector, len(v))
	copy(c, v)
	return c
}

// Revealed counts the cells that are not masked.
func (v CommandVector) Revealed() int {
	n := 0
	for _, c := range v {
		if c != Masked {
			n++
		}
	}
	return n
}

func (v CommandVector) String() string {
	b := make([]byte, len(v))
	for i, c := range v {
		b[i] = c.String()[0]
	}
	return string(b)
}

// MarshalText renders the vector as a string of '0', '1' and '_'.
func (v CommandVector) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *CommandVector) UnmarshalText(text []byte) error {
	cv := make(CommandVector, len(text))
	for i, ch := range text {
		switch ch {
		case '0':
			cv[i] = Zero
		case '1':
			cv[i] = One
		case '_':
			cv[i] = Masked
		default:
			return fmt.Errorf("invalid command vector cell %q at %d", ch, i)
		}
	}
	*v = cv
	return nil
}

// MarshalCBOR encodes the vector as a byte string, one byte per cell.
func (v CommandVector) MarshalCBOR() ([]byte, error) {
	if v == nil {
		return cbor.Marshal(nil)
	}
	b := make([]byte, len(v))
	for i, c := range v {
		b[i] = byte(c)
	}
	return cbor.Marshal(b)
}

// UnmarshalCBOR decodes a byte string. Unknown cell values are
// read as masked so a hostile peer cannot smuggle a fourth state.
func (v *CommandVector) UnmarshalCBOR(data []byte) error {
	var b []byte
	if err := cbor.Unmarshal(data, &b); err != nil {
		return err
	}
	if b == nil {
		*v = nil
		return nil
	}
	cv := make(CommandVector, len(b))
	for i, c := range b {
		if Cell(c) <= One {
			cv[i] = Cell(c)
		}
	}
	*v = cv
	return nil
}
