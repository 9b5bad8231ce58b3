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

// Package verify implements the statistical predicates a Lieutenant
// uses to judge command vectors. Every check is a pure function of
// its inputs: it never mutates a vector and never communicates.
package verify

import (
	"github.com/deckarep/golang-set"

	"github.com/ultiledger/go-qba/types"
	"github.com/ultiledger/go-qba/util"
)

// Params describes the layout of the correlated bit vectors.
type Params struct {
	// tuple width, one slot per Lieutenant (N-1)
	Width int
	// number of tuples per vector (M)
	Tuples int
	// accepted deviation of every approximate count
	Tolerance int
}

// Len is the length of a well-formed bit or command vector.
func (p Params) Len() int {
	return p.Width * p.Tuples
}

// Pos is the position of slot i in tuple k.
func (p Params) Pos(k, i int) int {
	return p.Width*k + i
}

// HalfTuples is the expected size of a single slot match set.
func (p Params) HalfTuples() int {
	return p.Tuples / 2
}

// QuarterTuples is the expected size of a slot pair match set.
func (p Params) QuarterTuples() int {
	return p.Tuples / 4
}

func (p Params) validSlot(i int) bool {
	return i >= 0 && i < p.Width
}

// MatchSet returns the tuple indices k whose slot i reveals x.
// Masked cells never match.
func MatchSet(p Params, v types.CommandVector, i int, x bool) mapset.Set {
	s := mapset.NewSet()
	for k := 0; k < p.Tuples; k++ {
		if v.At(p.Pos(k, i)).Is(x) {
			s.Add(k)
		}
	}
	return s
}

// MatchPairSet returns the tuple indices k whose slot i reveals x
// and whose slot j reveals y.
func MatchPairSet(p Params, v types.CommandVector, i, j int, x, y bool) mapset.Set {
	s := mapset.NewSet()
	for k := 0; k < p.Tuples; k++ {
		if v.At(p.Pos(k, i)).Is(x) && v.At(p.Pos(k, j)).Is(y) {
			s.Add(k)
		}
	}
	return s
}

// CountMatch is the size of MatchSet.
func CountMatch(p Params, v types.CommandVector, i int, x bool) int {
	return MatchSet(p, v, i, x).Cardinality()
}

// CountMatchPair is the size of MatchPairSet.
func CountMatchPair(p Params, v types.CommandVector, i, j int, x, y bool) int {
	return MatchPairSet(p, v, i, j, x, y).Cardinality()
}

// ApproxEqual reports |actual - expected| <= tol.
func ApproxEqual(actual, expected, tol int) bool {
	return util.WithinInt(actual, expected, tol)
}
