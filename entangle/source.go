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

// Package entangle distributes the correlated bit vectors the
// players start from. For every lieutenant j and tuple k the
// commander and lieutenant j hold opposite bits at slot j; every
// other bit is an independent coin flip.
package entangle

import (
	"errors"
	"fmt"
	"math/bits"
	"math/rand/v2"

	"github.com/ultiledger/go-qba/types"
)

var (
	ErrInvalidShape  = errors.New("invalid vector shape")
	ErrUnknownSource = errors.New("unknown randomness source")
	ErrInvalidNoise  = errors.New("noise must be in [0, 1]")
	ErrNoiseless     = errors.New("source does not support noise")
)

// Source hands out one bit vector to the commander and one to each
// of the width lieutenants, each of length m*width.
type Source interface {
	Distribute(m, width int) (types.BitVector, []types.BitVector, error)
}

// New creates the source registered under name. The random source
// is the default; balanced ignores the seed and takes no noise.
func New(name string, seed uint64, noise float64) (Source, error) {
	switch name {
	case "random", "":
		return NewSeeded(seed, noise)
	case "balanced":
		if noise != 0 {
			return nil, fmt.Errorf("%w: balanced with noise %v", ErrNoiseless, noise)
		}
		return Balanced{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
}

func checkShape(m, width int) error {
	if m < 1 || width < 1 {
		return fmt.Errorf("%w: m=%d width=%d", ErrInvalidShape, m, width)
	}
	return nil
}

// Balanced is a deterministic fixture built from Walsh codes: slot i
// of tuple k carries the parity of (k mod P) & (i+1), P being the
// smallest power of two above width. Over every full period each
// slot is true exactly half of the time and every pair of slots
// shows each of the four combinations exactly a quarter of the time.
// The count checks hold exactly, so games on it are reproducible
// scenarios rather than samples.
type Balanced struct{}

func (Balanced) Distribute(m, width int) (types.BitVector, []types.BitVector, error) {
	if err := checkShape(m, width); err != nil {
		return nil, nil, err
	}
	period := 1 << bits.Len(uint(width))
	cmd := make(types.BitVector, m*width)
	for k := 0; k < m; k++ {
		for i := 0; i < width; i++ {
			cmd[width*k+i] = walsh(k%period, i+1)
		}
	}
	lts := make([]types.BitVector, width)
	for j := 0; j < width; j++ {
		v := make(types.BitVector, m*width)
		for k := 0; k < m; k++ {
			for i := 0; i < width; i++ {
				if i == j {
					v[width*k+i] = !cmd[width*k+i]
				} else {
					v[width*k+i] = k%2 == 1
				}
			}
		}
		lts[j] = v
	}
	return cmd, lts, nil
}

func walsh(k, mask int) bool {
	return bits.OnesCount(uint(k&mask))%2 == 1
}

// Seeded draws every bit from a seeded generator. With probability
// noise a lieutenant's own slot bit is flipped, which breaks the
// anti-correlation the way a noisy channel would.
type Seeded struct {
	seed  uint64
	noise float64
}

func NewSeeded(seed uint64, noise float64) (*Seeded, error) {
	if noise < 0 || noise > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNoise, noise)
	}
	return &Seeded{seed: seed, noise: noise}, nil
}

// Distribute is deterministic for a given seed and shape.
func (s *Seeded) Distribute(m, width int) (types.BitVector, []types.BitVector, error) {
	if err := checkShape(m, width); err != nil {
		return nil, nil, err
	}
	rng := rand.New(rand.NewPCG(s.seed, uint64(m)<<32|uint64(width)))
	cmd := make(types.BitVector, m*width)
	for i := range cmd {
		cmd[i] = rng.IntN(2) == 1
	}
	lts := make([]types.BitVector, width)
	for j := 0; j < width; j++ {
		v := make(types.BitVector, m*width)
		for k := 0; k < m; k++ {
			for i := 0; i < width; i++ {
				pos := width*k + i
				if i != j {
					v[pos] = rng.IntN(2) == 1
					continue
				}
				v[pos] = !cmd[pos]
				if s.noise > 0 && rng.Float64() < s.noise {
					v[pos] = !v[pos]
				}
			}
		}
		lts[j] = v
	}
	return cmd, lts, nil
}

// Violations counts the tuples where lieutenant j's own slot agrees
// with the commander's bit.
func Violations(cmd types.BitVector, lts []types.BitVector, m int) []int {
	width := len(lts)
	out := make([]int, width)
	for j, v := range lts {
		for k := 0; k < m; k++ {
			pos := width*k + j
			if v.At(pos) == cmd.At(pos) {
				out[j]++
			}
		}
	}
	return out
}
