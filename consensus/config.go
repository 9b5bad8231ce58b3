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

// Package consensus implements the Byzantine agreement rounds played
// by one Commander and N-1 Lieutenants over correlated bit vectors.
package consensus

import (
	"fmt"

	"github.com/ultiledger/go-qba/message"
	"github.com/ultiledger/go-qba/verify"
)

// Config is the immutable protocol configuration shared by every
// player. It is passed by value and never modified after NewConfig.
type Config struct {
	commander   string
	lieutenants []string
	tuples      int
	tolerance   int
}

// DefaultTolerance is the usual statistical slack, a tenth of M.
func DefaultTolerance(m int) int {
	return m / 10
}

func NewConfig(commander string, lieutenants []string, m, tol int) (Config, error) {
	if commander == "" {
		return Config{}, fmt.Errorf("%w: commander name is empty", ErrInvalidConfig)
	}
	if len(lieutenants) < 2 {
		return Config{}, fmt.Errorf("%w: need at least two lieutenants, got %d", ErrInvalidConfig, len(lieutenants))
	}
	seen := make(map[string]bool, len(lieutenants))
	for _, name := range lieutenants {
		if name == "" || name == commander || seen[name] {
			return Config{}, fmt.Errorf("%w: invalid or duplicate player name %q", ErrInvalidConfig, name)
		}
		seen[name] = true
	}
	if m < 1 {
		return Config{}, fmt.Errorf("%w: m must be positive, got %d", ErrInvalidConfig, m)
	}
	if tol < 0 {
		return Config{}, fmt.Errorf("%w: negative tolerance %d", ErrInvalidConfig, tol)
	}
	names := make([]string, len(lieutenants))
	copy(names, lieutenants)
	return Config{commander: commander, lieutenants: names, tuples: m, tolerance: tol}, nil
}

func (c Config) CommanderName() string {
	return c.commander
}

// LieutenantNames returns a copy of the lieutenant names in index order.
func (c Config) LieutenantNames() []string {
	names := make([]string, len(c.lieutenants))
	copy(names, c.lieutenants)
	return names
}

func (c Config) LieutenantName(i int) string {
	if i < 0 || i >= len(c.lieutenants) {
		return ""
	}
	return c.lieutenants[i]
}

// Name resolves a transport identity to a player name.
func (c Config) Name(id message.PlayerID) string {
	if id.IsCommander() {
		return c.commander
	}
	return c.LieutenantName(int(id))
}

// Lieutenants is N-1, the tuple width.
func (c Config) Lieutenants() int {
	return len(c.lieutenants)
}

// Players is N.
func (c Config) Players() int {
	return len(c.lieutenants) + 1
}

// Tuples is M.
func (c Config) Tuples() int {
	return c.tuples
}

func (c Config) Tolerance() int {
	return c.tolerance
}

// VectorLen is the length of every bit and command vector.
func (c Config) VectorLen() int {
	return c.tuples * len(c.lieutenants)
}

func (c Config) Params() verify.Params {
	return verify.Params{
		Width:     len(c.lieutenants),
		Tuples:    c.tuples,
		Tolerance: c.tolerance,
	}
}

// Peers lists every lieutenant index except self in ascending order.
func (c Config) Peers(self int) []int {
	peers := make([]int, 0, len(c.lieutenants)-1)
	for i := range c.lieutenants {
		if i != self {
			peers = append(peers, i)
		}
	}
	return peers
}

func (c Config) validLieutenant(i int) bool {
	return i >= 0 && i < len(c.lieutenants)
}
