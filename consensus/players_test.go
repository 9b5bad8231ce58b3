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

package consensus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultiledger/go-qba/log"
	"github.com/ultiledger/go-qba/message"
	"github.com/ultiledger/go-qba/types"
)

func TestNewConfig(t *testing.T) {
	lts := []string{"Bob", "Charlie"}
	cfg, err := NewConfig("Alice", lts, 40, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Players())
	assert.Equal(t, 2, cfg.Lieutenants())
	assert.Equal(t, 80, cfg.VectorLen())
	assert.Equal(t, "Alice", cfg.Name(message.CommanderID))
	assert.Equal(t, "Charlie", cfg.Name(1))
	assert.Equal(t, "", cfg.LieutenantName(5))
	assert.Equal(t, []int{0, 2}, testConfig(t).Peers(1))

	// the config owns its names
	lts[0] = "Mallory"
	assert.Equal(t, "Bob", cfg.LieutenantName(0))
	cfg.LieutenantNames()[1] = "Mallory"
	assert.Equal(t, "Charlie", cfg.LieutenantName(1))

	p := cfg.Params()
	assert.Equal(t, 2, p.Width)
	assert.Equal(t, 40, p.Tuples)
	assert.Equal(t, 4, p.Tolerance)
	assert.Equal(t, 5, DefaultTolerance(50))

	bad := []struct {
		commander string
		lts       []string
		m, tol    int
	}{
		{"", lts, 10, 1},
		{"Alice", []string{"Bob"}, 10, 1},
		{"Alice", []string{"Bob", "Bob"}, 10, 1},
		{"Alice", []string{"Bob", "Alice"}, 10, 1},
		{"Alice", []string{"Bob", "Charlie"}, 0, 1},
		{"Alice", []string{"Bob", "Charlie"}, 10, -1},
	}
	for _, b := range bad {
		_, err := NewConfig(b.commander, b.lts, b.m, b.tol)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	}
}

func TestCommandVector(t *testing.T) {
	g := newGame(t, nil)
	c := g.commander(t, WithOrders([]bool{true, false, true}))
	p := g.cfg.Params()

	for j, order := range c.Orders() {
		cv, err := c.CommandVector(j)
		require.NoError(t, err)
		require.Len(t, cv, p.Len())
		for k := 0; k < p.Tuples; k++ {
			revealed := g.bits[p.Pos(k, j)] == order
			for i := 0; i < p.Width; i++ {
				cell := cv[p.Pos(k, i)]
				if revealed {
					assert.Equal(t, types.CellOf(g.bits[p.Pos(k, i)]), cell)
				} else {
					assert.Equal(t, types.Masked, cell)
				}
			}
		}
	}

	_, err := c.CommandVector(3)
	assert.ErrorIs(t, err, ErrIndexRange)
	_, err = c.Order(-1)
	assert.ErrorIs(t, err, ErrContract)
}

func TestCorruptCommandVector(t *testing.T) {
	g := newGame(t, nil)
	honest, err := g.commander(t).CommandVector(1)
	require.NoError(t, err)
	bad, err := g.commander(t, WithCorruption(1)).CommandVector(1)
	require.NoError(t, err)
	for pos := range honest {
		assert.Equal(t, honest[pos].Flip(), bad[pos])
	}
	assert.Equal(t, honest.Revealed(), bad.Revealed())
}

func TestNewCommanderErrors(t *testing.T) {
	g := newGame(t, nil)
	_, err := NewCommander(g.cfg, g.bits[:10], true, log.Named("Alice"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewCommander(g.cfg, g.bits, true, log.Named("Alice"), WithOrders([]bool{true}))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBroadcastOrders(t *testing.T) {
	g := newGame(t, nil)
	require.NoError(t, g.commander(t).BroadcastOrders(context.Background(), g.bus))
	require.Len(t, g.bus.queue, 3)
	for j, env := range g.bus.queue {
		assert.Equal(t, message.CommanderID, env.From)
		assert.Equal(t, message.PlayerID(j), env.To)
		assert.Equal(t, message.KindOrder, env.Kind)
		assert.True(t, env.Order.Value)
	}
}

func TestProofStore(t *testing.T) {
	s := NewProofStore(1, 3)
	ev := types.InitialEvidence{Decision: types.AcceptTrue, CommandVector: types.CommandVector{types.One}}

	_, err := s.Bundles()
	assert.ErrorIs(t, err, ErrBarrierIncomplete)

	assert.NoError(t, s.PutInitial(0, ev))
	assert.False(t, s.InitialComplete())
	assert.ErrorIs(t, s.PutInitial(0, ev), ErrDuplicateEvidence)
	assert.ErrorIs(t, s.PutInitial(1, ev), ErrUnexpectedMessage)
	assert.ErrorIs(t, s.PutInitial(3, ev), ErrUnexpectedMessage)
	assert.NoError(t, s.PutInitial(2, ev))
	assert.True(t, s.InitialComplete())
	assert.Equal(t, []int{0, 2}, s.Peers())

	// stored evidence does not alias the caller's vector
	ev.CommandVector[0] = types.Zero
	got, ok := s.Initial(0)
	assert.True(t, ok)
	assert.Equal(t, types.One, got.CommandVector[0])

	_, err = s.Bundles()
	assert.ErrorIs(t, err, ErrBarrierIncomplete)
	assert.NoError(t, s.SetOwnInitial(types.InitialEvidence{Decision: types.Abstain}))
	assert.ErrorIs(t, s.SetOwnInitial(types.InitialEvidence{}), ErrSlotAlreadySet)

	assert.NoError(t, s.PutIntermediary(2, types.IntermediaryEvidence{Decision: types.AcceptFalse}))
	assert.False(t, s.IntermediaryComplete())
	assert.NoError(t, s.SetOwnIntermediary(types.IntermediaryEvidence{Decision: types.Abstain}))

	bundles, err := s.Bundles()
	require.NoError(t, err)
	assert.Len(t, bundles, 3)
	assert.Equal(t, types.Abstain, bundles[1].Initial.Decision)
	assert.Equal(t, types.AcceptFalse, bundles[2].Intermediary.Decision)
	assert.Equal(t, types.AcceptTrue, bundles[0].Initial.Decision)

	// at most two exhibits, an oversized evidence is not stored
	oversized := types.IntermediaryEvidence{
		Decision:       types.Abstain,
		CommandVectors: []types.CommandVector{{types.One}, {types.Zero}, {types.One}},
	}
	assert.ErrorIs(t, s.PutIntermediary(0, oversized), ErrUnexpectedMessage)
	assert.False(t, s.IntermediaryComplete())

	assert.NoError(t, s.PutIntermediary(0, types.IntermediaryEvidence{}))
	assert.True(t, s.IntermediaryComplete())
}

func TestTraitorStrategies(t *testing.T) {
	_, err := ParseStrategy("lazy")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
	_, err = NewTraitor("lazy", 1, 10)
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	honest := types.InitialEvidence{Decision: types.AcceptTrue}

	silent, err := NewTraitor(StrategySilent, 1, 10)
	require.NoError(t, err)
	_, ok := silent.Initial(0, honest)
	assert.False(t, ok)
	_, ok = silent.Intermediary(0, types.IntermediaryEvidence{})
	assert.False(t, ok)

	random, err := NewTraitor(StrategyRandom, 1, 60)
	require.NoError(t, err)
	a, ok := random.Initial(0, honest)
	assert.True(t, ok)
	b, _ := random.Initial(2, honest)
	assert.Equal(t, a, b)
	assert.Len(t, a.CommandVector, 60)
	x, _ := random.Intermediary(0, types.IntermediaryEvidence{})
	y, _ := random.Intermediary(2, types.IntermediaryEvidence{})
	assert.Equal(t, x, y)
	assert.LessOrEqual(t, len(x.CommandVectors), types.MaxExhibits)

	equivocate, err := NewTraitor(StrategyEquivocate, 1, 60)
	require.NoError(t, err)
	a, _ = equivocate.Initial(0, honest)
	b, _ = equivocate.Initial(2, honest)
	assert.NotEqual(t, a.CommandVector, b.CommandVector)
	assert.True(t, a.Decision.Valid())
}
