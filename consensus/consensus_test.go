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

	"github.com/ultiledger/go-qba/entangle"
	"github.com/ultiledger/go-qba/log"
	"github.com/ultiledger/go-qba/message"
	"github.com/ultiledger/go-qba/types"
)

var names = []string{"Bob", "Charlie", "Dave"}

// bus queues every envelope and delivers them one by one in FIFO order
type bus struct {
	queue []*message.Envelope
	sent  int
}

func (b *bus) Send(ctx context.Context, env *message.Envelope) error {
	b.queue = append(b.queue, env)
	b.sent++
	return nil
}

type game struct {
	cfg  Config
	bits types.BitVector
	lts  []*Lieutenant
	bus  *bus
}

func testConfig(t *testing.T) Config {
	cfg, err := NewConfig("Alice", names, 50, DefaultTolerance(50))
	require.NoError(t, err)
	return cfg
}

func newGame(t *testing.T, traitors map[int]*Traitor) *game {
	cfg := testConfig(t)
	cmdBits, ltBits, err := entangle.Balanced{}.Distribute(cfg.Tuples(), cfg.Lieutenants())
	require.NoError(t, err)
	g := &game{cfg: cfg, bits: cmdBits, bus: &bus{}}
	for i := range names {
		var opts []LieutenantOption
		if tr, ok := traitors[i]; ok {
			opts = append(opts, WithTraitor(tr))
		}
		lt, err := NewLieutenant(cfg, i, ltBits[i], g.bus, log.Named(names[i]), opts...)
		require.NoError(t, err)
		g.lts = append(g.lts, lt)
	}
	return g
}

func (g *game) commander(t *testing.T, opts ...CommanderOption) *Commander {
	c, err := NewCommander(g.cfg, g.bits, true, log.Named("Alice"), opts...)
	require.NoError(t, err)
	return c
}

func (g *game) drain(t *testing.T) {
	ctx := context.Background()
	for len(g.bus.queue) > 0 {
		env := g.bus.queue[0]
		g.bus.queue = g.bus.queue[1:]
		require.NoError(t, g.lts[env.To].Handle(ctx, env))
	}
}

func (g *game) play(t *testing.T, c *Commander) {
	require.NoError(t, c.BroadcastOrders(context.Background(), g.bus))
	g.drain(t)
}

func finals(t *testing.T, lts []*Lieutenant) []types.Decision {
	var out []types.Decision
	for _, lt := range lts {
		d, err := lt.FinalDecision()
		require.NoError(t, err)
		out = append(out, d)
	}
	return out
}

func TestLoyalCommander(t *testing.T) {
	g := newGame(t, nil)
	g.play(t, g.commander(t))

	assert.Equal(t, []types.Decision{types.AcceptTrue, types.AcceptTrue, types.AcceptTrue}, finals(t, g.lts))
	for _, lt := range g.lts {
		assert.Equal(t, Done, lt.State())
		d, err := lt.IntermediateDecision()
		assert.NoError(t, err)
		assert.Equal(t, types.AcceptTrue, d)
		assert.Empty(t, lt.Exhibits())
		select {
		case <-lt.Done():
		default:
			t.Fatalf("%s is not done", lt.Name())
		}
	}
	// 3 orders, 6 initial and 6 intermediary evidences
	assert.Equal(t, 15, g.bus.sent)
}

func TestLoyalCommanderFalseOrder(t *testing.T) {
	g := newGame(t, nil)
	c, err := NewCommander(g.cfg, g.bits, false, log.Named("Alice"))
	require.NoError(t, err)
	g.play(t, c)
	assert.Equal(t, []types.Decision{types.AcceptFalse, types.AcceptFalse, types.AcceptFalse}, finals(t, g.lts))
}

func TestTraitorLieutenant(t *testing.T) {
	for _, strategy := range []Strategy{StrategyRandom, StrategyEquivocate} {
		for seed := uint64(1); seed <= 10; seed++ {
			tr, err := NewTraitor(strategy, seed, 150)
			require.NoError(t, err)
			g := newGame(t, map[int]*Traitor{2: tr})
			g.play(t, g.commander(t))

			loyal := finals(t, g.lts[:2])
			assert.Equal(t, []types.Decision{types.AcceptTrue, types.AcceptTrue}, loyal, "strategy %s seed %d", strategy, seed)
			assert.True(t, g.lts[2].Report().IsTraitor)
		}
	}
}

func TestSilentTraitorStalls(t *testing.T) {
	tr, err := NewTraitor(StrategySilent, 1, 150)
	require.NoError(t, err)
	g := newGame(t, map[int]*Traitor{1: tr})
	g.play(t, g.commander(t))

	// the loyal lieutenants never complete the initial barrier
	for _, i := range []int{0, 2} {
		assert.Equal(t, AwaitingPeerInitialEvidence, g.lts[i].State())
		_, err := g.lts[i].IntermediateDecision()
		assert.ErrorIs(t, err, ErrDecisionUnset)
		assert.False(t, g.lts[i].Report().Done)
	}
	// the traitor passes round 3 and then waits as well
	assert.Equal(t, AwaitingPeerIntermediaryEvidence, g.lts[1].State())
}

func TestConflictingOrders(t *testing.T) {
	g := newGame(t, nil)
	g.play(t, g.commander(t, WithOrders([]bool{true, false, true})))

	for i, want := range []types.Decision{types.AcceptTrue, types.AcceptFalse, types.AcceptTrue} {
		d, err := g.lts[i].InitialDecision()
		require.NoError(t, err)
		assert.Equal(t, want, d)
		d, err = g.lts[i].IntermediateDecision()
		require.NoError(t, err)
		assert.Equal(t, types.Abstain, d)
		assert.Len(t, g.lts[i].Exhibits(), 1)
	}
	assert.Equal(t, []types.Decision{types.Abstain, types.Abstain, types.Abstain}, finals(t, g.lts))
}

func TestCorruptedCommandVector(t *testing.T) {
	g := newGame(t, nil)
	g.play(t, g.commander(t, WithCorruption(1)))

	d, err := g.lts[1].InitialDecision()
	require.NoError(t, err)
	assert.Equal(t, types.Abstain, d)

	// the verified claims of the others are adopted
	d, err = g.lts[1].IntermediateDecision()
	require.NoError(t, err)
	assert.Equal(t, types.AcceptTrue, d)
	assert.Len(t, g.lts[1].Exhibits(), 1)

	assert.Equal(t, []types.Decision{types.AcceptTrue, types.AcceptTrue, types.AcceptTrue}, finals(t, g.lts))
}

func TestEvidenceBeforeOrder(t *testing.T) {
	g := newGame(t, nil)
	c := g.commander(t)
	require.NoError(t, c.BroadcastOrders(context.Background(), g.bus))

	// hold back the order of Dave
	var held *message.Envelope
	var rest []*message.Envelope
	for _, env := range g.bus.queue {
		if env.To == 2 {
			held = env
			continue
		}
		rest = append(rest, env)
	}
	require.NotNil(t, held)
	g.bus.queue = rest
	g.drain(t)

	assert.Equal(t, AwaitingOrder, g.lts[2].State())
	assert.True(t, g.lts[2].Store().InitialComplete())
	assert.Equal(t, AwaitingPeerInitialEvidence, g.lts[0].State())

	g.bus.queue = append(g.bus.queue, held)
	g.drain(t)
	assert.Equal(t, []types.Decision{types.AcceptTrue, types.AcceptTrue, types.AcceptTrue}, finals(t, g.lts))
}

func TestDecisionSlots(t *testing.T) {
	g := newGame(t, nil)
	lt := g.lts[0]

	_, err := lt.ReceivedOrder()
	assert.ErrorIs(t, err, ErrOrderUnset)
	_, err = lt.CommandVector()
	assert.ErrorIs(t, err, ErrCommandVectorUnset)
	_, err = lt.InitialDecision()
	assert.ErrorIs(t, err, ErrDecisionUnset)
	assert.ErrorIs(t, err, ErrContract)

	c := g.commander(t)
	cv, err := c.CommandVector(0)
	require.NoError(t, err)
	require.NoError(t, lt.HandleOrder(context.Background(), true, cv))

	order, err := lt.ReceivedOrder()
	assert.NoError(t, err)
	assert.True(t, order)
	d, err := lt.InitialDecision()
	assert.NoError(t, err)
	assert.Equal(t, types.AcceptTrue, d)
	_, err = lt.IntermediateDecision()
	assert.ErrorIs(t, err, ErrDecisionUnset)
	_, err = lt.FinalDecision()
	assert.ErrorIs(t, err, ErrDecisionUnset)

	// a set slot is never rewritten
	assert.ErrorIs(t, lt.initial.put(types.Abstain), ErrSlotAlreadySet)
	d, _ = lt.InitialDecision()
	assert.Equal(t, types.AcceptTrue, d)
}

func TestUnexpectedMessages(t *testing.T) {
	g := newGame(t, nil)
	ctx := context.Background()
	lt := g.lts[0]
	c := g.commander(t)
	cv, _ := c.CommandVector(0)
	peerCV, _ := c.CommandVector(1)

	// order from a lieutenant
	env := message.NewOrder(0, true, cv)
	env.From = 1
	assert.ErrorIs(t, lt.Handle(ctx, env), ErrUnexpectedMessage)
	// order for someone else
	assert.ErrorIs(t, lt.Handle(ctx, message.NewOrder(1, true, cv)), ErrUnexpectedMessage)
	// malformed envelope
	assert.ErrorIs(t, lt.Handle(ctx, &message.Envelope{To: 0, Kind: message.KindOrder}), ErrUnexpectedMessage)

	require.NoError(t, lt.Handle(ctx, message.NewOrder(0, true, cv)))
	assert.ErrorIs(t, lt.Handle(ctx, message.NewOrder(0, false, cv)), ErrUnexpectedMessage)
	order, _ := lt.ReceivedOrder()
	assert.True(t, order)

	ev := types.InitialEvidence{Decision: types.AcceptTrue, CommandVector: peerCV}
	require.NoError(t, lt.Handle(ctx, message.NewInitial(1, 0, ev)))
	forged := types.InitialEvidence{Decision: types.AcceptFalse}
	assert.ErrorIs(t, lt.Handle(ctx, message.NewInitial(1, 0, forged)), ErrDuplicateEvidence)
	kept, ok := lt.Store().Initial(1)
	assert.True(t, ok)
	assert.Equal(t, types.AcceptTrue, kept.Decision)

	// evidence claiming to come from self or the commander
	assert.ErrorIs(t, lt.Handle(ctx, message.NewInitial(0, 0, ev)), ErrUnexpectedMessage)
	assert.ErrorIs(t, lt.Handle(ctx, message.NewInitial(message.CommanderID, 0, ev)), ErrUnexpectedMessage)
}

func TestRunAndQuery(t *testing.T) {
	cfg := testConfig(t)
	cmdBits, ltBits, err := entangle.Balanced{}.Distribute(cfg.Tuples(), cfg.Lieutenants())
	require.NoError(t, err)

	r := newRouter(cfg.Lieutenants())
	lts := make([]*Lieutenant, cfg.Lieutenants())
	for i := range lts {
		lts[i], err = NewLieutenant(cfg, i, ltBits[i], r, log.Named(names[i]))
		require.NoError(t, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errs := make(chan error, len(lts))
	for i, lt := range lts {
		go func(lt *Lieutenant, inbox chan *message.Envelope) {
			errs <- lt.Run(ctx, inbox)
		}(lt, r.inboxes[i])
	}

	c, err := NewCommander(cfg, cmdBits, true, log.Named("Alice"))
	require.NoError(t, err)
	require.NoError(t, c.BroadcastOrders(ctx, r))
	for _, lt := range lts {
		<-lt.Done()
		rep, err := lt.Query(ctx)
		require.NoError(t, err)
		assert.True(t, rep.Done)
		assert.True(t, rep.ReceivedOrder)
		assert.Equal(t, types.AcceptTrue, rep.FinalDecision)
		assert.Equal(t, lt.Name(), rep.Name)
	}
	cancel()
	for range lts {
		assert.NoError(t, <-errs)
	}
}

// router hands envelopes to buffered inboxes
type router struct {
	inboxes []chan *message.Envelope
}

func newRouter(n int) *router {
	r := &router{}
	for i := 0; i < n; i++ {
		r.inboxes = append(r.inboxes, make(chan *message.Envelope, 64))
	}
	return r
}

func (r *router) Send(ctx context.Context, env *message.Envelope) error {
	r.inboxes[env.To] <- env
	return nil
}
