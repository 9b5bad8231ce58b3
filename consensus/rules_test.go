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

	"github.com/ultiledger/go-qba/types"
)

// vectors returns the command vectors a commander with the given
// orders would send
func (g *game) vectors(t *testing.T, orders []bool) []types.CommandVector {
	c := g.commander(t, WithOrders(orders))
	var out []types.CommandVector
	for j := range orders {
		cv, err := c.CommandVector(j)
		require.NoError(t, err)
		out = append(out, cv)
	}
	return out
}

func initial(d types.Decision, cv types.CommandVector) types.InitialEvidence {
	return types.InitialEvidence{Decision: d, CommandVector: cv}
}

func intermediary(d types.Decision, cvs ...types.CommandVector) types.IntermediaryEvidence {
	return types.IntermediaryEvidence{Decision: d, CommandVectors: cvs}
}

// feed plays both evidence rounds for Bob, the peers being Charlie
// and Dave
func feed(t *testing.T, lt *Lieutenant, init [2]types.InitialEvidence, inter [2]types.IntermediaryEvidence) {
	ctx := context.Background()
	require.NoError(t, lt.HandleInitialEvidence(ctx, 1, init[0]))
	require.NoError(t, lt.HandleInitialEvidence(ctx, 2, init[1]))
	require.NoError(t, lt.HandleIntermediaryEvidence(ctx, 1, inter[0]))
	require.NoError(t, lt.HandleIntermediaryEvidence(ctx, 2, inter[1]))
	require.Equal(t, Done, lt.State())
}

func decisions(t *testing.T, lt *Lieutenant) []types.Decision {
	var out []types.Decision
	for _, get := range []func() (types.Decision, error){lt.InitialDecision, lt.IntermediateDecision, lt.FinalDecision} {
		d, err := get()
		require.NoError(t, err)
		out = append(out, d)
	}
	return out
}

func TestRuleOppositeValueProved(t *testing.T) {
	g := newGame(t, nil)
	cvs := g.vectors(t, []bool{true, false, true})
	lt := g.lts[0]
	require.NoError(t, lt.HandleOrder(context.Background(), true, cvs[0]))

	feed(t, lt,
		[2]types.InitialEvidence{initial(types.AcceptTrue, cvs[0]), initial(types.AcceptTrue, nil)},
		[2]types.IntermediaryEvidence{intermediary(types.AcceptFalse, cvs[1]), intermediary(types.AcceptTrue)})
	assert.Equal(t, []types.Decision{types.AcceptTrue, types.AcceptTrue, types.Abstain}, decisions(t, lt))
}

func TestRuleOppositeValueUnproved(t *testing.T) {
	g := newGame(t, nil)
	cvs := g.vectors(t, []bool{true, true, true})
	lt := g.lts[0]
	require.NoError(t, lt.HandleOrder(context.Background(), true, cvs[0]))

	// the exhibit backs true, not the claimed false
	feed(t, lt,
		[2]types.InitialEvidence{initial(types.AcceptTrue, cvs[1]), initial(types.AcceptTrue, cvs[2])},
		[2]types.IntermediaryEvidence{intermediary(types.AcceptFalse, cvs[1]), intermediary(types.AcceptTrue)})
	assert.Equal(t, []types.Decision{types.AcceptTrue, types.AcceptTrue, types.AcceptTrue}, decisions(t, lt))
}

func TestRuleAbstainingPeerProvesConflict(t *testing.T) {
	g := newGame(t, nil)
	cvs := g.vectors(t, []bool{false, true, false})
	lt := g.lts[0]
	require.NoError(t, lt.HandleOrder(context.Background(), false, cvs[0]))

	// Charlie claims true without a vector, so round 3 keeps false
	feed(t, lt,
		[2]types.InitialEvidence{initial(types.AcceptTrue, nil), initial(types.AcceptFalse, cvs[2])},
		[2]types.IntermediaryEvidence{intermediary(types.Abstain, cvs[1]), intermediary(types.AcceptFalse)})
	assert.Equal(t, []types.Decision{types.AcceptFalse, types.AcceptFalse, types.Abstain}, decisions(t, lt))
}

func TestRuleAbstainingPeerWithoutProof(t *testing.T) {
	g := newGame(t, nil)
	cvs := g.vectors(t, []bool{false, true, false})
	lt := g.lts[0]
	require.NoError(t, lt.HandleOrder(context.Background(), false, cvs[0]))

	feed(t, lt,
		[2]types.InitialEvidence{initial(types.AcceptTrue, nil), initial(types.AcceptFalse, cvs[2])},
		[2]types.IntermediaryEvidence{intermediary(types.Abstain), intermediary(types.AcceptFalse)})
	assert.Equal(t, []types.Decision{types.AcceptFalse, types.AcceptFalse, types.AcceptFalse}, decisions(t, lt))
}

func TestRuleSelfEvidentConflict(t *testing.T) {
	g := newGame(t, nil)
	cvs := g.vectors(t, []bool{true, true, false})
	lt := g.lts[0]
	// no command vector at all
	require.NoError(t, lt.HandleOrder(context.Background(), true, nil))

	feed(t, lt,
		[2]types.InitialEvidence{initial(types.AcceptTrue, cvs[1]), initial(types.AcceptFalse, cvs[2])},
		[2]types.IntermediaryEvidence{intermediary(types.AcceptTrue), intermediary(types.AcceptTrue)})
	assert.Equal(t, []types.Decision{types.Abstain, types.Abstain, types.Abstain}, decisions(t, lt))
	exhibits := lt.Exhibits()
	require.Len(t, exhibits, 2)
	assert.Equal(t, cvs[1], exhibits[0])
	assert.Equal(t, cvs[2], exhibits[1])
}

func TestRuleNoVerifiedClaim(t *testing.T) {
	g := newGame(t, nil)
	lt := g.lts[0]
	require.NoError(t, lt.HandleOrder(context.Background(), true, nil))

	feed(t, lt,
		[2]types.InitialEvidence{initial(types.AcceptTrue, nil), initial(types.Decision(7), nil)},
		[2]types.IntermediaryEvidence{intermediary(types.Abstain), intermediary(types.Decision(9))})
	assert.Equal(t, []types.Decision{types.Abstain, types.Abstain, types.Abstain}, decisions(t, lt))
	assert.Empty(t, lt.Exhibits())
}

func TestRuleAllPeersAbstain(t *testing.T) {
	g := newGame(t, nil)
	cvs := g.vectors(t, []bool{true, true, true})
	lt := g.lts[0]
	require.NoError(t, lt.HandleOrder(context.Background(), true, cvs[0]))

	feed(t, lt,
		[2]types.InitialEvidence{initial(types.Abstain, nil), initial(types.Abstain, nil)},
		[2]types.IntermediaryEvidence{intermediary(types.AcceptTrue), intermediary(types.AcceptTrue)})
	assert.Equal(t, []types.Decision{types.AcceptTrue, types.AcceptTrue, types.AcceptTrue}, decisions(t, lt))
}

func TestDecideBeforeBarrier(t *testing.T) {
	g := newGame(t, nil)
	lt := g.lts[0]
	_, _, err := lt.decideIntermediate()
	assert.ErrorIs(t, err, ErrDecisionUnset)

	cvs := g.vectors(t, []bool{true, true, true})
	require.NoError(t, lt.HandleOrder(context.Background(), true, cvs[0]))
	_, _, err = lt.decideIntermediate()
	assert.ErrorIs(t, err, ErrBarrierIncomplete)
	assert.ErrorIs(t, err, ErrContract)
}
