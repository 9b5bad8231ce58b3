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

package message

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultiledger/go-qba/types"
)

func TestPlayerID(t *testing.T) {
	assert.True(t, CommanderID.IsCommander())
	assert.False(t, PlayerID(0).IsCommander())
	assert.Equal(t, "commander", CommanderID.String())
	assert.Equal(t, "lieutenant-2", PlayerID(2).String())
}

func TestEnvelopeValidate(t *testing.T) {
	cv := types.CommandVector{types.One, types.Masked}
	assert.NoError(t, NewOrder(0, true, cv).Validate())
	assert.NoError(t, NewInitial(0, 1, types.InitialEvidence{CommandVector: cv}).Validate())
	assert.NoError(t, NewIntermediary(0, 1, types.IntermediaryEvidence{}).Validate())

	assert.Error(t, (&Envelope{Kind: KindOrder}).Validate())
	assert.Error(t, (&Envelope{Kind: KindInitialEvidence}).Validate())
	assert.Error(t, (&Envelope{Kind: KindIntermediaryEvidence}).Validate())
	assert.Error(t, (&Envelope{Kind: Kind(42)}).Validate())

	var nilEnv *Envelope
	assert.Error(t, nilEnv.Validate())
}

// The envelope goes over gRPC as CBOR, so the payload must survive.
func TestEnvelopeCBOR(t *testing.T) {
	env := NewIntermediary(2, 0, types.IntermediaryEvidence{
		Decision:       types.Abstain,
		CommandVectors: []types.CommandVector{{types.One, types.Zero}, {types.Masked, types.One}},
	})
	b, err := cbor.Marshal(env)
	require.NoError(t, err)

	var got Envelope
	require.NoError(t, cbor.Unmarshal(b, &got))
	require.NoError(t, got.Validate())
	assert.Equal(t, PlayerID(2), got.From)
	assert.Nil(t, got.Order)
	assert.Equal(t, env.Intermediary.CommandVectors, got.Intermediary.CommandVectors)
}
