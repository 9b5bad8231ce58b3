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

package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultiledger/go-qba/message"
	"github.com/ultiledger/go-qba/types"
)

func TestEnvelope(t *testing.T) {
	ev := types.IntermediaryEvidence{
		Decision:       types.Abstain,
		CommandVectors: []types.CommandVector{{types.One, types.Masked}, {types.Zero, types.Zero}},
	}
	env := message.NewIntermediary(2, 0, ev)
	b, err := Encode(env)
	require.NoError(t, err)

	got, err := DecodeEnvelope(b)
	require.NoError(t, err)
	assert.Equal(t, env, got)

	// an order envelope without its payload is rejected
	b, err = Encode(&message.Envelope{From: message.CommanderID, To: 1, Kind: message.KindOrder})
	require.NoError(t, err)
	_, err = DecodeEnvelope(b)
	assert.Error(t, err)

	_, err = DecodeEnvelope([]byte{0xff})
	assert.Error(t, err)
}

func TestSHA256Hash(t *testing.T) {
	a := types.Report{Name: "Bob", FinalDecision: types.AcceptTrue}
	b := types.Report{Name: "Bob", FinalDecision: types.AcceptTrue}
	ha, err := SHA256Hash(a)
	require.NoError(t, err)
	hb, err := SHA256Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	b.FinalDecision = types.Abstain
	hb, err = SHA256Hash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}
