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

package memnet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultiledger/go-qba/message"
	"github.com/ultiledger/go-qba/transport"
	"github.com/ultiledger/go-qba/types"
)

func TestPerLinkFIFO(t *testing.T) {
	n := New([]message.PlayerID{message.CommanderID, 0, 1}, time.Millisecond)
	defer n.Close()
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		ev := types.InitialEvidence{Decision: types.Decision(i % 3), CommandVector: types.CommandVector{types.Cell(i % 3)}}
		require.NoError(t, n.Send(ctx, message.NewInitial(1, 0, ev)))
	}
	inbox, err := n.Inbox(0)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		select {
		case env := <-inbox:
			assert.Equal(t, message.PlayerID(1), env.From)
			assert.Equal(t, types.Decision(i%3), env.Initial.Decision)
		case <-time.After(time.Second):
			t.Fatal("envelope not delivered")
		}
	}
	assert.Equal(t, int64(20), n.Sent())
	assert.Eventually(t, func() bool { return n.Delivered() == 20 }, time.Second, time.Millisecond)
}

func TestSendErrors(t *testing.T) {
	n := New([]message.PlayerID{0, 1}, 0)
	err := n.Send(context.Background(), message.NewOrder(5, true, nil))
	assert.ErrorIs(t, err, transport.ErrUnknownPlayer)
	_, err = n.Inbox(7)
	assert.ErrorIs(t, err, transport.ErrUnknownPlayer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Send(ctx, message.NewOrder(0, true, nil)), context.Canceled)

	require.NoError(t, n.Close())
	assert.NoError(t, n.Close())
	assert.ErrorIs(t, n.Send(context.Background(), message.NewOrder(0, true, nil)), transport.ErrClosed)
}

func TestSendDoesNotBlock(t *testing.T) {
	n := New([]message.PlayerID{0, 1}, 0)
	defer n.Close()
	// nobody reads the inbox
	for i := 0; i < 1000; i++ {
		require.NoError(t, n.Send(context.Background(), message.NewOrder(0, true, nil)))
	}
}
