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

// Package memnet is an in-process transport. Every ordered pair of
// players gets its own link that delays envelopes by a fixed
// latency and keeps them in order.
package memnet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/ultiledger/go-qba/message"
	"github.com/ultiledger/go-qba/transport"
)

type linkKey struct {
	from, to message.PlayerID
}

type Network struct {
	latency time.Duration

	mu       sync.Mutex
	inboxes  map[message.PlayerID]*transport.Mailbox
	links    map[linkKey]*transport.Mailbox
	closed   bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	sent      atomic.Int64
	delivered atomic.Int64
}

// New registers the given players. Envelopes to anyone else are
// rejected.
func New(ids []message.PlayerID, latency time.Duration) *Network {
	n := &Network{
		latency:  latency,
		inboxes:  make(map[message.PlayerID]*transport.Mailbox),
		links:    make(map[linkKey]*transport.Mailbox),
		stopChan: make(chan struct{}),
	}
	for _, id := range ids {
		n.inboxes[id] = transport.NewMailbox()
	}
	return n
}

func (n *Network) Send(ctx context.Context, env *message.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return transport.ErrClosed
	}
	to, ok := n.inboxes[env.To]
	if !ok {
		n.mu.Unlock()
		return fmt.Errorf("%w: %s", transport.ErrUnknownPlayer, env.To)
	}
	key := linkKey{from: env.From, to: env.To}
	link, ok := n.links[key]
	if !ok {
		link = transport.NewMailbox()
		n.links[key] = link
		n.wg.Add(1)
		go n.forward(link, to)
	}
	n.mu.Unlock()

	if err := link.Put(env); err != nil {
		return err
	}
	n.sent.Inc()
	return nil
}

// forward moves envelopes of one link to the receiver's inbox
func (n *Network) forward(link, to *transport.Mailbox) {
	defer n.wg.Done()
	for env := range link.C() {
		if n.latency > 0 {
			select {
			case <-time.After(n.latency):
			case <-n.stopChan:
				return
			}
		}
		if err := to.Put(env); err != nil {
			return
		}
		n.delivered.Inc()
	}
}

func (n *Network) Inbox(id message.PlayerID) (<-chan *message.Envelope, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	m, ok := n.inboxes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", transport.ErrUnknownPlayer, id)
	}
	return m.C(), nil
}

// Sent is the number of envelopes accepted by Send.
func (n *Network) Sent() int64 {
	return n.sent.Load()
}

// Delivered is the number of envelopes that reached an inbox.
func (n *Network) Delivered() int64 {
	return n.delivered.Load()
}

// Close stops every link and closes the inboxes.
func (n *Network) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.stopChan)
	for _, l := range n.links {
		l.Close()
	}
	n.mu.Unlock()
	n.wg.Wait()
	for _, m := range n.inboxes {
		m.Close()
	}
	return nil
}
