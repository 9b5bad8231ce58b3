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

// Package transport defines how envelopes travel between players.
// Every implementation delivers reliably and in FIFO order per
// sender and receiver pair.
package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/ultiledger/go-qba/message"
)

var (
	ErrClosed        = errors.New("transport is closed")
	ErrUnknownPlayer = errors.New("unknown player")
)

// Network moves envelopes between the registered players. Send
// returns once the envelope is queued, never waiting for the
// receiver to read it.
type Network interface {
	Send(ctx context.Context, env *message.Envelope) error
	Inbox(id message.PlayerID) (<-chan *message.Envelope, error)
	Close() error
}

// Mailbox is an unbounded FIFO queue drained into a channel.
type Mailbox struct {
	mu     sync.Mutex
	queue  []*message.Envelope
	closed bool

	notify   chan struct{}
	out      chan *message.Envelope
	stopChan chan struct{}
	once     sync.Once
}

func NewMailbox() *Mailbox {
	m := &Mailbox{
		notify:   make(chan struct{}, 1),
		out:      make(chan *message.Envelope),
		stopChan: make(chan struct{}),
	}
	go m.pump()
	return m
}

// Put appends env to the queue without blocking.
func (m *Mailbox) Put(env *message.Envelope) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.queue = append(m.queue, env)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

// C is closed after Close once the pump has stopped.
func (m *Mailbox) C() <-chan *message.Envelope {
	return m.out
}

// Len is the number of queued envelopes not yet handed out.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *Mailbox) Close() {
	m.once.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.stopChan)
	})
}

func (m *Mailbox) pump() {
	defer close(m.out)
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			select {
			case <-m.notify:
				continue
			case <-m.stopChan:
				return
			}
		}
		env := m.queue[0]
		m.queue[0] = nil
		m.queue = m.queue[1:]
		m.mu.Unlock()
		select {
		case m.out <- env:
		case <-m.stopChan:
			return
		}
	}
}
