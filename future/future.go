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

// Package future defines some futures as messages to communicate
// between a player's event loop and the goroutines querying it.
package future

import (
	"context"

	"github.com/ultiledger/go-qba/message"
	"github.com/ultiledger/go-qba/types"
)

type Future interface {
	Error() error
	Wait(ctx context.Context) error
}

// Allow a future to respond an error in the future
type deferError struct {
	err       error
	errChan   chan error
	responded bool
}

// Every future should call this method to initialize
// underlying error channel
func (d *deferError) Init() {
	d.errChan = make(chan error, 1)
}

// Each future should respond error once and multiple
// calling with different error on the same future will
// have no effects.
func (d *deferError) Respond(err error) {
	if d.errChan == nil || d.responded {
		return
	}
	d.errChan <- err
	close(d.errChan)
	d.responded = true
}

// Error always return the first responded error
func (d *deferError) Error() error {
	if d.err != nil {
		return d.err
	}
	if d.errChan == nil {
		panic("waiting for response on nil channel")
	}
	d.err = <-d.errChan
	return d.err
}

// Wait is Error bounded by ctx. The context error is returned
// when the responder never answers in time.
func (d *deferError) Wait(ctx context.Context) error {
	if d.err != nil {
		return d.err
	}
	if d.errChan == nil {
		panic("waiting for response on nil channel")
	}
	select {
	case err := <-d.errChan:
		d.err = err
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Future for querying the decisions of a lieutenant
type Report struct {
	deferError
	Report types.Report
}

// Future for handing a received envelope to the local player,
// responded once the envelope is queued
type Deliver struct {
	deferError
	Envelope *message.Envelope
}
