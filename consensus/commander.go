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
	"fmt"

	"github.com/deckarep/golang-set"
	"go.uber.org/zap"

	"github.com/ultiledger/go-qba/message"
	"github.com/ultiledger/go-qba/types"
)

// Sender delivers an envelope to the player named in env.To. Send
// must not wait for the receiver to process the envelope.
type Sender interface {
	Send(ctx context.Context, env *message.Envelope) error
}

// Commander issues one order and one command vector per lieutenant.
type Commander struct {
	cfg    Config
	bits   types.BitVector
	orders []bool
	// lieutenants receiving a command vector with every revealed
	// cell flipped
	corrupt mapset.Set

	logger *zap.SugaredLogger
}

type CommanderOption func(*Commander)

// WithOrders assigns one order per lieutenant instead of the same
// order to everyone.
func WithOrders(orders []bool) CommanderOption {
	return func(c *Commander) {
		c.orders = append([]bool(nil), orders...)
	}
}

// WithCorruption makes the commander send an inconsistent command
// vector to the given lieutenants.
func WithCorruption(indices ...int) CommanderOption {
	return func(c *Commander) {
		for _, i := range indices {
			c.corrupt.Add(i)
		}
	}
}

func NewCommander(cfg Config, bits types.BitVector, order bool, l *zap.SugaredLogger, opts ...CommanderOption) (*Commander, error) {
	if len(bits) != cfg.VectorLen() {
		return nil, fmt.Errorf("%w: commander bit vector has length %d, want %d", ErrInvalidConfig, len(bits), cfg.VectorLen())
	}
	c := &Commander{
		cfg:     cfg,
		bits:    bits.Clone(),
		corrupt: mapset.NewSet(),
		logger:  l,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.orders == nil {
		c.orders = make([]bool, cfg.Lieutenants())
		for i := range c.orders {
			c.orders[i] = order
		}
	}
	if len(c.orders) != cfg.Lieutenants() {
		return nil, fmt.Errorf("%w: %d orders for %d lieutenants", ErrInvalidConfig, len(c.orders), cfg.Lieutenants())
	}
	return c, nil
}

// Order returns the order assigned to lieutenant j.
func (c *Commander) Order(j int) (bool, error) {
	if !c.cfg.validLieutenant(j) {
		return false, fmt.Errorf("%w: %d", ErrIndexRange, j)
	}
	return c.orders[j], nil
}

// Orders returns a copy of all assigned orders.
func (c *Commander) Orders() []bool {
	return append([]bool(nil), c.orders...)
}

// CommandVector reveals every tuple whose bit at slot j equals the
// order of lieutenant j and masks the others.
func (c *Commander) CommandVector(j int) (types.CommandVector, error) {
	order, err := c.Order(j)
	if err != nil {
		return nil, err
	}
	p := c.cfg.Params()
	cv := make(types.CommandVector, p.Len())
	for k := 0; k < p.Tuples; k++ {
		if c.bits[p.Pos(k, j)] != order {
			continue
		}
		for i := 0; i < p.Width; i++ {
			cv[p.Pos(k, i)] = types.CellOf(c.bits[p.Pos(k, i)])
		}
	}
	if c.corrupt.Contains(j) {
		for pos := range cv {
			cv[pos] = cv[pos].Flip()
		}
	}
	return cv, nil
}

// BroadcastOrders sends every lieutenant its order and command
// vector exactly once. It does not wait for any answer.
func (c *Commander) BroadcastOrders(ctx context.Context, s Sender) error {
	for j := 0; j < c.cfg.Lieutenants(); j++ {
		cv, err := c.CommandVector(j)
		if err != nil {
			return err
		}
		env := message.NewOrder(message.PlayerID(j), c.orders[j], cv)
		if err := s.Send(ctx, env); err != nil {
			return fmt.Errorf("send order to %s failed: %v", c.cfg.LieutenantName(j), err)
		}
		c.logger.Debugw("order sent", "to", c.cfg.LieutenantName(j), "order", c.orders[j], "revealed", cv.Revealed())
	}
	return nil
}
