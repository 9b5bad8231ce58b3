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

// Package sim wires players, randomness and transport together to run
// complete agreement games, alone or as parameter sweeps.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ultiledger/go-qba/codec"
	"github.com/ultiledger/go-qba/consensus"
	"github.com/ultiledger/go-qba/entangle"
	"github.com/ultiledger/go-qba/log"
	"github.com/ultiledger/go-qba/message"
	"github.com/ultiledger/go-qba/results"
	"github.com/ultiledger/go-qba/transport"
	"github.com/ultiledger/go-qba/transport/grpcnet"
	"github.com/ultiledger/go-qba/transport/memnet"
	"github.com/ultiledger/go-qba/types"
)

var ErrStalled = errors.New("simulation stalled")

// StallError names the lieutenants that did not finish before the
// deadline.
type StallError struct {
	Deadline time.Duration
	Stuck    []types.Report
}

func (e *StallError) Error() string {
	var parts []string
	for _, r := range e.Stuck {
		parts = append(parts, fmt.Sprintf("%s in %s", r.Name, r.Round))
	}
	return fmt.Sprintf("%v after %v: %s", ErrStalled, e.Deadline, strings.Join(parts, ", "))
}

func (e *StallError) Is(target error) bool {
	return target == ErrStalled
}

// NetworkFactory creates the transport connecting the commander and
// the given number of lieutenants.
type NetworkFactory func(cfg *Config) (transport.Network, error)

// DefaultNetwork builds the transport named in the config.
func DefaultNetwork(cfg *Config) (transport.Network, error) {
	lts := cfg.Protocol.Lieutenants()
	switch cfg.Transport {
	case TransportGRPC:
		return grpcnet.Listen(cfg.GRPCHost, cfg.GRPCBasePort, lts)
	default:
		ids := []message.PlayerID{message.CommanderID}
		for i := 0; i < lts; i++ {
			ids = append(ids, message.PlayerID(i))
		}
		return memnet.New(ids, cfg.Latency), nil
	}
}

// Outcome is what one game produced.
type Outcome struct {
	Orders             []bool
	CommanderIsTraitor bool
	Reports            []types.Report
	M                  int
	N                  int
}

// Record converts the outcome into a storable shot record.
func (o *Outcome) Record(experiment string, shot int, param string, value float64) *results.Record {
	rec := &results.Record{
		ExperimentName:     experiment,
		Timestamp:          time.Now().UnixNano(),
		ShotID:             shot,
		SweptParameter:     param,
		SweptValue:         value,
		CommandsSent:       append([]bool(nil), o.Orders...),
		M:                  o.M,
		N:                  o.N,
		CommanderIsTraitor: o.CommanderIsTraitor,
	}
	for _, r := range o.Reports {
		rec.InitialResults = append(rec.InitialResults, r.InitialDecision)
		rec.IntermediateResults = append(rec.IntermediateResults, r.IntermediateDecision)
		rec.FinalResults = append(rec.FinalResults, r.FinalDecision)
		if r.IsTraitor {
			rec.TraitorIndices = append(rec.TraitorIndices, r.Index)
		}
	}
	rec.NumTraitors = len(rec.TraitorIndices)
	return rec
}

// Agreement holds when all loyal lieutenants share one final decision.
func (o *Outcome) Agreement() bool {
	return o.Record("", 0, "", 0).Agreement()
}

// Validity reports whether every loyal lieutenant accepted the order of
// a loyal commander. The second result is false for a traitor commander.
func (o *Outcome) Validity() (bool, bool) {
	return o.Record("", 0, "", 0).Validity()
}

// Fingerprint is a digest of the orders and every report, equal
// outcomes have equal fingerprints.
func (o *Outcome) Fingerprint() (string, error) {
	return codec.SHA256Hash(o)
}

// Simulation runs single games with one configuration.
type Simulation struct {
	cfg        *Config
	newNetwork NetworkFactory
	logger     *zap.SugaredLogger
}

type Option func(*Simulation)

// WithNetwork replaces the transport named in the config.
func WithNetwork(f NetworkFactory) Option {
	return func(s *Simulation) {
		s.newNetwork = f
	}
}

func NewSimulation(cfg *Config, opts ...Option) *Simulation {
	s := &Simulation{
		cfg:        cfg,
		newNetwork: DefaultNetwork,
		logger:     log.Named("sim"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// commanderOrders picks the orders of the commander. A traitor without
// explicit orders draws one per lieutenant.
func (s *Simulation) commanderOrders() []bool {
	lts := s.cfg.Protocol.Lieutenants()
	orders := make([]bool, lts)
	switch {
	case !s.cfg.CommanderIsTraitor:
		for i := range orders {
			orders[i] = s.cfg.LoyalOrder
		}
	case len(s.cfg.CommanderOrders) > 0:
		copy(orders, s.cfg.CommanderOrders)
	default:
		rng := rand.New(rand.NewPCG(s.cfg.Seed, uint64(lts)))
		for i := range orders {
			orders[i] = rng.IntN(2) == 1
		}
	}
	return orders
}

func (s *Simulation) setup(net transport.Network) (*consensus.Commander, []*consensus.Lieutenant, error) {
	protocol := s.cfg.Protocol
	source, err := entangle.New(s.cfg.Source, s.cfg.Seed, s.cfg.Noise)
	if err != nil {
		return nil, nil, err
	}
	cmdBits, ltBits, err := source.Distribute(protocol.Tuples(), protocol.Lieutenants())
	if err != nil {
		return nil, nil, fmt.Errorf("distribute bit vectors failed: %v", err)
	}

	opts := []consensus.CommanderOption{consensus.WithOrders(s.commanderOrders())}
	if len(s.cfg.CommanderCorrupt) > 0 {
		opts = append(opts, consensus.WithCorruption(s.cfg.CommanderCorrupt...))
	}
	commander, err := consensus.NewCommander(protocol, cmdBits, s.cfg.LoyalOrder, log.Named(protocol.CommanderName()), opts...)
	if err != nil {
		return nil, nil, err
	}

	lts := make([]*consensus.Lieutenant, protocol.Lieutenants())
	for i := range lts {
		var ltOpts []consensus.LieutenantOption
		if s.cfg.IsTraitor(i) {
			t, err := consensus.NewTraitor(s.cfg.TraitorStrategy, s.cfg.Seed+uint64(i)+1, protocol.VectorLen())
			if err != nil {
				return nil, nil, err
			}
			ltOpts = append(ltOpts, consensus.WithTraitor(t))
		}
		lt, err := consensus.NewLieutenant(protocol, i, ltBits[i], net, log.Named(protocol.LieutenantName(i)), ltOpts...)
		if err != nil {
			return nil, nil, err
		}
		lts[i] = lt
	}
	return commander, lts, nil
}

// Run plays one game. When the deadline passes before every
// lieutenant decided, the partial outcome is returned together with a
// *StallError.
func (s *Simulation) Run(ctx context.Context) (*Outcome, error) {
	net, err := s.newNetwork(s.cfg)
	if err != nil {
		return nil, fmt.Errorf("create network failed: %v", err)
	}
	defer net.Close()

	commander, lts, err := s.setup(net)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	for _, lt := range lts {
		lt := lt
		inbox, err := net.Inbox(lt.ID())
		if err != nil {
			return nil, err
		}
		g.Go(func() error {
			return lt.Run(gctx, inbox)
		})
	}

	s.logger.Infow("start game", "lieutenants", len(lts), "m", s.cfg.Protocol.Tuples(),
		"traitors", s.cfg.TraitorIndices, "commander_is_traitor", s.cfg.CommanderIsTraitor)

	if err := commander.BroadcastOrders(gctx, net); err != nil {
		cancel()
		g.Wait()
		return nil, err
	}

	stalled, waitErr := s.await(gctx, lts)
	if waitErr != nil {
		cancel()
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return nil, waitErr
	}

	reports, err := s.collect(gctx, lts)
	cancel()
	if gerr := g.Wait(); gerr != nil {
		return nil, gerr
	}
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		Orders:             commander.Orders(),
		CommanderIsTraitor: s.cfg.CommanderIsTraitor,
		Reports:            reports,
		M:                  s.cfg.Protocol.Tuples(),
		N:                  s.cfg.Protocol.Players(),
	}
	if stalled {
		stall := &StallError{Deadline: s.cfg.Deadline}
		for _, r := range reports {
			if !r.Done {
				stall.Stuck = append(stall.Stuck, r)
			}
		}
		s.logger.Warnw("game stalled", "err", stall)
		return out, stall
	}
	return out, nil
}

// await blocks until every lieutenant is done or the deadline passes.
func (s *Simulation) await(ctx context.Context, lts []*consensus.Lieutenant) (bool, error) {
	timer := time.NewTimer(s.cfg.Deadline)
	defer timer.Stop()
	for _, lt := range lts {
		select {
		case <-lt.Done():
		case <-timer.C:
			return true, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return false, nil
}

func (s *Simulation) collect(ctx context.Context, lts []*consensus.Lieutenant) ([]types.Report, error) {
	reports := make([]types.Report, len(lts))
	for i, lt := range lts {
		r, err := lt.Query(ctx)
		if err != nil {
			return nil, fmt.Errorf("query %s failed: %v", lt.Name(), err)
		}
		reports[i] = r
	}
	return reports, nil
}
