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
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ultiledger/go-qba/future"
	"github.com/ultiledger/go-qba/message"
	"github.com/ultiledger/go-qba/types"
	"github.com/ultiledger/go-qba/verify"
)

// State is the round a lieutenant is waiting in.
type State uint8

const (
	AwaitingOrder State = iota
	AwaitingPeerInitialEvidence
	AwaitingPeerIntermediaryEvidence
	Done
)

func (s State) String() string {
	switch s {
	case AwaitingOrder:
		return "AWAITING_ORDER"
	case AwaitingPeerInitialEvidence:
		return "AWAITING_PEER_INITIAL_EVIDENCE"
	case AwaitingPeerIntermediaryEvidence:
		return "AWAITING_PEER_INTERMEDIARY_EVIDENCE"
	case Done:
		return "DONE"
	default:
		return fmt.Sprintf("STATE(%d)", uint8(s))
	}
}

// Lieutenant runs the four rounds for one lieutenant. The Handle*
// methods and the accessors are not safe for concurrent use; once
// Run has been started every interaction has to go through the
// inbox, Query and Done.
type Lieutenant struct {
	cfg      Config
	index    int
	verifier *verify.Verifier
	sender   Sender
	traitor  *Traitor

	logger *zap.SugaredLogger

	state        State
	order        bool
	orderSet     bool
	cv           types.CommandVector
	initial      slot
	intermediate slot
	final        slot
	// command vectors queued as proof in round 3
	exhibits []types.CommandVector
	store    *ProofStore

	queryChan chan *future.Report
	doneChan  chan struct{}
}

type LieutenantOption func(*Lieutenant)

// WithTraitor makes the lieutenant publish evidence chosen by t.
func WithTraitor(t *Traitor) LieutenantOption {
	return func(l *Lieutenant) {
		l.traitor = t
	}
}

func NewLieutenant(cfg Config, index int, bits types.BitVector, s Sender, l *zap.SugaredLogger, opts ...LieutenantOption) (*Lieutenant, error) {
	if !cfg.validLieutenant(index) {
		return nil, fmt.Errorf("%w: %d", ErrIndexRange, index)
	}
	v, err := verify.New(cfg.Params(), index, bits)
	if err != nil {
		return nil, err
	}
	lt := &Lieutenant{
		cfg:          cfg,
		index:        index,
		verifier:     v,
		sender:       s,
		logger:       l,
		initial:      slot{name: "initial"},
		intermediate: slot{name: "intermediate"},
		final:        slot{name: "final"},
		store:        NewProofStore(index, cfg.Lieutenants()),
		queryChan:    make(chan *future.Report),
		doneChan:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(lt)
	}
	return lt, nil
}

func (l *Lieutenant) ID() message.PlayerID {
	return message.PlayerID(l.index)
}

func (l *Lieutenant) Index() int {
	return l.index
}

func (l *Lieutenant) Name() string {
	return l.cfg.LieutenantName(l.index)
}

func (l *Lieutenant) IsTraitor() bool {
	return l.traitor != nil
}

func (l *Lieutenant) State() State {
	return l.state
}

// Done is closed once the final decision is set.
func (l *Lieutenant) Done() <-chan struct{} {
	return l.doneChan
}

func (l *Lieutenant) ReceivedOrder() (bool, error) {
	if !l.orderSet {
		return false, ErrOrderUnset
	}
	return l.order, nil
}

func (l *Lieutenant) CommandVector() (types.CommandVector, error) {
	if !l.orderSet {
		return nil, ErrCommandVectorUnset
	}
	return l.cv.Clone(), nil
}

func (l *Lieutenant) InitialDecision() (types.Decision, error) {
	return l.initial.get()
}

func (l *Lieutenant) IntermediateDecision() (types.Decision, error) {
	return l.intermediate.get()
}

func (l *Lieutenant) FinalDecision() (types.Decision, error) {
	return l.final.get()
}

// Exhibits returns the command vectors published as proof in round 3.
func (l *Lieutenant) Exhibits() []types.CommandVector {
	out := make([]types.CommandVector, len(l.exhibits))
	for i, cv := range l.exhibits {
		out[i] = cv.Clone()
	}
	return out
}

func (l *Lieutenant) Store() *ProofStore {
	return l.store
}

func (l *Lieutenant) Report() types.Report {
	return types.Report{
		Name:                 l.Name(),
		Index:                l.index,
		IsTraitor:            l.IsTraitor(),
		ReceivedOrder:        l.order,
		InitialDecision:      l.initial.peek(),
		IntermediateDecision: l.intermediate.peek(),
		FinalDecision:        l.final.peek(),
		Done:                 l.state == Done,
		Round:                l.state.String(),
	}
}

// Handle dispatches an envelope to the handler of its kind.
func (l *Lieutenant) Handle(ctx context.Context, env *message.Envelope) error {
	if err := env.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedMessage, err)
	}
	if env.To != l.ID() {
		return fmt.Errorf("%w: envelope for %s delivered to %s", ErrUnexpectedMessage, env.To, l.ID())
	}
	switch env.Kind {
	case message.KindOrder:
		if !env.From.IsCommander() {
			return fmt.Errorf("%w: order from %s", ErrUnexpectedMessage, env.From)
		}
		return l.HandleOrder(ctx, env.Order.Value, env.Order.CommandVector)
	case message.KindInitialEvidence:
		return l.HandleInitialEvidence(ctx, int(env.From), *env.Initial)
	case message.KindIntermediaryEvidence:
		return l.HandleIntermediaryEvidence(ctx, int(env.From), *env.Intermediary)
	}
	return fmt.Errorf("%w: kind %s", ErrUnexpectedMessage, env.Kind)
}

// HandleOrder plays rounds 1 and 2: check the commander, settle the
// initial decision and publish it with the received command vector.
func (l *Lieutenant) HandleOrder(ctx context.Context, order bool, cv types.CommandVector) error {
	if l.state != AwaitingOrder {
		return fmt.Errorf("%w: second order in state %s", ErrUnexpectedMessage, l.state)
	}
	l.order = order
	l.orderSet = true
	l.cv = cv.Clone()

	initial := types.Abstain
	if len(l.cv) > 0 {
		ok, err := l.verifier.CheckCommander(order, l.cv)
		if err != nil {
			return err
		}
		if ok {
			initial = types.FromBool(order)
		}
	}
	if err := l.initial.put(initial); err != nil {
		return err
	}
	ev := types.InitialEvidence{Decision: initial, CommandVector: l.cv}
	if err := l.store.SetOwnInitial(ev); err != nil {
		return err
	}
	l.state = AwaitingPeerInitialEvidence
	l.logger.Infow("received order from commander", "order", order, "initial", initial)

	if err := l.broadcastInitial(ctx, ev); err != nil {
		return err
	}
	return l.advance(ctx)
}

// HandleInitialEvidence stores the round 2 evidence of a peer. It
// may arrive before the own order; it is then held until the order
// is processed.
func (l *Lieutenant) HandleInitialEvidence(ctx context.Context, from int, ev types.InitialEvidence) error {
	if err := l.store.PutInitial(from, ev); err != nil {
		return err
	}
	l.logger.Debugw("received initial evidence", "from", l.cfg.LieutenantName(from), "decision", ev.Decision)
	return l.advance(ctx)
}

// HandleIntermediaryEvidence stores the round 3 evidence of a peer.
func (l *Lieutenant) HandleIntermediaryEvidence(ctx context.Context, from int, ev types.IntermediaryEvidence) error {
	if err := l.store.PutIntermediary(from, ev); err != nil {
		return err
	}
	l.logger.Debugw("received intermediary evidence", "from", l.cfg.LieutenantName(from), "decision", ev.Decision)
	return l.advance(ctx)
}

// advance takes every transition whose barrier is complete.
func (l *Lieutenant) advance(ctx context.Context) error {
	for {
		switch l.state {
		case AwaitingPeerInitialEvidence:
			if !l.store.InitialComplete() {
				return nil
			}
			l.logger.Infow("received initial evidence from all lieutenants")
			if err := l.roundThree(ctx); err != nil {
				return err
			}
			l.state = AwaitingPeerIntermediaryEvidence
		case AwaitingPeerIntermediaryEvidence:
			if !l.store.IntermediaryComplete() {
				return nil
			}
			l.logger.Infow("received intermediary evidence from all lieutenants")
			if err := l.roundFour(); err != nil {
				return err
			}
			l.state = Done
			close(l.doneChan)
		default:
			return nil
		}
	}
}

func (l *Lieutenant) roundThree(ctx context.Context) error {
	d, exhibits, err := l.decideIntermediate()
	if err != nil {
		return err
	}
	if err := l.intermediate.put(d); err != nil {
		return err
	}
	l.exhibits = exhibits
	ev := types.IntermediaryEvidence{Decision: d, CommandVectors: exhibits}
	if err := l.store.SetOwnIntermediary(ev); err != nil {
		return err
	}
	l.logger.Infow("intermediate decision", "decision", d, "exhibits", len(exhibits))
	return l.broadcastIntermediary(ctx, ev)
}

func (l *Lieutenant) roundFour() error {
	d, err := l.decideFinal()
	if err != nil {
		return err
	}
	if err := l.final.put(d); err != nil {
		return err
	}
	l.logger.Infow("final decision", "decision", d)
	return nil
}

func (l *Lieutenant) broadcastInitial(ctx context.Context, ev types.InitialEvidence) error {
	for _, p := range l.cfg.Peers(l.index) {
		out := ev
		if l.traitor != nil {
			var ok bool
			if out, ok = l.traitor.Initial(p, ev); !ok {
				continue
			}
		}
		env := message.NewInitial(l.ID(), message.PlayerID(p), out.Clone())
		if err := l.send(ctx, env); err != nil {
			return err
		}
	}
	return nil
}

func (l *Lieutenant) broadcastIntermediary(ctx context.Context, ev types.IntermediaryEvidence) error {
	for _, p := range l.cfg.Peers(l.index) {
		out := ev
		if l.traitor != nil {
			var ok bool
			if out, ok = l.traitor.Intermediary(p, ev); !ok {
				continue
			}
		}
		env := message.NewIntermediary(l.ID(), message.PlayerID(p), out.Clone())
		if err := l.send(ctx, env); err != nil {
			return err
		}
	}
	return nil
}

func (l *Lieutenant) send(ctx context.Context, env *message.Envelope) error {
	if l.sender == nil {
		return nil
	}
	if err := l.sender.Send(ctx, env); err != nil {
		return fmt.Errorf("send %s to %s failed: %v", env.Kind, env.To, err)
	}
	return nil
}

// Run is the event loop of the lieutenant. Messages rejected as
// unexpected or duplicate are logged and dropped; caller contract
// violations stop the loop. Run returns when ctx is cancelled or
// inbox is closed.
func (l *Lieutenant) Run(ctx context.Context, inbox <-chan *message.Envelope) error {
	for {
		select {
		case env, ok := <-inbox:
			if !ok {
				return nil
			}
			if env == nil {
				continue
			}
			if err := l.Handle(ctx, env); err != nil {
				if errors.Is(err, ErrContract) {
					return fmt.Errorf("%s: %w", l.Name(), err)
				}
				l.logger.Warnw("dropped message", "from", env.From, "kind", env.Kind, "err", err)
			}
		case f := <-l.queryChan:
			f.Report = l.Report()
			f.Respond(nil)
		case <-ctx.Done():
			return nil
		}
	}
}

// Query asks the running event loop for a report.
func (l *Lieutenant) Query(ctx context.Context) (types.Report, error) {
	f := &future.Report{}
	f.Init()
	select {
	case l.queryChan <- f:
	case <-ctx.Done():
		return types.Report{}, ctx.Err()
	}
	if err := f.Wait(ctx); err != nil {
		return types.Report{}, err
	}
	return f.Report, nil
}
