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
	"github.com/ultiledger/go-qba/types"
)

// claims from peers outside the three variants count as Abstain
func normalize(d types.Decision) types.Decision {
	if !d.Valid() {
		return types.Abstain
	}
	return d
}

// An empty vector, ours or the peer's, cannot back any claim.
func (l *Lieutenant) verifiesByCommandVector(peer int, claim types.Decision, cv types.CommandVector) (bool, error) {
	if len(cv) == 0 || len(l.cv) == 0 {
		return false, nil
	}
	return l.verifier.CheckPeerByCommandVector(l.cv, peer, claim, cv)
}

func (l *Lieutenant) verifiesByBitVector(peer int, claim types.Decision, cv types.CommandVector) (bool, error) {
	if len(cv) == 0 {
		return false, nil
	}
	return l.verifier.CheckPeerByBitVector(peer, claim, cv)
}

// decideIntermediate applies rules 3.1 to 3.3 to the initial
// evidence of all peers. Peers are visited in index order.
func (l *Lieutenant) decideIntermediate() (types.Decision, []types.CommandVector, error) {
	d, err := l.initial.get()
	if err != nil {
		return types.Abstain, nil, err
	}
	if !l.store.InitialComplete() {
		return types.Abstain, nil, ErrBarrierIncomplete
	}
	peers := l.store.Peers()
	claims := make(map[int]types.InitialEvidence, len(peers))
	for _, p := range peers {
		ev, _ := l.store.Initial(p)
		ev.Decision = normalize(ev.Decision)
		claims[p] = ev
	}

	// rule 3.1
	unanimous := true
	for _, p := range peers {
		if claims[p].Decision != d {
			unanimous = false
			break
		}
	}
	if unanimous {
		l.logger.Debugw("rule 3.1: peers agree with initial decision", "decision", d)
		return d, nil, nil
	}

	// rule 3.2
	if d.IsAccept() {
		abstained := true
		for _, p := range peers {
			if claims[p].Decision != types.Abstain {
				abstained = false
				break
			}
		}
		if abstained {
			l.logger.Debugw("rule 3.2: every peer abstained", "decision", d)
			return d, nil, nil
		}
		opposite := d.Opposite()
		for _, p := range peers {
			ev := claims[p]
			if ev.Decision != opposite {
				continue
			}
			ok, err := l.verifiesByCommandVector(p, opposite, ev.CommandVector)
			if err != nil {
				return types.Abstain, nil, err
			}
			if ok {
				l.logger.Debugw("rule 3.2: verified conflicting claim", "peer", l.cfg.LieutenantName(p), "claim", opposite)
				return types.Abstain, []types.CommandVector{ev.CommandVector.Clone()}, nil
			}
		}
		l.logger.Debugw("rule 3.2: no conflicting claim verified", "decision", d)
		return d, nil, nil
	}

	// rule 3.3
	var first, conflict *types.InitialEvidence
	for _, p := range peers {
		ev := claims[p]
		if !ev.Decision.IsAccept() {
			continue
		}
		ok, err := l.verifiesByBitVector(p, ev.Decision, ev.CommandVector)
		if err != nil {
			return types.Abstain, nil, err
		}
		if !ok {
			continue
		}
		if first == nil {
			first = &ev
			continue
		}
		if ev.Decision != first.Decision && conflict == nil {
			conflict = &ev
		}
	}
	switch {
	case first == nil:
		l.logger.Debugw("rule 3.3: no verified claim")
		return types.Abstain, nil, nil
	case conflict != nil:
		l.logger.Debugw("rule 3.3: verified claims conflict")
		return types.Abstain, []types.CommandVector{first.CommandVector.Clone(), conflict.CommandVector.Clone()}, nil
	default:
		l.logger.Debugw("rule 3.3: adopting verified claim", "decision", first.Decision)
		return first.Decision, []types.CommandVector{first.CommandVector.Clone()}, nil
	}
}

// decideFinal applies rules 4.1 to 4.6 to the intermediary evidence
// of all peers.
func (l *Lieutenant) decideFinal() (types.Decision, error) {
	d, err := l.intermediate.get()
	if err != nil {
		return types.Abstain, err
	}
	if !l.store.IntermediaryComplete() {
		return types.Abstain, ErrBarrierIncomplete
	}

	// rule 4.1
	if d == types.Abstain && len(l.exhibits) == types.MaxExhibits {
		l.logger.Debugw("rule 4.1: own conflict is self-evident")
		return types.Abstain, nil
	}

	bundles, err := l.store.Bundles()
	if err != nil {
		return types.Abstain, err
	}
	peers := l.cfg.Peers(l.index)
	initial := make(map[int]types.Decision, len(peers))
	reports := make(map[int]types.IntermediaryEvidence, len(peers))
	for _, p := range peers {
		b := bundles[p]
		initial[p] = normalize(b.Initial.Decision)
		ev := b.Intermediary
		ev.Decision = normalize(ev.Decision)
		reports[p] = ev
	}

	// rule 4.2
	unanimous := true
	for _, p := range peers {
		if reports[p].Decision != d {
			unanimous = false
			break
		}
	}
	if unanimous {
		l.logger.Debugw("rule 4.2: peers agree with intermediate decision", "decision", d)
		return d, nil
	}
	if !d.IsAccept() {
		return types.Abstain, nil
	}

	// rules 4.3 and 4.4
	triggered := false
	for _, p := range peers {
		claim := initial[p]
		if reports[p].Decision != types.Abstain || !claim.IsAccept() {
			continue
		}
		triggered = true
		for _, cv := range reports[p].CommandVectors {
			ok, err := l.verifiesByCommandVector(p, claim, cv)
			if err != nil {
				return types.Abstain, err
			}
			if ok {
				l.logger.Debugw("rule 4.3: peer proved a conflict", "peer", l.cfg.LieutenantName(p))
				return types.Abstain, nil
			}
		}
	}
	if triggered {
		l.logger.Debugw("rule 4.4: no abstaining peer proved a conflict", "decision", d)
		return d, nil
	}

	// rules 4.5 and 4.6
	opposite := d.Opposite()
	for _, p := range peers {
		if reports[p].Decision != opposite {
			continue
		}
		for _, cv := range reports[p].CommandVectors {
			ok, err := l.verifiesByCommandVector(p, opposite, cv)
			if err != nil {
				return types.Abstain, err
			}
			if ok {
				l.logger.Debugw("rule 4.5: peer proved the opposite value", "peer", l.cfg.LieutenantName(p))
				return types.Abstain, nil
			}
		}
	}
	l.logger.Debugw("rule 4.6: keeping intermediate decision", "decision", d)
	return d, nil
}
