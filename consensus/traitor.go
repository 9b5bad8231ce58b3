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
	"fmt"
	"math/rand/v2"

	"github.com/ultiledger/go-qba/types"
)

// Strategy selects how a traitor lieutenant deviates.
type Strategy string

const (
	// same random claim to every peer
	StrategyRandom Strategy = "random"
	// a fresh random claim for every peer
	StrategyEquivocate Strategy = "equivocate"
	// never publish any evidence
	StrategySilent Strategy = "silent"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyRandom, StrategyEquivocate, StrategySilent:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// Traitor rewrites the evidence a lieutenant publishes. The honest
// evidence is still computed and kept for reporting.
type Traitor struct {
	strategy Strategy
	rng      *rand.Rand
	size     int

	initial      *types.InitialEvidence
	intermediary *types.IntermediaryEvidence
}

func NewTraitor(strategy Strategy, seed uint64, vectorLen int) (*Traitor, error) {
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}
	return &Traitor{
		strategy: strategy,
		rng:      rand.New(rand.NewPCG(seed, uint64(vectorLen))),
		size:     vectorLen,
	}, nil
}

func (t *Traitor) Strategy() Strategy {
	return t.strategy
}

// Initial returns the initial evidence sent to peer, or false when
// nothing is sent.
func (t *Traitor) Initial(peer int, honest types.InitialEvidence) (types.InitialEvidence, bool) {
	switch t.strategy {
	case StrategySilent:
		return types.InitialEvidence{}, false
	case StrategyRandom:
		if t.initial == nil {
			ev := t.randomInitial()
			t.initial = &ev
		}
		return t.initial.Clone(), true
	default:
		return t.randomInitial(), true
	}
}

// Intermediary returns the intermediary evidence sent to peer, or
// false when nothing is sent.
func (t *Traitor) Intermediary(peer int, honest types.IntermediaryEvidence) (types.IntermediaryEvidence, bool) {
	switch t.strategy {
	case StrategySilent:
		return types.IntermediaryEvidence{}, false
	case StrategyRandom:
		if t.intermediary == nil {
			ev := t.randomIntermediary()
			t.intermediary = &ev
		}
		return t.intermediary.Clone(), true
	default:
		return t.randomIntermediary(), true
	}
}

func (t *Traitor) randomDecision() types.Decision {
	return types.Decision(t.rng.IntN(3))
}

func (t *Traitor) randomVector() types.CommandVector {
	cv := make(types.CommandVector, t.size)
	for i := range cv {
		cv[i] = types.Cell(t.rng.IntN(3))
	}
	return cv
}

func (t *Traitor) randomInitial() types.InitialEvidence {
	return types.InitialEvidence{
		Decision:      t.randomDecision(),
		CommandVector: t.randomVector(),
	}
}

func (t *Traitor) randomIntermediary() types.IntermediaryEvidence {
	ev := types.IntermediaryEvidence{Decision: t.randomDecision()}
	n := t.rng.IntN(types.MaxExhibits + 1)
	for i := 0; i < n; i++ {
		ev.CommandVectors = append(ev.CommandVectors, t.randomVector())
	}
	return ev
}
