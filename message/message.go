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

package message

import (
	"fmt"

	"github.com/ultiledger/go-qba/types"
)

// PlayerID identifies a player on the transport. Lieutenants use
// their index, the Commander uses CommanderID.
type PlayerID int

const CommanderID PlayerID = -1

func (id PlayerID) IsCommander() bool {
	return id == CommanderID
}

func (id PlayerID) String() string {
	if id == CommanderID {
		return "commander"
	}
	return fmt.Sprintf("lieutenant-%d", int(id))
}

// Kind tells the receiver which handler an envelope belongs to.
type Kind uint8

const (
	KindOrder Kind = iota + 1
	KindInitialEvidence
	KindIntermediaryEvidence
)

func (k Kind) String() string {
	switch k {
	case KindOrder:
		return "ORDER"
	case KindInitialEvidence:
		return "INITIAL_EVIDENCE"
	case KindIntermediaryEvidence:
		return "INTERMEDIARY_EVIDENCE"
	default:
		return fmt.Sprintf("KIND(%d)", uint8(k))
	}
}

// Order is sent once by the Commander to every Lieutenant and
// carries the order together with its command vector.
type Order struct {
	Value         bool                `cbor:"1,keyasint"`
	CommandVector types.CommandVector `cbor:"2,keyasint"`
}

// Envelope is the unit the transport moves between players. Exactly
// one payload field matching Kind is set.
type Envelope struct {
	From         PlayerID                    `cbor:"1,keyasint"`
	To           PlayerID                    `cbor:"2,keyasint"`
	Kind         Kind                        `cbor:"3,keyasint"`
	Order        *Order                      `cbor:"4,keyasint,omitempty"`
	Initial      *types.InitialEvidence      `cbor:"5,keyasint,omitempty"`
	Intermediary *types.IntermediaryEvidence `cbor:"6,keyasint,omitempty"`
}

// Validate checks that the payload matches the declared kind.
func (e *Envelope) Validate() error {
	if e == nil {
		return fmt.Errorf("envelope is nil")
	}
	switch e.Kind {
	case KindOrder:
		if e.Order == nil {
			return fmt.Errorf("%s envelope without order payload", e.Kind)
		}
	case KindInitialEvidence:
		if e.Initial == nil {
			return fmt.Errorf("%s envelope without initial evidence", e.Kind)
		}
	case KindIntermediaryEvidence:
		if e.Intermediary == nil {
			return fmt.Errorf("%s envelope without intermediary evidence", e.Kind)
		}
	default:
		return fmt.Errorf("unknown envelope kind %s", e.Kind)
	}
	return nil
}

// NewOrder builds the Commander to Lieutenant envelope.
func NewOrder(to PlayerID, value bool, cv types.CommandVector) *Envelope {
	return &Envelope{
		From:  CommanderID,
		To:    to,
		Kind:  KindOrder,
		Order: &Order{Value: value, CommandVector: cv},
	}
}

// NewInitial builds a round 2 evidence envelope.
func NewInitial(from, to PlayerID, ev types.InitialEvidence) *Envelope {
	return &Envelope{
		From:    from,
		To:      to,
		Kind:    KindInitialEvidence,
		Initial: &ev,
	}
}

// NewIntermediary builds a round 3 evidence envelope.
func NewIntermediary(from, to PlayerID, ev types.IntermediaryEvidence) *Envelope {
	return &Envelope{
		From:         from,
		To:           to,
		Kind:         KindIntermediaryEvidence,
		Intermediary: &ev,
	}
}
