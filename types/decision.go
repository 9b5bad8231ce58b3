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

package types

import "fmt"

// Decision is the tri-state value a Lieutenant settles on in every
// round. Abstain is an ordinary outcome of the protocol.
type Decision uint8

const (
	Abstain Decision = iota
	AcceptFalse
	AcceptTrue
)

// FromBool converts an order into the matching accept decision.
func FromBool(b bool) Decision {
	if b {
		return AcceptTrue
	}
	return AcceptFalse
}

// Bool returns the accepted value and whether the decision
// accepts anything at all.
func (d Decision) Bool() (bool, bool) {
	switch d {
	case AcceptTrue:
		return true, true
	case AcceptFalse:
		return false, true
	default:
		return false, false
	}
}

func (d Decision) IsAccept() bool {
	return d == AcceptTrue || d == AcceptFalse
}

// Opposite swaps the two accept values and keeps Abstain.
func (d Decision) Opposite() Decision {
	switch d {
	case AcceptTrue:
		return AcceptFalse
	case AcceptFalse:
		return AcceptTrue
	default:
		return Abstain
	}
}

// Valid reports whether d is one of the three known variants.
func (d Decision) Valid() bool {
	return d <= AcceptTrue
}

func (d Decision) String() string {
	switch d {
	case Abstain:
		return "abstain"
	case AcceptFalse:
		return "false"
	case AcceptTrue:
		return "true"
	default:
		return fmt.Sprintf("decision(%d)", uint8(d))
	}
}

// ParseDecision is the inverse of String.
func ParseDecision(s string) (Decision, error) {
	switch s {
	case "abstain":
		return Abstain, nil
	case "false":
		return AcceptFalse, nil
	case "true":
		return AcceptTrue, nil
	}
	return Abstain, fmt.Errorf("unknown decision %q", s)
}

func (d Decision) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid decision %d", uint8(d))
	}
	return []byte(d.String()), nil
}

func (d *Decision) UnmarshalText(text []byte) error {
	v, err := ParseDecision(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
