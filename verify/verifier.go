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

package verify

import (
	"fmt"

	"github.com/ultiledger/go-qba/types"
)

// Verifier runs the checks from the point of view of one
// Lieutenant, the observer, whose slot and bit vector are fixed.
type Verifier struct {
	params Params
	index  int
	bits   types.BitVector
}

// New binds the checks to the observer at slot index. The bit
// vector is copied so later changes by the caller cannot leak in.
func New(p Params, index int, bits types.BitVector) (*Verifier, error) {
	if !p.validSlot(index) {
		return nil, fmt.Errorf("%w: observer %d, width %d", ErrIndexRange, index, p.Width)
	}
	if len(bits) != p.Len() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBitVector, len(bits), p.Len())
	}
	return &Verifier{params: p, index: index, bits: bits.Clone()}, nil
}

func (v *Verifier) Params() Params {
	return v.params
}

func (v *Verifier) Index() int {
	return v.index
}

// CheckCommander verifies the command vector received from the
// Commander together with order. Roughly half of the tuples must
// reveal the order at the observer's slot, and every revealed cell
// at that slot must disagree with the observer's own bit.
func (v *Verifier) CheckCommander(order bool, cv types.CommandVector) (bool, error) {
	if len(cv) == 0 {
		return false, ErrVectorMissing
	}
	n := CountMatch(v.params, cv, v.index, order)
	if !ApproxEqual(n, v.params.HalfTuples(), v.params.Tolerance) {
		return false, nil
	}
	return v.antiCorrelated(cv), nil
}

// CheckPeerByCommandVector verifies that peer's claim is backed by
// a genuine command vector. The observer must hold its own command
// vector (own), since the tuples where the Commander revealed
// (not claim, claim) at (observer, peer) have to coincide.
func (v *Verifier) CheckPeerByCommandVector(own types.CommandVector, peer int, claim types.Decision, peerCV types.CommandVector) (bool, error) {
	c, err := v.checkArgs(peer, claim, peerCV)
	if err != nil {
		return false, err
	}
	if len(own) == 0 {
		return false, fmt.Errorf("%w: observer command vector", ErrVectorMissing)
	}
	if !v.pairCountsHold(peer, c, peerCV) {
		return false, nil
	}
	theirs := MatchPairSet(v.params, peerCV, v.index, peer, !c, c)
	mine := MatchPairSet(v.params, own, v.index, peer, !c, c)
	diff := theirs.SymmetricDifference(mine).Cardinality()
	return ApproxEqual(diff, 0, v.params.Tolerance), nil
}

// CheckPeerByBitVector is used by an observer without a consistent
// command vector of its own. Besides the pair counts, the peer's
// vector must disagree with the observer's bits at the observer's
// slot in every revealed tuple.
func (v *Verifier) CheckPeerByBitVector(peer int, claim types.Decision, peerCV types.CommandVector) (bool, error) {
	c, err := v.checkArgs(peer, claim, peerCV)
	if err != nil {
		return false, err
	}
	if !v.pairCountsHold(peer, c, peerCV) {
		return false, nil
	}
	return v.antiCorrelated(peerCV), nil
}

func (v *Verifier) checkArgs(peer int, claim types.Decision, peerCV types.CommandVector) (bool, error) {
	if !v.params.validSlot(peer) || peer == v.index {
		return false, fmt.Errorf("%w: peer %d, observer %d", ErrIndexRange, peer, v.index)
	}
	c, ok := claim.Bool()
	if !ok {
		return false, ErrClaimUnset
	}
	if len(peerCV) == 0 {
		return false, ErrVectorMissing
	}
	return c, nil
}

// both (c, c) and (not c, c) at (observer, peer) should show up in
// about a quarter of the tuples
func (v *Verifier) pairCountsHold(peer int, c bool, peerCV types.CommandVector) bool {
	quarter := v.params.QuarterTuples()
	if !ApproxEqual(CountMatchPair(v.params, peerCV, v.index, peer, c, c), quarter, v.params.Tolerance) {
		return false
	}
	return ApproxEqual(CountMatchPair(v.params, peerCV, v.index, peer, !c, c), quarter, v.params.Tolerance)
}

// any single revealed cell equal to the observer's bit fails the scan
func (v *Verifier) antiCorrelated(cv types.CommandVector) bool {
	for k := 0; k < v.params.Tuples; k++ {
		pos := v.params.Pos(k, v.index)
		if cv.At(pos).Is(v.bits.At(pos)) {
			return false
		}
	}
	return true
}
