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
	"sort"

	"github.com/ultiledger/go-qba/types"
)

// ProofStore keeps, for one observing lieutenant, the evidence every
// lieutenant has published. Peer evidence is kept per round so that
// a round barrier is complete exactly when all N-2 peers have
// delivered for it. The observer's own evidence is inserted
// directly without a message.
type ProofStore struct {
	self  int
	width int

	initial      map[int]types.InitialEvidence
	intermediary map[int]types.IntermediaryEvidence

	ownInitial      *types.InitialEvidence
	ownIntermediary *types.IntermediaryEvidence
}

func NewProofStore(self, width int) *ProofStore {
	return &ProofStore{
		self:         self,
		width:        width,
		initial:      make(map[int]types.InitialEvidence),
		intermediary: make(map[int]types.IntermediaryEvidence),
	}
}

func (s *ProofStore) checkPeer(peer int) error {
	if peer < 0 || peer >= s.width || peer == s.self {
		return fmt.Errorf("%w: evidence from %d is not from a peer of %d", ErrUnexpectedMessage, peer, s.self)
	}
	return nil
}

// expected number of peer entries per round (N-2)
func (s *ProofStore) expected() int {
	return s.width - 1
}

// PutInitial records the initial evidence of a peer. A second
// evidence from the same peer is rejected and the first one kept.
func (s *ProofStore) PutInitial(peer int, ev types.InitialEvidence) error {
	if err := s.checkPeer(peer); err != nil {
		return err
	}
	if _, ok := s.initial[peer]; ok {
		return fmt.Errorf("%w: initial evidence from %d", ErrDuplicateEvidence, peer)
	}
	s.initial[peer] = ev.Clone()
	return nil
}

// PutIntermediary records the intermediary evidence of a peer.
// Evidence with more than MaxExhibits command vectors is rejected.
func (s *ProofStore) PutIntermediary(peer int, ev types.IntermediaryEvidence) error {
	if err := s.checkPeer(peer); err != nil {
		return err
	}
	if _, ok := s.intermediary[peer]; ok {
		return fmt.Errorf("%w: intermediary evidence from %d", ErrDuplicateEvidence, peer)
	}
	if len(ev.CommandVectors) > types.MaxExhibits {
		return fmt.Errorf("%w: %d exhibits from %d", ErrUnexpectedMessage, len(ev.CommandVectors), peer)
	}
	s.intermediary[peer] = ev.Clone()
	return nil
}

func (s *ProofStore) SetOwnInitial(ev types.InitialEvidence) error {
	if s.ownInitial != nil {
		return fmt.Errorf("%w: own initial evidence", ErrSlotAlreadySet)
	}
	c := ev.Clone()
	s.ownInitial = &c
	return nil
}

func (s *ProofStore) SetOwnIntermediary(ev types.IntermediaryEvidence) error {
	if s.ownIntermediary != nil {
		return fmt.Errorf("%w: own intermediary evidence", ErrSlotAlreadySet)
	}
	c := ev.Clone()
	s.ownIntermediary = &c
	return nil
}

// InitialComplete reports whether every peer delivered its initial
// evidence.
func (s *ProofStore) InitialComplete() bool {
	return len(s.initial) == s.expected()
}

func (s *ProofStore) IntermediaryComplete() bool {
	return len(s.intermediary) == s.expected()
}

// Peers returns the peers with initial evidence in ascending order.
func (s *ProofStore) Peers() []int {
	peers := make([]int, 0, len(s.initial))
	for p := range s.initial {
		peers = append(peers, p)
	}
	sort.Ints(peers)
	return peers
}

func (s *ProofStore) Initial(peer int) (types.InitialEvidence, bool) {
	if peer == s.self && s.ownInitial != nil {
		return *s.ownInitial, true
	}
	ev, ok := s.initial[peer]
	return ev, ok
}

func (s *ProofStore) Intermediary(peer int) (types.IntermediaryEvidence, bool) {
	if peer == s.self && s.ownIntermediary != nil {
		return *s.ownIntermediary, true
	}
	ev, ok := s.intermediary[peer]
	return ev, ok
}

// Bundles merges both rounds into one bundle per lieutenant, self
// included. It fails until the initial barrier is complete.
func (s *ProofStore) Bundles() (map[int]types.EvidenceBundle, error) {
	if s.ownInitial == nil || !s.InitialComplete() {
		return nil, fmt.Errorf("%w: %d of %d initial evidences", ErrBarrierIncomplete, len(s.initial), s.expected())
	}
	out := make(map[int]types.EvidenceBundle, s.width)
	for i := 0; i < s.width; i++ {
		var b types.EvidenceBundle
		if ev, ok := s.Initial(i); ok {
			b.Initial = ev.Clone()
		}
		if ev, ok := s.Intermediary(i); ok {
			b.Intermediary = ev.Clone()
		}
		out[i] = b
	}
	return out, nil
}
