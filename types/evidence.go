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

// InitialEvidence is broadcast by every Lieutenant at the end of
// round 2: its initial decision and the command vector it got.
type InitialEvidence struct {
	Decision      Decision      `cbor:"1,keyasint" json:"decision"`
	CommandVector CommandVector `cbor:"2,keyasint" json:"command_vector"`
}

// Clone returns a deep copy so that stored evidence never aliases
// a vector owned by another player.
func (e InitialEvidence) Clone() InitialEvidence {
	return InitialEvidence{
		Decision:      e.Decision,
		CommandVector: e.CommandVector.Clone(),
	}
}

// IntermediaryEvidence is broadcast at the end of round 3: the
// intermediate decision and up to two command vectors as exhibits.
type IntermediaryEvidence struct {
	Decision       Decision        `cbor:"1,keyasint" json:"decision"`
	CommandVectors []CommandVector `cbor:"2,keyasint" json:"command_vectors"`
}

// MaxExhibits bounds the command vectors one intermediary
// evidence may carry.
const MaxExhibits = 2

func (e IntermediaryEvidence) Clone() IntermediaryEvidence {
	c := IntermediaryEvidence{Decision: e.Decision}
	if e.CommandVectors != nil {
		c.CommandVectors = make([]CommandVector, len(e.CommandVectors))
		for i, cv := range e.CommandVectors {
			c.CommandVectors[i] = cv.Clone()
		}
	}
	return c
}

// EvidenceBundle is everything an observer holds about one
// Lieutenant after round 3.
type EvidenceBundle struct {
	Initial      InitialEvidence      `json:"initial"`
	Intermediary IntermediaryEvidence `json:"intermediary"`
}
