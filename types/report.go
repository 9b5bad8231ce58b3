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

// Report is what a Lieutenant exposes to orchestration. Slots not
// reached yet read as Abstain and Done stays false. Round names the
// state the lieutenant is waiting in.
type Report struct {
	Name                 string   `cbor:"1,keyasint" json:"name"`
	Index                int      `cbor:"2,keyasint" json:"index"`
	IsTraitor            bool     `cbor:"3,keyasint" json:"is_traitor"`
	ReceivedOrder        bool     `cbor:"4,keyasint" json:"received_order"`
	InitialDecision      Decision `cbor:"5,keyasint" json:"initial_decision"`
	IntermediateDecision Decision `cbor:"6,keyasint" json:"intermediate_decision"`
	FinalDecision        Decision `cbor:"7,keyasint" json:"final_decision"`
	Done                 bool     `cbor:"8,keyasint" json:"done"`
	Round                string   `cbor:"9,keyasint" json:"round"`
}
