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

package results

import (
	"github.com/ultiledger/go-qba/types"
)

// Record is the outcome of a single shot of an experiment. The result
// slices are indexed by lieutenant.
type Record struct {
	ExperimentName      string           `cbor:"1,keyasint" json:"experiment_name"`
	Timestamp           int64            `cbor:"2,keyasint" json:"timestamp"`
	ShotID              int              `cbor:"3,keyasint" json:"shot_id"`
	SweptParameter      string           `cbor:"4,keyasint,omitempty" json:"swept_parameter,omitempty"`
	SweptValue          float64          `cbor:"5,keyasint,omitempty" json:"swept_value,omitempty"`
	CommandsSent        []bool           `cbor:"6,keyasint" json:"commands_sent"`
	InitialResults      []types.Decision `cbor:"7,keyasint" json:"initial_results"`
	IntermediateResults []types.Decision `cbor:"8,keyasint" json:"intermediate_results"`
	FinalResults        []types.Decision `cbor:"9,keyasint" json:"final_results"`
	TraitorIndices      []int            `cbor:"10,keyasint" json:"traitor_indices"`
	M                   int              `cbor:"11,keyasint" json:"m"`
	N                   int              `cbor:"12,keyasint" json:"n"`
	NumTraitors         int              `cbor:"13,keyasint" json:"num_traitors"`
	CommanderIsTraitor  bool             `cbor:"14,keyasint" json:"commander_is_traitor"`
}

// IsTraitor reports whether lieutenant i was a traitor in this shot.
func (r *Record) IsTraitor(i int) bool {
	for _, t := range r.TraitorIndices {
		if t == i {
			return true
		}
	}
	return false
}

// Agreement holds when every loyal lieutenant reached the same final
// decision, abstaining together included.
func (r *Record) Agreement() bool {
	first := true
	var d types.Decision
	for i, f := range r.FinalResults {
		if r.IsTraitor(i) {
			continue
		}
		if first {
			d, first = f, false
			continue
		}
		if f != d {
			return false
		}
	}
	return true
}

// Validity reports whether every loyal lieutenant accepted the order
// it was sent. The second result is false when the commander was a
// traitor, validity does not apply then.
func (r *Record) Validity() (bool, bool) {
	if r.CommanderIsTraitor {
		return false, false
	}
	for i, f := range r.FinalResults {
		if r.IsTraitor(i) {
			continue
		}
		if i >= len(r.CommandsSent) || f != types.FromBool(r.CommandsSent[i]) {
			return false, true
		}
	}
	return true, true
}

// loyalAbstains counts the abstaining loyal lieutenants.
func (r *Record) loyalAbstains() (abstain, loyal int) {
	for i, f := range r.FinalResults {
		if r.IsTraitor(i) {
			continue
		}
		loyal++
		if f == types.Abstain {
			abstain++
		}
	}
	return
}

func (r *Record) clone() *Record {
	c := *r
	c.CommandsSent = append([]bool(nil), r.CommandsSent...)
	c.InitialResults = append([]types.Decision(nil), r.InitialResults...)
	c.IntermediateResults = append([]types.Decision(nil), r.IntermediateResults...)
	c.FinalResults = append([]types.Decision(nil), r.FinalResults...)
	c.TraitorIndices = append([]int(nil), r.TraitorIndices...)
	return &c
}

// Summary aggregates all shots of one experiment.
type Summary struct {
	Experiment string `json:"experiment"`
	Shots      int    `json:"shots"`
	// fraction of shots in which the loyal lieutenants agreed
	AgreementRate float64 `json:"agreement_rate"`
	// shots with a loyal commander and the fraction of them that were valid
	ValidityShots int     `json:"validity_shots"`
	ValidityRate  float64 `json:"validity_rate"`
	// fraction of loyal final decisions that were Abstain
	AbstainRate float64 `json:"abstain_rate"`
}

// Summarize computes the rates over recs.
func Summarize(experiment string, recs []*Record) *Summary {
	s := &Summary{Experiment: experiment, Shots: len(recs)}
	var agreed, valid, abstain, loyal int
	for _, r := range recs {
		if r.Agreement() {
			agreed++
		}
		if ok, applicable := r.Validity(); applicable {
			s.ValidityShots++
			if ok {
				valid++
			}
		}
		a, l := r.loyalAbstains()
		abstain += a
		loyal += l
	}
	if s.Shots > 0 {
		s.AgreementRate = float64(agreed) / float64(s.Shots)
	}
	if s.ValidityShots > 0 {
		s.ValidityRate = float64(valid) / float64(s.ValidityShots)
	}
	if loyal > 0 {
		s.AbstainRate = float64(abstain) / float64(loyal)
	}
	return s
}
