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

	"github.com/ultiledger/go-qba/types"
)

// slot is a decision written exactly once.
type slot struct {
	name  string
	value types.Decision
	set   bool
}

func (s *slot) put(d types.Decision) error {
	if s.set {
		return fmt.Errorf("%w: %s", ErrSlotAlreadySet, s.name)
	}
	s.value = d
	s.set = true
	return nil
}

func (s *slot) get() (types.Decision, error) {
	if !s.set {
		return types.Abstain, fmt.Errorf("%w: %s", ErrDecisionUnset, s.name)
	}
	return s.value, nil
}

// peek reads the slot for reporting, unset slots read as Abstain
func (s *slot) peek() types.Decision {
	return s.value
}
