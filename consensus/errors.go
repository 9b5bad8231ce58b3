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
	"errors"
	"fmt"

	"github.com/ultiledger/go-qba/verify"
)

// ErrContract is the kind shared by every caller misuse, including
// the ones raised by the verify package.
var ErrContract = verify.ErrContract

var (
	ErrOrderUnset         = fmt.Errorf("%w: order has not been received", ErrContract)
	ErrCommandVectorUnset = fmt.Errorf("%w: command vector has not been received", ErrContract)
	ErrDecisionUnset      = fmt.Errorf("%w: decision slot is not set yet", ErrContract)
	ErrSlotAlreadySet     = fmt.Errorf("%w: decision slot is already set", ErrContract)
	ErrBarrierIncomplete  = fmt.Errorf("%w: round barrier is incomplete", ErrContract)
	ErrIndexRange         = fmt.Errorf("%w: lieutenant index out of range", ErrContract)
)

// Errors caused by what other players send. They are logged and the
// offending message is dropped.
var (
	ErrUnexpectedMessage = errors.New("unexpected message")
	ErrDuplicateEvidence = errors.New("duplicate evidence")
)

var (
	ErrInvalidConfig   = errors.New("invalid config")
	ErrUnknownStrategy = errors.New("unknown traitor strategy")
)
