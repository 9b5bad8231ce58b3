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
	"errors"
	"fmt"
)

// ErrContract marks misuse by the caller. A failed check is
// reported as false, never as an error.
var ErrContract = errors.New("caller contract violation")

var (
	ErrClaimUnset    = fmt.Errorf("%w: claimed value is unset", ErrContract)
	ErrVectorMissing = fmt.Errorf("%w: command vector is absent", ErrContract)
	ErrIndexRange    = fmt.Errorf("%w: lieutenant index out of range", ErrContract)
	ErrBitVector     = fmt.Errorf("%w: bit vector has wrong length", ErrContract)
)
