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

package future

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ultiledger/go-qba/message"
	"github.com/ultiledger/go-qba/types"
)

func TestReportFuture(t *testing.T) {
	rf := Report{}
	// test respond without Init will panic
	assert.Panics(t, func() { rf.Error() })
	// test nil response
	rf.Init()
	go func() {
		rf.Report = types.Report{Name: "Bob", FinalDecision: types.AcceptTrue}
		rf.Respond(nil)
	}()
	assert.NoError(t, rf.Error())
	assert.Equal(t, "Bob", rf.Report.Name)
}

func TestDeliverFuture(t *testing.T) {
	df := Deliver{Envelope: message.NewOrder(0, true, nil)}
	df.Init()
	df.Respond(errors.New("inbox closed"))
	// test reuse the same future will have no effect,
	// we still will get the first error
	df.Respond(errors.New("another error"))
	assert.Error(t, df.Error())
	assert.Equal(t, "inbox closed", df.Error().Error())
}

func TestWaitTimeout(t *testing.T) {
	rf := Report{}
	rf.Init()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	// nobody responds
	assert.ErrorIs(t, rf.Wait(ctx), context.DeadlineExceeded)

	// a late response is still observed
	rf.Respond(errors.New("late"))
	assert.EqualError(t, rf.Wait(context.Background()), "late")
}
