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

package memdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultiledger/go-qba/db"
	"github.com/ultiledger/go-qba/db/dbtest"
)

func TestMemDB(t *testing.T) {
	dbtest.Run(t, New())
}

func TestClosed(t *testing.T) {
	d, err := db.Open("memdb", "")
	require.NoError(t, err)
	require.NoError(t, d.NewBucket("TEST"))
	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Put("TEST", []byte("k"), nil), db.ErrClosed)
	_, err = d.Begin()
	assert.ErrorIs(t, err, db.ErrClosed)
	assert.Contains(t, db.Backends(), "memdb")
	_, err = db.Open("leveldb", "")
	assert.Error(t, err)
}
