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

// Package dbtest holds the behaviour every db backend must show.
package dbtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultiledger/go-qba/db"
)

// Run exercises d and closes it afterwards.
func Run(t *testing.T, d db.Database) {
	defer d.Close()

	// create bucket
	require.NoError(t, d.NewBucket("TEST"))
	require.NoError(t, d.NewBucket("TEST"))
	require.NoError(t, d.NewBucket("OTHER"))

	// test get nonexistent key
	val, err := d.Get("TEST", []byte("none"))
	assert.NoError(t, err)
	assert.Nil(t, val)

	// test set and get key/value pair
	assert.NoError(t, d.Put("TEST", []byte("testKey"), []byte("testValue")))
	val, err = d.Get("TEST", []byte("testKey"))
	assert.NoError(t, err)
	assert.Equal(t, []byte("testValue"), val)

	// buckets do not share keys
	val, err = d.Get("OTHER", []byte("testKey"))
	assert.NoError(t, err)
	assert.Nil(t, val)

	// unknown bucket
	assert.ErrorIs(t, d.Put("NONE", []byte("k"), []byte("v")), db.ErrBucketNotFound)
	_, err = d.Get("NONE", []byte("k"))
	assert.ErrorIs(t, err, db.ErrBucketNotFound)

	// prefix scan in key order
	assert.NoError(t, d.Put("TEST", []byte("shot-2"), []byte("b")))
	assert.NoError(t, d.Put("TEST", []byte("shot-1"), []byte("a")))
	assert.NoError(t, d.Put("TEST", []byte("shou"), []byte("x")))
	vals, err := d.GetAll("TEST", []byte("shot-"))
	assert.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, vals)

	// overwrite and delete
	assert.NoError(t, d.Put("TEST", []byte("shot-1"), []byte("c")))
	val, _ = d.Get("TEST", []byte("shot-1"))
	assert.Equal(t, []byte("c"), val)
	assert.NoError(t, d.Delete("TEST", []byte("shot-1")))
	val, _ = d.Get("TEST", []byte("shot-1"))
	assert.Nil(t, val)

	// rolled back writes are discarded
	tx, err := d.Begin()
	require.NoError(t, err)
	assert.NoError(t, tx.Put("TEST", []byte("tx-1"), []byte("1")))
	val, err = tx.Get("TEST", []byte("tx-1"))
	assert.NoError(t, err)
	assert.Equal(t, []byte("1"), val)
	assert.NoError(t, tx.Rollback())
	val, _ = d.Get("TEST", []byte("tx-1"))
	assert.Nil(t, val)

	// committed writes are visible
	tx, err = d.Begin()
	require.NoError(t, err)
	assert.NoError(t, tx.Put("TEST", []byte("tx-1"), []byte("1")))
	assert.NoError(t, tx.Put("TEST", []byte("tx-2"), []byte("2")))
	assert.NoError(t, tx.Delete("TEST", []byte("shot-2")))
	vals, err = tx.GetAll("TEST", []byte("tx-"))
	assert.NoError(t, err)
	assert.Len(t, vals, 2)
	assert.NoError(t, tx.Commit())
	vals, err = d.GetAll("TEST", []byte("tx-"))
	assert.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("1"), []byte("2")}, vals)
	val, _ = d.Get("TEST", []byte("shot-2"))
	assert.Nil(t, val)
}
