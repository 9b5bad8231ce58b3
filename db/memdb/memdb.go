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
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ultiledger/go-qba/db"
)

func init() {
	db.Register("memdb", func(string) (db.Database, error) {
		return New(), nil
	})
}

type bucket map[string][]byte

type memdb struct {
	sync.RWMutex
	buckets map[string]bucket
}

// New creates a memory-based key-value store
// which is mainly used for testing.
func New() db.Database {
	return &memdb{buckets: make(map[string]bucket)}
}

func (m *memdb) NewBucket(name string) error {
	m.Lock()
	defer m.Unlock()
	if m.buckets == nil {
		return db.ErrClosed
	}
	if _, ok := m.buckets[name]; !ok {
		m.buckets[name] = make(bucket)
	}
	return nil
}

func (m *memdb) bucket(name string) (bucket, error) {
	if m.buckets == nil {
		return nil, db.ErrClosed
	}
	b, ok := m.buckets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", db.ErrBucketNotFound, name)
	}
	return b, nil
}

// Put writes the key/value pair to database.
func (m *memdb) Put(bucket string, key, value []byte) error {
	m.Lock()
	defer m.Unlock()
	b, err := m.bucket(bucket)
	if err != nil {
		return err
	}
	b[string(key)] = append([]byte(nil), value...)
	return nil
}

// Delete deletes the key from the database.
func (m *memdb) Delete(bucket string, key []byte) error {
	m.Lock()
	defer m.Unlock()
	b, err := m.bucket(bucket)
	if err != nil {
		return err
	}
	delete(b, string(key))
	return nil
}

// Get retrieves the value of the key from database.
func (m *memdb) Get(bucket string, key []byte) ([]byte, error) {
	m.RLock()
	defer m.RUnlock()
	b, err := m.bucket(bucket)
	if err != nil {
		return nil, err
	}
	if val, ok := b[string(key)]; ok {
		return append([]byte(nil), val...), nil
	}
	return nil, nil
}

// GetAll retrieves the values of the keys with prefix from database.
func (m *memdb) GetAll(bucket string, keyPrefix []byte) ([][]byte, error) {
	m.RLock()
	defer m.RUnlock()
	b, err := m.bucket(bucket)
	if err != nil {
		return nil, err
	}
	var keys []string
	for k := range b {
		if strings.HasPrefix(k, string(keyPrefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var vals [][]byte
	for _, k := range keys {
		vals = append(vals, append([]byte(nil), b[k]...))
	}
	return vals, nil
}

// Close closes the underlying database.
func (m *memdb) Close() error {
	m.Lock()
	defer m.Unlock()
	m.buckets = nil
	return nil
}

// Begin starts a transaction. Writes are staged in the transaction
// and applied under the write lock on Commit.
func (m *memdb) Begin() (db.Tx, error) {
	m.RLock()
	defer m.RUnlock()
	if m.buckets == nil {
		return nil, db.ErrClosed
	}
	return &memdbTx{db: m}, nil
}

type op struct {
	bucket string
	key    string
	value  []byte
	delete bool
}

type memdbTx struct {
	db   *memdb
	ops  []op
	done bool
}

// staged returns the pending write of key, if any
func (tx *memdbTx) staged(bucket, key string) (op, bool) {
	for i := len(tx.ops) - 1; i >= 0; i-- {
		if tx.ops[i].bucket == bucket && tx.ops[i].key == key {
			return tx.ops[i], true
		}
	}
	return op{}, false
}

func (tx *memdbTx) Get(bucket string, key []byte) ([]byte, error) {
	if o, ok := tx.staged(bucket, string(key)); ok {
		if o.delete {
			return nil, nil
		}
		return append([]byte(nil), o.value...), nil
	}
	return tx.db.Get(bucket, key)
}

func (tx *memdbTx) GetAll(bucket string, keyPrefix []byte) ([][]byte, error) {
	tx.db.RLock()
	b, err := tx.db.bucket(bucket)
	if err != nil {
		tx.db.RUnlock()
		return nil, err
	}
	view := make(map[string][]byte, len(b))
	for k, v := range b {
		view[k] = v
	}
	tx.db.RUnlock()
	for _, o := range tx.ops {
		if o.bucket != bucket {
			continue
		}
		if o.delete {
			delete(view, o.key)
		} else {
			view[o.key] = o.value
		}
	}
	var keys []string
	for k := range view {
		if strings.HasPrefix(k, string(keyPrefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var vals [][]byte
	for _, k := range keys {
		vals = append(vals, append([]byte(nil), view[k]...))
	}
	return vals, nil
}

func (tx *memdbTx) check(bucket string) error {
	if tx.done {
		return db.ErrClosed
	}
	tx.db.RLock()
	defer tx.db.RUnlock()
	_, err := tx.db.bucket(bucket)
	return err
}

func (tx *memdbTx) Put(bucket string, key, value []byte) error {
	if err := tx.check(bucket); err != nil {
		return err
	}
	tx.ops = append(tx.ops, op{bucket: bucket, key: string(key), value: append([]byte(nil), value...)})
	return nil
}

func (tx *memdbTx) Delete(bucket string, key []byte) error {
	if err := tx.check(bucket); err != nil {
		return err
	}
	tx.ops = append(tx.ops, op{bucket: bucket, key: string(key), delete: true})
	return nil
}

func (tx *memdbTx) Rollback() error {
	tx.done = true
	tx.ops = nil
	return nil
}

func (tx *memdbTx) Commit() error {
	if tx.done {
		return db.ErrClosed
	}
	tx.done = true
	tx.db.Lock()
	defer tx.db.Unlock()
	for _, o := range tx.ops {
		b, err := tx.db.bucket(o.bucket)
		if err != nil {
			return err
		}
		if o.delete {
			delete(b, o.key)
		} else {
			b[o.key] = o.value
		}
	}
	return nil
}
