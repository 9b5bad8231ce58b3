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

// Package db is the bucketed key/value storage used to persist
// simulation results. Backends register themselves by name.
package db

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrBucketNotFound = errors.New("bucket not found")
	ErrClosed         = errors.New("database is closed")
)

// Database is the generic database operation interface. Get returns
// a nil value without error for a missing key, and GetAll returns
// the values in ascending key order.
type Database interface {
	NewBucket(name string) error
	Put(bucket string, key, value []byte) error
	Get(bucket string, key []byte) ([]byte, error)
	Delete(bucket string, key []byte) error
	GetAll(bucket string, keyPrefix []byte) ([][]byte, error)
	Begin() (Tx, error)
	Close() error
}

// Tx is a writable transaction. Writes become visible to other
// readers only after Commit.
type Tx interface {
	Get(bucket string, key []byte) ([]byte, error)
	GetAll(bucket string, keyPrefix []byte) ([][]byte, error)
	Put(bucket string, key, value []byte) error
	Delete(bucket string, key []byte) error
	Rollback() error
	Commit() error
}

// Putter is satisfied by both Database and Tx so that managers can
// write either directly or inside a transaction.
type Putter interface {
	Put(bucket string, key, value []byte) error
}

// Getter is the read side of Database and Tx.
type Getter interface {
	Get(bucket string, key []byte) ([]byte, error)
	GetAll(bucket string, keyPrefix []byte) ([][]byte, error)
}

// Ctor opens a database at path.
type Ctor func(path string) (Database, error)

var (
	mu           sync.RWMutex
	constructors = make(map[string]Ctor)
)

// database backend should call this function to register itself
// in order to be used by application
func Register(name string, ctor Ctor) {
	mu.Lock()
	defer mu.Unlock()
	constructors[name] = ctor
}

// Open creates the database of the named backend at path.
func Open(name, path string) (Database, error) {
	mu.RLock()
	ctor, ok := constructors[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("database %s not registered", name)
	}
	return ctor(path)
}

// Backends lists the registered backend names.
func Backends() []string {
	mu.RLock()
	defer mu.RUnlock()
	var names []string
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
