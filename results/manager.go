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

// Package results persists the per-shot outcome of simulations and
// summarizes experiments.
package results

import (
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"

	"github.com/ultiledger/go-qba/codec"
	"github.com/ultiledger/go-qba/db"
	"github.com/ultiledger/go-qba/log"
)

var (
	ErrRecordNotExist     = errors.New("record not exist")
	ErrExperimentNotExist = errors.New("experiment not exist")
	ErrInvalidExperiment  = errors.New("invalid experiment name")
)

// Manager stores shot records keyed by experiment name and shot id.
type Manager struct {
	database db.Database
	bucket   string

	// LRU cache for records
	records *lru.Cache
}

func NewManager(d db.Database) *Manager {
	rm := &Manager{
		database: d,
		bucket:   "RESULTS",
	}
	err := rm.database.NewBucket(rm.bucket)
	if err != nil {
		log.Fatalf("create db bucket %s failed: %v", rm.bucket, err)
	}
	cache, err := lru.New(10000)
	if err != nil {
		log.Fatalf("create results manager LRU cache failed: %v", err)
	}
	rm.records = cache
	return rm
}

func checkExperiment(name string) error {
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidExperiment, name)
	}
	return nil
}

func experimentPrefix(name string) []byte {
	return []byte(name + "/")
}

// shot ids are zero padded so that the key order is the shot order
func recordKey(name string, shot int) string {
	return fmt.Sprintf("%s/%010d", name, shot)
}

// cached reports whether values passing through rw may be cached.
// Only the database itself qualifies, a transaction may still roll
// back.
func (rm *Manager) cached(rw interface{}) bool {
	return rw == interface{}(rm.database)
}

// Save a single record through putter. A record saved inside a
// transaction is cached once it is read back after the commit.
func (rm *Manager) Save(putter db.Putter, rec *Record) error {
	if err := checkExperiment(rec.ExperimentName); err != nil {
		return err
	}
	b, err := codec.Encode(rec)
	if err != nil {
		return fmt.Errorf("encode record failed: %v", err)
	}
	key := recordKey(rec.ExperimentName, rec.ShotID)
	err = putter.Put(rm.bucket, []byte(key), b)
	if err != nil {
		return fmt.Errorf("save record in db failed: %v", err)
	}
	if rm.cached(putter) {
		rm.records.Add(key, rec.clone())
	}
	return nil
}

// SaveAll writes every record in one transaction, either all of them
// become visible or none do.
func (rm *Manager) SaveAll(recs []*Record) error {
	tx, err := rm.database.Begin()
	if err != nil {
		return fmt.Errorf("begin db tx failed: %v", err)
	}
	for _, rec := range recs {
		if err := checkExperiment(rec.ExperimentName); err != nil {
			tx.Rollback()
			return err
		}
		b, err := codec.Encode(rec)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encode record failed: %v", err)
		}
		if err := tx.Put(rm.bucket, []byte(recordKey(rec.ExperimentName, rec.ShotID)), b); err != nil {
			tx.Rollback()
			return fmt.Errorf("save record in db failed: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit db tx failed: %v", err)
	}
	for _, rec := range recs {
		rm.records.Add(recordKey(rec.ExperimentName, rec.ShotID), rec.clone())
	}
	return nil
}

// Get one shot of an experiment
func (rm *Manager) Get(getter db.Getter, experiment string, shot int) (*Record, error) {
	key := recordKey(experiment, shot)
	// first check the LRU cache and hand out a copy
	if rec, ok := rm.records.Get(key); ok {
		return rec.(*Record).clone(), nil
	}

	b, err := getter.Get(rm.bucket, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("get record %s failed: %v", key, err)
	}
	if b == nil {
		return nil, ErrRecordNotExist
	}
	rec := &Record{}
	if err := codec.Decode(b, rec); err != nil {
		return nil, fmt.Errorf("record %s decode failed: %v", key, err)
	}
	if rm.cached(getter) {
		rm.records.Add(key, rec.clone())
	}
	return rec, nil
}

// List all shots of an experiment in shot order
func (rm *Manager) List(getter db.Getter, experiment string) ([]*Record, error) {
	if err := checkExperiment(experiment); err != nil {
		return nil, err
	}
	vals, err := getter.GetAll(rm.bucket, experimentPrefix(experiment))
	if err != nil {
		return nil, fmt.Errorf("list experiment %s failed: %v", experiment, err)
	}
	recs := make([]*Record, 0, len(vals))
	for _, b := range vals {
		rec := &Record{}
		if err := codec.Decode(b, rec); err != nil {
			return nil, fmt.Errorf("record decode failed: %v", err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Summarize the agreement, validity and abstain rates of an experiment
func (rm *Manager) Summarize(getter db.Getter, experiment string) (*Summary, error) {
	recs, err := rm.List(getter, experiment)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrExperimentNotExist
	}
	return Summarize(experiment, recs), nil
}
