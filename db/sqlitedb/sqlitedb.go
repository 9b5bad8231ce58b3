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

package sqlitedb

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/ultiledger/go-qba/db"
)

func init() {
	db.Register("sqlite", New)
}

const schema = `
CREATE TABLE IF NOT EXISTS buckets (
	name TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS kv (
	bucket TEXT NOT NULL,
	key    BLOB NOT NULL,
	value  BLOB,
	PRIMARY KEY (bucket, key)
);`

// queryer is the part of *sql.DB and *sql.Tx the helpers need
type queryer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

type sqlitedb struct {
	db *sql.DB
}

// New opens the sqlite file at path, ":memory:" keeps everything in
// memory. A single connection is used so that an in-memory database
// is shared by every call.
func New(path string) (db.Database, error) {
	sdb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s failed: %v", path, err)
	}
	sdb.SetMaxOpenConns(1)
	if _, err := sdb.Exec(schema); err != nil {
		sdb.Close()
		return nil, fmt.Errorf("create sqlite schema failed: %v", err)
	}
	return &sqlitedb{db: sdb}, nil
}

func (s *sqlitedb) NewBucket(name string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO buckets (name) VALUES (?)`, name)
	return err
}

func checkBucket(q queryer, name string) error {
	var one int
	err := q.QueryRow(`SELECT 1 FROM buckets WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", db.ErrBucketNotFound, name)
	}
	return err
}

func put(q queryer, bucket string, key, value []byte) error {
	if err := checkBucket(q, bucket); err != nil {
		return err
	}
	_, err := q.Exec(`INSERT INTO kv (bucket, key, value) VALUES (?, ?, ?)
		ON CONFLICT (bucket, key) DO UPDATE SET value = excluded.value`, bucket, key, value)
	return err
}

func del(q queryer, bucket string, key []byte) error {
	if err := checkBucket(q, bucket); err != nil {
		return err
	}
	_, err := q.Exec(`DELETE FROM kv WHERE bucket = ? AND key = ?`, bucket, key)
	return err
}

func get(q queryer, bucket string, key []byte) ([]byte, error) {
	if err := checkBucket(q, bucket); err != nil {
		return nil, err
	}
	var val []byte
	err := q.QueryRow(`SELECT value FROM kv WHERE bucket = ? AND key = ?`, bucket, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if val == nil {
		val = []byte{}
	}
	return val, nil
}

func getAll(q queryer, bucket string, keyPrefix []byte) ([][]byte, error) {
	if err := checkBucket(q, bucket); err != nil {
		return nil, err
	}
	rows, err := q.Query(`SELECT key, value FROM kv WHERE bucket = ? AND key >= ? ORDER BY key`, bucket, keyPrefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var vals [][]byte
	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		if !bytes.HasPrefix(k, keyPrefix) {
			break
		}
		vals = append(vals, v)
	}
	return vals, rows.Err()
}

func (s *sqlitedb) Put(bucket string, key, value []byte) error {
	return put(s.db, bucket, key, value)
}

func (s *sqlitedb) Delete(bucket string, key []byte) error {
	return del(s.db, bucket, key)
}

func (s *sqlitedb) Get(bucket string, key []byte) ([]byte, error) {
	return get(s.db, bucket, key)
}

func (s *sqlitedb) GetAll(bucket string, keyPrefix []byte) ([][]byte, error) {
	return getAll(s.db, bucket, keyPrefix)
}

func (s *sqlitedb) Close() error {
	return s.db.Close()
}

func (s *sqlitedb) Begin() (db.Tx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	return &sqlitedbTx{tx: tx}, nil
}

type sqlitedbTx struct {
	tx *sql.Tx
}

func (stx *sqlitedbTx) Get(bucket string, key []byte) ([]byte, error) {
	return get(stx.tx, bucket, key)
}

func (stx *sqlitedbTx) GetAll(bucket string, keyPrefix []byte) ([][]byte, error) {
	return getAll(stx.tx, bucket, keyPrefix)
}

func (stx *sqlitedbTx) Put(bucket string, key, value []byte) error {
	return put(stx.tx, bucket, key, value)
}

func (stx *sqlitedbTx) Delete(bucket string, key []byte) error {
	return del(stx.tx, bucket, key)
}

func (stx *sqlitedbTx) Rollback() error {
	return stx.tx.Rollback()
}

func (stx *sqlitedbTx) Commit() error {
	return stx.tx.Commit()
}
