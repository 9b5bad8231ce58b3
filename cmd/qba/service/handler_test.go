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

package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultiledger/go-qba/db/memdb"
	"github.com/ultiledger/go-qba/results"
	"github.com/ultiledger/go-qba/types"
)

func newServer(t *testing.T) *httptest.Server {
	d := memdb.New()
	t.Cleanup(func() { d.Close() })
	rm := results.NewManager(d)
	recs := []*results.Record{
		{
			ExperimentName: "demo",
			ShotID:         0,
			CommandsSent:   []bool{true, true, true},
			FinalResults:   []types.Decision{types.AcceptTrue, types.AcceptTrue, types.AcceptTrue},
			M:              50,
			N:              4,
		},
		{
			ExperimentName:     "demo",
			ShotID:             1,
			CommandsSent:       []bool{true, false, true},
			FinalResults:       []types.Decision{types.Abstain, types.Abstain, types.Abstain},
			M:                  50,
			N:                  4,
			CommanderIsTraitor: true,
		},
	}
	require.NoError(t, rm.SaveAll(recs))
	srv := httptest.NewServer(NewHandler(d, rm))
	t.Cleanup(srv.Close)
	return srv
}

func TestListShots(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/qba/experiments/demo")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var recs []results.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recs))
	require.Len(t, recs, 2)
	assert.Equal(t, 1, recs[1].ShotID)
	assert.Equal(t, types.Abstain, recs[1].FinalResults[0])
	assert.True(t, recs[1].CommanderIsTraitor)
}

func TestSummary(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/qba/experiments/demo/summary")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var s results.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	assert.Equal(t, 2, s.Shots)
	assert.Equal(t, 1.0, s.AgreementRate)
	assert.Equal(t, 1, s.ValidityShots)
	assert.Equal(t, 1.0, s.ValidityRate)
	assert.Equal(t, 0.5, s.AbstainRate)
}

func TestUnknownExperiment(t *testing.T) {
	srv := newServer(t)

	for _, path := range []string{"/qba/experiments/missing", "/qba/experiments/missing/summary"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}
