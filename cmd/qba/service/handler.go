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

// Package service exposes stored experiment results over HTTP.
package service

import (
	"errors"
	"net/http"

	"github.com/emicklei/go-restful"

	"github.com/ultiledger/go-qba/db"
	"github.com/ultiledger/go-qba/log"
	"github.com/ultiledger/go-qba/results"
)

// NewHandler creates a customized http handler to the http server.
func NewHandler(database db.Database, rm *results.Manager) http.Handler {
	hub := &Hub{database: database, rm: rm}

	ws := new(restful.WebService)
	ws.Path("/qba").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON)
	ws.Route(ws.GET("/experiments/{name}").To(hub.ListShots).
		Param(ws.PathParameter("name", "experiment name").DataType("string")))
	ws.Route(ws.GET("/experiments/{name}/summary").To(hub.Summary).
		Param(ws.PathParameter("name", "experiment name").DataType("string")))

	container := restful.NewContainer()
	container.Add(ws)

	return container
}

// Hub answers queries from the results database.
type Hub struct {
	database db.Database
	rm       *results.Manager
}

// ListShots returns every shot of an experiment in shot order.
func (h *Hub) ListShots(request *restful.Request, response *restful.Response) {
	name := request.PathParameter("name")
	recs, err := h.rm.List(h.database, name)
	if err != nil {
		writeError(response, err)
		return
	}
	if len(recs) == 0 {
		writeError(response, results.ErrExperimentNotExist)
		return
	}
	response.WriteHeaderAndEntity(http.StatusOK, recs)
}

// Summary returns the agreement, validity and abstain rates.
func (h *Hub) Summary(request *restful.Request, response *restful.Response) {
	name := request.PathParameter("name")
	s, err := h.rm.Summarize(h.database, name)
	if err != nil {
		writeError(response, err)
		return
	}
	response.WriteHeaderAndEntity(http.StatusOK, s)
}

func writeError(response *restful.Response, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, results.ErrExperimentNotExist):
		status = http.StatusNotFound
	case errors.Is(err, results.ErrInvalidExperiment):
		status = http.StatusBadRequest
	default:
		log.Errorw("query results failed", "err", err)
	}
	response.WriteErrorString(status, err.Error())
}
