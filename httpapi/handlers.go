// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/monitorizapt/sensorfleet/internal/wallclock"
	"github.com/monitorizapt/sensorfleet/location"
)

var (
	errNoRoute = errors.New("no such route")
	errMethod  = errors.New("method not allowed")

	errBrokerTestTimeout = errors.New("broker test timed out")
)

// IntervalError is returned for an interval query parameter that is not a
// positive number of milliseconds.
type IntervalError struct {
	Value string
}

func (e *IntervalError) Error() string {
	return "invalid interval " + strconv.Quote(e.Value) + ": expected milliseconds"
}

type (
	health struct {
		Status    string `json:"status"`
		Connected bool   `json:"connected"`
	}

	brokerState struct {
		ClientID  string `json:"client_id"`
		Connected bool   `json:"connected"`
	}

	errorBody struct {
		Error string `json:"error"`
	}
)

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, health{Status: "ok", Connected: s.fleet.Connected()})
}

func (s *Server) listSensors(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.fleet.Snapshots())
}

func (s *Server) getSensor(w http.ResponseWriter, r *http.Request) {
	snap, err := s.fleet.Snapshot(mux.Vars(r)["key"])
	s.reply(w, snap, err)
}

// The interval defaults to the unit's current one.
func (s *Server) activate(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	current, err := s.fleet.Snapshot(key)
	if err != nil {
		s.reply(w, current, err)
		return
	}

	interval := time.Duration(current.IntervalMs) * time.Millisecond
	if raw := r.URL.Query().Get("interval"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms <= 0 {
			s.writeError(w, http.StatusBadRequest, &IntervalError{Value: raw})
			return
		}
		interval = time.Duration(ms) * time.Millisecond
	}

	snap, err := s.fleet.Activate(key, interval)
	s.reply(w, snap, err)
}

func (s *Server) deactivate(w http.ResponseWriter, r *http.Request) {
	snap, err := s.fleet.Deactivate(mux.Vars(r)["key"])
	s.reply(w, snap, err)
}

func (s *Server) read(w http.ResponseWriter, r *http.Request) {
	snap, err := s.fleet.Read(mux.Vars(r)["key"])
	s.reply(w, snap, err)
}

func (s *Server) broker(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, brokerState{
		ClientID:  s.fleet.ClientID(),
		Connected: s.fleet.Connected(),
	})
}

func (s *Server) testBroker(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := wallclock.Instance.WithTimeoutCause(
		r.Context(),
		s.options.BrokerTestTimeout,
		errBrokerTestTimeout,
	)
	defer cancel()

	ok := s.fleet.TestBroker(ctx)
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, brokerState{
		ClientID:  s.fleet.ClientID(),
		Connected: ok,
	})
}

func (s *Server) reply(w http.ResponseWriter, v any, err error) {
	var notFound *location.NotFoundError
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, v)
	case errors.As(err, &notFound):
		s.writeError(w, http.StatusNotFound, err)
	default:
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Err(context.Background(), err)
	}
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.encode(context.Background(), err)
	}
}
