// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package httpapi exposes the fleet controls over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/monitorizapt/sensorfleet/fleet"
	"github.com/monitorizapt/sensorfleet/internal/log"
)

// Fleet is the part of the coordinator the API drives. It is implemented by
// *fleet.Coordinator.
type Fleet interface {
	Snapshots() []fleet.Snapshot
	Snapshot(key string) (fleet.Snapshot, error)
	Activate(key string, interval time.Duration) (fleet.Snapshot, error)
	Deactivate(key string) (fleet.Snapshot, error)
	Read(key string) (fleet.Snapshot, error)
	Connected() bool
	ClientID() string
	TestBroker(ctx context.Context) bool
}

// Server serves the fleet API.
type Server struct {
	fleet   Fleet
	options ServerOptions
	log     logger
}

// New creates the API server for f.
func New(f Fleet, opts ...ServerOption) *Server {
	s := &Server{fleet: f}
	s.options.Apply(opts)
	if s.options.BrokerTestTimeout <= 0 {
		s.options.BrokerTestTimeout = DefaultBrokerTestTimeout
	}
	s.log = logger{log.Wrap(s.options.Logger)}
	return s
}

// Router returns the bare route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	r.HandleFunc("/sensors", s.listSensors).Methods(http.MethodGet)
	r.HandleFunc("/sensors/{key}", s.getSensor).Methods(http.MethodGet)
	r.HandleFunc("/sensors/{key}/activate", s.activate).Methods(http.MethodPost)
	r.HandleFunc("/sensors/{key}/deactivate", s.deactivate).Methods(http.MethodPost)
	r.HandleFunc("/sensors/{key}/read", s.read).Methods(http.MethodPost)

	r.HandleFunc("/broker", s.broker).Methods(http.MethodGet)
	r.HandleFunc("/broker/test", s.testBroker).Methods(http.MethodPost)

	if s.options.Metrics != nil {
		r.Handle("/metrics", s.options.Metrics).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, errNoRoute)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, errMethod)
	})
	return r
}

// Handler returns the route table wrapped with panic recovery and, when
// configured, access logging.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.Router()
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(&s.log))(h)
	if s.options.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(s.options.AccessLog, h)
	}
	return h
}
