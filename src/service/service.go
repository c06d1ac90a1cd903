// Package service exposes a running node, or a whole simulation, over HTTP.
//
// /stats returns the runtime counters as a JSON object of strings, /metrics
// serves the Prometheus registry of the telemetry package, and /debug/pprof/
// serves the runtime profiles.
package service

import (
	"encoding/json"
	"net/http"
	"net/http/pprof"
	"sync"

	"github.com/mosaicnetworks/gossipnode/src/telemetry"
	"github.com/sirupsen/logrus"
)

// Stater is implemented by node.Node and net.Simulation.
type Stater interface {
	GetStats() map[string]string
}

// Service ...
type Service struct {
	sync.Mutex

	bindAddress string
	stater      Stater
	mux         *http.ServeMux
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, s Stater, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		stater:      s,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers on the service's own ServeMux,
// so that several services can live in the same process.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering API handlers")
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.Handle("/metrics", telemetry.MetricsHandler())

	s.mux.HandleFunc("/debug/pprof/", pprof.Index)
	s.mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	s.mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	s.mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	s.mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the http.Handler serving the API.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving API")

	err := http.ListenAndServe(s.bindAddress, s.Handler())
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.stater.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}
