package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/mosaicnetworks/axolotl/src/net"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Source is the node exposed by the Service. *net.Endpoint implements it.
type Source interface {
	Stats() net.Stats
	Routes() *net.RoutingTable
}

// Peer is the JSON view of a routing entry.
type Peer struct {
	PublicKey string `json:"public_key"`
	Address   string `json:"address"`
	Connected bool   `json:"connected"`
	Conn      uint64 `json:"conn,omitempty"`
}

// Service exposes the state of a node over HTTP.
type Service struct {
	sync.Mutex

	bindAddress string
	source      Source
	gatherer    prometheus.Gatherer
	mux         *http.ServeMux
	server      *http.Server
	logger      *logrus.Entry
}

// NewService creates a Service for source. gatherer backs the /metrics
// endpoint, which is not registered if gatherer is nil.
func NewService(bindAddress string, source Source, gatherer prometheus.Gatherer, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		source:      source,
		gatherer:    gatherer,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.registerHandlers()

	service.server = &http.Server{
		Addr:    bindAddress,
		Handler: service.mux,
	}

	return &service
}

// registerHandlers registers the API handlers with the Service's own mux, so
// that several nodes can run in the same process.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering axolotl API handlers")
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/peers", s.makeHandler(s.GetPeers))
	s.mux.HandleFunc("/peers/", s.makeHandler(s.GetPeer))
	if s.gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
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

// Handler returns the mux of the Service.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving axolotl API")

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error(err)
	}
}

// Shutdown stops the server.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// GetStats returns the statistics of the node.
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.source.Stats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetPeers returns the routing table, sorted by key.
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	routes := s.source.Routes().Snapshot()

	res := make([]Peer, 0, len(routes))
	for _, route := range routes {
		res = append(res, toPeer(route.PublicKey, route.ConnectionData))
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(res)
}

// GetPeer returns the routing entry of the key in the path.
func (s *Service) GetPeer(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/peers/")

	data, ok := s.source.Routes().Get(key)
	if !ok {
		s.logger.WithField("key", key).Debug("Unknown peer")

		http.Error(w, "unknown peer "+key, http.StatusNotFound)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(toPeer(key, data))
}

func toPeer(key string, data net.ConnectionData) Peer {
	return Peer{
		PublicKey: key,
		Address:   data.Addr(),
		Connected: data.Connected(),
		Conn:      uint64(data.Conn),
	}
}
