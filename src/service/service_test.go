package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mosaicnetworks/axolotl/src/common"
	"github.com/mosaicnetworks/axolotl/src/net"
	"github.com/prometheus/client_golang/prometheus"
)

type fakeSource struct {
	routes *net.RoutingTable
}

func (f *fakeSource) Stats() net.Stats {
	return net.Stats{
		PublicKey:   "abcd",
		ListenAddr:  "127.0.0.1:9001",
		Connections: 1,
		Established: 1,
		Routes:      f.routes.Count(),
	}
}

func (f *fakeSource) Routes() *net.RoutingTable {
	return f.routes
}

func newTestService(t *testing.T) *Service {
	routes := net.NewRoutingTable()
	routes.Set("wxyz", "127.0.0.1", 9002, 7)
	routes.Set("efgh", "10.0.0.2", 9003, net.NoConn)

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "axolotl",
		Name:      "test_total",
		Help:      "test counter",
	}))

	return NewService("127.0.0.1:0", &fakeSource{routes: routes}, reg, common.NewTestEntry(t, common.TestLogLevel))
}

func get(t *testing.T, s *Service, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestGetStats(t *testing.T) {
	s := newTestService(t)

	rec := get(t, s, "/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status should be 200, not %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("CORS header should be set")
	}

	var stats net.Stats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("err: %v", err)
	}
	if stats.PublicKey != "abcd" || stats.Routes != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestGetPeers(t *testing.T) {
	s := newTestService(t)

	rec := get(t, s, "/peers")
	if rec.Code != http.StatusOK {
		t.Fatalf("status should be 200, not %d", rec.Code)
	}

	var peers []Peer
	if err := json.NewDecoder(rec.Body).Decode(&peers); err != nil {
		t.Fatalf("err: %v", err)
	}

	if len(peers) != 2 {
		t.Fatalf("there should be 2 peers, not %d", len(peers))
	}
	if peers[0].PublicKey != "efgh" || peers[0].Connected {
		t.Fatalf("efgh should come first and be disconnected: %+v", peers[0])
	}
	if peers[1].PublicKey != "wxyz" || !peers[1].Connected || peers[1].Address != "127.0.0.1:9002" {
		t.Fatalf("unexpected peer %+v", peers[1])
	}
}

func TestGetPeer(t *testing.T) {
	s := newTestService(t)

	rec := get(t, s, "/peers/wxyz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status should be 200, not %d", rec.Code)
	}

	var peer Peer
	if err := json.NewDecoder(rec.Body).Decode(&peer); err != nil {
		t.Fatalf("err: %v", err)
	}
	if peer.Conn != 7 {
		t.Fatalf("conn should be 7, not %d", peer.Conn)
	}

	if rec := get(t, s, "/peers/none"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown peer should return 404, not %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	s := newTestService(t)

	rec := get(t, s, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status should be 200, not %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "axolotl_test_total") {
		t.Fatalf("metrics output should contain the registered counter")
	}
}
