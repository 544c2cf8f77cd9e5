package net

import (
	"strconv"

	"github.com/mosaicnetworks/axolotl/src/packet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics groups the prometheus collectors of an Endpoint. Collectors are
// labelled with the node key so that several Endpoints can share a registry.
type metrics struct {
	connections    prometheus.Gauge
	dials          *prometheus.CounterVec
	accepts        prometheus.Counter
	rejects        *prometheus.CounterVec
	packetsIn      *prometheus.CounterVec
	packetsOut     *prometheus.CounterVec
	packetsDropped *prometheus.CounterVec
	lookups        *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer, key string, inboundDepth func() float64) *metrics {
	// promauto.With(nil) creates collectors without registering them.
	f := promauto.With(reg)
	labels := prometheus.Labels{"node": key}

	m := &metrics{
		connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   "axolotl",
			Subsystem:   "endpoint",
			Name:        "connections",
			Help:        "Number of established connections",
			ConstLabels: labels,
		}),
		dials: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "axolotl",
			Subsystem:   "endpoint",
			Name:        "dials_total",
			Help:        "Outbound connection attempts by result",
			ConstLabels: labels,
		}, []string{"result"}),
		accepts: f.NewCounter(prometheus.CounterOpts{
			Namespace:   "axolotl",
			Subsystem:   "endpoint",
			Name:        "accepts_total",
			Help:        "Inbound connections accepted",
			ConstLabels: labels,
		}),
		rejects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "axolotl",
			Subsystem:   "endpoint",
			Name:        "rejects_total",
			Help:        "Connections closed by failure, by stage",
			ConstLabels: labels,
		}, []string{"stage"}),
		packetsIn: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "axolotl",
			Subsystem:   "endpoint",
			Name:        "packets_received_total",
			Help:        "Packets received, by type",
			ConstLabels: labels,
		}, []string{"type"}),
		packetsOut: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "axolotl",
			Subsystem:   "endpoint",
			Name:        "packets_sent_total",
			Help:        "Packets written to a socket, by type",
			ConstLabels: labels,
		}, []string{"type"}),
		packetsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "axolotl",
			Subsystem:   "endpoint",
			Name:        "packets_dropped_total",
			Help:        "Packets discarded before reaching a socket, by reason",
			ConstLabels: labels,
		}, []string{"reason"}),
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "axolotl",
			Subsystem:   "endpoint",
			Name:        "directory_lookups_total",
			Help:        "Directory lookups by result",
			ConstLabels: labels,
		}, []string{"result"}),
	}

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   "axolotl",
		Subsystem:   "endpoint",
		Name:        "inbound_queue_length",
		Help:        "Packets waiting to be dispatched by Update",
		ConstLabels: labels,
	}, inboundDepth)

	return m
}

func typeLabel(t packet.Type) string {
	return strconv.FormatUint(uint64(t), 10)
}
