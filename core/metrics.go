package core

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "evm_rpc_transport",
		Name:      "requests_total",
		Help:      "Requests seen, by method or event name.",
	}, []string{"name"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "evm_rpc_transport",
		Name:      "request_duration_ms",
		Help:      "Call latency in milliseconds, by method.",
		Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"method"})

	errorCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "evm_rpc_transport",
		Name:      "errors_total",
		Help:      "Failed calls, by transport error kind.",
	}, []string{"kind"})

	cyclesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "evm_rpc_transport",
		Name:      "cycles_attached_total",
		Help:      "Cycles attached to outgoing calls, by rpc service.",
	}, []string{"service"})
)

func Count(name string) {
	requestCounter.WithLabelValues(name).Inc()
}

func Time(method string, costInMs float64) {
	requestDuration.WithLabelValues(method).Observe(costInMs)
}

func CountError(kind ErrorKind) {
	errorCounter.WithLabelValues(kind.String()).Inc()
}

func CountCycles(service string, cycles *uint256.Int) {
	f, _ := new(big.Float).SetInt(cycles.ToBig()).Float64()
	cyclesCounter.WithLabelValues(service).Add(f)
}
