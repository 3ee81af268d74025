package metrics

import (
	"net/http"

	"github.com/armon/go-metrics"
	"github.com/armon/go-metrics/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ExchangesCaptured    = []string{"exchanges_captured"}
	ExchangesDropped     = []string{"exchanges_dropped_scope"}
	BatchesFlushed       = []string{"batches_flushed"}
	ObserverEventsDropped = []string{"observer_events_dropped"}
	LeafCacheEvictions   = []string{"leaf_cache_evictions"}
	LeafCacheSize        = []string{"leaf_cache_size"}
	ObserversActive      = []string{"observers_active"}
	CaptureStoreSize     = []string{"capture_store_size"}
)

// Registry is the process-wide metric sink: a single armon/go-metrics sink
// backed by a Prometheus registry.
var Registry metrics.MetricSink

func init() {
	sink, err := prometheus.NewPrometheusSinkFrom(prometheus.PrometheusOpts{
		GaugeDefinitions: []prometheus.GaugeDefinition{
			{Name: LeafCacheSize, Help: "The number of leaf certificates currently cached"},
			{Name: ObserversActive, Help: "The number of event-stream observers currently subscribed"},
			{Name: CaptureStoreSize, Help: "The number of exchange records currently held in the capture store"},
		},
		CounterDefinitions: []prometheus.CounterDefinition{
			{Name: ExchangesCaptured, Help: "The total number of exchanges captured"},
			{Name: ExchangesDropped, Help: "The total number of exchanges dropped by scope filtering"},
			{Name: BatchesFlushed, Help: "The total number of batch events flushed, across both batch types"},
			{Name: ObserverEventsDropped, Help: "The total number of batch events dropped due to observer backpressure"},
			{Name: LeafCacheEvictions, Help: "The total number of leaf certificates evicted from the cache"},
		},
	})
	if err != nil {
		panic(err)
	}
	Registry = sink
}

// Handler exposes the Prometheus scrape endpoint for mounting on the
// control-plane mux.
func Handler() http.Handler {
	return promhttp.Handler()
}
