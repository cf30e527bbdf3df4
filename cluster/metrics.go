package cluster

import "github.com/prometheus/client_golang/prometheus"

// Collective traffic counters. Global, label-free, and
// cheap to bump from the reduce hot path; register them
// with RegisterMetrics when an exporter is wanted.
var (
	chunksSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reduce_chunks_sent_total",
		Help: "Wire chunks sent during collective reduces",
	})
	bytesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reduce_bytes_total",
		Help: "Payload bytes sent during collective reduces",
	})
	combinesApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reduce_combines_total",
		Help: "Elements combined into reduction buffers",
	})
)

// RegisterMetrics registers the package's counters with
// reg. Call at most once per registry.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{chunksSent, bytesSent, combinesApplied} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}
