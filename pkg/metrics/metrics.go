package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "whale_tracker"

var (
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cycles_total",
		Help:      "Sync cycles by outcome",
	}, []string{"outcome"})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of one sync cycle",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	TransactionsReported = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_reported_total",
		Help:      "Interpreted transactions included in activity reports",
	})

	TrackedWallets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tracked_wallets",
		Help:      "Wallets in the last cycle snapshot",
	})

	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Upstream API requests by upstream and status class",
	}, []string{"upstream", "status"})

	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Admin commands by outcome",
	}, []string{"outcome"})
)

type statusCoder interface {
	StatusCode() int
}

// ObserveUpstream records one upstream call.
func ObserveUpstream(upstream string, err error) {
	UpstreamRequests.WithLabelValues(upstream, statusClass(err)).Inc()
}

func statusClass(err error) string {
	if err == nil {
		return "ok"
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		switch code := sc.StatusCode(); {
		case code == 429:
			return "rate_limited"
		case code >= 500:
			return "server_error"
		default:
			return "client_error"
		}
	}
	return "error"
}

// JobLastSuccess is set to the unix time of the latest successful run of each scheduled job.
var JobLastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "job_last_success_timestamp_seconds",
	Help:      "Unix time of the latest successful run by job",
}, []string{"job"})
