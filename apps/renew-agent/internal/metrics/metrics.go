// Package metrics は更新エージェントのPrometheusメトリクスを定義する。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "renew_agent"

var (
	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_total",
		Help:      "Number of finished renewal sessions by origin and outcome.",
	}, []string{"origin", "outcome"})

	sessionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "session_duration_seconds",
		Help:      "Wall time from session start to terminal state.",
		Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
	}, []string{"outcome"})

	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "page_arrivals_total",
		Help:      "Number of page arrivals by classified kind and load outcome.",
	}, []string{"kind", "outcome"})

	sessionActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "session_active",
		Help:      "1 while a renewal session is in flight.",
	})

	pendingRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_requests",
		Help:      "Renew requests waiting for a session result.",
	})

	siteReachable = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "site_reachable",
		Help:      "1 when the last connectivity probe reached UPassBC.",
	})
)

// RecordSession は終了したセッションを記録する。
func RecordSession(origin, outcome string, d time.Duration) {
	sessionsTotal.WithLabelValues(origin, outcome).Inc()
	sessionDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordPage はページ到着を記録する。
func RecordPage(kind, outcome string) {
	pagesTotal.WithLabelValues(kind, outcome).Inc()
}

// SetActive は実行中セッションの有無を設定する。
func SetActive(active bool) {
	sessionActive.Set(boolValue(active))
}

// SetPending は未解決の更新要求数を設定する。
func SetPending(n int) {
	pendingRequests.Set(float64(n))
}

// SetReachable は疎通状態を設定する。
func SetReachable(up bool) {
	siteReachable.Set(boolValue(up))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
