// Package connectivity はUPassBCへの到達性を定期的に確認し、変化を通知する。
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/metrics"
	"github.com/oyaguma3/upass-renew-agent/pkg/logging"
)

// Monitor は疎通監視を行う
type Monitor struct {
	client   *resty.Client
	url      string
	interval time.Duration
	events   chan bool

	mu    sync.Mutex
	known bool
	up    bool
}

// NewMonitor は新しいMonitorを生成する。
func NewMonitor(probeURL string, interval time.Duration) *Monitor {
	client := resty.New().
		SetTimeout(config.ProbeTimeout).
		SetRedirectPolicy(resty.NoRedirectPolicy()).
		SetHeader("User-Agent", config.UserAgent)

	return &Monitor{
		client:   client,
		url:      probeURL,
		interval: interval,
		events:   make(chan bool, 1),
	}
}

// Events は到達性の変化を通知するチャネルを返す。trueは到達可能。
func (m *Monitor) Events() <-chan bool {
	return m.events
}

// Reachable は直近の確認結果を返す。未確認の場合は到達可能とみなす。
func (m *Monitor) Reachable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.known || m.up
}

// Run はctxがキャンセルされるまで定期的に確認する。
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check は1回確認し、結果が変化していれば通知する。
// HTTP応答が得られればステータスに関係なく到達可能とする。
func (m *Monitor) Check(ctx context.Context) bool {
	start := time.Now()
	resp, err := m.client.R().SetContext(ctx).Head(m.url)
	up := err == nil
	if ctx.Err() != nil {
		return m.Reachable()
	}

	m.mu.Lock()
	changed := !m.known || m.up != up
	m.known, m.up = true, up
	m.mu.Unlock()

	metrics.SetReachable(up)
	if !changed {
		return up
	}

	if up {
		slog.Info("UPassBCへの疎通を確認",
			"event_id", "CONNECTIVITY_UP",
			logging.WithHTTPStatus(resp.StatusCode()),
			logging.WithLatency(time.Since(start).Milliseconds()),
		)
	} else {
		slog.Warn("UPassBCへ到達できない",
			"event_id", "CONNECTIVITY_DOWN",
			logging.WithURL(m.url),
			logging.WithError(err),
		)
	}
	m.publish(up)
	return up
}

// publish は最新の状態のみを残してチャネルに送る。
func (m *Monitor) publish(up bool) {
	for {
		select {
		case m.events <- up:
			return
		default:
		}
		select {
		case <-m.events:
		default:
		}
	}
}
