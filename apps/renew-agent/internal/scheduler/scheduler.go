// Package scheduler は一定間隔でバックグラウンド更新を要求する。
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/renewerr"
	"github.com/oyaguma3/upass-renew-agent/pkg/logging"
)

// Renewer はバックグラウンド更新の要求先
type Renewer interface {
	RenewInBackground(ctx context.Context) (renewerr.Outcome, error)
}

// Scheduler は定期実行を管理する
type Scheduler struct {
	renewer  Renewer
	interval time.Duration
}

// New は新しいSchedulerを生成する。intervalが0以下の場合Runは何もしない。
func New(renewer Renewer, interval time.Duration) *Scheduler {
	return &Scheduler{
		renewer:  renewer,
		interval: interval,
	}
}

// Enabled は定期実行が有効かどうかを返す
func (s *Scheduler) Enabled() bool {
	return s.interval > 0
}

// Run はctxがキャンセルされるまで定期的に更新を要求する。
// 前回の更新が終わるまで次の要求は出さない。
func (s *Scheduler) Run(ctx context.Context) {
	if !s.Enabled() {
		slog.Info("定期更新は無効", "event_id", "SCHEDULER_DISABLED")
		return
	}

	slog.Info("定期更新を開始",
		"event_id", "SCHEDULER_START",
		"interval", s.interval.String(),
	)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("定期更新を停止", "event_id", "SCHEDULER_STOP")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce はバックグラウンド更新を1回要求し、結果を返す。
func (s *Scheduler) RunOnce(ctx context.Context) (renewerr.Outcome, error) {
	start := time.Now()
	o, err := s.renewer.RenewInBackground(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Warn("定期更新の要求失敗",
				"event_id", "SCHEDULER_ERR",
				logging.WithError(err),
			)
		}
		return o, err
	}

	level := slog.LevelInfo
	if !o.Settled() {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "定期更新が終了",
		"event_id", "SCHEDULER_RUN",
		"outcome", o.Label(),
		logging.WithLatency(time.Since(start).Milliseconds()),
	)
	return o, nil
}
