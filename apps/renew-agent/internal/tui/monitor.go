package tui

import (
	"context"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/handler"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/session"
	"github.com/oyaguma3/upass-renew-agent/pkg/logging"
)

// Agent は起動中のエージェントへの操作
type Agent interface {
	Session(ctx context.Context) (session.Snapshot, bool, error)
	Renew(ctx context.Context) (handler.RenewResponse, error)
	Cancel(ctx context.Context) (bool, error)
}

// ページ名
const (
	pageHistory = "history"
	pageDetail  = "detail"
)

// Monitor は履歴一覧・詳細・エージェント状態の画面をまとめる。
type Monitor struct {
	app      *App
	source   HistorySource
	agent    Agent
	interval time.Duration

	history *HistoryScreen
	detail  *DetailScreen
	live    *LivePanel
}

// NewMonitor は新しいMonitorを生成する。agentがnilの場合は履歴のみ表示する。
// targetはヘッダーに表示する接続先。
func NewMonitor(source HistorySource, agent Agent, target string, interval time.Duration) *Monitor {
	m := &Monitor{
		app:      NewApp(target),
		source:   source,
		agent:    agent,
		interval: interval,
		history:  NewHistoryScreen(source),
		detail:   NewDetailScreen(),
		live:     NewLivePanel(),
	}
	if agent == nil {
		m.live.View().SetText("[gray]Agent not configured[-]")
	}

	historyPage := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(m.live.View(), 4, 0, false).
		AddItem(m.history.Table(), 0, 1, true)

	m.app.AddScreen(pageHistory, historyPage)
	m.app.AddScreen(pageDetail, m.detail.View())

	m.history.SetOnSelect(func(s session.Snapshot) {
		m.detail.Show(s)
		m.app.Show(pageDetail, m.detail.View())
	})
	m.detail.SetOnBack(func() {
		m.app.Show(pageHistory, m.history.Table())
	})
	return m
}

// Run はctxがキャンセルされるかqが押されるまで画面を表示する。
func (m *Monitor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := m.history.Load(ctx); err != nil {
		m.app.StatusBar().ShowError("Failed to load history: " + err.Error())
	}
	m.setupKeyBindings(ctx)

	go m.poll(ctx)
	go func() {
		<-ctx.Done()
		m.app.Stop()
	}()

	slog.Info("モニタ開始", "event_id", "MONITOR_START", "agent", m.agent != nil)
	err := m.app.Run()
	slog.Info("モニタ終了", "event_id", "MONITOR_STOP")
	return err
}

// poll は一定間隔で履歴とエージェント状態を更新する。
func (m *Monitor) poll(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.refresh(ctx, false)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refresh(ctx, false)
		}
	}
}

// refresh は履歴とエージェント状態を取得し、描画をキューに積む。
func (m *Monitor) refresh(ctx context.Context, notify bool) {
	hctx, cancel := context.WithTimeout(ctx, config.ValkeyCommandTimeout)
	recs, herr := m.source.Recent(hctx, config.RecentSessionLimit)
	cancel()

	var (
		snap   session.Snapshot
		active bool
		aerr   error
	)
	if m.agent != nil {
		actx, cancel := context.WithTimeout(ctx, config.ProbeTimeout)
		snap, active, aerr = m.agent.Session(actx)
		cancel()
	}
	if ctx.Err() != nil {
		return
	}

	m.app.QueueUpdateDraw(func() {
		if m.agent != nil {
			m.live.Update(snap, active, aerr)
		}
		if herr != nil {
			slog.Warn("履歴取得失敗", "event_id", "MONITOR_HISTORY_ERR", logging.WithError(herr))
			m.app.StatusBar().ShowError("Failed to refresh: " + herr.Error())
			return
		}
		m.history.SetRecords(recs)
		if notify {
			m.app.StatusBar().ShowSuccess("Refreshed")
		}
	})
}

// renew はエージェントに更新を要求し、結果をステータスバーに表示する。
func (m *Monitor) renew(ctx context.Context) {
	resp, err := m.agent.Renew(ctx)
	if ctx.Err() != nil {
		return
	}
	m.app.QueueUpdateDraw(func() {
		m.app.StatusBar().ShowRenewal(resp, err)
	})
	m.refresh(ctx, false)
}

func (m *Monitor) cancelActive(ctx context.Context) {
	actx, cancel := context.WithTimeout(ctx, config.ProbeTimeout)
	ok, err := m.agent.Cancel(actx)
	cancel()
	m.app.QueueUpdateDraw(func() {
		switch {
		case err != nil:
			m.app.StatusBar().ShowError("Cancel failed: " + err.Error())
		case ok:
			m.app.StatusBar().ShowSuccess("Session cancelled")
		default:
			m.app.StatusBar().ShowInfo("No active session")
		}
	})
}

func (m *Monitor) setupKeyBindings(ctx context.Context) {
	m.history.Table().SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc:
			m.app.Stop()
			return nil
		case tcell.KeyF5:
			go m.refresh(ctx, true)
			return nil
		case tcell.KeyEnter:
			m.history.SelectCurrent()
			return nil
		}

		switch event.Rune() {
		case 'r':
			go m.refresh(ctx, true)
			return nil
		case 'n':
			if m.agent == nil {
				m.app.StatusBar().ShowWarning("Agent not configured")
				return nil
			}
			m.app.StatusBar().ShowInfo("Renewal requested")
			go m.renew(ctx)
			return nil
		case 'x':
			if m.agent == nil {
				m.app.StatusBar().ShowWarning("Agent not configured")
				return nil
			}
			go m.cancelActive(ctx)
			return nil
		case 'q':
			m.app.Stop()
			return nil
		}
		return event
	})
}
