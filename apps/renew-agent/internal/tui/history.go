package tui

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/session"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/store"
)

// HistorySource はセッション履歴の取得元
type HistorySource interface {
	Recent(ctx context.Context, limit int) ([]*store.SessionRecord, error)
}

var historyHeaders = []string{"Started", "Origin", "School", "State", "Outcome", "Duration", "Pages"}

// HistoryScreen はセッション履歴の一覧画面を表す。
type HistoryScreen struct {
	table    *tview.Table
	source   HistorySource
	snaps    []session.Snapshot
	onSelect func(session.Snapshot)
}

// NewHistoryScreen は新しいHistoryScreenを生成する。
func NewHistoryScreen(source HistorySource) *HistoryScreen {
	table := tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false).
		SetFixed(1, 0)

	table.SetTitle(" Renewal History ").
		SetTitleAlign(tview.AlignCenter).
		SetBorder(true).
		SetBorderColor(tcell.ColorBlue)

	return &HistoryScreen{table: table, source: source}
}

// SetOnSelect はセッション選択時のコールバックを設定する。
func (h *HistoryScreen) SetOnSelect(handler func(session.Snapshot)) {
	h.onSelect = handler
}

// Table は内部のtview.Tableを返す。
func (h *HistoryScreen) Table() *tview.Table {
	return h.table
}

// Load は履歴を読み込んで描画する。新しい順に並ぶ。
func (h *HistoryScreen) Load(ctx context.Context) error {
	recs, err := h.source.Recent(ctx, config.RecentSessionLimit)
	if err != nil {
		return err
	}
	h.SetRecords(recs)
	return nil
}

// SetRecords は取得済みの履歴を描画する。
func (h *HistoryScreen) SetRecords(recs []*store.SessionRecord) {
	snaps := make([]session.Snapshot, len(recs))
	for i, rec := range recs {
		snaps[i] = session.FromRecord(rec)
	}
	h.snaps = snaps
	h.render()
}

// Selected は選択中のセッションを返す。
func (h *HistoryScreen) Selected() (session.Snapshot, bool) {
	row, _ := h.table.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(h.snaps) {
		return session.Snapshot{}, false
	}
	return h.snaps[idx], true
}

// SelectCurrent は選択中のセッションでコールバックを呼ぶ。
func (h *HistoryScreen) SelectCurrent() {
	if snap, ok := h.Selected(); ok && h.onSelect != nil {
		h.onSelect(snap)
	}
}

func (h *HistoryScreen) render() {
	h.table.Clear()

	for col, header := range historyHeaders {
		h.table.SetCell(0, col, tview.NewTableCell(header).
			SetTextColor(tcell.ColorYellow).
			SetAlign(tview.AlignLeft).
			SetSelectable(false).
			SetExpansion(1))
	}

	if len(h.snaps) == 0 {
		h.table.SetCell(1, 0, tview.NewTableCell("No sessions recorded").
			SetTextColor(tcell.ColorGray).
			SetSelectable(false))
		h.table.SetTitle(" Renewal History ")
		return
	}

	for i, s := range h.snaps {
		row := i + 1
		outcome := s.Outcome
		if outcome == "" {
			outcome = "-"
		}
		cells := []struct {
			text  string
			color tcell.Color
		}{
			{dateTimeShort(s.StartedAt), tcell.ColorGray},
			{string(s.Origin), tcell.ColorWhite},
			{s.School, tcell.ColorWhite},
			{string(s.State), tcell.ColorWhite},
			{outcome, outcomeColor(s.Outcome)},
			{duration(s.UpdatedAt.Sub(s.StartedAt)), tcell.ColorTeal},
			{strconv.Itoa(len(s.Pages)), tcell.ColorWhite},
		}
		for col, c := range cells {
			h.table.SetCell(row, col, tview.NewTableCell(c.text).
				SetTextColor(c.color).
				SetAlign(tview.AlignLeft).
				SetExpansion(1))
		}
	}

	h.table.SetTitle(fmt.Sprintf(" Renewal History [gray](%d)[-] ", len(h.snaps)))
	h.table.Select(1, 0)
}
