package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/session"
)

// LivePanel はエージェントで実行中のセッションを表示する。
type LivePanel struct {
	view *tview.TextView
}

// NewLivePanel は新しいLivePanelを生成する。
func NewLivePanel() *LivePanel {
	view := tview.NewTextView().SetDynamicColors(true)
	view.SetBorder(true).
		SetTitle(" Agent ").
		SetBorderColor(tcell.ColorGray)
	view.SetText("[gray]Waiting for agent...[-]")
	return &LivePanel{view: view}
}

// View は内部のtview.TextViewを返す。
func (l *LivePanel) View() *tview.TextView {
	return l.view
}

// Text は表示中のテキストを返す。
func (l *LivePanel) Text() string {
	return l.view.GetText(true)
}

// Update はエージェントへの問い合わせ結果を表示する。
func (l *LivePanel) Update(snap session.Snapshot, active bool, err error) {
	switch {
	case errors.Is(err, ErrNoSession):
		l.view.SetText("[green]Agent idle[-]  no sessions recorded")
	case err != nil:
		l.view.SetText("[red]Agent unreachable[-]  " + tview.Escape(err.Error()))
	case active:
		l.view.SetText(liveText(snap))
	default:
		l.view.SetText(fmt.Sprintf("[green]Agent idle[-]  last: %s %s", snap.Outcome, dateTimeShort(snap.UpdatedAt)))
	}
}

func liveText(s session.Snapshot) string {
	var flags []string
	if s.Armed {
		flags = append(flags, "armed")
	}
	if s.Ready {
		flags = append(flags, "ready")
	}
	if s.Suspended {
		flags = append(flags, "[yellow]offline[-]")
	}
	if s.RenewSubmitted {
		flags = append(flags, "submitted")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[cyan::b]Renewing[-::-]  %s %s  [white]%s[-]", s.Origin, s.School, s.State)
	if len(flags) > 0 {
		fmt.Fprintf(&b, "  (%s)", strings.Join(flags, ", "))
	}
	fmt.Fprintf(&b, "\nPages: %d  Elapsed: %s", len(s.Pages), duration(s.UpdatedAt.Sub(s.StartedAt)))
	return b.String()
}
