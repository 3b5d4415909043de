package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/session"
)

// DetailScreen はセッション詳細画面を表す。
type DetailScreen struct {
	textView *tview.TextView
	onBack   func()
}

// NewDetailScreen は新しいDetailScreenを生成する。
func NewDetailScreen() *DetailScreen {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	textView.SetBorder(true).
		SetTitle(" Session Detail ").
		SetBorderColor(tcell.ColorBlue)

	d := &DetailScreen{textView: textView}
	textView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEsc || event.Rune() == 'q' {
			if d.onBack != nil {
				d.onBack()
			}
			return nil
		}
		return event
	})
	return d
}

// SetOnBack は戻る時のコールバックを設定する。
func (d *DetailScreen) SetOnBack(handler func()) {
	d.onBack = handler
}

// View は内部のtview.TextViewを返す。
func (d *DetailScreen) View() *tview.TextView {
	return d.textView
}

// Show はセッションの内容を表示する。
func (d *DetailScreen) Show(s session.Snapshot) {
	d.textView.SetText(renderSnapshot(s))
	d.textView.ScrollToBeginning()
}

func renderSnapshot(s session.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[yellow]Session:[-]  %s (%s)\n", s.ID, s.Origin)
	fmt.Fprintf(&b, "[yellow]School:[-]   %s\n", s.School)
	fmt.Fprintf(&b, "[yellow]State:[-]    %s\n", s.State)
	if s.Outcome != "" {
		fmt.Fprintf(&b, "[yellow]Outcome:[-]  [%s]%s[-]\n", outcomeColor(s.Outcome).Name(), s.Outcome)
		fmt.Fprintf(&b, "          %s\n", tview.Escape(s.Title))
	}
	if s.NumUpassSeen != nil {
		fmt.Fprintf(&b, "[yellow]Passes:[-]   %d\n", *s.NumUpassSeen)
	}
	fmt.Fprintf(&b, "[yellow]Started:[-]  %s\n", s.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(&b, "[yellow]Duration:[-] %s\n", duration(s.UpdatedAt.Sub(s.StartedAt)))

	fmt.Fprintf(&b, "\n[cyan]Pages (%d)[-]\n", len(s.Pages))
	for i, p := range s.Pages {
		fmt.Fprintf(&b, " %2d %s", i+1, tview.Escape(p.URL))
		if p.Kind != "" {
			fmt.Fprintf(&b, " [gray]%s[-]", p.Kind)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n[gray]Press q or Esc to go back[-]")
	return b.String()
}
