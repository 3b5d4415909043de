package tui

import (
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/handler"
)

// level はステータスバーに表示するメッセージの重要度
type level int

const (
	levelInfo level = iota
	levelSuccess
	levelWarning
	levelError
)

// levelFormats はlevelごとの装飾。%sにメッセージが入る。
var levelFormats = map[level][2]string{
	levelInfo:    {"[cyan] ℹ ", " [-]"},
	levelSuccess: {"[green::b] ✓ ", " [-::-]"},
	levelWarning: {"[yellow::b] ⚠ ", " [-::-]"},
	levelError:   {"[red::b] ✗ ", " [-::-]"},
}

const (
	keyHelp      = " r:Refresh | Enter:Detail | n:Renew | x:Cancel | q:Quit"
	messageDwell = 5 * time.Second
)

// StatusBar は画面下部の操作ヘルプと一時メッセージを表示する。
// メッセージはmessageDwell経過後に操作ヘルプへ戻る。
type StatusBar struct {
	view  *tview.TextView
	app   *tview.Application
	reset *time.Timer
}

// NewStatusBar は操作ヘルプを表示したStatusBarを生成する。
func NewStatusBar() *StatusBar {
	view := tview.NewTextView().SetDynamicColors(true)
	view.SetBackgroundColor(tcell.ColorDarkBlue)
	view.SetTextColor(tcell.ColorWhite)
	view.SetText(keyHelp)
	return &StatusBar{view: view}
}

// SetApp は表示を戻す際の再描画先を設定する。未設定の場合は戻さない。
func (s *StatusBar) SetApp(app *tview.Application) {
	s.app = app
}

// Text は表示中のテキストを返す。
func (s *StatusBar) Text() string {
	return s.view.GetText(false)
}

func (s *StatusBar) ShowSuccess(message string) { s.show(levelSuccess, message) }
func (s *StatusBar) ShowWarning(message string) { s.show(levelWarning, message) }
func (s *StatusBar) ShowError(message string)   { s.show(levelError, message) }
func (s *StatusBar) ShowInfo(message string)    { s.show(levelInfo, message) }

// ShowRenewal は更新要求の結果を表示する。
// 成功は緑、最新パス所持などの確定済み結果は情報、それ以外は警告として表示する。
func (s *StatusBar) ShowRenewal(resp handler.RenewResponse, err error) {
	switch {
	case err != nil:
		s.show(levelError, "Renewal request failed: "+err.Error())
	case resp.Succeeded:
		s.show(levelSuccess, resp.Title)
	case resp.Settled:
		s.show(levelInfo, resp.Title)
	default:
		s.show(levelWarning, resp.Title)
	}
}

func (s *StatusBar) show(l level, message string) {
	if s.reset != nil {
		s.reset.Stop()
	}
	f := levelFormats[l]
	s.view.SetText(f[0] + message + f[1])

	if s.app == nil {
		return
	}
	app := s.app
	s.reset = time.AfterFunc(messageDwell, func() {
		app.QueueUpdateDraw(func() {
			s.view.SetText(keyHelp)
		})
	})
}
