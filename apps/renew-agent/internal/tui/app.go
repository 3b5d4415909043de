// Package tui は更新履歴と実行中セッションを表示するモニタ画面を提供する。
package tui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// App はモニタ画面のtview.Applicationと画面切り替えを管理する。
// 画面は上からヘッダー・ページ・ステータスバーの順に並ぶ。
type App struct {
	tv        *tview.Application
	pages     *tview.Pages
	header    *tview.TextView
	statusBar *StatusBar
}

// NewApp は新しいAppを生成する。targetはヘッダーに表示する接続先。
func NewApp(target string) *App {
	tv := tview.NewApplication()
	statusBar := NewStatusBar()
	statusBar.SetApp(tv)

	header := tview.NewTextView().SetDynamicColors(true)
	header.SetBackgroundColor(tcell.ColorDarkBlue)
	header.SetText(" [::b]renew-agent monitor[::-]  [gray]" + tview.Escape(target) + "[-]")

	return &App{
		tv:        tv,
		pages:     tview.NewPages(),
		header:    header,
		statusBar: statusBar,
	}
}

// Run は画面を表示し、Stopが呼ばれるまで戻らない。
func (a *App) Run() error {
	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.header, 1, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar.view, 1, 0, false)
	return a.tv.SetRoot(layout, true).EnableMouse(false).Run()
}

// Stop は画面を閉じる。
func (a *App) Stop() {
	a.tv.Stop()
}

// StatusBar はステータスバーを返す。
func (a *App) StatusBar() *StatusBar {
	return a.statusBar
}

// HeaderText はヘッダーの表示内容を返す。
func (a *App) HeaderText() string {
	return a.header.GetText(true)
}

// AddScreen は画面を登録する。最初に登録した画面が表示される。
func (a *App) AddScreen(name string, p tview.Primitive) {
	a.pages.AddPage(name, p, true, a.pages.GetPageCount() == 0)
}

// Show は登録済みの画面に切り替えてfocusにフォーカスを移す。
func (a *App) Show(name string, focus tview.Primitive) {
	a.pages.SwitchToPage(name)
	a.tv.SetFocus(focus)
}

// QueueUpdateDraw はUIゴルーチンで実行する更新をキューに積む。
func (a *App) QueueUpdateDraw(f func()) {
	a.tv.QueueUpdateDraw(f)
}
