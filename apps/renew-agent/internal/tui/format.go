package tui

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/renewerr"
)

// dateTimeShort は時刻を "01-02 15:04:05" 形式にフォーマットする。
func dateTimeShort(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("01-02 15:04:05")
}

// duration は経過時間を人間が読みやすい形式にフォーマットする。
// 例: 61500ms -> "1m 1s"
func duration(d time.Duration) string {
	if d < 0 {
		return "-"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, secs)
	}
	return fmt.Sprintf("%ds", secs)
}

// outcomeColor は結果ラベルの表示色を返す。
func outcomeColor(label string) tcell.Color {
	switch label {
	case "":
		return tcell.ColorGray
	case renewerr.OutcomeSuccess:
		return tcell.ColorGreen
	case string(renewerr.KindAlreadyHasLatestUPass):
		return tcell.ColorTeal
	default:
		return tcell.ColorRed
	}
}
