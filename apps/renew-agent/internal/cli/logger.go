package cli

import (
	"io"
	"log/slog"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
)

// initLogger はwへJSONで出力するロガーを既定にする。
// LOG_LEVELが解釈できない場合はINFOとする。
func initLogger(cfg *config.Config, w io.Writer) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(h).With("app", AppName))
}
