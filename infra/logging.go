package infra

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger creates a slog.Logger writing JSON to stdout and a rotated file
// under dir. An empty dir logs to stdout only.
func NewLogger(level, dir string) *slog.Logger {
	var w io.Writer = os.Stdout
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
				Filename:   filepath.Join(dir, "mbo.log"),
				MaxSize:    50, // megabytes
				MaxBackups: 3,
				MaxAge:     14, // days
				Compress:   true,
			})
		}
	}
	var lv slog.Level
	switch level {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lv}))
}
