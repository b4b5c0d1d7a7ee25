package punch

import (
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/punchclock/punch/internal/config"
)

// initLogger routes structured logs to a rotated file in the XDG data dir.
// Terminal output stays clean for pterm.
func initLogger() {
	level := slog.LevelInfo
	if strings.TrimSpace(os.Getenv("PUNCH_DEBUG")) != "" {
		level = slog.LevelDebug
	}

	writer := &lumberjack.Logger{
		Filename:   config.LogFilePath(),
		MaxSize:    5, // megabytes
		MaxBackups: 3,
		Compress:   true,
	}

	logger := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: level,
	}))

	slog.SetDefault(logger)
}
