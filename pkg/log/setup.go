package log

import (
	"fmt"
	"log/slog"

	"github.com/levenlabs/go-llog"
)

// Setup mirrors the llog level, which lflag sets from its flags, onto slog
// and makes the package logger the slog default. Call it after
// lflag.Configure.
func Setup() {
	var level slog.Level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}
	SetDefaultLogLevel(level)
	slog.SetDefault(defaultLogger)
	slog.Debug("logger configured", slog.String("level", level.String()))
}
