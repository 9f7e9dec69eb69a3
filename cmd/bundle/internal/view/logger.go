package view

import (
	"io"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
)

// LogLevel mirrors the teacher's own level ladder, with a Silent rung
// above Error for commands (like build's final report) that want their
// own renderer to be the only thing writing to the stream.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelSilent
)

func (l LogLevel) toSlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.Level(100)
	}
}

// Logger is the progress-reporting surface a command writes to, kept
// separate from a command's final rendered result.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type humanLogger struct{ logger *slog.Logger }
type jsonLogger struct{ logger *slog.Logger }

var _ Logger = (*humanLogger)(nil)
var _ Logger = (*jsonLogger)(nil)

func rewriteLogLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey && len(groups) == 0 {
		level := a.Value.Any().(slog.Level)
		var levelText string
		switch level {
		case slog.LevelDebug:
			levelText = "DEBUG"
		case slog.LevelInfo:
			levelText = color.GreenString("INFO")
		case slog.LevelWarn:
			levelText = color.YellowString("WARN")
		case slog.LevelError:
			levelText = color.RedString("ERROR")
		default:
			levelText = level.String()
		}
		a.Value = slog.StringValue(levelText)
	}
	return a
}

func (l *humanLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *humanLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *humanLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *humanLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func (l *jsonLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *jsonLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *jsonLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *jsonLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// NewHumanLogger builds a tint-colorized slog logger at level.
func NewHumanLogger(w io.Writer, level LogLevel) Logger {
	handler := tint.NewHandler(w, &tint.Options{
		Level:       level.toSlogLevel(),
		TimeFormat:  time.DateTime,
		ReplaceAttr: rewriteLogLevel,
	})
	return &humanLogger{logger: slog.New(handler)}
}

// NewJSONLogger builds a JSON-structured slog logger at level.
func NewJSONLogger(w io.Writer, level LogLevel) Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level.toSlogLevel()})
	return &jsonLogger{logger: slog.New(handler)}
}

// NewNopLogger discards everything, for silent/--output json command runs
// where stdout is reserved for the rendered result.
func NewNopLogger() Logger {
	handler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(100)})
	return &jsonLogger{logger: slog.New(handler)}
}
