// Package logger is the screener's structured logger (zerolog).
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/aegis/v13/screener/pkg/config"
)

// 공통 필드 키 (로그 검색용)
const (
	FieldComponent  = "component"
	FieldRunID      = "run_id"
	FieldAsOf       = "as_of"
	FieldInstrument = "instrument_id"
)

// Logger wraps a zerolog.Logger.
// ⭐ SSOT: 모든 로깅은 이 패키지를 통해서만 수행
type Logger struct {
	zlog zerolog.Logger
}

// New builds the process logger from config.
// LOG_FORMAT=console|pretty switches to the human-readable writer.
func New(cfg *config.Config) *Logger {
	switch strings.ToLower(cfg.LogFormat) {
	case "console", "pretty":
		return NewWithWriter(cfg, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	default:
		return NewWithWriter(cfg, os.Stdout)
	}
}

// NewWithWriter builds a logger on w
func NewWithWriter(cfg *config.Config, w io.Writer) *Logger {
	// 레벨은 인스턴스 단위 (전역 레벨 변경 없음)
	zlog := zerolog.New(w).
		Level(parseLogLevel(cfg.LogLevel)).
		With().
		Timestamp().
		Str("env", cfg.Env).
		Logger()
	return &Logger{zlog: zlog}
}

// Nop discards everything (tests)
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

func parseLogLevel(levelStr string) zerolog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Level returns the active level
func (l *Logger) Level() zerolog.Level {
	return l.zlog.GetLevel()
}

func (l *Logger) Debug(msg string) { l.zlog.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.zlog.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.zlog.Warn().Msg(msg) }
func (l *Logger) Error(msg string) { l.zlog.Error().Msg(msg) }

// Fatal logs and exits the process
func (l *Logger) Fatal(msg string) { l.zlog.Fatal().Msg(msg) }

// Warnf logs a formatted warning
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// Errorf logs a formatted error
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

// WithField returns a child logger with one extra field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zlog: l.zlog.With().Interface(key, value).Logger()}
}

// WithFields returns a child logger with extra fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zlog: ctx.Logger()}
}

// WithError attaches err under "error"
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zlog: l.zlog.With().Err(err).Logger()}
}

// WithComponent tags entries with the emitting component (scanner, orchestrator, ...)
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str(FieldComponent, name).Logger()}
}

// WithRun tags entries with a screening run id and its as-of date
func (l *Logger) WithRun(runID string, asOf time.Time) *Logger {
	zctx := l.zlog.With().Str(FieldRunID, runID)
	if !asOf.IsZero() {
		zctx = zctx.Str(FieldAsOf, asOf.UTC().Format("2006-01-02"))
	}
	return &Logger{zlog: zctx.Logger()}
}

// WithInstrument tags entries with an instrument id
func (l *Logger) WithInstrument(id string) *Logger {
	return &Logger{zlog: l.zlog.With().Str(FieldInstrument, id).Logger()}
}
