package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu         sync.RWMutex
	logger     zerolog.Logger
	loggerOnce sync.Once
)

// initLogger initializes the global logger to write human-readable lines to
// stderr. Configure may replace it later with a JSON writer.
func initLogger() {
	loggerOnce.Do(func() {
		logger = newLogger(consoleWriter(os.Stderr), LevelInfo)
	})
}

func newLogger(w io.Writer, l Level) zerolog.Logger {
	return zerolog.New(w).Level(zerologLevel(l)).With().Timestamp().Logger()
}

func consoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339Nano, NoColor: true}
}

// Configure replaces the global logger. format is "console" (default) or
// "json".
func Configure(w io.Writer, l Level, format string) {
	initLogger()
	if w == nil {
		w = os.Stderr
	}
	if !strings.EqualFold(format, "json") {
		w = consoleWriter(w)
	}
	mu.Lock()
	logger = newLogger(w, l)
	mu.Unlock()
}

func SetLevel(l Level) {
	initLogger()
	mu.Lock()
	logger = logger.Level(zerologLevel(l))
	mu.Unlock()
}

// ParseLevel maps config/flag strings onto a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func Debug(msg string, kv ...any) {
	emit(current().Debug(), msg, kv...)
}

func Info(msg string, kv ...any) {
	emit(current().Info(), msg, kv...)
}

func Warn(msg string, kv ...any) {
	emit(current().Warn(), msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	emit(current().Error().Err(err), msg, kv...)
}

func current() *zerolog.Logger {
	initLogger()
	mu.RLock()
	l := logger
	mu.RUnlock()
	return &l
}

func emit(ev *zerolog.Event, msg string, kv ...any) {
	if ev == nil {
		return
	}
	// Expect kv as pairs: key, value, key, value, ...
	// A trailing key without a value is ignored.
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}

func zerologLevel(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
