// Package logger wraps zerolog with the constructors and context helpers the
// server uses. Request handlers get a request-scoped child logger through
// FromContext; everything else holds a *Logger built by New.
package logger

import (
	"context"
	"io"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Logger struct {
	zerolog.Logger
}

// New returns a JSON logger writing to stdout at the given level. Unknown
// levels fall back to info.
func New(role, level string) *Logger {
	return NewWithWriter(os.Stdout, role, level)
}

func NewWithWriter(w io.Writer, role, level string) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return runtime.FuncForPC(pc).Name()
	}
	zerolog.CallerFieldName = "func"

	l := zerolog.New(w).Level(lvl).With().
		Str("role", role).
		Timestamp().
		Caller().
		Logger()

	return &Logger{l}
}

func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

func (l *Logger) GetChildLogger() *Logger {
	return &Logger{l.With().Logger()}
}

// FromContext returns the logger attached by the request middleware. Without
// one, zerolog hands back its disabled default logger, never nil.
func FromContext(ctx context.Context) *Logger {
	return &Logger{*log.Ctx(ctx)}
}
