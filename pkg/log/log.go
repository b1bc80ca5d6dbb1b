package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/lmittmann/tint"
	"github.com/rs/zerolog"
)

// New creates a zerolog logger writing to w. format is "console" or "json";
// an empty format picks json inside Kubernetes and console elsewhere.
func New(w io.Writer, level, format string) (*zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if format == "" {
		format = "console"
		if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
			format = "json"
		}
	}

	var output io.Writer
	switch format {
	case "json":
		output = w
	case "console":
		output = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02T15:04:05.999Z07:00"}
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	logger := zerolog.New(output).Level(lvl).With().Timestamp().Logger()
	return &logger, nil
}

// Logr wraps a zerolog logger as a logr.Logger.
func Logr(z *zerolog.Logger) logr.Logger {
	return zerologr.New(z)
}

// Slog wraps a zerolog logger as a *slog.Logger.
func Slog(z *zerolog.Logger) *slog.Logger {
	return slog.New(logr.ToSlogHandler(Logr(z)))
}

// NewSlog creates the logger of the xodc binaries. "console" writes
// colored lines through a slog handler; "json" goes through zerolog.
func NewSlog(w io.Writer, level, format string) (*slog.Logger, error) {
	if format != "console" {
		z, err := New(w, level, format)
		if err != nil {
			return nil, err
		}
		return Slog(z), nil
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
		NoColor:    !isTerminal(w),
	})), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
