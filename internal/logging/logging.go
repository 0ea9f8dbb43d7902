// Package logging builds the slog logger the engine writes to.
package logging

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ErrLevel is returned for an unrecognized level name.
var ErrLevel = errors.New("invalid log level")

// LevelNotice sits between info and warn. Ban decisions log at this level.
const LevelNotice = slog.Level(2)

// ParseLevel maps a level name to slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
	switch s {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "notice":
		return LevelNotice, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "err":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, ErrLevel
	}
}

// Options controls handler format and destination. Writer defaults to
// stderr.
type Options struct {
	Level     string
	JSON      bool
	AddSource bool
	Writer    io.Writer
}

// New returns a logger for opt.
func New(opt Options) (*slog.Logger, error) {
	level, err := ParseLevel(opt.Level)
	if err != nil {
		return nil, err
	}
	var w io.Writer = os.Stderr
	if opt.Writer != nil {
		w = opt.Writer
	}
	ho := &slog.HandlerOptions{
		Level:       level,
		AddSource:   opt.AddSource,
		ReplaceAttr: renameNotice,
	}

	var h slog.Handler
	if opt.JSON {
		h = slog.NewJSONHandler(w, ho)
	} else {
		h = slog.NewTextHandler(w, ho)
	}
	return slog.New(h), nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func renameNotice(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelNotice {
		a.Value = slog.StringValue("NOTICE")
	}
	return a
}
