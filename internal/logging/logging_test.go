package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":         slog.LevelInfo,
		"DEBUG":    slog.LevelDebug,
		" warning": slog.LevelWarn,
		"notice":   LevelNotice,
		"err":      slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("loud"); !errors.Is(err, ErrLevel) {
		t.Fatalf("expected ErrLevel, got %v", err)
	}
}

func TestNewRendersNotice(t *testing.T) {
	var buf bytes.Buffer
	lg, err := New(Options{Level: "notice", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	lg.Info("hidden")
	lg.Log(context.Background(), LevelNotice, "banned_ip_access")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record passed a notice threshold: %q", out)
	}
	if !strings.Contains(out, "level=NOTICE") {
		t.Fatalf("expected NOTICE level, got %q", out)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	lg, err := New(Options{JSON: true, Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	lg.Info("login_success", slog.Int64("user_id", 3))
	if !strings.Contains(buf.String(), `"user_id":3`) {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
