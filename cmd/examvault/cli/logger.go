// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// ParseLevel maps a config level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}

// NewLogger creates the logger for command operations. format is
// "text", "json" or "auto". auto uses colored tint output when stderr
// is a terminal and JSON when it is piped or redirected.
func NewLogger(format string, level slog.Level) *slog.Logger {
	return newLogger(os.Stderr, format, level)
}

func newLogger(output *os.File, format string, level slog.Level) *slog.Logger {
	terminal := isatty.IsTerminal(output.Fd()) || isatty.IsCygwinTerminal(output.Fd())
	if format == "auto" {
		if terminal {
			format = "text"
		} else {
			format = "json"
		}
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level})
	} else {
		handler = textHandler(colorable.NewColorable(output), level, !terminal)
	}
	return slog.New(handler)
}

func textHandler(w io.Writer, level slog.Level, noColor bool) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Drop empty values: they are noise on a terminal.
			switch value := a.Value.Any().(type) {
			case string:
				if value == "" {
					return slog.Attr{}
				}
			case time.Duration:
				if value == 0 {
					return slog.Attr{}
				}
			}
			return a
		},
	})
}
