package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/vango-dev/lens/internal/errors"
)

// newLogger builds the process logger from --log-level and --log-format.
func newLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.New("L032").WithDetail("--log-level must be debug, info, warn or error, got " + level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, errors.New("L032").WithDetail("--log-format must be text or json, got " + format)
	}
}
