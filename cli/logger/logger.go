// Package logger builds the service [slog.Logger] from command line options.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Options struct {
	LogLevel  string `doc:"log from debug, info, warn or error"`
	LogFile   string `doc:"append logs to file, or stdout, stderr"`
	LogFormat string `doc:"format logs as text or json"             default:"text"`
	LogSource bool   `doc:"add source file and line to logs"`
}

var levels = map[string]slog.Level{ //nolint: gochecknoglobals
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// invalidOption is an option New could not apply.
type invalidOption struct {
	msg  string
	attr slog.Attr
}

// New returns the logger described by options, adding attrs to every record.
// Invalid options are reset to their default and each one is reported once
// through the returned logger.
func New(options *Options, attrs ...slog.Attr) *slog.Logger {
	if options.LogFile == os.DevNull {
		return slog.New(slog.DiscardHandler)
	}

	var invalid []invalidOption
	opts := &slog.HandlerOptions{AddSource: options.LogSource}
	if options.LogLevel != "" {
		if level, ok := levels[strings.ToLower(options.LogLevel)]; ok {
			opts.Level = level
		} else {
			invalid = append(invalid, invalidOption{"could not parse logger level", slog.String("level", options.LogLevel)})
			options.LogLevel = ""
		}
	}

	format := strings.ToLower(options.LogFormat)
	if format != "text" && format != "json" {
		invalid = append(invalid, invalidOption{"could not parse logger format", slog.String("format", options.LogFormat)})
		options.LogFormat, format = "text", "text"
	}

	output, err := open(options.LogFile)
	if err != nil {
		invalid = append(invalid, invalidOption{"could not open logger file", slog.Any("err", err)})
		options.LogFile, output = "", os.Stdout
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}
	if len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}

	logger := slog.New(handler)
	for _, o := range invalid {
		logger.LogAttrs(context.Background(), slog.LevelWarn, o.msg, o.attr)
	}
	return logger
}

func open(file string) (io.Writer, error) {
	switch strings.ToLower(file) {
	case "", "-", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	}
}
