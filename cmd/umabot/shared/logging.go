package shared

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// LogOptions selects where and how the process logs.
type LogOptions struct {
	Level string
	JSON  bool
	File  string // stderr when empty
}

// SetupLogger builds the process logger. The returned closer releases the log
// file, if one was opened.
func SetupLogger(opts LogOptions) (*log.Logger, io.Closer, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}

	var (
		out    io.Writer = os.Stderr
		closer io.Closer = io.NopCloser(nil)
	)
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	}

	logOpts := log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	}
	if opts.JSON {
		logOpts.Formatter = log.JSONFormatter
		logOpts.TimeFormat = time.RFC3339Nano
	}
	return log.NewWithOptions(out, logOpts), closer, nil
}
