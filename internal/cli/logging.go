package cli

import (
	"io"
	"log"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mesh-intelligence/planner/pkg/types"
)

// Log rotation limits for the log file.
const (
	logMaxSizeMB  = 5
	logMaxBackups = 3
	logMaxAgeDays = 30
)

// newLogger builds the logger handed to every component: a rotating file
// when log.file is set, stderr with --verbose, both, or neither. The
// returned closer is nil when no file is open.
func newLogger(cfg types.LogConfig, verbose bool, stderr io.Writer) (*log.Logger, io.Closer) {
	var (
		writers []io.Writer
		closer  io.Closer
	)
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    logMaxSizeMB,
			MaxBackups: logMaxBackups,
			MaxAge:     logMaxAgeDays,
		}
		writers = append(writers, lj)
		closer = lj
	}
	if verbose {
		writers = append(writers, stderr)
	}

	switch len(writers) {
	case 0:
		return log.New(io.Discard, "", 0), nil
	case 1:
		return log.New(writers[0], "[planner] ", log.LstdFlags), closer
	default:
		return log.New(io.MultiWriter(writers...), "[planner] ", log.LstdFlags), closer
	}
}
