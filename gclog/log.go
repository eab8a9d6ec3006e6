// Package gclog provides the structured logger shared by every package in
// this module. It wraps zap the same way pingcap/log does: a package-level
// logger that can be swapped at process start and read lock-free
// everywhere else.
package gclog

import (
	"github.com/pingcap/errors"
	plog "github.com/pingcap/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the process-wide logger. Zero value is a reasonable
// development default (text, info level, stderr).
type Config struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// Format is "text" or "json".
	Format string
	// DisableTimestamp drops the timestamp field, useful for test output.
	DisableTimestamp bool
}

var global = plog.L()

// L returns the current process-wide logger.
func L() *zap.Logger {
	return global
}

// With returns the process-wide logger annotated with the given fields,
// mirroring the logutil.With... helpers.
func With(fields ...zap.Field) *zap.Logger {
	return global.With(fields...)
}

// Init builds a zap logger from cfg and installs it as the process-wide
// logger. Safe to call once at startup; not safe to race with L().
func Init(cfg Config) error {
	pc := plog.Config{
		Level:            cfg.Level,
		Format:           cfg.Format,
		DisableTimestamp: cfg.DisableTimestamp,
	}
	if pc.Level == "" {
		pc.Level = "info"
	}
	if pc.Format == "" {
		pc.Format = "text"
	}
	logger, props, err := plog.InitLogger(&pc, zap.AddStacktrace(zapcore.FatalLevel))
	if err != nil {
		return errors.Trace(err)
	}
	plog.ReplaceGlobals(logger, props)
	global = logger
	return nil
}
