// Package logging constructs the per-component loggers used across the
// daemon. Every subsystem constructor takes a *zap.Logger the way the
// teacher suite's constructors took a *syslog.Writer: one sink per daemon,
// named per component.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process-wide base logger. Each call builds a fresh
// logger; callers derive named children with Named/With rather than
// calling New a second time.
func New(level string, development bool) (*zap.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Development:      development,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	if !development {
		cfg.Encoding = "json"
		cfg.EncoderConfig = zap.NewProductionEncoderConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	return cfg.Build()
}

func parseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logging: invalid level %q: %w", s, err)
	}
	return lvl, nil
}

// Component names a child logger after the owning subsystem, mirroring
// teacher's logging.NewLogger(dir, daemonName, tag) tag argument.
func Component(base *zap.Logger, name string) *zap.Logger {
	return base.Named(name)
}
