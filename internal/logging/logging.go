// Package logging builds the zap loggers used across vlasim.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/san-kum/vlasim/internal/config"
)

// NewLoggerConfig returns a console config with colored levels and no
// stacktraces, writing to stderr so terminal prompts own stdout.
func NewLoggerConfig(level zapcore.Level) zap.Config {
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(level),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

// New builds a named sugared logger from the log section of the config.
func New(name string, cfg config.LogConfig) (*zap.SugaredLogger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		var err error
		if level, err = zapcore.ParseLevel(cfg.Level); err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
	}

	zcfg := NewLoggerConfig(level)
	zcfg.Development = cfg.Development
	if cfg.Development {
		zcfg.DisableStacktrace = false
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Named(name).Sugar(), nil
}
