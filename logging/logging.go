// Package logging contains the structured logger shared by every edgeplan stage.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLoggerConfig returns a new default logger config.
func NewLoggerConfig() zap.Config {
	// from https://github.com/uber-go/zap/blob/2314926ec34c23ee21f3dd4399438469668f8097/config.go#L135
	// but disable stacktraces, use same keys as prod, and color levels.
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(zap.InfoLevel),
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
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

// NewLogger returns a new logger that outputs Info+ logs to stdout in UTC.
func NewLogger(name string) Logger {
	return newFromConfig(name, INFO)
}

func newFromConfig(name string, level Level) Logger {
	atomicLevel := NewAtomicLevelAt(level)
	cfg := NewLoggerConfig()
	// filtering happens in impl.shouldLog so that traced contexts can bypass it.
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	cfg.EncoderConfig.EncodeTime = utcTimeEncoder
	return &impl{
		name:  name,
		level: atomicLevel,
		sugar: zap.Must(cfg.Build()).Sugar().Named(name),
	}
}
