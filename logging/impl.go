package logging

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the severity of a log line.
type Level int

const (
	// DEBUG log level.
	DEBUG Level = iota - 1
	// INFO log level.
	INFO
	// WARN log level.
	WARN
	// ERROR log level.
	ERROR
)

// AsZap converts the Level to a zapcore.Level.
func (level Level) AsZap() zapcore.Level {
	switch level {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case INFO:
		fallthrough
	default:
		return zapcore.InfoLevel
	}
}

func (level Level) String() string {
	return level.AsZap().String()
}

// LevelFromString parses "debug", "info", "warn" or "error" (case insensitive).
func LevelFromString(inp string) (Level, error) {
	switch strings.ToLower(inp) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	}
	return INFO, errors.Errorf("unknown log level %q", inp)
}

// AtomicLevel is a level that can be changed while loggers are in use.
type AtomicLevel struct {
	zapLevel zap.AtomicLevel
}

// NewAtomicLevelAt creates a new AtomicLevel at the input `initLevel`.
func NewAtomicLevelAt(initLevel Level) AtomicLevel {
	return AtomicLevel{zap.NewAtomicLevelAt(initLevel.AsZap())}
}

// Set changes the level.
func (level AtomicLevel) Set(newLevel Level) {
	level.zapLevel.SetLevel(newLevel.AsZap())
}

// Get returns the current level.
func (level AtomicLevel) Get() Level {
	switch level.zapLevel.Level() {
	case zapcore.DebugLevel:
		return DEBUG
	case zapcore.WarnLevel:
		return WARN
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return ERROR
	case zapcore.InfoLevel, zapcore.InvalidLevel:
		fallthrough
	default:
		return INFO
	}
}

// Logger is the logging interface used by every package in this module.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	CDebugf(ctx context.Context, template string, args ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	// Sublogger returns a logger named "<parent>.<subname>" sharing the parent's level.
	Sublogger(subname string) Logger
	SetLevel(level Level)
	GetLevel() Level
	AsZap() *zap.SugaredLogger
	Sync() error
}

type impl struct {
	name  string
	level AtomicLevel
	sugar *zap.SugaredLogger
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = imp.name + "." + subname
	}
	return &impl{
		name:  newName,
		level: imp.level,
		sugar: imp.sugar.Named(subname),
	}
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) AsZap() *zap.SugaredLogger {
	return imp.sugar
}

func (imp *impl) Sync() error {
	return imp.sugar.Sync()
}

func (imp *impl) shouldLog(logLevel Level) bool {
	return logLevel >= imp.level.Get()
}

func (imp *impl) Debug(args ...interface{}) {
	if imp.shouldLog(DEBUG) {
		imp.sugar.Debug(args...)
	}
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	if imp.shouldLog(DEBUG) {
		imp.sugar.Debugf(template, args...)
	}
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	if imp.shouldLog(DEBUG) {
		imp.sugar.Debugw(msg, keysAndValues...)
	}
}

// CDebugf logs at debug level when either the logger level allows it or the context is traced.
func (imp *impl) CDebugf(ctx context.Context, template string, args ...interface{}) {
	if key := TraceKey(ctx); key != "" {
		imp.sugar.With("trace", key).Debugf(template, args...)
		return
	}
	if imp.shouldLog(DEBUG) {
		imp.sugar.Debugf(template, args...)
	}
}

func (imp *impl) Info(args ...interface{}) {
	if imp.shouldLog(INFO) {
		imp.sugar.Info(args...)
	}
}

func (imp *impl) Infof(template string, args ...interface{}) {
	if imp.shouldLog(INFO) {
		imp.sugar.Infof(template, args...)
	}
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	if imp.shouldLog(INFO) {
		imp.sugar.Infow(msg, keysAndValues...)
	}
}

func (imp *impl) Warn(args ...interface{}) {
	if imp.shouldLog(WARN) {
		imp.sugar.Warn(args...)
	}
}

func (imp *impl) Warnf(template string, args ...interface{}) {
	if imp.shouldLog(WARN) {
		imp.sugar.Warnf(template, args...)
	}
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	if imp.shouldLog(WARN) {
		imp.sugar.Warnw(msg, keysAndValues...)
	}
}

func (imp *impl) Error(args ...interface{}) {
	if imp.shouldLog(ERROR) {
		imp.sugar.Error(args...)
	}
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	if imp.shouldLog(ERROR) {
		imp.sugar.Errorf(template, args...)
	}
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	if imp.shouldLog(ERROR) {
		imp.sugar.Errorw(msg, keysAndValues...)
	}
}

func utcTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	zapcore.ISO8601TimeEncoder(t.UTC(), enc)
}
