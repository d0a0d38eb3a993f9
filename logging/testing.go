package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// NewTestLogger returns a new logger that outputs Debug+ logs through the test's Log method.
func NewTestLogger(tb testing.TB) Logger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is like NewTestLogger but also saves logs to an in memory observer.
func NewObservedTestLogger(tb testing.TB) (Logger, *observer.ObservedLogs) {
	level := NewAtomicLevelAt(DEBUG)
	testCore := zaptest.NewLogger(tb, zaptest.Level(zapcore.DebugLevel)).Core()
	observerCore, observedLogs := observer.New(zap.LevelEnablerFunc(zapcore.DebugLevel.Enabled))
	sugar := zap.New(zapcore.NewTee(testCore, observerCore)).Sugar()
	return &impl{level: level, sugar: sugar}, observedLogs
}
