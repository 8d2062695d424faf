// Package klog provides the process-wide structured logging setup shared by
// every kernel and controller package. Domain code depends on logr.Logger,
// never on zap directly, so the backend can change without touching callers.
package klog

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

// New builds a logr.Logger backed by zap. Development controls whether the
// zap config is the human-readable development preset or the JSON
// production preset.
func New(development bool) (logr.Logger, error) {
	var zl *zap.Logger
	var err error
	if development {
		zl, err = zap.NewDevelopment()
	} else {
		zl, err = zap.NewProduction()
	}
	if err != nil {
		return logr.Logger{}, err
	}
	return zapr.NewLogger(zl), nil
}

// Discard is a no-op logger, used as a safe default in tests and in
// components constructed without an explicit logger.
func Discard() logr.Logger {
	return logr.Discard()
}
