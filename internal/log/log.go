// Package log sets up the zap logger shared by the binaries
package log

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	mu         sync.RWMutex
	fallback   sync.Once
	baseLogger *zap.Logger
	sugared    *zap.SugaredLogger
)

// Init builds the process logger; debug selects zap's development config
func Init(debug bool) error {
	var (
		zapLogger *zap.Logger
		err       error
	)

	if debug {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %w", err)
	}

	mu.Lock()
	baseLogger = zapLogger
	sugared = zapLogger.Sugar()
	mu.Unlock()
	return nil
}

// GetZapLogger returns the base logger, falling back to a production logger if Init was never called
func GetZapLogger() *zap.Logger {
	ensureLogger()
	mu.RLock()
	defer mu.RUnlock()
	return baseLogger
}

// GetSugaredLogger returns the sugared logger handed to components
func GetSugaredLogger() *zap.SugaredLogger {
	ensureLogger()
	mu.RLock()
	defer mu.RUnlock()
	return sugared
}

func ensureLogger() {
	mu.RLock()
	ready := baseLogger != nil
	mu.RUnlock()
	if ready {
		return
	}

	fallback.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if baseLogger != nil {
			return
		}
		zapLogger, err := zap.NewProduction()
		if err != nil {
			zapLogger = zap.NewNop()
		}
		baseLogger = zapLogger
		sugared = zapLogger.Sugar()
	})
}

// CronLogger implements cron.Logger on top of a sugared logger
type CronLogger struct {
	logger *zap.SugaredLogger
}

// NewCronLogger wraps a sugared logger for cron
func NewCronLogger(logger *zap.SugaredLogger) CronLogger {
	return CronLogger{logger: logger.Named("cron")}
}

// Info logs routine scheduler messages at debug level
func (l CronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

// Error logs scheduler failures, including recovered panics
func (l CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Sync flushes buffered entries
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if baseLogger != nil {
		_ = baseLogger.Sync()
	}
}
