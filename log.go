package ffms

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	loggerMu      sync.RWMutex
	packageLogger logrus.FieldLogger = logrus.StandardLogger()
)

// SetLogger replaces the logger used by components created without
// WithLogger or WithIndexerLogger. nil restores the logrus standard logger.
func SetLogger(l logrus.FieldLogger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if l == nil {
		l = logrus.StandardLogger()
	}
	packageLogger = l
}

// Logger returns the package logger.
func Logger() logrus.FieldLogger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return packageLogger
}
