package gowebm

import (
	"github.com/sirupsen/logrus"
)

// LogLevel is a log level.
type LogLevel int

// Log levels.
const (
	LogLevelDebug LogLevel = iota + 1
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// LogFunc is the prototype of the log function.
type LogFunc func(level LogLevel, format string, args ...interface{})

func defaultLog(level LogLevel, format string, args ...interface{}) {
	switch level {
	case LogLevelDebug:
		logrus.Debugf(format, args...)
	case LogLevelInfo:
		logrus.Infof(format, args...)
	case LogLevelWarn:
		logrus.Warnf(format, args...)
	default:
		logrus.Errorf(format, args...)
	}
}
