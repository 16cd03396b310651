// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package log is the runtime's package-level logging facade: a thin wrapper
// over logrus so call sites never import logrus directly.
package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Fields carries structured key/value pairs through to the logrus entry.
type Fields map[string]interface{}

var base = newDefaultLogger()

func newDefaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Init reconfigures the global logger's level and format. level is one of
// logrus's level names ("debug", "info", "warn", "error"); json selects the
// JSON formatter over the human-readable text formatter.
func Init(level string, json bool) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)
	if json {
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// WithField returns an entry carrying one structured field.
func WithField(key string, value interface{}) *logrus.Entry {
	return base.WithField(key, value)
}

// WithFields returns an entry carrying several structured fields.
func WithFields(fields Fields) *logrus.Entry {
	return base.WithFields(logrus.Fields(fields))
}

// WithError returns an entry carrying the given error under the "error" key.
func WithError(err error) *logrus.Entry {
	return base.WithError(err)
}

func Debug(args ...interface{}) { base.Debug(args...) }
func Info(args ...interface{})  { base.Info(args...) }
func Warn(args ...interface{})  { base.Warn(args...) }
func Error(args ...interface{}) { base.Error(args...) }
func Fatal(args ...interface{}) { base.Fatal(args...) }

func Debugf(format string, args ...interface{}) { base.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { base.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { base.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { base.Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { base.Fatalf(format, args...) }
