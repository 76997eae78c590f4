// Package logging builds the logrus logger shared by the CLI and the library
// packages, which accept any logrus.FieldLogger and fall back to a discard
// logger when given none.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// New returns a logger for the CLI. With an empty filePath it writes text
// lines to stderr; otherwise JSON lines go to both stderr and the file.
// The returned close function releases the file handle.
func New(level, filePath string) (*logrus.Logger, func(), error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, func() {}, err
	}
	log := logrus.New()
	log.SetLevel(lvl)
	if filePath == "" {
		log.SetOutput(os.Stderr)
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
		return log, func() {}, nil
	}
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.SetOutput(os.Stderr)
		log.WithError(err).Error("Could not create file for logging")
		return log, func() {}, nil
	}
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return log, func() { _ = f.Close() }, nil
}

// ParseLevel accepts logrus level names; empty means info.
func ParseLevel(level string) (logrus.Level, error) {
	level = strings.TrimSpace(level)
	if level == "" {
		return logrus.InfoLevel, nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level %q", level)
	}
	return lvl, nil
}

// Discard returns a logger that drops everything; used as a default by
// library code when no logger was supplied.
func Discard() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return Discard()
	}
	return l
}
