// Package logging builds the process logger.  Production output is JSON so it
// can be shipped as-is; every other environment gets human readable text.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a logrus logger configured for env and level.  Unknown levels
// fall back to info.
func New(env, level string) *logrus.Logger {
	return NewWithOutput(os.Stdout, env, level)
}

// NewWithOutput is New with an explicit destination; tests pass a buffer.
func NewWithOutput(w io.Writer, env, level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if strings.EqualFold(env, "production") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
