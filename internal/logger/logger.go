package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. Local environments get a pretty console
// formatter, every other environment gets JSON. ENVIRONMENT and LOG_LEVEL
// override the values passed in.
func New(level, environment string) *logrus.Logger {
	return NewWithOutput(os.Stdout, level, environment)
}

// NewWithOutput is New with an explicit writer
func NewWithOutput(out io.Writer, level, environment string) *logrus.Logger {
	base := logrus.New()

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		environment = env
	}
	if environment == "" || environment == "local" {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	base.SetOutput(out)

	if l := os.Getenv("LOG_LEVEL"); l != "" {
		level = l
	}
	switch strings.ToLower(level) {
	case "debug":
		base.SetLevel(logrus.DebugLevel)
	case "warn":
		base.SetLevel(logrus.WarnLevel)
	case "error":
		base.SetLevel(logrus.ErrorLevel)
	default:
		base.SetLevel(logrus.InfoLevel)
	}

	return base
}

// Discard returns a logger that drops everything, for tests and one-shot tools
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
