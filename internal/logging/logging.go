// Package logging builds the process logger from the logging config section.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"

	"gigline/internal/config"
)

// New returns a logrus logger writing to stderr, or to a rotated file when
// cfg.File is set.
func New(cfg config.Logging) *logrus.Logger {
	log := logrus.New()
	var out io.Writer = os.Stderr
	if strings.TrimSpace(cfg.File) != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 50
		}
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxSize,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
	}
	log.SetOutput(out)
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// Discard returns a logger that drops everything; used by tests.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
