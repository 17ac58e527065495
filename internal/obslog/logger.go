// Package obslog provides structured logging for the tournament engine,
// wrapping logrus the way this lineage's services wrap it for every
// service entry point: one Logger per process, field helpers for the
// identifiers that show up on almost every line.
package obslog

import (
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with tournament-specific field helpers.
type Logger struct {
	*logrus.Logger
}

// New creates a Logger. format is "json" or "text"; level is any
// logrus level name ("debug", "info", "warn", "error"); unrecognized
// values fall back to info/text.
func New(level, format string) *Logger {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	l.SetOutput(os.Stdout)
	return &Logger{Logger: l}
}

// NewDiscard returns a Logger that drops everything, for tests.
func NewDiscard() *Logger {
	l := logrus.New()
	l.SetOutput(os.NewFile(0, os.DevNull))
	l.SetLevel(logrus.PanicLevel)
	return &Logger{Logger: l}
}

// WithWorker returns an entry tagged with the worker id.
func (l *Logger) WithWorker(workerID int) *logrus.Entry {
	return l.WithField("worker_id", workerID)
}

// WithGame returns an entry tagged with the job/game correlation id and
// its position in the schedule.
func (l *Logger) WithGame(gameID string, idx, total int) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"game_id": gameID,
		"idx":     idx,
		"total":   total,
	})
}

// WithEngine returns an entry tagged with the engine display name.
func (l *Logger) WithEngine(name string) *logrus.Entry {
	return l.WithField("engine", name)
}
