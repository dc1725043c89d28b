package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerConfig selects the sinks of a compression run's log.
type LoggerConfig struct {
	Level      string // debug, info, warn or error
	FilePath   string // JSON log file; empty disables it
	MaxSize    int    // MB per file before lumberjack rotates it
	MaxBackups int    // rotated files kept
	MaxAge     int    // days a rotated file is kept
	Compress   bool   // gzip rotated files
	Console    bool   // mirror entries to stderr
}

// NewLogger builds the run logger. Entries are JSON; stdout belongs to the
// report, so the console sink is stderr. With no sink at all, entries are
// discarded.
func NewLogger(config LoggerConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
			logrus.FieldKeyFunc:  "function",
		},
	})

	var writers []io.Writer

	if config.FilePath != "" {
		dir := filepath.Dir(config.FilePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}

		fileWriter := &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		}
		writers = append(writers, fileWriter)
	}

	if config.Console {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	return logger, nil
}

// WithRun returns a logger entry tagged with the run identifier.
func WithRun(logger *logrus.Logger, runID string) *logrus.Entry {
	return logger.WithField("run_id", runID)
}

// WithFileOperation tags entry with the file being handled and the stage handling it.
func WithFileOperation(entry *logrus.Entry, filePath, operation string) *logrus.Entry {
	return entry.WithFields(logrus.Fields{
		"file":      filePath,
		"operation": operation,
	})
}

// DefaultConfig returns an info-level config with rotation settings and no sink.
func DefaultConfig() LoggerConfig {
	return LoggerConfig{
		Level:      "info",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	}
}
