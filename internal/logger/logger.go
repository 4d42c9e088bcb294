// Package logger provides the process-wide structured logger.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger is the global logger instance. Warn-level stderr until Init.
	Logger = log.NewWithOptions(os.Stderr, log.Options{
		Level:  log.WarnLevel,
		Prefix: "habitforge",
	})
)

// Config holds logger configuration
type Config struct {
	Level     string // debug, info, warn, error
	File      string // empty = stderr only
	MaxSizeMB int
	MaxFiles  int
}

// Init initializes the global logger with the given configuration
func Init(cfg Config) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}

	var writer io.Writer = os.Stderr
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return err
		}
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    max(cfg.MaxSizeMB, 1), // megabytes
			MaxBackups: cfg.MaxFiles,
			MaxAge:     28, // days
			Compress:   true,
		}
		// Debug mode mirrors the file to stderr
		if level == log.DebugLevel {
			writer = io.MultiWriter(os.Stderr, fileWriter)
		} else {
			writer = fileWriter
		}
	}

	Logger = log.NewWithOptions(writer, log.Options{
		ReportCaller:    level == log.DebugLevel,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "habitforge",
	})
	return nil
}

// Debug logs a debug message
func Debug(msg string, keyvals ...interface{}) {
	Logger.Debug(msg, keyvals...)
}

// Info logs an info message
func Info(msg string, keyvals ...interface{}) {
	Logger.Info(msg, keyvals...)
}

// Warn logs a warning message
func Warn(msg string, keyvals ...interface{}) {
	Logger.Warn(msg, keyvals...)
}

// Error logs an error message
func Error(msg string, keyvals ...interface{}) {
	Logger.Error(msg, keyvals...)
}
