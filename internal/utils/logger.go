package utils

import (
	"log/slog"
	"os"
)

// Logger is a simple structured logger for the application
type Logger struct {
	log *slog.Logger
}

// NewLogger creates a new logger
func NewLogger() *Logger {
	return &Logger{
		log: slog.New(slog.NewTextHandler(os.Stdout, nil)),
	}
}

// Info logs an informational message with key/value attributes
func (l *Logger) Info(message string, args ...any) {
	l.log.Info(message, args...)
}

// Error logs an error message with key/value attributes
func (l *Logger) Error(message string, args ...any) {
	l.log.Error(message, args...)
}
