package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// parseLogLevel converts a string to a zap level, case-insensitive
func parseLogLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "INFO":
		return zapcore.InfoLevel
	case "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel // Default to WARN for invalid values
	}
}

// FileLogger writes all log messages to .bzltest/debug.log
type FileLogger struct {
	sugar *zap.SugaredLogger
	file  *os.File
}

// NewFileLogger creates a new file-based logger
func NewFileLogger() (*FileLogger, error) {
	// Ensure .bzltest directory exists
	if err := os.MkdirAll(".bzltest", 0755); err != nil {
		return nil, fmt.Errorf("failed to create .bzltest directory: %w", err)
	}

	// Open debug log file in append mode
	logPath := filepath.Join(".bzltest", "debug.log")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open debug log: %w", err)
	}

	// Write session header
	header := fmt.Sprintf("\n=== bzltest Debug Log ===\n"+
		"Session started: %s\n"+
		"PID: %d\n"+
		"Working directory: %s\n"+
		"---\n\n",
		time.Now().Format(time.RFC3339),
		os.Getpid(),
		mustGetwd())

	if _, err := file.WriteString(header); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to write log header: %w", err)
	}

	// Read log level from environment variable, default to WARN
	minLevel := parseLogLevel(os.Getenv("BZLTEST_LOG_LEVEL"))

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	encoder := zapcore.NewConsoleEncoder(encCfg)

	// All levels go to the file; errors are additionally visible on
	// stderr so the user sees them without opening the log.
	fileCore := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(file)), minLevel)
	stderrCore := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zapcore.ErrorLevel)

	log := zap.New(zapcore.NewTee(fileCore, stderrCore))

	return &FileLogger{
		sugar: log.Sugar(),
		file:  file,
	}, nil
}

// Debug writes a debug message to the log file
func (l *FileLogger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info writes an info message to the log file
func (l *FileLogger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn writes a warning message to the log file
func (l *FileLogger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error writes an error message to the log file and also to stderr
func (l *FileLogger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Close flushes and closes the log file
func (l *FileLogger) Close() error {
	_ = l.sugar.Sync()

	// Write session footer
	footer := fmt.Sprintf("\n--- Session ended: %s ---\n\n",
		time.Now().Format(time.RFC3339))
	_, _ = l.file.WriteString(footer)

	return l.file.Close()
}

// mustGetwd returns the current working directory or "unknown"
func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "unknown"
	}
	return wd
}
