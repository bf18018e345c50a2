package logger

import (
	"io"
	"log"
	"os"
	"strings"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var (
	currentLevel = InfoLevel
	logger       = log.New(os.Stdout, "", log.LstdFlags)
)

// SetLevel sets the minimum log level that will be printed
func SetLevel(level LogLevel) {
	currentLevel = level
}

// SetLevelFromString sets the log level from a string (debug, info, warn, error)
func SetLevelFromString(level string) {
	switch strings.ToLower(level) {
	case "debug":
		currentLevel = DebugLevel
	case "info":
		currentLevel = InfoLevel
	case "warn", "warning":
		currentLevel = WarnLevel
	case "error":
		currentLevel = ErrorLevel
	default:
		Warn("Unknown log level %s, using info", level)
		currentLevel = InfoLevel
	}
}

// SetOutput redirects log output, mainly for tests
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Debug logs a debug message
func Debug(format string, v ...interface{}) {
	if currentLevel <= DebugLevel {
		logger.Printf("[DEBUG] "+format, v...)
	}
}

// Info logs an informational message
func Info(format string, v ...interface{}) {
	if currentLevel <= InfoLevel {
		logger.Printf("[INFO] "+format, v...)
	}
}

// Warn logs a warning message
func Warn(format string, v ...interface{}) {
	if currentLevel <= WarnLevel {
		logger.Printf("[WARN] "+format, v...)
	}
}

// Error logs an error message
func Error(format string, v ...interface{}) {
	if currentLevel <= ErrorLevel {
		logger.Printf("[ERROR] "+format, v...)
	}
}

// Fatal logs a fatal error and exits
func Fatal(format string, v ...interface{}) {
	logger.Printf("[FATAL] "+format, v...)
	os.Exit(1)
}

// WithPrefix returns a logger with a prefix
func WithPrefix(prefix string) *PrefixLogger {
	return &PrefixLogger{prefix: prefix}
}

// PrefixLogger adds a prefix to all log messages
type PrefixLogger struct {
	prefix string
}

func (l *PrefixLogger) Debug(format string, v ...interface{}) {
	Debug(l.prefix+format, v...)
}

func (l *PrefixLogger) Info(format string, v ...interface{}) {
	Info(l.prefix+format, v...)
}

func (l *PrefixLogger) Warn(format string, v ...interface{}) {
	Warn(l.prefix+format, v...)
}

func (l *PrefixLogger) Error(format string, v ...interface{}) {
	Error(l.prefix+format, v...)
}

func init() {
	// Read log level from environment
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		SetLevelFromString(level)
	}
}
