// Package logger provides centralized logging functionality for snaptest.
// It configures structured logging with support for different output destinations and log levels.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Logger is the global logger instance used throughout snaptest.
var Logger *log.Logger

// output is where the global and component loggers write.
var output io.Writer = os.Stderr

// logFile is the file opened by Configure, if any.
var logFile *os.File

func init() {
	Logger = log.New(output)
	Logger.SetTimeFormat("")
	Logger.SetLevel(log.WarnLevel)
}

// Configure sets up the logger based on CLI flags and environment variables.
// CLI flags take precedence over environment variables. A log file opened
// here stays open until Close.
func Configure(logLevel string, path string) error {
	level := logLevel
	if level == "" {
		level = os.Getenv("SNAPTEST_LOG_LEVEL")
	}

	if err := Close(); err != nil {
		return err
	}
	var w io.Writer = os.Stderr
	if path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return err
		}
		logFile = file
		w = file
	}

	SetOutput(w)
	Logger.SetLevel(ParseLevel(level))
	return nil
}

// Close closes the log file opened by Configure and sends output back to
// stderr. It is a no-op when logging to stderr.
func Close() error {
	if logFile == nil {
		return nil
	}
	f := logFile
	logFile = nil
	SetOutput(os.Stderr)
	return f.Close()
}

// SetOutput replaces the global logger with one writing to w, keeping the level.
func SetOutput(w io.Writer) {
	level := Logger.GetLevel()
	output = w
	Logger = log.New(output)
	Logger.SetTimeFormat("")
	Logger.SetLevel(level)
}

// ParseLevel converts a level name to a log level. Unknown or empty names
// map to warn, which keeps normal runs quiet apart from duplicate warnings.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.WarnLevel
	}
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg interface{}, keyvals ...interface{}) {
	Logger.Debug(msg, keyvals...)
}

// Info logs an info message with optional key-value pairs.
func Info(msg interface{}, keyvals ...interface{}) {
	Logger.Info(msg, keyvals...)
}

// Warn logs a warning message with optional key-value pairs.
func Warn(msg interface{}, keyvals ...interface{}) {
	Logger.Warn(msg, keyvals...)
}

// Error logs an error message with optional key-value pairs.
func Error(msg interface{}, keyvals ...interface{}) {
	Logger.Error(msg, keyvals...)
}

// levelColors are the badge backgrounds of component loggers.
var levelColors = map[log.Level]string{
	log.DebugLevel: "240",
	log.InfoLevel:  "33",
	log.WarnLevel:  "214",
	log.ErrorLevel: "196",
}

// NewStyledLogger creates a component logger (e.g. "engine", "store") that
// shares the global logger's destination and level.
func NewStyledLogger(prefix string) *log.Logger {
	styles := log.DefaultStyles()
	for level, color := range levelColors {
		styles.Levels[level] = lipgloss.NewStyle().
			SetString(strings.ToUpper(level.String())).
			Padding(0, 1).
			Background(lipgloss.Color(color)).
			Foreground(lipgloss.Color("15"))
	}

	for key, color := range map[string]string{"test": "46", "path": "39", "run": "99", "error": "196"} {
		styles.Keys[key] = lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	}
	styles.Values["test"] = lipgloss.NewStyle().Bold(true)
	styles.Values["error"] = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

	l := log.NewWithOptions(output, log.Options{Prefix: prefix})
	l.SetStyles(styles)
	l.SetLevel(Logger.GetLevel())
	return l
}
