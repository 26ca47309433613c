// Package telemetry carries the ambient logging and metrics stack: structured
// leveled logging with a global singleton, and a set of Prometheus collectors
// for the index's operations. Network-facing access logging is dropped since
// this module has no request/response surface of its own.
package telemetry

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"time"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger provides structured logging with attachable fields.
type Logger struct {
	level      LogLevel
	output     io.Writer
	fields     map[string]interface{}
	timeFormat string
}

// NewLogger creates a logger writing to output at the given minimum level.
func NewLogger(level LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	return &Logger{level: level, output: output, fields: make(map[string]interface{}), timeFormat: time.RFC3339}
}

// NewDefaultLogger creates an INFO-level logger writing to stdout.
func NewDefaultLogger() *Logger {
	return NewLogger(INFO, os.Stdout)
}

// WithFields returns a new logger carrying the given fields on every entry.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{level: l.level, output: l.output, fields: merged, timeFormat: l.timeFormat}
}

// WithField is WithFields for a single key.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// SetLevel changes the minimum level this logger emits.
func (l *Logger) SetLevel(level LogLevel) { l.level = level }

func (l *Logger) Debug(msg string, fields ...map[string]interface{}) { l.log(DEBUG, msg, fields...) }
func (l *Logger) Info(msg string, fields ...map[string]interface{})  { l.log(INFO, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...map[string]interface{})  { l.log(WARN, msg, fields...) }
func (l *Logger) Error(msg string, fields ...map[string]interface{}) { l.log(ERROR, msg, fields...) }

func (l *Logger) Fatal(msg string, fields ...map[string]interface{}) {
	l.log(FATAL, msg, fields...)
	os.Exit(1)
}

func (l *Logger) log(level LogLevel, msg string, extraFields ...map[string]interface{}) {
	if level < l.level {
		return
	}
	allFields := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		allFields[k] = v
	}
	for _, fields := range extraFields {
		for k, v := range fields {
			allFields[k] = v
		}
	}
	_, file, line, ok := runtime.Caller(2)
	if ok {
		allFields["file"] = fmt.Sprintf("%s:%d", file, line)
	}
	entry := fmt.Sprintf("[%s] %s: %s", time.Now().Format(l.timeFormat), level.String(), msg)
	if len(allFields) > 0 {
		entry += " |"
		for k, v := range allFields {
			entry += fmt.Sprintf(" %s=%v", k, v)
		}
	}
	entry += "\n"
	l.output.Write([]byte(entry))
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.Debug(fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...interface{})  { l.Info(fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.Warn(fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.Error(fmt.Sprintf(format, args...)) }
func (l *Logger) Fatalf(format string, args ...interface{}) { l.Fatal(fmt.Sprintf(format, args...)) }

// LogOperation logs the start, completion, and duration of fn.
func (l *Logger) LogOperation(operation string, fn func() error) error {
	start := time.Now()
	l.Info(fmt.Sprintf("starting operation: %s", operation))
	err := fn()
	duration := time.Since(start)
	if err != nil {
		l.Error(fmt.Sprintf("operation failed: %s", operation), map[string]interface{}{"duration": duration, "error": err.Error()})
	} else {
		l.Info(fmt.Sprintf("operation completed: %s", operation), map[string]interface{}{"duration": duration})
	}
	return err
}

// LogOperationWithFields is LogOperation with extra fields attached first.
func (l *Logger) LogOperationWithFields(operation string, fields map[string]interface{}, fn func() error) error {
	return l.WithFields(fields).LogOperation(operation, fn)
}

var globalLogger = NewDefaultLogger()

func SetGlobalLogger(logger *Logger) { globalLogger = logger }
func GetGlobalLogger() *Logger       { return globalLogger }

func Debug(msg string, fields ...map[string]interface{}) { globalLogger.Debug(msg, fields...) }
func Info(msg string, fields ...map[string]interface{})  { globalLogger.Info(msg, fields...) }
func Warn(msg string, fields ...map[string]interface{})  { globalLogger.Warn(msg, fields...) }
func Error(msg string, fields ...map[string]interface{}) { globalLogger.Error(msg, fields...) }
func Fatal(msg string, fields ...map[string]interface{}) { globalLogger.Fatal(msg, fields...) }

func Debugf(format string, args ...interface{}) { globalLogger.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { globalLogger.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { globalLogger.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { globalLogger.Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { globalLogger.Fatalf(format, args...) }

// ParseLogLevel parses a level name, defaulting to INFO with a warning on
// an unrecognised value.
func ParseLogLevel(level string) LogLevel {
	switch level {
	case "DEBUG", "debug":
		return DEBUG
	case "INFO", "info":
		return INFO
	case "WARN", "warn", "WARNING", "warning":
		return WARN
	case "ERROR", "error":
		return ERROR
	case "FATAL", "fatal":
		return FATAL
	default:
		log.Printf("unknown log level %q, defaulting to INFO", level)
		return INFO
	}
}
