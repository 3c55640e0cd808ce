package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	TRACE LogLevel = iota // Wire requests and state transitions
	DEBUG                 // Discovery milestones, callbacks
	INFO                  // Sessions started and finished
	WARN                  // Dropped responses, peer errors
	ERROR                 // Errors
)

// prefixField carries the component prefix through logrus.
const prefixField = "prefix"

var (
	currentLevel LogLevel = DEBUG
	mu           sync.RWMutex
	backend      = newBackend(os.Stdout)
)

func newBackend(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.TraceLevel)
	l.SetFormatter(&lineFormatter{})
	return l
}

// lineFormatter renders "[prefix LEVEL] msg".
type lineFormatter struct{}

func (f *lineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	levelStr := levelName(fromLogrus(e.Level))
	prefix, _ := e.Data[prefixField].(string)
	if prefix != "" {
		return []byte(fmt.Sprintf("[%s %s] %s\n", prefix, levelStr, e.Message)), nil
	}
	return []byte(fmt.Sprintf("[%s] %s\n", levelStr, e.Message)), nil
}

// SetLevel sets the global log level
func SetLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	currentLevel = level
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	backend.SetOutput(w)
}

// ParseLevel converts a string to a LogLevel
func ParseLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "TRACE":
		return TRACE
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

func levelName(level LogLevel) string {
	switch level {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO "
	case WARN:
		return "WARN "
	default:
		return "ERROR"
	}
}

func toLogrus(level LogLevel) logrus.Level {
	switch level {
	case TRACE:
		return logrus.TraceLevel
	case DEBUG:
		return logrus.DebugLevel
	case INFO:
		return logrus.InfoLevel
	case WARN:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}

func fromLogrus(level logrus.Level) LogLevel {
	switch level {
	case logrus.TraceLevel:
		return TRACE
	case logrus.DebugLevel:
		return DEBUG
	case logrus.InfoLevel:
		return INFO
	case logrus.WarnLevel:
		return WARN
	default:
		return ERROR
	}
}

func log(level LogLevel, prefix, format string, args ...interface{}) {
	if level < GetLevel() {
		return
	}
	mu.RLock()
	defer mu.RUnlock()
	backend.WithField(prefixField, prefix).Logf(toLogrus(level), format, args...)
}

// Trace logs a trace message (wire requests, state transitions)
func Trace(prefix, format string, args ...interface{}) {
	log(TRACE, prefix, format, args...)
}

// Debug logs a debug message
func Debug(prefix, format string, args ...interface{}) {
	log(DEBUG, prefix, format, args...)
}

// Info logs an info message (high-level events)
func Info(prefix, format string, args ...interface{}) {
	log(INFO, prefix, format, args...)
}

// Warn logs a warning message
func Warn(prefix, format string, args ...interface{}) {
	log(WARN, prefix, format, args...)
}

// Error logs an error message
func Error(prefix, format string, args ...interface{}) {
	log(ERROR, prefix, format, args...)
}

// JSONOptions is the protojson layout shared by log dumps and reports.
var JSONOptions = protojson.MarshalOptions{Multiline: true, Indent: "  "}

// ToJSON renders v as indented JSON. Proto messages go through protojson,
// anything else through encoding/json.
func ToJSON(v interface{}) string {
	var (
		out []byte
		err error
	)
	if msg, ok := v.(proto.Message); ok {
		out, err = JSONOptions.Marshal(msg)
	} else {
		out, err = json.MarshalIndent(v, "", JSONOptions.Indent)
	}
	if err != nil {
		return fmt.Sprintf("<%T: %v>", v, err)
	}
	return string(out)
}

// TraceJSON logs label followed by v as JSON.
func TraceJSON(prefix, label string, v interface{}) {
	logJSON(TRACE, prefix, label, v)
}

// DebugJSON logs label followed by v as JSON.
func DebugJSON(prefix, label string, v interface{}) {
	logJSON(DEBUG, prefix, label, v)
}

// logJSON skips the marshalling when level is filtered out.
func logJSON(level LogLevel, prefix, label string, v interface{}) {
	if level < GetLevel() {
		return
	}
	log(level, prefix, "%s:\n%s", label, ToJSON(v))
}
