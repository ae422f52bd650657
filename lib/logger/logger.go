package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// --------------------------------------------------------------------------
// Levels
// --------------------------------------------------------------------------

type LogLevel int

const (
	CRITICAL LogLevel = iota
	ERROR
	WARNING
	INFO
	DEBUG
)

// ParseLevel converts a string level to a LogLevel.
func ParseLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG, nil
	case "info":
		return INFO, nil
	case "warning", "warn":
		return WARNING, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger
// --------------------------------------------------------------------------

// Logger is a named, leveled logger with custom formatting
type Logger struct {
	name   string
	mu     sync.Mutex
	level  LogLevel
	logger *log.Logger
}

func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) enabled(level LogLevel) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level >= level
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.enabled(DEBUG) {
		l.log("DEBUG", format, args...)
	}
}

func (l *Logger) Infof(format string, args ...interface{}) {
	if l.enabled(INFO) {
		l.log("INFO", format, args...)
	}
}

func (l *Logger) Warningf(format string, args ...interface{}) {
	if l.enabled(WARNING) {
		l.log("WARN", format, args...)
	}
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	if l.enabled(ERROR) {
		l.log("ERROR", format, args...)
	}
}

// Fatalf logs at the highest severity and panics. It exists so the logger
// can be handed to the embedded engine, which requires a fatal sink.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.log("FATAL", format, args...)
	panic(fmt.Sprintf(format, args...))
}

// log formats and writes a log message. this internal helper is used by the public methods
func (l *Logger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-15s | %s", levelStr, l.name, message)
}

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

var (
	registryMu   sync.Mutex
	registry     = map[string]*Logger{}
	defaultLevel = INFO
)

// GetLogger returns the logger registered under name, creating it with the
// default level (INFO) on first use. Repeated calls with the same name return
// the same logger, so a level set once applies process-wide.
func GetLogger(name string) *Logger {
	registryMu.Lock()
	defer registryMu.Unlock()
	if l, ok := registry[name]; ok {
		return l
	}
	l := &Logger{
		name:   name,
		level:  defaultLevel,
		logger: log.New(os.Stdout, "", log.Ldate|log.Ltime),
	}
	registry[name] = l
	return l
}

// SetLevelAll applies a level to every logger created so far and becomes the
// default for loggers created later in this process.
func SetLevelAll(level LogLevel) {
	registryMu.Lock()
	defer registryMu.Unlock()
	defaultLevel = level
	for _, l := range registry {
		l.SetLevel(level)
	}
}
