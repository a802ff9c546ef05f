// Package logger is a small levelled logger writing to the console and a
// rotated log file.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is the severity of a log line.
type Level string

const (
	Debug Level = "DEBUG"
	Info  Level = "INFO"
	Warn  Level = "WARN"
	Error Level = "ERROR"
)

// LogFileName is the name of the rotated log file inside the log directory
const LogFileName = "timearchitect.log"

var (
	mu         sync.Mutex
	minLevel   = Info
	fileLogger *lumberjack.Logger
	std        = log.New(os.Stderr, "", 0)
)

func priority(l Level) int {
	switch l {
	case Debug:
		return 0
	case Info:
		return 1
	case Warn:
		return 2
	case Error:
		return 3
	default:
		return 1
	}
}

// ParseLevel maps "debug", "info", "warn" and "error" to a Level. Unknown
// names yield Info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

// SetLevel sets the minimum level that gets written.
func SetLevel(s string) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = ParseLevel(s)
}

// Init routes output to logDir/timearchitect.log with rotation. When console
// is false nothing is written to stderr, which keeps the terminal UI clean.
// An empty logDir disables the file.
func Init(logDir string, console bool) error {
	var writers []io.Writer
	if console {
		writers = append(writers, os.Stderr)
	}

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		fl := &lumberjack.Logger{
			Filename:   filepath.Join(logDir, LogFileName),
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		writers = append(writers, fl)

		mu.Lock()
		if fileLogger != nil {
			fileLogger.Close()
		}
		fileLogger = fl
		mu.Unlock()
	}

	if len(writers) == 0 {
		SetOutput(io.Discard)
		return nil
	}
	SetOutput(io.MultiWriter(writers...))
	return nil
}

// SetOutput replaces the destination of all log lines.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	std.SetOutput(w)
}

// Close flushes and closes the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if fileLogger == nil {
		return nil
	}
	err := fileLogger.Close()
	fileLogger = nil
	return err
}

// Logf writes a line at level: "<RFC3339> [LEVEL] message".
func Logf(level Level, format string, v ...any) {
	mu.Lock()
	defer mu.Unlock()
	if priority(level) < priority(minLevel) {
		return
	}
	std.Printf("%s [%s] %s", time.Now().Format(time.RFC3339), level, fmt.Sprintf(format, v...))
}

// Debugf logs at DEBUG.
func Debugf(format string, v ...any) { Logf(Debug, format, v...) }

// Infof logs at INFO.
func Infof(format string, v ...any) { Logf(Info, format, v...) }

// Warnf logs at WARN.
func Warnf(format string, v ...any) { Logf(Warn, format, v...) }

// Errorf logs at ERROR.
func Errorf(format string, v ...any) { Logf(Error, format, v...) }
