package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Fields type is an alias for logrus.Fields
type Fields = logrus.Fields

// Logger is a wrapper around logrus.Logger
type Logger struct {
	*logrus.Logger
	module string
}

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// Configuration for the logger
type Config struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	Module     string `mapstructure:"module" yaml:"-"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// Init initializes the global logger with the provided configuration
func Init(config Config) error {
	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	setFormatter(logger, config.Format)

	outputs := []io.Writer{os.Stdout}

	// File output is optional; a server in a container usually logs to stdout only.
	if config.File != "" {
		logDir := filepath.Dir(config.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			fmt.Printf("Warning: Could not create log directory %s: %v\n", logDir, err)
		} else {
			rotateLogger := &lumberjack.Logger{
				Filename:   config.File,
				MaxSize:    config.MaxSize,
				MaxAge:     config.MaxAge,
				MaxBackups: config.MaxBackups,
				Compress:   config.Compress,
			}

			if _, err := rotateLogger.Write([]byte("Logger initialization test\n")); err != nil {
				fmt.Printf("Warning: Could not write to log file %s: %v\n", config.File, err)
			} else {
				outputs = append(outputs, rotateLogger)
			}
		}
	}

	if len(outputs) > 1 {
		logger.SetOutput(io.MultiWriter(outputs...))
	} else {
		logger.SetOutput(outputs[0])
	}

	logger.SetReportCaller(true)

	l := &Logger{
		Logger: logger,
		module: config.Module,
	}

	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()

	if len(outputs) > 1 {
		l.WithFields(Fields{
			"file_path": config.File,
			"level":     level.String(),
			"format":    config.Format,
		}).Info("Logger initialized successfully with file output")
	} else {
		l.WithFields(Fields{
			"level":  level.String(),
			"format": config.Format,
		}).Debug("Logger initialized successfully with stdout only")
	}

	return nil
}

func setFormatter(logger *logrus.Logger, format string) {
	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			CallerPrettyfier: callerPrettyfier,
			TimestampFormat:  "2006-01-02 15:04:05",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
		return
	}
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:          true,
		CallerPrettyfier:       callerPrettyfier,
		DisableSorting:         true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
		TimestampFormat:        "2006-01-02 15:04:05",
	})
}

// callerPrettyfier is used to format the caller information
func callerPrettyfier(f *runtime.Frame) (string, string) {
	pcs := make([]uintptr, 15)
	n := runtime.Callers(4, pcs)
	if n == 0 {
		return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
	}

	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		// Skip logrus and our logger package frames
		if !strings.Contains(frame.File, "pkg/logger") &&
			!strings.Contains(frame.File, "sirupsen/logrus") {
			return "", fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
		}
		if !more {
			break
		}
	}

	return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
}

// NewLogger creates a new logger instance with the specified module.
// Before Init is called (tests, early CLI errors) it logs to stderr at info level.
func NewLogger(module string) *Logger {
	globalMu.RLock()
	base := globalLogger
	globalMu.RUnlock()

	if base == nil {
		fallback := logrus.New()
		fallback.SetOutput(os.Stderr)
		setFormatter(fallback, "text")
		return &Logger{Logger: fallback, module: module}
	}

	return &Logger{
		Logger: base.Logger,
		module: module,
	}
}

// withModule adds the module field to the entry
func (l *Logger) withModule(fields Fields) *logrus.Entry {
	if l.module != "" {
		if fields == nil {
			fields = Fields{}
		}
		fields["module"] = l.module
	}
	return l.Logger.WithFields(fields)
}

// Debug logs a message at the debug level
func (l *Logger) Debug(args ...any) {
	l.withModule(nil).Debug(args...)
}

// Debugf logs a formatted message at the debug level
func (l *Logger) Debugf(format string, args ...any) {
	l.withModule(nil).Debugf(format, args...)
}

// Info logs a message at the info level
func (l *Logger) Info(args ...any) {
	l.withModule(nil).Info(args...)
}

// Infof logs a formatted message at the info level
func (l *Logger) Infof(format string, args ...any) {
	l.withModule(nil).Infof(format, args...)
}

// Warn logs a message at the warn level
func (l *Logger) Warn(args ...any) {
	l.withModule(nil).Warn(args...)
}

// Warnf logs a formatted message at the warn level
func (l *Logger) Warnf(format string, args ...any) {
	l.withModule(nil).Warnf(format, args...)
}

// Error logs a message at the error level
func (l *Logger) Error(args ...any) {
	l.withModule(nil).Error(args...)
}

// Errorf logs a formatted message at the error level
func (l *Logger) Errorf(format string, args ...any) {
	l.withModule(nil).Errorf(format, args...)
}

// Fatal logs a message at the fatal level and then exits
func (l *Logger) Fatal(args ...any) {
	l.withModule(nil).Fatal(args...)
}

// Fatalf logs a formatted message at the fatal level and then exits
func (l *Logger) Fatalf(format string, args ...any) {
	l.withModule(nil).Fatalf(format, args...)
}

// WithFields adds fields to the logger
func (l *Logger) WithFields(fields Fields) *logrus.Entry {
	return l.withModule(fields)
}

// WithError adds an error to the logger
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.WithFields(Fields{"error": err})
}

// Fatalf is the package-level escape hatch used by main.
func Fatalf(format string, args ...any) {
	NewLogger("main").Fatalf(format, args...)
}
