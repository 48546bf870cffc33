package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps logrus.Logger with correlation ID tracking and a component
// tag, so every log line carries who emitted it and which request it
// belongs to without callers threading that through by hand.
type Logger struct {
	*logrus.Logger
	correlationID string
	component     string
	mu            sync.RWMutex
}

// LoggingConfig mirrors config.LoggingConfig; kept separate to avoid an
// import cycle back into the config package.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`
	Format         string `mapstructure:"format"`
	FileEnabled    bool   `mapstructure:"file_enabled"`
	FilePath       string `mapstructure:"file_path"`
	MaxFileSize    int    `mapstructure:"max_file_size"`
	BackupCount    int    `mapstructure:"backup_count"`
	ConsoleEnabled bool   `mapstructure:"console_enabled"`
}

// CorrelationIDKey is the context key correlation IDs are stored under.
const CorrelationIDKey = "correlation_id"

var (
	globalLogger *Logger
	once         sync.Once
)

// NewLogger creates a logger tagged with component.
func NewLogger(component string) *Logger {
	logger := &Logger{
		Logger:    logrus.New(),
		component: component,
	}
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return logger
}

// GetLogger returns the process-wide default logger, created on first use.
func GetLogger() *Logger {
	once.Do(func() {
		globalLogger = NewLogger("vms-core")
	})
	return globalLogger
}

// SetupLogging reconfigures the global logger's level, formatter, and
// output destinations from config.
func SetupLogging(config *LoggingConfig) error {
	logger := GetLogger()

	level, err := logrus.ParseLevel(strings.ToLower(config.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.ReplaceHooks(logrus.LevelHooks{})

	if config.ConsoleEnabled {
		logger.SetOutput(os.Stdout)
		logger.SetFormatter(consoleFormatter(config.Format))
	}

	if config.FileEnabled && config.FilePath != "" {
		if err := setupFileHandler(logger, config); err != nil {
			return fmt.Errorf("failed to setup file handler: %w", err)
		}
	}

	return nil
}

// setupFileHandler points logger at a lumberjack-rotated file, creating the
// parent directory if it doesn't exist.
func setupFileHandler(logger *Logger, config *LoggingConfig) error {
	logDir := filepath.Dir(config.FilePath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	fileHandler := &lumberjack.Logger{
		Filename:   config.FilePath,
		MaxSize:    config.MaxFileSize / (1024 * 1024),
		MaxBackups: config.BackupCount,
		MaxAge:     30,
		Compress:   true,
	}

	logger.SetOutput(fileHandler)
	logger.SetFormatter(fileFormatter(config.Format))
	return nil
}

// consoleFormatter picks a colorized console formatter, honoring an
// explicit "json" format request the same way fileFormatter does.
func consoleFormatter(format string) logrus.Formatter {
	if strings.Contains(strings.ToLower(format), "json") {
		return &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05"}
	}
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		ForceColors:     true,
	}
}

// fileFormatter selects JSON for production or an explicit request, text
// otherwise.
func fileFormatter(format string) logrus.Formatter {
	if strings.Contains(strings.ToLower(format), "json") || os.Getenv("VMS_ENV") == "production" {
		return &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05"}
	}
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   true,
	}
}

// WithCorrelationID returns a new Logger tagged with id, sharing the
// underlying logrus.Logger.
func (l *Logger) WithCorrelationID(id string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		Logger:        l.Logger,
		correlationID: id,
		component:     l.component,
	}
}

// WithField returns a new Logger with key=value attached to every entry.
func (l *Logger) WithField(key, value string) *Logger {
	return &Logger{
		Logger:        l.Logger.WithField(key, value).Logger,
		correlationID: l.correlationID,
		component:     l.component,
	}
}

// WithError returns a new Logger with err attached to every entry.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger:        l.Logger.WithError(err).Logger,
		correlationID: l.correlationID,
		component:     l.component,
	}
}

// Fields aliases logrus.Fields so callers don't need to import logrus.
type Fields = logrus.Fields

// WithFields returns a new Logger with fields attached to every entry.
func (l *Logger) WithFields(fields Fields) *Logger {
	return &Logger{
		Logger:        l.Logger.WithFields(fields).Logger,
		correlationID: l.correlationID,
		component:     l.component,
	}
}

// LogWithContext logs msg at level, tagging the entry with the logger's
// component and whichever correlation ID is live: the one attached via
// WithCorrelationID, overridden by one found on ctx.
func (l *Logger) LogWithContext(ctx context.Context, level logrus.Level, msg string) {
	entry := l.Logger.WithFields(Fields{"component": l.component})

	if l.correlationID != "" {
		entry = entry.WithField("correlation_id", l.correlationID)
	}
	if correlationID := GetCorrelationIDFromContext(ctx); correlationID != "" {
		entry = entry.WithField("correlation_id", correlationID)
	}

	entry.Log(level, msg)
}

// GenerateCorrelationID returns a new UUID v4 string.
func GenerateCorrelationID() string {
	return uuid.New().String()
}

// GetCorrelationIDFromContext extracts the correlation ID stored by
// WithCorrelationID, or "" if ctx carries none.
func GetCorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if correlationID, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return correlationID
	}
	return ""
}

// WithCorrelationID returns a child context carrying id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// SetLevel sets the logger's minimum emitted severity.
func (l *Logger) SetLevel(level logrus.Level) {
	l.Logger.SetLevel(level)
}

// IsLevelEnabled reports whether level would be emitted by this logger.
func (l *Logger) IsLevelEnabled(level logrus.Level) bool {
	return l.Logger.IsLevelEnabled(level)
}

func (l *Logger) DebugWithContext(ctx context.Context, msg string) {
	l.LogWithContext(ctx, logrus.DebugLevel, msg)
}

func (l *Logger) InfoWithContext(ctx context.Context, msg string) {
	l.LogWithContext(ctx, logrus.InfoLevel, msg)
}

func (l *Logger) WarnWithContext(ctx context.Context, msg string) {
	l.LogWithContext(ctx, logrus.WarnLevel, msg)
}

func (l *Logger) ErrorWithContext(ctx context.Context, msg string) {
	l.LogWithContext(ctx, logrus.ErrorLevel, msg)
}

func (l *Logger) FatalWithContext(ctx context.Context, msg string) {
	l.LogWithContext(ctx, logrus.FatalLevel, msg)
	os.Exit(1)
}

// SetupLoggingSimple configures the global logger with console output or,
// if logPath is non-empty, a 10MB/5-backup rotating file handler in its place.
func SetupLoggingSimple(logPath string, level string) error {
	config := &LoggingConfig{
		Level:          level,
		FileEnabled:    logPath != "",
		FilePath:       logPath,
		ConsoleEnabled: true,
		MaxFileSize:    10485760,
		BackupCount:    5,
	}
	return SetupLogging(config)
}
