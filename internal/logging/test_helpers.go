package logging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// TestLoggerConfig configures a logger built by CreateTestLogger.
type TestLoggerConfig struct {
	Component     string
	Level         logrus.Level
	Format        string
	ConsoleOutput bool
	FileOutput    bool
	FilePath      string
}

// DefaultTestConfig returns a TestLoggerConfig suitable for most tests.
func DefaultTestConfig() *TestLoggerConfig {
	return &TestLoggerConfig{
		Component:     "test-component",
		Level:         logrus.InfoLevel,
		Format:        "text",
		ConsoleOutput: true,
		FileOutput:    false,
	}
}

// CreateTestLogger builds a fresh, independently-configured Logger for a
// test; unlike GetLogger it never touches the process-wide singleton, so
// tests running in parallel don't fight over global logger state.
func CreateTestLogger(t *testing.T, config *TestLoggerConfig) *Logger {
	t.Helper()

	if config == nil {
		config = DefaultTestConfig()
	}

	logger := NewLogger(config.Component)
	logger.SetLevel(config.Level)
	return logger
}

// CreateTestContext wraps context.Background with correlationID, or
// returns the bare background context if correlationID is empty.
func CreateTestContext(correlationID string) context.Context {
	if correlationID == "" {
		return context.Background()
	}
	return WithCorrelationID(context.Background(), correlationID)
}

// CreateTestLoggingConfig builds a LoggingConfig from discrete test params.
func CreateTestLoggingConfig(level, format string, consoleEnabled, fileEnabled bool, filePath string) *LoggingConfig {
	return &LoggingConfig{
		Level:          level,
		Format:         format,
		ConsoleEnabled: consoleEnabled,
		FileEnabled:    fileEnabled,
		FilePath:       filePath,
		MaxFileSize:    10,
		BackupCount:    3,
	}
}

// CreateTempLogFile creates an empty log file under a t.Cleanup-managed
// temp directory and returns its path.
func CreateTempLogFile(t *testing.T) string {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "logging_test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	logFilePath := filepath.Join(tempDir, "test.log")
	file, err := os.Create(logFilePath)
	require.NoError(t, err)
	file.Close()

	return logFilePath
}

// TestLogLevels returns every logrus level except Panic, for table-driven
// coverage.
func TestLogLevels() []logrus.Level {
	return []logrus.Level{
		logrus.TraceLevel,
		logrus.DebugLevel,
		logrus.InfoLevel,
		logrus.WarnLevel,
		logrus.ErrorLevel,
		logrus.FatalLevel,
	}
}

// TestFormats returns the output formats SetupLogging recognizes plus the
// empty-string fallback case.
func TestFormats() []string {
	return []string{"text", "json", ""}
}

// TestComponents returns representative component names for table tests.
func TestComponents() []string {
	return []string{"supervisor", "control", "anpr-worker", "health", "store", "vault"}
}

// AssertLoggerBasicProperties asserts logger is non-nil and tagged with
// expectedComponent.
func AssertLoggerBasicProperties(t *testing.T, logger *Logger, expectedComponent string) {
	t.Helper()

	require.NotNil(t, logger)
	require.NotNil(t, logger.Logger)
	require.Equal(t, expectedComponent, logger.component)
}

// AssertCorrelationIDInContext asserts ctx carries expectedID ("" means no
// correlation ID at all).
func AssertCorrelationIDInContext(t *testing.T, ctx context.Context, expectedID string) {
	t.Helper()

	if expectedID == "" {
		require.Empty(t, GetCorrelationIDFromContext(ctx))
	} else {
		require.Equal(t, expectedID, GetCorrelationIDFromContext(ctx))
	}
}
