// Package logging provides structured logging with correlation ID support.
//
// Loggers are created directly with NewLogger(component) or fetched from
// the process-wide default via GetLogger(). SetupLogging/SetupLoggingSimple
// configure the default logger's level, formatter, and output destinations
// (console, or a rotating file via lumberjack; when file output is enabled
// it replaces console output rather than adding to it).
//
// Correlation IDs travel on context.Context: WithCorrelationID attaches one,
// GetCorrelationIDFromContext reads it back, and LogWithContext (and its
// Debug/Info/Warn/Error/FatalWithContext shorthands) tag every entry with
// whichever ID is live plus the logger's component name.
//
// Field conventions:
//   - "component": subsystem that emitted the entry (e.g. "supervisor", "anpr-worker")
//   - "correlation_id": request/operation ID for cross-component tracing
package logging
