// Package logger builds the process-wide slog logger: text output during
// development, JSON in production.
package logger
