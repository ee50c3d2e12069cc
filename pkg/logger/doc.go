// Package logger builds the structured slog loggers used across the client:
// JSON in production, text elsewhere, with the environment attached to every
// record.
package logger
