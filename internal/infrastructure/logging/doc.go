// Package logging provides structured logging for Hearth Cloud.
//
// It wraps log/slog with service defaults (service name, version) and
// config-driven level/format selection. Components receive a *Logger via
// dependency injection; there are no package-level loggers.
package logging
