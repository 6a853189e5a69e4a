// Package logger builds configured log/slog loggers with JSON or text
// output, static service attributes, and context-driven attribute injection
// (request IDs and the like) via a decorating handler.
package logger
