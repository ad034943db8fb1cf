// Package logging builds the process-wide slog logger and provides the
// standardized attribute keys used across fetchd components.
package logging
