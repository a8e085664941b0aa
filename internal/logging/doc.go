// Package logging assembles the structured slog loggers used across quickpkg.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes helpers so packaging code can tag log lines with the
// component and the package being processed. WarnWithContext and
// ErrorWithContext keep warnings shaped as cause + impact + next step. A
// no-op logger is provided for tests and wiring code that cannot fail.
package logging
