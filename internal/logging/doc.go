// Package logging assembles the structured slog loggers used by the detector
// and its command line.
//
// It owns the console and JSON handlers, level parsing, and output routing
// (stderr by default plus an optional JSON log file). Context helpers stamp run ids and
// pipeline stages onto log lines, and WarnWithContext keeps every warning
// shaped as cause, impact, and hint. Tests and wiring code that cannot fail
// use NewNop.
package logging
