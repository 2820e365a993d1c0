// Package services defines shared utilities consumed by the analysis pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers and stage names for logging
//     and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     (fatal stream, dimension, frame sequence, audio decode, sink) so callers
//     can decide between aborting and reporting.
//
// Use these helpers when wiring new pipeline code so operational behaviour
// (error classification, observability) stays uniform across components.
package services
