// Package preflight provides readiness checks for the external tools,
// filesystem paths, and services that shotdetect depends on.
//
// The "shotdetect doctor" command runs RunAll and CheckSystemDeps and prints
// one row per check. "shotdetect detect" runs the directory checks before
// analysing any input so a bad output path fails before ffmpeg starts.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
