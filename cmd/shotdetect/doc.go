// Package main hosts the shotdetect CLI entrypoint and command graph.
//
// The Cobra command tree runs shot detection over local media files, reads
// back runs and shot lists from the SQLite store, decodes record logs, and
// checks that ffmpeg, ffprobe, and the configured directories are usable.
// Configuration resolution and logger setup live in commandContext so
// subcommands only deal with presentation.
//
// Add functionality to the internal packages first and surface it here.
package main
