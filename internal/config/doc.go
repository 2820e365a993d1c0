// Package config loads, normalizes, and validates shotdetect configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours the NUM_THREADS environment fallback for decoder
// threads. Detection, export, and integration knobs all live on Config so the
// CLI and the analysis pipeline see the same sanitized values.
package config
