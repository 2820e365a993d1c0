// Package notifications delivers run outcomes via ntfy.
//
// NewService publishes to the topic configured in config.toml and degrades
// to a no-op when no topic is set, so the analysis layer can notify
// unconditionally.
package notifications
