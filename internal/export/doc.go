// Package export owns the on-disk visualization formats.
//
// The segmenter and envelope extractor only produce ordered records; the
// writers here turn them into files: an audio envelope XML document, a
// per-frame score XML document, JSON/YAML shot lists, and a binary CBOR
// record log that the dump command can replay. Fanout combines several
// sinks behind the single Sink the segmenter accepts.
package export
