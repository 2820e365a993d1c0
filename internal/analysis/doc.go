// Package analysis runs shot detection for one input file end to end.
//
// Analyzer.Run probes the input, takes an exclusive lock on the input's
// output directory, and then drives two pipelines concurrently: video
// frames through the shot segmenter and audio packets through the envelope
// extractor. Both feed the configured export sinks. When the pipelines
// finish the run is persisted to the store (including the partial shot
// list of a failed run) and a notification is sent.
//
// Audio problems never fail a run: a missing audio stream, an audio decoder
// crash, or malformed packets are logged and counted. Video failures abort
// the run after the shots finalized so far are saved.
package analysis
