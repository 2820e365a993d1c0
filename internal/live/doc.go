// Package live broadcasts detection records to browsers over websockets.
//
// Server implements the score and envelope sinks plus the segmenter
// observer. Records are fanned out to per-client bounded queues; a client
// that cannot keep up is disconnected rather than slowing detection.
package live
