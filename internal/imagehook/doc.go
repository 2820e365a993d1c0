// Package imagehook saves boundary stills for detected shots.
//
// The Saver implements shot.ImageHook: it encodes the begin or end frame of
// a shot as PNG or JPEG under <dir>/images and, when enabled, a scaled
// thumbnail under <dir>/thumbs. Files are written atomically so a crashed
// run never leaves half-encoded images behind.
package imagehook
