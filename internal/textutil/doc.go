// Package textutil turns media file names into safe path segments for run
// output directories.
package textutil
