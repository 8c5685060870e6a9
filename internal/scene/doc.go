// Package scene holds the in-memory reconstruction artifacts (point clouds and
// camera paths) and the decoders that produce them from the files served by
// the reconstruction service.
//
// Point clouds decode in two explicit steps: a structured PLY parse through
// polyform and, when that fails, a line-oriented ASCII parse. The outcome is a
// tagged DecodeResult so callers and tests can tell which path produced the
// cloud. Camera paths use the TUM trajectory text format.
package scene
