// Package playback maps playback time onto a recorded camera path.
//
// Timeline rescales playback seconds into the path's own timestamp domain and
// interpolates the camera between the bracketing poses. Player owns the
// playback state and follows a Clock: the reference video's clock when one is
// attached, an internal wall-clock timer otherwise.
package playback
