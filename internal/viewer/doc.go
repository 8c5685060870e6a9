// Package viewer is the headless model of the reconstruction scene view.
//
// It turns a decoded point cloud and camera path into GPU-ready buffers in the
// display convention, drives a frame loop that advances playback and moves the
// position marker, and hands each frame to a Backend that owns the actual
// rendering API. Viewer ties the project lifecycle, playback and renderer
// together behind a single ViewState with loading, ready and error phases.
package viewer
