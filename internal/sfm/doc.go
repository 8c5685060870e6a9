// Package sfm is a thin client for the remote structure-from-motion service
// that turns reference videos into reconstruction projects.
//
// The client is stateless: it uploads videos, reads project status, triggers
// reconstruction runs and resolves artifact URLs against the service's
// static asset root. Every failure is returned as a *RemoteError so callers
// can decide their own retry policy.
package sfm
