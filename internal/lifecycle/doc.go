// Package lifecycle drives a template from reference video to decoded scene.
//
// Manager resolves the remote project for a source key (cache, caller
// supplied id, or a fresh upload), checks its status, starts reconstruction
// when needed, polls until artifacts exist and then loads them. A project the
// service no longer knows is evicted and recreated once; a second miss is
// terminal. Start runs the whole sequence in a goroutine and guarantees at
// most one run, and therefore one poll loop, per Manager.
package lifecycle
