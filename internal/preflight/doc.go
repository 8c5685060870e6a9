// Package preflight provides readiness checks for the reconstruction service
// and the filesystem paths Recomo writes into.
//
// The relay verifies its storage root with CheckDirectoryAccess before every
// upload, and the CLI "recomo status" command runs RunAll to display health.
package preflight
