// Package services defines shared utilities consumed by the reconstruction
// client, the project lifecycle and the viewer.
//
// Key responsibilities:
//   - Context helpers that stamp project IDs, template source keys, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into the viewer's recoverable vs terminal error states.
//
// Use these helpers when wiring new components so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
