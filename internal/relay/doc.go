// Package relay implements the upload relay: a small HTTP server that accepts
// a reference video and its capture data as multipart form fields and stores
// them under a dated directory on local storage.
//
// POST /upload answers {success, message, files:[{type, path}]} on success and
// HTTP 500 with {success:false, message} on any failure. GET /health reports
// whether the storage root is writable.
package relay
