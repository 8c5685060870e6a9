// Package projectcache persists the mapping from a template's source key to the
// remote reconstruction project created for it.
//
// Storage is pluggable through KeyValueStore: a JSON file (default), a SQLite
// table or a process-local memory store. Cache layers the namespaced
// recomo_project_cache_ key scheme on top, and KeyLocker serializes
// create-on-miss for a key across goroutines and, optionally, processes.
package projectcache
