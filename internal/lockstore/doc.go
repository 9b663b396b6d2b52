// Package lockstore abstracts the remote key-value store used to
// deduplicate concurrent job execution (the "jobs:" namespace) and to
// record per-job failures (the "errors:" namespace).
//
// Both namespaces live in the same backing store so that a single
// connection pool and a single set-if-absent primitive serve both
// purposes; Store keeps them logically separate through key prefixes.
package lockstore
