// Package blobcache abstracts the remote blob store that holds computed
// artifacts, keyed by job path. Existence of a key means the artifact has
// already been computed; the Job Handler never deletes cache entries.
package blobcache
