// Package jobpath parses request paths into jobs and derives the ordered
// dependency chain of subjobs that a job requires.
//
// A path has the shape LOA ("/" SEG "/" SEG "/" SEG)+: one leading level-of-
// analysis segment followed by one or more task triples. The chain of a job
// with N task triples is the N subjobs obtained by keeping the LOA fixed and
// truncating the task list to its last 1, 2, ..., N triples, ordered leaf
// (shortest) first and root (the full path) last.
package jobpath
