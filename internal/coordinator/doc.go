// Package coordinator implements the job-chain resolution and locking
// engine: given a chain of subjob paths (leaf first, root last), it
// acquires locks from root toward leaf to find the contiguous prefix of
// work nobody else owns, waits on a peer holding the next dependency
// when there is still useful preparatory work to do, executes the owned
// prefix leaf-to-root against the upstream router, and releases every
// lock it acquired on every exit path.
//
// The control-flow shape is unchanged from the run loop driving
// internal/dag's executor — a context-threaded loop over a small state
// machine, with side effects (cache writes, error flags, lock release)
// instead of a return value — generalized from "execute a local build
// task" to "acquire a distributed lock, touch an upstream service, and
// record the outcome".
package coordinator
