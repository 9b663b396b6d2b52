package coordinator

import "errors"

// These sentinels model peer-wait outcomes as explicit result variants
// rather than thrown exceptions.
var (
	// ErrPeerFailed means the job this handler was waiting on has a
	// live error flag: the peer holding it failed.
	ErrPeerFailed = errors.New("peer job failed")

	// ErrPeerTimeout means this handler waited MAX_RETRIES iterations
	// without the peer-held job becoming cached.
	ErrPeerTimeout = errors.New("timed out waiting for peer")
)

// UpstreamError records a non-200 response from the router for a
// specific job, as written into the error flag.
type UpstreamError struct {
	Job     string
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return e.Job + " returned " + e.Message
}
