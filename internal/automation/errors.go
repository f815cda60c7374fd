package automation

import "errors"

// ErrConcurrentRunRejected is returned when a cycle is requested while
// another one is still in flight. Rejected runs are never queued.
var ErrConcurrentRunRejected = errors.New("automation: ingestion cycle already running")
