// Package backoff implements the caller-owned retry policy of
// spec.md §4.2: the queue itself never blocks or sleeps.
package backoff

import "time"

const (
	// PushSleep and PushAttempts bound a producer's retry loop on a
	// full queue before it gives up and buffers the record itself.
	PushSleep    = 10 * time.Microsecond
	PushAttempts = 10

	// PopSleep is the consumer's retry delay on an empty queue; pop
	// retries indefinitely until shutdown, so there is no attempt cap.
	PopSleep = 100 * time.Microsecond

	// PollSleep is the router tasks' empty-queue poll interval
	// (spec.md §5).
	PollSleep = time.Millisecond
)
