// internal/types/errors.go
package types

import (
	"errors"
	"fmt"
	"time"
)

// ThrottledError reports that the upstream source rejected a call because of
// rate limiting. RetryAfter is the wait the source asked for.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("throttled by source, retry after %s", e.RetryAfter)
}

// AsThrottled unwraps err into a *ThrottledError if there is one in the chain.
func AsThrottled(err error) (*ThrottledError, bool) {
	var te *ThrottledError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// ErrSourceUnavailable marks generic upstream query failures. Non-fatal to a
// cycle: the account is skipped and retried on the next cycle.
var ErrSourceUnavailable = errors.New("activity source unavailable")

// ErrDispatchFailed marks a failed alert delivery. The event is not recorded
// as seen, so a later cycle re-offers it for dispatch.
var ErrDispatchFailed = errors.New("alert dispatch failed")
