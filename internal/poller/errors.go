package poller

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrPollingFailed  = errors.New("polling failed")
	ErrAlreadyRunning = errors.New("poller is already running")
)

// PollingError ends Run: the retry budget ran out or the API rejected the
// request for good. The host decides whether to restart.
type PollingError struct {
	Attempts int
	Offset   int64
	Err      error
}

func (e *PollingError) Error() string {
	return fmt.Sprintf("polling failed at offset %d after %d attempt(s): %v", e.Offset, e.Attempts, e.Err)
}

func (e *PollingError) Unwrap() error { return e.Err }

func (e *PollingError) Is(target error) bool { return target == ErrPollingFailed }
