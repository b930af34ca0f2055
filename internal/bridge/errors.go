package bridge

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnauthorized is returned by a ChatClient when the session keys are
	// unusable (unauthorized, deactivated or unregistered).
	ErrUnauthorized = errors.New("chat client: unauthorized")

	// ErrInvalidSession marks the fatal per-account condition.
	ErrInvalidSession = errors.New("invalid session")
)

// InvalidSessionError terminates processing of one account.
type InvalidSessionError struct {
	Session string
	Err     error
}

func (e *InvalidSessionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: invalid session", e.Session)
	}
	return fmt.Sprintf("%s: invalid session: %v", e.Session, e.Err)
}

func (e *InvalidSessionError) Unwrap() error { return e.Err }

func (e *InvalidSessionError) Is(target error) bool {
	return target == ErrInvalidSession
}

// FloodWaitError is a remote rate limit carrying the mandated wait.
type FloodWaitError struct {
	Wait time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait %s", e.Wait)
}

// AsFloodWait extracts the wait duration from a flood-control error.
func AsFloodWait(err error) (time.Duration, bool) {
	var floodErr *FloodWaitError
	if errors.As(err, &floodErr) {
		return floodErr.Wait, true
	}
	return 0, false
}
