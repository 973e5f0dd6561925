package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Error is returned for every failed request. Status is 0 when the request
// never produced an HTTP response (network failure, timeout).
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("request failed: %s", e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports network failures, timeouts and 5xx responses, which
// are safe to retry after rollback.
func IsTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Status == 0 || e.Status >= http.StatusInternalServerError
}

// IsConflict reports 409 responses such as duplicate accounts
func IsConflict(err error) bool { return hasStatus(err, http.StatusConflict) }

// IsAuth reports a missing or rejected token
func IsAuth(err error) bool { return hasStatus(err, http.StatusUnauthorized) }

// IsForbidden reports an action on another user's entity
func IsForbidden(err error) bool { return hasStatus(err, http.StatusForbidden) }

func IsNotFound(err error) bool { return hasStatus(err, http.StatusNotFound) }

func hasStatus(err error, status int) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == status
}
