package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionComplete is returned when resuming a session whose loop already terminated.
var ErrSessionComplete = errors.New("session already complete")

// MissingDataError is returned when a session cannot start because required inputs
// are absent or empty.
type MissingDataError struct {
	Keys []string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("missing required data: %s", strings.Join(e.Keys, ", "))
}

// Status mirrors the status string reported to hosts.
func (e *MissingDataError) Status() ResultStatus {
	return ResultMissingData
}

// MissingKeys extracts the missing keys if err is (or wraps) a MissingDataError.
func MissingKeys(err error) ([]string, bool) {
	var mde *MissingDataError
	if errors.As(err, &mde) {
		return mde.Keys, true
	}
	return nil, false
}
