package explorer

import (
	"errors"
	"fmt"
)

var (
	// ErrNotIndexed means the explorer did not pick up the contract within the poll window.
	ErrNotIndexed         = errors.New("contract not indexed by explorer")
	ErrAlreadyVerified    = errors.New("contract source code already verified")
	ErrVerificationFailed = errors.New("contract verification failed")
)

// APIError is a non-success answer from the explorer API.
type APIError struct {
	StatusCode int
	Message    string
	Result     string
}

func (e *APIError) Error() string {
	if e.Result == "" {
		return fmt.Sprintf("explorer API error (http %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("explorer API error (http %d): %s: %s", e.StatusCode, e.Message, e.Result)
}
