package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIndexEmpty is returned when the search-term index has no rows left.
	ErrIndexEmpty = errors.New("search term index is empty")
	// ErrStoreEmpty is returned when the link store has nothing to pop.
	ErrStoreEmpty = errors.New("link store is empty")
	// ErrRateLimited is returned when the posting API throttles us.
	ErrRateLimited = errors.New("post rate limited")
	// ErrPublishFailed wraps any failure of the final post; the link is gone.
	ErrPublishFailed = errors.New("publish failed")
)

// ConfigError lists credentials that are required but absent.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return "missing required configuration: " + strings.Join(e.Missing, ", ")
}

// PublishRejectedError is a non-retryable refusal from the posting API
// (bad credentials, duplicate content, policy).
type PublishRejectedError struct {
	StatusCode int
	Reason     string
}

func (e *PublishRejectedError) Error() string {
	return fmt.Sprintf("post rejected (%d): %s", e.StatusCode, e.Reason)
}
