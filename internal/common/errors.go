// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence failed")

	// Fetch errors.
	ErrFetchNetwork = errors.New("fetch failed")
	ErrFetchTimeout = errors.New("fetch timed out")
	ErrFetchParse   = errors.New("fetch returned unusable payload")

	// Sync errors.
	ErrSync = errors.New("spreadsheet sync failed")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
)

// FetchKind classifies a fetch failure at the collaborator boundary.
type FetchKind string

// Fetch failure kinds.
const (
	FetchNetwork FetchKind = "network"
	FetchTimeout FetchKind = "timeout"
	FetchParse   FetchKind = "parse"
)

// FetchError is returned by the fetcher once its retries are exhausted.
type FetchError struct {
	Err      error
	ID       string
	Kind     FetchKind
	Attempts int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s after %d attempt(s): %v", e.ID, e.Kind, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the sentinel for the failure kind.
func (e *FetchError) Is(target error) bool {
	switch e.Kind {
	case FetchNetwork:
		return target == ErrFetchNetwork
	case FetchTimeout:
		return target == ErrFetchTimeout
	case FetchParse:
		return target == ErrFetchParse
	}
	return false
}

// NewFetchError creates a typed fetch failure.
func NewFetchError(id string, kind FetchKind, attempts int, err error) *FetchError {
	return &FetchError{ID: id, Kind: kind, Attempts: attempts, Err: err}
}

// SyncError wraps a failure to project a record into the external store.
// Local persistence has already happened when one of these surfaces.
type SyncError struct {
	Err error
	ID  string
	Op  string
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s (%s): %v", e.ID, e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Is matches ErrSync.
func (e *SyncError) Is(target error) bool {
	return target == ErrSync
}

// NewSyncError creates a typed sync failure.
func NewSyncError(id, op string, err error) *SyncError {
	return &SyncError{ID: id, Op: op, Err: err}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind != FetchParse
	}

	return false
}
