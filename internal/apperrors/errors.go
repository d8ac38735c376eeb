// Package apperrors defines the error taxonomy shared by the gateway layers.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when an operation requires an identity
	// and the caller is anonymous.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrInvalidToken is returned when a bearer credential fails verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidInput is returned for malformed operation arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout is returned when an operation exceeds the request deadline.
	ErrTimeout = errors.New("operation timed out")
)

// AuthenticationError wraps a credential failure. It is reported before any
// handler logic runs and is never retried.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return "authentication failed: " + e.Reason
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// StoreError is a constraint violation or connectivity failure reported by
// the relational store.
type StoreError struct {
	Op     string
	Entity string
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// UploadFailure distinguishes an oversized payload from a transport failure.
type UploadFailure int

const (
	UploadTransport UploadFailure = iota
	UploadTooLarge
)

// StorageUploadError is returned by the upload coordinator.
type StorageUploadError struct {
	Kind  UploadFailure
	Key   string
	Limit int64
	Err   error
}

func (e *StorageUploadError) Error() string {
	if e.Kind == UploadTooLarge {
		return fmt.Sprintf("upload %s exceeds %d bytes", e.Key, e.Limit)
	}
	return fmt.Sprintf("upload %s failed: %v", e.Key, e.Err)
}

func (e *StorageUploadError) Unwrap() error {
	return e.Err
}

// TooLarge reports whether the upload was rejected for its size.
func (e *StorageUploadError) TooLarge() bool {
	return e.Kind == UploadTooLarge
}

// UpstreamServiceError is a failed call to the sibling schedule/notice service.
type UpstreamServiceError struct {
	Endpoint   string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *UpstreamServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s returned %d after %d attempt(s)", e.Endpoint, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("upstream %s failed after %d attempt(s): %v", e.Endpoint, e.Attempts, e.Err)
}

func (e *UpstreamServiceError) Unwrap() error {
	return e.Err
}

// IsAuthentication reports whether err is an authentication failure.
func IsAuthentication(err error) bool {
	var authErr *AuthenticationError
	return errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrInvalidToken) || errors.As(err, &authErr)
}

// IsStore reports whether err originated in the relational store.
func IsStore(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr)
}
