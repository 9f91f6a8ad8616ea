package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned when request parameters are missing or malformed
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrAppNotFound is returned when an app id is invalid or the app has been delisted
	ErrAppNotFound = errors.New("app not found")

	// ErrStoreUnavailable is returned when a store fetch fails after retries
	ErrStoreUnavailable = errors.New("store request failed")

	// ErrJobNotFound is returned when an export job id is unknown
	ErrJobNotFound = errors.New("export job not found")

	// ErrExportQueueFull is returned when the export worker cannot accept more jobs
	ErrExportQueueFull = errors.New("export queue is full")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)

// TransformError reports a non-zero exit from the external cleaning process.
type TransformError struct {
	ExitCode int
	Stderr   string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform exited with code %d: %s", e.ExitCode, e.Stderr)
}
