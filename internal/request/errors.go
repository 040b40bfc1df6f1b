package request

import (
	"errors"
	"fmt"

	"github.com/tanq16/hreq/internal/ledger"
)

var (
	ErrInProgress       = errors.New("request is already running")
	ErrTooManyRedirects = errors.New("too many redirects")
	ErrRangeMismatch    = errors.New("server returned a different range than requested")
)

// IOError is a local filesystem failure. The partial file may be left in an
// inconsistent state after one.
type IOError = ledger.IOError

// ConfigurationError is an invalid combination of settings. It is returned by
// Build or Start and never passed to the failed listener.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid request configuration (%s): %s", e.Field, e.Reason)
	}
	return "invalid request configuration: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// TransportError means the exchange with the server failed: no connection, a bad
// status, redirect overflow, or a body cut short on a destination that cannot be
// resumed.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// PartialDownloadError is returned when a file download ended early. The partial
// file holds BytesOnDisk bytes and can be resumed. BytesRemaining is -1 when the
// server never declared a length.
type PartialDownloadError struct {
	BytesRemaining int64
	BytesOnDisk    int64
	Err            error
}

func (e *PartialDownloadError) Error() string {
	if e.BytesRemaining < 0 {
		return fmt.Sprintf("partially downloaded %d bytes, remaining unknown: %v", e.BytesOnDisk, e.Err)
	}
	return fmt.Sprintf("partially downloaded %d bytes, %d bytes remaining: %v", e.BytesOnDisk, e.BytesRemaining, e.Err)
}

func (e *PartialDownloadError) Unwrap() error {
	return e.Err
}

func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func IsPartialDownload(err error) bool {
	var pe *PartialDownloadError
	return errors.As(err, &pe)
}

func IsIOError(err error) bool {
	return ledger.IsIOError(err)
}

// BytesRemaining returns the missing byte count carried by a partial download
// error.
func BytesRemaining(err error) (int64, bool) {
	var pe *PartialDownloadError
	if errors.As(err, &pe) {
		return pe.BytesRemaining, true
	}
	return 0, false
}
