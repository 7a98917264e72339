package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrStaleGeneration marks a refresh superseded by a newer one. It never
	// leaves the catalog package.
	ErrStaleGeneration = errors.New("stale refresh generation")

	// ErrRolledBack is wrapped into the error of an optimistic mutation that
	// was reverted.
	ErrRolledBack = errors.New("mutation rolled back")
)

// GeolocationKind classifies device geolocation failures
type GeolocationKind string

const (
	GeoPermissionDenied GeolocationKind = "permission_denied"
	GeoTimeout          GeolocationKind = "timeout"
	GeoUnsupported      GeolocationKind = "unsupported"
)

// GeolocationError is a device geolocation failure
type GeolocationError struct {
	Kind GeolocationKind
	Err  error
}

func (e *GeolocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geolocation %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("geolocation %s", e.Kind)
}

func (e *GeolocationError) Unwrap() error {
	return e.Err
}

// NetworkError is any failed HTTP call or non-success response body
type NetworkError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: request failed with status %d", e.Op, e.Status)
	}
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ValidationError is a local precondition failure detected before any network call
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is or wraps a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNetwork reports whether err is or wraps a NetworkError
func IsNetwork(err error) bool {
	var n *NetworkError
	return errors.As(err, &n)
}
