// Package errs defines the failure kinds shared by the library and media
// packages and their HTTP mapping.
package errs

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidInput        = errors.New("invalid input")
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
	ErrConflict            = errors.New("conflict")
	ErrTooLarge            = errors.New("payload too large")
)

var kinds = []struct {
	err    error
	code   string
	status int
}{
	{ErrNotFound, "not_found", http.StatusNotFound},
	{ErrUnauthenticated, "unauthenticated", http.StatusUnauthorized},
	{ErrForbidden, "forbidden", http.StatusForbidden},
	{ErrInvalidInput, "invalid_input", http.StatusBadRequest},
	{ErrRangeNotSatisfiable, "range_not_satisfiable", http.StatusRequestedRangeNotSatisfiable},
	{ErrConflict, "conflict", http.StatusConflict},
	{ErrTooLarge, "payload_too_large", http.StatusRequestEntityTooLarge},
}

// Status returns the HTTP status for err, 500 for unclassified errors.
func Status(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// Code returns the machine-readable kind of err, "internal" when unclassified.
func Code(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "internal"
}

// Kind reports whether err belongs to one of the known kinds.
func Kind(err error) bool {
	return Code(err) != "internal"
}
