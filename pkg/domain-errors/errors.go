// Package domainerrors defines the coded validation errors the record engine
// surfaces to its callers. Every error names the field path it refers to so
// the HTTP layer can hand it straight to a client form.
package domainerrors

import "errors"

type Code string

const (
	// CodeFormat marks a field that fails its syntactic rule, including an
	// unparsable or badly formatted phone number.
	CodeFormat Code = "format"
	// CodeReference marks a value missing from the geo catalog.
	CodeReference Code = "reference"
	// CodeCompleteness marks a field required in strict mode but absent.
	CodeCompleteness Code = "completeness"
	// CodeRegionMismatch marks a phone whose telephony region disagrees with
	// the declared country.
	CodeRegionMismatch Code = "region_mismatch"
	// CodeConflict marks a primary-key value already used by another record.
	CodeConflict Code = "conflict"

	CodeSelectorEmpty     Code = "selector_empty"
	CodeSelectorNotFound  Code = "selector_not_found"
	CodeSelectorAmbiguous Code = "selector_ambiguous"

	// CodeInternal hides store and infrastructure failures from clients.
	CodeInternal Code = "internal"
)

// Error is a validation failure tied to a field path. Validation is
// fail-fast, so a single Error describes the whole rejection.
type Error struct {
	Code    Code   `json:"code"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

func New(code Code, path, message string) *Error {
	return &Error{Code: code, Path: path, Message: message}
}

func (e *Error) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// HasCode reports whether err is (or wraps) a domain error with the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == code
}

// PathOf returns the field path of a domain error, or "" for other errors.
func PathOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Path
	}
	return ""
}

// FromError extracts the domain error wrapped in err, if any.
func FromError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
