package bank

import (
	"errors"
	"fmt"
)

var (
	ErrAuthentication  = fmt.Errorf("not logged in")
	ErrUpstream        = fmt.Errorf("bank request failed")
	ErrValidation      = fmt.Errorf("invalid bank response")
	ErrNotSupported    = fmt.Errorf("not supported by this bank")
	ErrUnsupportedBank = fmt.Errorf("unsupported page")
	ErrRouting         = fmt.Errorf("cannot reach tab")
)

type ErrorKind string

const (
	KindUnknown         ErrorKind = ""
	KindAuthentication  ErrorKind = "authentication"
	KindUpstream        ErrorKind = "upstream"
	KindValidation      ErrorKind = "validation"
	KindNotSupported    ErrorKind = "not_supported"
	KindUnsupportedBank ErrorKind = "unsupported_bank"
	KindRouting         ErrorKind = "routing"
)

var kinds = []struct {
	kind ErrorKind
	err  error
}{
	{KindAuthentication, ErrAuthentication},
	{KindUpstream, ErrUpstream},
	{KindValidation, ErrValidation},
	{KindNotSupported, ErrNotSupported},
	{KindUnsupportedBank, ErrUnsupportedBank},
	{KindRouting, ErrRouting},
}

// KindOf classifies err against the sentinel errors of this package.
func KindOf(err error) ErrorKind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// Sentinel returns the sentinel error for kind, nil for KindUnknown.
func Sentinel(kind ErrorKind) error {
	for _, k := range kinds {
		if k.kind == kind {
			return k.err
		}
	}
	return nil
}

// Retryable reports whether the user should be offered to retry after err.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindNotSupported, KindUnsupportedBank, KindAuthentication:
		return false
	}
	return true
}

// StatusError wraps ErrUpstream with the HTTP status the bank answered with.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", ErrUpstream, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrUpstream, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrUpstream
}
