// Package errs defines the error taxonomy every handler method surfaces
// to clients: a small closed set of kinds, each mapped to a named bus
// error near the boundary.
package errs

import "fmt"

// Kind is one of the seven error categories a handler method may return.
type Kind string

const (
	NotAuthorized Kind = "NotAuthorized"
	InvalidArgs   Kind = "InvalidArgs"
	NotFound      Kind = "NotFound"
	NotSupported  Kind = "NotSupported"
	DeviceBusy    Kind = "DeviceBusy"
	IOError       Kind = "IoError"
	Internal      Kind = "Internal"
	Cancelled     Kind = "Cancelled"
)

// Error is a taxonomy-kinded error carrying a human-readable message and
// an optional wrapped cause.
type Error struct {
	Kind    Kind
	Domain  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Domain != "" {
		return fmt.Sprintf("%s: %s", e.Domain, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs a Kind-tagged error scoped to a domain (e.g. "filesystems").
func New(kind Kind, domain, format string, args ...any) *Error {
	return &Error{Kind: kind, Domain: domain, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with a Kind, preserving it as Cause.
func Wrap(kind Kind, domain string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Domain: domain, Message: cause.Error(), Cause: cause}
}

// As extracts the taxonomy Kind from err, defaulting to Internal when err
// doesn't carry one.
func As(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if ok := errorsAs(err, &e); ok {
		return e.Kind
	}
	return Internal
}

func errorsAs(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// BusName maps a Kind to the reverse-domain D-Bus error name used when
// a handler method returns a fault to a caller.
func BusName(kind Kind) string {
	switch kind {
	case NotAuthorized:
		return "org.storagebroker.Service1.Error.NotAuthorized"
	case InvalidArgs:
		return "org.storagebroker.Service1.Error.InvalidArgs"
	case NotFound:
		return "org.storagebroker.Service1.Error.NotFound"
	case NotSupported:
		return "org.storagebroker.Service1.Error.NotSupported"
	case DeviceBusy:
		return "org.storagebroker.Service1.Error.DeviceBusy"
	case Cancelled:
		return "org.storagebroker.Service1.Error.Cancelled"
	case IOError:
		return "org.storagebroker.Service1.Error.IoError"
	default:
		return "org.storagebroker.Service1.Error.Internal"
	}
}
