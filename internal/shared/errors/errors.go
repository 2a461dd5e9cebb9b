package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind classifies where an error came from and how far it may propagate.
type Kind int

const (
	KindUnknown Kind = iota
	// KindBind is fatal: the echo endpoint could not be bound or the accept loop died.
	KindBind
	// KindDetection is recovered at startup with the default worker count.
	KindDetection
	// KindIO ends the connection it happened on.
	KindIO
	// KindDecode ends the connection whose payload was not valid UTF-8.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindBind:
		return "BindError"
	case KindDetection:
		return "DetectionError"
	case KindIO:
		return "IoError"
	case KindDecode:
		return "DecodeError"
	default:
		return "Error"
	}
}

// Error is an error object with underlying error.
type Error struct {
	kind    Kind
	prefix  []interface{}
	message []interface{}
	inner   error
}

// Error implements error.Error().
func (err *Error) Error() string {
	builder := strings.Builder{}
	builder.WriteByte('[')
	builder.WriteString(err.kind.String())
	builder.WriteString("] ")
	for _, prefix := range err.prefix {
		builder.WriteByte('[')
		builder.WriteString(fmt.Sprint(prefix))
		builder.WriteString("] ")
	}

	builder.WriteString(fmt.Sprint(err.message...))

	if err.inner != nil {
		builder.WriteString(" > ")
		builder.WriteString(err.inner.Error())
	}

	return builder.String()
}

// Base sets the underlying error.
func (err *Error) Base(e error) *Error {
	err.inner = e
	return err
}

// AtPrefix adds a bracketed context tag, e.g. a remote address.
func (err *Error) AtPrefix(p interface{}) *Error {
	err.prefix = append(err.prefix, p)
	return err
}

func (err *Error) Unwrap() error {
	return err.inner
}

// Kind returns the classification of this error.
func (err *Error) Kind() Kind {
	return err.kind
}

// String returns the string representation of this error.
func (err *Error) String() string {
	return err.Error()
}

// NewError returns a new error object with message formed from given arguments.
func NewError(kind Kind, msg ...interface{}) *Error {
	return &Error{
		kind:    kind,
		message: msg,
	}
}

// KindOf walks the chain and returns the first Kind found.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// IsKind reports whether err (or anything it wraps) is of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
