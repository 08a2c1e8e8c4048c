package withdrawal

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a withdrawal was rejected.
type ErrorKind string

const (
	KindInsufficientBalance ErrorKind = "InsufficientBalance"
	KindUnauthorizedSigner  ErrorKind = "UnauthorizedSigner"
	KindMalformedSignature  ErrorKind = "MalformedSignature"
	KindExecutionFailed     ErrorKind = "ExecutionFailed"
)

// WithdrawalError is a categorized withdrawal failure. A MalformedSignature error also
// matches ErrUnauthorizedSigner: to the caller an unparseable signature is just one that
// was not produced by an owner.
type WithdrawalError struct {
	Kind    ErrorKind
	Message string
	cause   error
}

var (
	ErrInsufficientBalance = &WithdrawalError{Kind: KindInsufficientBalance}
	ErrUnauthorizedSigner  = &WithdrawalError{Kind: KindUnauthorizedSigner}
	ErrMalformedSignature  = &WithdrawalError{Kind: KindMalformedSignature}
	ErrExecutionFailed     = &WithdrawalError{Kind: KindExecutionFailed}
)

func newError(kind ErrorKind, cause error, format string, args ...interface{}) *WithdrawalError {
	return &WithdrawalError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		cause:   cause,
	}
}

func (e *WithdrawalError) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *WithdrawalError) Unwrap() error {
	return e.cause
}

func (e *WithdrawalError) Is(target error) bool {
	t, ok := target.(*WithdrawalError)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return e.Kind == KindMalformedSignature && t.Kind == KindUnauthorizedSigner
}

// KindOf returns the classification of err, if it is a withdrawal rejection.
func KindOf(err error) (ErrorKind, bool) {
	var we *WithdrawalError
	if errors.As(err, &we) {
		return we.Kind, true
	}
	return "", false
}
