package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so surfaces can render them consistently.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindBusy         ErrorKind = "busy"
	KindNotFound     ErrorKind = "not_found"
	KindInvalidState ErrorKind = "invalid_state"
	KindTranslation  ErrorKind = "translation"
	KindTransport    ErrorKind = "transport"
	KindPersistence  ErrorKind = "persistence"
	KindStream       ErrorKind = "stream"
)

var (
	ErrEmptyIntent             = errors.New("intent text is empty")
	ErrBusy                    = errors.New("another request is still in flight")
	ErrTurnNotFound            = errors.New("turn not found")
	ErrNotAwaitingConfirmation = errors.New("turn is not awaiting confirmation")
	ErrNotReadyToExecute       = errors.New("turn is not ready to execute")
	ErrConfirmationMismatch    = errors.New("confirmation text does not match")
	ErrHistoryNotFound         = errors.New("history record not found")
	ErrTransport               = errors.New("execution service unavailable")
	ErrStreamClosed            = errors.New("log stream closed")
)

// Error carries a kind and the operation that failed.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewError wraps err with a kind and operation name.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the kind of err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
