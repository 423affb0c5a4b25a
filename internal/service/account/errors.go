package account

import (
	"errors"
	"fmt"
)

// Kind classifies account failures.
type Kind string

const (
	KindNotInitialized Kind = "not_initialized"
	KindAuthRequired   Kind = "auth_required"
	KindReauthRequired Kind = "reauth_required"
	KindWrongPassword  Kind = "wrong_password"
	KindDeletionFailed Kind = "deletion_failed"
)

// Service errors
var (
	ErrNotInitialized = errors.New("account service is not initialized")
	ErrAuthRequired   = errors.New("user authentication required")
	ErrReauthRequired = errors.New("reauthentication required for this operation")
	ErrWrongPassword  = errors.New("incorrect password")
	ErrDeletionFailed = errors.New("failed to delete account")
)

// Result codes reported to clients.
const (
	CodeAuthRequired   = "AUTH_REQUIRED"
	CodeEmailNotFound  = "EMAIL_NOT_FOUND"
	CodeWrongPassword  = "WRONG_PASSWORD"
	CodeReauthFailed   = "REAUTH_FAILED"
	CodeDeleteFailed   = "DELETE_FAILED"
	CodeNotInitialized = "NOT_INITIALIZED"
)

var (
	kindSentinels = map[Kind]error{
		KindNotInitialized: ErrNotInitialized,
		KindAuthRequired:   ErrAuthRequired,
		KindReauthRequired: ErrReauthRequired,
		KindWrongPassword:  ErrWrongPassword,
		KindDeletionFailed: ErrDeletionFailed,
	}
	kindCodes = map[Kind]string{
		KindNotInitialized: CodeNotInitialized,
		KindAuthRequired:   CodeAuthRequired,
		KindReauthRequired: CodeReauthFailed,
		KindWrongPassword:  CodeWrongPassword,
		KindDeletionFailed: CodeDeleteFailed,
	}
)

// Error is an account failure tagged with its Kind. It matches the Kind's
// sentinel and its cause with errors.Is.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return "account error"
	}
	if e.Message != "" {
		return e.Message
	}
	if s, ok := kindSentinels[e.Kind]; ok {
		return s.Error()
	}
	return fmt.Sprintf("account error (kind=%s)", e.Kind)
}

// Code returns the client-facing result code for the error's Kind.
func (e *Error) Code() string {
	if e == nil {
		return CodeDeleteFailed
	}
	if c, ok := kindCodes[e.Kind]; ok {
		return c
	}
	return CodeDeleteFailed
}

// Unwrap exposes the Kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	errs := make([]error, 0, 2)
	if s, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, s)
	}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

// codeOf returns the result code carried by err, defaulting to DELETE_FAILED.
func codeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code()
	}
	return CodeDeleteFailed
}

// Logout result codes.
const (
	CodeSignOutFailed      = "SIGN_OUT_FAILED"
	CodeClearStorageFailed = "CLEAR_STORAGE_FAILED"
)

// Err converts a failed result to an *Error whose Kind matches the result code.
// It returns nil for a successful result.
func (r *DeleteAccountResult) Err() error {
	if r == nil || r.Success || r.Error == nil {
		return nil
	}
	kind := KindDeletionFailed
	switch r.Error.Code {
	case CodeAuthRequired:
		kind = KindAuthRequired
	case CodeWrongPassword:
		kind = KindWrongPassword
	case CodeReauthFailed, CodeEmailNotFound:
		kind = KindReauthRequired
	case CodeNotInitialized:
		kind = KindNotInitialized
	}
	return newError(kind, r.Error.Message, nil)
}
