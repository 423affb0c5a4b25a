// Package identity is the identity-provider handle used by the account and
// profile services: the current session, password credentials,
// reauthentication, identity deletion and sign-out.
package identity

import (
	"context"
	"errors"
	"fmt"
)

// Provider error codes. They follow the Firebase client SDK naming so callers
// can branch on them the same way mobile clients do.
const (
	CodeWrongPassword     = "auth/wrong-password"
	CodeInvalidCredential = "auth/invalid-credential"
	CodeUserNotFound      = "auth/user-not-found"
	CodeUserDisabled      = "auth/user-disabled"
	CodeUserMismatch      = "auth/user-mismatch"
	CodeTooManyRequests   = "auth/too-many-requests"
	CodeMissingPassword   = "auth/missing-password"
	CodeNoSession         = "auth/no-current-user"
	CodeInternal          = "auth/internal-error"
)

// Session is the authenticated caller.
type Session struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
	// Anonymous is true for guest sessions, which have no password to reauthenticate with.
	Anonymous bool
}

// Credential is proof of a password for an email identity.
type Credential struct {
	Email    string
	Password string
}

// Provider is the identity-provider handle.
type Provider interface {
	// CurrentSession returns the session bound to ctx, or nil.
	CurrentSession(ctx context.Context) *Session
	// Credential builds a password credential.
	Credential(email, password string) Credential
	// Reauthenticate proves the credential belongs to session right now.
	Reauthenticate(ctx context.Context, session *Session, cred Credential) error
	// DeleteIdentity removes the session's account from the provider.
	DeleteIdentity(ctx context.Context, session *Session) error
	// SignOut invalidates the session's outstanding refresh tokens.
	SignOut(ctx context.Context, session *Session) error
}

// Error is a provider failure carrying a machine-readable code.
type Error struct {
	Code    string
	Message string
	cause   error
}

// NewError creates an Error wrapping cause.
func NewError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
}

// Unwrap returns the underlying transport or SDK error.
func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf returns the provider code carried by err, or "".
func CodeOf(err error) string {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// IsWrongPassword reports whether err means the password was rejected.
func IsWrongPassword(err error) bool {
	switch CodeOf(err) {
	case CodeWrongPassword, CodeInvalidCredential:
		return true
	default:
		return false
	}
}
