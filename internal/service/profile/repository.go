package profile

import (
	"context"
	"errors"
)

// Repository errors
var (
	ErrNotFound      = errors.New("profile not found")
	ErrAlreadyExists = errors.New("profile already exists")
)

// Repository persists profile documents keyed by user ID.
type Repository interface {
	// Get returns the stored document, or ErrNotFound.
	Get(ctx context.Context, userID string) (*Profile, error)
	// Create stores a new document with server-assigned CreatedAt and
	// LastLoginAt and returns it with those timestamps. It fails with
	// ErrAlreadyExists when a document is present.
	Create(ctx context.Context, p *Profile) (*Profile, error)
	// Update merges params into the stored document, or returns ErrNotFound.
	Update(ctx context.Context, userID string, params UpdateParams) error
	// TouchLastLogin sets LastLoginAt to the server time.
	TouchLastLogin(ctx context.Context, userID string) error
	// Delete removes the document. Deleting a missing document succeeds.
	Delete(ctx context.Context, userID string) error
}

// categorizeError converts errors to audit-safe categories.
func categorizeError(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal_error"
	}
}
