package auth

import (
	"context"
)

// MockVerifier provides fake token verification for tests.
type MockVerifier struct {
	User  *User
	Error error
}

// Verify returns the configured user or error.
func (m *MockVerifier) Verify(_ context.Context, _ string) (*User, error) {
	if m.Error != nil {
		return nil, m.Error
	}
	return m.User, nil
}

// TestUser returns a standard password-authenticated test user.
func TestUser() *User {
	return &User{
		UID:            "test-user-123",
		Email:          "test@example.com",
		EmailVerified:  true,
		DisplayName:    "Test User",
		SignInProvider: "password",
	}
}

// Compile-time interface check
var _ Verifier = (*MockVerifier)(nil)
