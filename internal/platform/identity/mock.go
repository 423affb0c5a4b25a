package identity

import (
	"context"
	"sync"
)

// MockProvider implements Provider for unit tests. It records every call in
// order so tests can assert on the sequence of external side effects.
type MockProvider struct {
	mu sync.Mutex

	Session *Session
	// ClearSessionOnReauth simulates the session vanishing between steps.
	ClearSessionOnReauth bool

	ReauthErr  error
	DeleteErr  error
	SignOutErr error

	calls []string
	creds []Credential
}

// NewMockProvider creates a mock with the given current session.
func NewMockProvider(session *Session) *MockProvider {
	return &MockProvider{Session: session}
}

func (m *MockProvider) record(call string) {
	m.calls = append(m.calls, call)
}

func (m *MockProvider) CurrentSession(_ context.Context) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CurrentSession")
	return m.Session
}

func (m *MockProvider) Credential(email, password string) Credential {
	return Credential{Email: email, Password: password}
}

func (m *MockProvider) Reauthenticate(_ context.Context, _ *Session, cred Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Reauthenticate")
	m.creds = append(m.creds, cred)
	if m.ReauthErr != nil {
		return m.ReauthErr
	}
	if m.ClearSessionOnReauth {
		m.Session = nil
	}
	return nil
}

func (m *MockProvider) DeleteIdentity(_ context.Context, _ *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("DeleteIdentity")
	return m.DeleteErr
}

func (m *MockProvider) SignOut(_ context.Context, _ *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("SignOut")
	return m.SignOutErr
}

// Calls returns the recorded calls, excluding CurrentSession lookups.
func (m *MockProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.calls))
	for _, c := range m.calls {
		if c != "CurrentSession" {
			out = append(out, c)
		}
	}
	return out
}

// Credentials returns the credentials passed to Reauthenticate.
func (m *MockProvider) Credentials() []Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Credential(nil), m.creds...)
}

// Compile-time interface check
var _ Provider = (*MockProvider)(nil)
