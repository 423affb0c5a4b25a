package profile

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MockRepository implements Repository in memory for unit tests. The *Err
// fields force the matching operation to fail.
type MockRepository struct {
	mu       sync.RWMutex
	profiles map[string]*Profile

	GetErr    error
	CreateErr error
	UpdateErr error
	TouchErr  error
	DeleteErr error

	// Now supplies server timestamps.
	Now func() time.Time
}

// NewMockRepository creates an empty mock repository.
func NewMockRepository() *MockRepository {
	return &MockRepository{
		profiles: make(map[string]*Profile),
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// Put stores p as-is, bypassing Create.
func (m *MockRepository) Put(p *Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UID] = cloneProfile(p)
}

// Len returns the number of stored profiles.
func (m *MockRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.profiles)
}

func (m *MockRepository) Get(_ context.Context, userID string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneProfile(p), nil
}

func (m *MockRepository) Create(_ context.Context, p *Profile) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if _, ok := m.profiles[p.UID]; ok {
		return nil, ErrAlreadyExists
	}
	stored := cloneProfile(p)
	now := m.Now()
	stored.CreatedAt = now
	stored.LastLoginAt = now
	m.profiles[p.UID] = stored
	return cloneProfile(stored), nil
}

func (m *MockRepository) Update(_ context.Context, userID string, params UpdateParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	p, ok := m.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	if params.Email != nil {
		p.Email = *params.Email
	}
	if params.DisplayName != nil {
		p.DisplayName = *params.DisplayName
	}
	if params.PhotoURL != nil {
		if *params.PhotoURL == "" {
			p.PhotoURL = nil
		} else {
			v := *params.PhotoURL
			p.PhotoURL = &v
		}
	}
	if len(params.Preferences) > 0 {
		if p.Preferences == nil {
			p.Preferences = Preferences{}
		}
		maps.Copy(p.Preferences, params.Preferences)
	}
	if len(params.Metadata) > 0 {
		if p.Metadata == nil {
			p.Metadata = map[string]any{}
		}
		maps.Copy(p.Metadata, params.Metadata)
	}
	return nil
}

func (m *MockRepository) TouchLastLogin(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.TouchErr != nil {
		return m.TouchErr
	}
	p, ok := m.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	p.LastLoginAt = m.Now()
	return nil
}

func (m *MockRepository) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.profiles, userID)
	return nil
}

func cloneProfile(p *Profile) *Profile {
	c := *p
	if p.PhotoURL != nil {
		v := *p.PhotoURL
		c.PhotoURL = &v
	}
	c.Preferences = maps.Clone(p.Preferences)
	c.Metadata = maps.Clone(p.Metadata)
	return &c
}

// Compile-time interface check
var _ Repository = (*MockRepository)(nil)
