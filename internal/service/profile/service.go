// Package profile loads and maintains user profile documents, reconciling
// stored fields with identity provider claims and configured defaults.
package profile

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/janisto/account-lifecycle/internal/platform/identity"
	applog "github.com/janisto/account-lifecycle/internal/platform/logging"
	"github.com/janisto/account-lifecycle/internal/platform/metrics"
)

// Service errors
var (
	ErrNotInitialized  = errors.New("profile service is not initialized")
	ErrSessionRequired = errors.New("an authenticated session is required")
)

// Config holds profile defaults and lifecycle callbacks.
type Config struct {
	// Collection is the document collection name. Empty means DefaultCollection.
	Collection string
	// DefaultPreferences override the fixed defaults per key.
	DefaultPreferences Preferences
	// DefaultMetadata is used when a profile has no stored metadata.
	DefaultMetadata map[string]any

	OnProfileLoaded  func(ctx context.Context, p *Profile)
	OnProfileCreated func(ctx context.Context, p *Profile)
	OnProfileUpdated func(ctx context.Context, p *Profile)
}

// CollectionName returns the configured collection or DefaultCollection.
func (c Config) CollectionName() string {
	if c.Collection == "" {
		return DefaultCollection
	}
	return c.Collection
}

// Service wraps a Repository with default merging and callbacks.
type Service struct {
	mu   sync.RWMutex
	repo Repository
	cfg  *Config

	metrics metrics.Recorder
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics sets the metrics sink.
func WithMetrics(rec metrics.Recorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// NewService creates an initialized Service.
func NewService(repo Repository, cfg Config, opts ...Option) (*Service, error) {
	s := &Service{
		metrics: metrics.Nop{},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Initialize(repo, cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Initialize replaces the repository and configuration.
func (s *Service) Initialize(repo Repository, cfg Config) error {
	if repo == nil {
		return ErrNotInitialized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repo = repo
	s.cfg = &cfg
	return nil
}

// IsInitialized reports whether a repository is set.
func (s *Service) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo != nil
}

// Reset clears the repository and configuration.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repo = nil
	s.cfg = nil
}

func (s *Service) snapshot() (Repository, Config, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.repo == nil {
		return nil, Config{}, false
	}
	return s.repo, *s.cfg, true
}

// LoadUserProfile returns the session user's profile, or nil when no profile
// is stored. Read faults are logged and also yield nil. The error is non-nil
// only when the service is not initialized.
func (s *Service) LoadUserProfile(ctx context.Context, session *identity.Session) (*Profile, error) {
	repo, cfg, ok := s.snapshot()
	if !ok {
		return nil, ErrNotInitialized
	}
	if session == nil {
		return nil, nil
	}

	stored, err := repo.Get(ctx, session.UID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metrics.RecordProfileOp("load", "not_found")
		} else {
			s.metrics.RecordProfileOp("load", "error")
			applog.LogWarn(ctx, "profile load failed", zap.String("userId", session.UID), zap.Error(err))
		}
		return nil, nil
	}

	p := s.resolve(cfg, stored, session)
	s.metrics.RecordProfileOp("load", "success")
	notify(ctx, cfg.OnProfileLoaded, p)
	return p, nil
}

// resolve backfills missing stored fields from session claims and defaults.
func (s *Service) resolve(cfg Config, stored *Profile, session *identity.Session) *Profile {
	p := cloneProfile(stored)
	if p.UID == "" {
		p.UID = session.UID
	}
	if p.Email == "" {
		p.Email = session.Email
	}
	if p.DisplayName == "" {
		p.DisplayName = session.DisplayName
	}
	if p.PhotoURL == nil && session.PhotoURL != "" {
		photo := session.PhotoURL
		p.PhotoURL = &photo
	}
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.LastLoginAt.IsZero() {
		p.LastLoginAt = now
	}
	p.Preferences = mergePreferences(DefaultPreferences(), cfg.DefaultPreferences, stored.Preferences)
	p.Metadata = metadataOrDefault(stored.Metadata, cfg.DefaultMetadata)
	return p
}

func metadataOrDefault(stored, fallback map[string]any) map[string]any {
	switch {
	case stored != nil:
		return maps.Clone(stored)
	case fallback != nil:
		return maps.Clone(fallback)
	default:
		return map[string]any{}
	}
}

// CreateUserProfile stores a new profile built from the session and
// defaults. A non-empty displayName overrides the session's. Persistence
// errors are returned.
func (s *Service) CreateUserProfile(ctx context.Context, session *identity.Session, displayName string) (*Profile, error) {
	repo, cfg, ok := s.snapshot()
	if !ok {
		return nil, ErrNotInitialized
	}
	if session == nil {
		return nil, ErrSessionRequired
	}

	p := &Profile{
		UID:         session.UID,
		Email:       session.Email,
		DisplayName: session.DisplayName,
		Preferences: mergePreferences(DefaultPreferences(), cfg.DefaultPreferences),
		Metadata:    metadataOrDefault(nil, cfg.DefaultMetadata),
	}
	if displayName != "" {
		p.DisplayName = displayName
	}
	if session.PhotoURL != "" {
		photo := session.PhotoURL
		p.PhotoURL = &photo
	}

	created, err := repo.Create(ctx, p)
	if err != nil {
		s.metrics.RecordProfileOp("create", categorizeError(err))
		return nil, err
	}
	s.metrics.RecordProfileOp("create", "success")
	notify(ctx, cfg.OnProfileCreated, created)
	return created, nil
}

// UpdateUserProfile merges params into the stored profile. Errors are
// returned. OnProfileUpdated receives the profile as re-read after the write.
func (s *Service) UpdateUserProfile(ctx context.Context, userID string, params UpdateParams) error {
	repo, cfg, ok := s.snapshot()
	if !ok {
		return ErrNotInitialized
	}

	if err := repo.Update(ctx, userID, params); err != nil {
		s.metrics.RecordProfileOp("update", categorizeError(err))
		return err
	}
	s.metrics.RecordProfileOp("update", "success")

	if cfg.OnProfileUpdated == nil {
		return nil
	}
	stored, err := repo.Get(ctx, userID)
	if err != nil {
		applog.LogWarn(ctx, "re-reading updated profile failed", zap.String("userId", userID), zap.Error(err))
		return nil
	}
	notify(ctx, cfg.OnProfileUpdated, s.resolve(cfg, stored, &identity.Session{UID: userID}))
	return nil
}

// UpdateLastLogin refreshes the last login timestamp. Failures are logged
// and dropped; the error is non-nil only when the service is not initialized.
func (s *Service) UpdateLastLogin(ctx context.Context, userID string) error {
	repo, _, ok := s.snapshot()
	if !ok {
		return ErrNotInitialized
	}
	if err := repo.TouchLastLogin(ctx, userID); err != nil {
		s.metrics.RecordProfileOp("touch_last_login", categorizeError(err))
		applog.LogWarn(ctx, "last login update failed", zap.String("userId", userID), zap.Error(err))
		return nil
	}
	s.metrics.RecordProfileOp("touch_last_login", "success")
	return nil
}

// notify invokes an optional callback, discarding panics.
func notify(ctx context.Context, fn func(context.Context, *Profile), p *Profile) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			applog.LogWarn(ctx, "profile callback panicked", zap.Any("panic", r))
		}
	}()
	fn(ctx, cloneProfile(p))
}
