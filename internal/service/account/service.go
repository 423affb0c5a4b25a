// Package account orchestrates account deletion and logout against an
// identity provider and application supplied callbacks.
package account

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/janisto/account-lifecycle/internal/platform/identity"
	applog "github.com/janisto/account-lifecycle/internal/platform/logging"
	"github.com/janisto/account-lifecycle/internal/platform/metrics"
)

const tracerName = "github.com/janisto/account-lifecycle/internal/service/account"

// Service gates account operations on initialization and session identity.
// Concurrent DeleteAccount calls for the same user are not serialized.
type Service struct {
	mu       sync.RWMutex
	provider identity.Provider
	cfg      *Config

	tracer  trace.Tracer
	metrics metrics.Recorder
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

// WithTracerProvider sets the tracer provider used for deletion spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewService creates an initialized Service.
func NewService(provider identity.Provider, cfg Config, opts ...Option) (*Service, error) {
	s := &Service{
		tracer:  otel.Tracer(tracerName),
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Initialize(provider, cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Initialize replaces the provider and callbacks. It fails with a
// KindNotInitialized error when the provider or a required callback is missing.
func (s *Service) Initialize(provider identity.Provider, cfg Config) error {
	if provider == nil {
		return newError(KindNotInitialized, "identity provider is required", nil)
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = provider
	s.cfg = &cfg
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	return nil
}

// IsInitialized reports whether a provider and callbacks are set.
func (s *Service) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider != nil && s.cfg != nil
}

// Reset clears the provider and callbacks.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = nil
	s.cfg = nil
}

func (s *Service) snapshot() (identity.Provider, Config, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.provider == nil || s.cfg == nil {
		return nil, Config{}, false
	}
	return s.provider, *s.cfg, true
}

// DeleteAccount deletes userID's data and identity after reauthenticating with password.
//
// Expected failures are reported in the result. The returned error is non-nil
// only when the service is not initialized.
func (s *Service) DeleteAccount(ctx context.Context, userID, password string) (*DeleteAccountResult, error) {
	provider, cfg, ok := s.snapshot()
	if !ok {
		return nil, newError(KindNotInitialized, "", nil)
	}

	start := time.Now()
	ctx, span := s.tracer.Start(ctx, contextDelete, trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	result := s.deleteAccount(ctx, provider, cfg, userID, password)

	span.SetAttributes(attribute.String("account.delete.outcome", result.outcome()))
	if !result.Success {
		span.SetStatus(otelcodes.Error, result.Error.Message)
	}
	s.metrics.RecordDeletion(result.outcome(), time.Since(start))

	auditResult := applog.AuditSuccess
	var details map[string]any
	if !result.Success {
		auditResult = applog.AuditFailure
		details = map[string]any{"code": result.Error.Code, "requiresReauth": result.RequiresReauth}
	}
	applog.LogAuditEvent(ctx, "delete", userID, "account", userID, auditResult, details)

	return result, nil
}

func (s *Service) deleteAccount(
	ctx context.Context,
	provider identity.Provider,
	cfg Config,
	userID, password string,
) *DeleteAccountResult {
	session := provider.CurrentSession(ctx)
	if session == nil || session.UID != userID {
		return failed(CodeAuthRequired, "User not authenticated")
	}

	d := &deletion{
		provider: provider,
		cfg:      cfg,
		tracer:   s.tracer,
		userID:   userID,
		session:  session,
	}
	result, err := d.run(ctx, password)
	if err != nil {
		report(ctx, cfg, err, contextDelete)
		return failed(codeOf(err), err.Error())
	}
	return result
}

// Logout signs the current session out at the provider and clears local
// state. Every failure is collected; the returned error is non-nil only when
// the service is not initialized.
func (s *Service) Logout(ctx context.Context, userID string) (*LogoutResult, error) {
	provider, cfg, ok := s.snapshot()
	if !ok {
		return nil, newError(KindNotInitialized, "", nil)
	}

	ctx, span := s.tracer.Start(ctx, "account.logout", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	session := provider.CurrentSession(ctx)
	if session == nil || session.UID != userID {
		s.metrics.RecordLogout(false)
		return &LogoutResult{Errors: []ResultError{{Message: "User not authenticated", Code: CodeAuthRequired}}}, nil
	}

	var errs []ResultError
	if err := safeCall(func() error { return provider.SignOut(ctx, session) }); err != nil {
		applog.LogWarn(ctx, "sign out failed", zap.Error(err))
		errs = append(errs, ResultError{
			Message:      "Failed to sign out: " + err.Error(),
			Code:         CodeSignOutFailed,
			ProviderCode: identity.CodeOf(err),
		})
	}
	if err := safeCall(func() error { return cfg.OnClearLocalStorage(ctx) }); err != nil {
		applog.LogWarn(ctx, "clearing local storage failed", zap.Error(err))
		errs = append(errs, ResultError{
			Message: "Failed to clear local storage: " + err.Error(),
			Code:    CodeClearStorageFailed,
		})
	}

	result := &LogoutResult{Success: len(errs) == 0, Errors: errs}
	if !result.Success {
		span.SetStatus(otelcodes.Error, "logout incomplete")
	}
	s.metrics.RecordLogout(result.Success)

	auditResult := applog.AuditSuccess
	if !result.Success {
		auditResult = applog.AuditFailure
	}
	applog.LogAuditEvent(ctx, "logout", userID, "session", userID, auditResult, nil)

	return result, nil
}
