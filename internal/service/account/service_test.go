package account

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/janisto/account-lifecycle/internal/platform/identity"
)

type reported struct {
	err   error
	label string
}

// harness records every callback invocation in order.
type harness struct {
	mu       sync.Mutex
	events   []string
	reports  []reported
	provider *identity.MockProvider

	deleteUserDataErr error
	clearStorageErr   error
	accountDeletedErr error
}

func newHarness() *harness {
	return &harness{
		provider: identity.NewMockProvider(&identity.Session{UID: "u1", Email: "jane@example.com"}),
	}
}

func (h *harness) record(event string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *harness) config() Config {
	return Config{
		OnDeleteUserData: func(_ context.Context, userID string) error {
			h.record("deleteUserData:" + userID)
			return h.deleteUserDataErr
		},
		OnClearLocalStorage: func(context.Context) error {
			h.record("clearLocalStorage")
			return h.clearStorageErr
		},
		OnAccountDeleted: func(_ context.Context, userID string) error {
			h.record("accountDeleted:" + userID)
			return h.accountDeletedErr
		},
		OnDeleteError: func(_ context.Context, err error, label string) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.reports = append(h.reports, reported{err: err, label: label})
		},
	}
}

func (h *harness) labels() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.reports))
	for _, r := range h.reports {
		out = append(out, r.label)
	}
	return out
}

func (h *harness) service(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(h.provider, h.config(), opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

type fakeMetrics struct {
	mu        sync.Mutex
	deletions []string
	logouts   []bool
}

func (f *fakeMetrics) RecordDeletion(outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletions = append(f.deletions, outcome)
}
func (f *fakeMetrics) RecordStepFailure(string)       {}
func (f *fakeMetrics) RecordProfileOp(string, string) {}
func (f *fakeMetrics) RecordRateLimited(string)       {}
func (f *fakeMetrics) RecordLogout(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts = append(f.logouts, ok)
}

func TestInitialize(t *testing.T) {
	h := newHarness()
	valid := h.config()

	tests := []struct {
		name     string
		provider identity.Provider
		cfg      Config
	}{
		{"nil provider", nil, valid},
		{"missing OnDeleteUserData", h.provider, Config{OnClearLocalStorage: valid.OnClearLocalStorage}},
		{"missing OnClearLocalStorage", h.provider, Config{OnDeleteUserData: valid.OnDeleteUserData}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(tt.provider, tt.cfg)
			if !errors.Is(err, ErrNotInitialized) {
				t.Fatalf("expected ErrNotInitialized, got %v", err)
			}
			var ae *Error
			if !errors.As(err, &ae) || ae.Code() != CodeNotInitialized {
				t.Fatalf("expected NOT_INITIALIZED code, got %v", err)
			}
		})
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	h := newHarness()
	svc := h.service(t)

	if err := svc.Initialize(h.provider, h.config()); err != nil {
		t.Fatalf("second initialize failed: %v", err)
	}
	if !svc.IsInitialized() {
		t.Fatal("expected service to be initialized")
	}
}

func TestInitializeFailureKeepsPreviousState(t *testing.T) {
	h := newHarness()
	svc := h.service(t)

	if err := svc.Initialize(h.provider, Config{}); err == nil {
		t.Fatal("expected error for empty config")
	}
	if !svc.IsInitialized() {
		t.Fatal("expected previous configuration to be kept")
	}
}

func TestResetRequiresReinitialize(t *testing.T) {
	h := newHarness()
	svc := h.service(t)

	svc.Reset()
	if svc.IsInitialized() {
		t.Fatal("expected service to be uninitialized after reset")
	}

	res, err := svc.DeleteAccount(context.Background(), "u1", "pw")
	if !errors.Is(err, ErrNotInitialized) || res != nil {
		t.Fatalf("expected ErrNotInitialized, got %v / %+v", err, res)
	}
	if _, err := svc.Logout(context.Background(), "u1"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized from Logout, got %v", err)
	}
	if len(h.provider.Calls()) != 0 {
		t.Fatalf("expected no provider calls, got %v", h.provider.Calls())
	}
}

func TestDeleteAccountRequiresMatchingSession(t *testing.T) {
	tests := []struct {
		name    string
		session *identity.Session
	}{
		{"no session", nil},
		{"different user", &identity.Session{UID: "someone-else", Email: "x@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.provider.Session = tt.session
			svc := h.service(t)

			res, err := svc.DeleteAccount(context.Background(), "u1", "pw")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Success || res.Error == nil || res.Error.Code != CodeAuthRequired {
				t.Fatalf("expected AUTH_REQUIRED, got %+v", res)
			}
			if res.RequiresReauth {
				t.Fatal("expected RequiresReauth false")
			}
			if calls := h.provider.Calls(); len(calls) != 0 {
				t.Fatalf("expected no external calls, got %v", calls)
			}
			if len(h.events) != 0 || len(h.reports) != 0 {
				t.Fatalf("expected no callbacks, got %v / %v", h.events, h.labels())
			}
		})
	}
}

func TestDeleteAccountWrongPassword(t *testing.T) {
	for _, code := range []string{identity.CodeWrongPassword, identity.CodeInvalidCredential} {
		t.Run(code, func(t *testing.T) {
			h := newHarness()
			h.provider.ReauthErr = identity.NewError(code, "raw provider message", nil)
			svc := h.service(t)

			res, err := svc.DeleteAccount(context.Background(), "u1", "bad")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Success || !res.RequiresReauth {
				t.Fatalf("expected reauth failure, got %+v", res)
			}
			if res.Error.Code != CodeWrongPassword {
				t.Fatalf("expected WRONG_PASSWORD, got %s", res.Error.Code)
			}
			if res.Error.Message != "Incorrect password. Please try again." {
				t.Fatalf("unexpected message %q", res.Error.Message)
			}
			if res.Error.ProviderCode != code {
				t.Fatalf("expected provider code %s, got %s", code, res.Error.ProviderCode)
			}
			if len(h.events) != 0 {
				t.Fatalf("expected no deletion steps, got %v", h.events)
			}
			if got := h.labels(); !slices.Equal(got, []string{"account.delete.reauthenticate"}) {
				t.Fatalf("unexpected reports %v", got)
			}
			if !errors.Is(res.Err(), ErrWrongPassword) {
				t.Fatalf("expected result to map to ErrWrongPassword, got %v", res.Err())
			}
		})
	}
}

func TestDeleteAccountReauthFailed(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantMessage  string
		providerCode string
	}{
		{
			name:         "provider error keeps message",
			err:          identity.NewError(identity.CodeTooManyRequests, "TOO_MANY_ATTEMPTS_TRY_LATER", nil),
			wantMessage:  "TOO_MANY_ATTEMPTS_TRY_LATER",
			providerCode: identity.CodeTooManyRequests,
		},
		{
			name:        "foreign error uses default message",
			err:         errors.New("dial tcp: timeout"),
			wantMessage: "Reauthentication failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.provider.ReauthErr = tt.err
			svc := h.service(t)

			res, _ := svc.DeleteAccount(context.Background(), "u1", "pw")
			if res.Error == nil || res.Error.Code != CodeReauthFailed || !res.RequiresReauth {
				t.Fatalf("expected REAUTH_FAILED, got %+v", res)
			}
			if res.Error.Message != tt.wantMessage {
				t.Fatalf("expected message %q, got %q", tt.wantMessage, res.Error.Message)
			}
			if res.Error.ProviderCode != tt.providerCode {
				t.Fatalf("expected provider code %q, got %q", tt.providerCode, res.Error.ProviderCode)
			}
			if !errors.Is(res.Err(), ErrReauthRequired) {
				t.Fatalf("expected ErrReauthRequired, got %v", res.Err())
			}
		})
	}
}

func TestDeleteAccountPassesSessionEmailToCredential(t *testing.T) {
	h := newHarness()
	svc := h.service(t)

	if _, err := svc.DeleteAccount(context.Background(), "u1", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	creds := h.provider.Credentials()
	if len(creds) != 1 || creds[0].Email != "jane@example.com" || creds[0].Password != "secret" {
		t.Fatalf("unexpected credentials %+v", creds)
	}
}

func TestDeleteAccountEmailNotFound(t *testing.T) {
	h := newHarness()
	h.provider.Session = &identity.Session{UID: "u1"}
	svc := h.service(t)

	res, _ := svc.DeleteAccount(context.Background(), "u1", "pw")
	if res.Error == nil || res.Error.Code != CodeEmailNotFound || !res.RequiresReauth {
		t.Fatalf("expected EMAIL_NOT_FOUND, got %+v", res)
	}
	if len(h.provider.Calls()) != 0 {
		t.Fatalf("expected no provider calls, got %v", h.provider.Calls())
	}
}

func TestDeleteAccountGuestSkipsReauthentication(t *testing.T) {
	h := newHarness()
	h.provider.Session = &identity.Session{UID: "u1", Anonymous: true}
	svc := h.service(t)

	res, _ := svc.DeleteAccount(context.Background(), "u1", "")
	if !res.Success {
		t.Fatalf("expected success, got %+v", res.Error)
	}
	if got := h.provider.Calls(); !slices.Equal(got, []string{"DeleteIdentity"}) {
		t.Fatalf("expected only DeleteIdentity, got %v", got)
	}
}

func TestDeleteAccountSuccessRunsStepsInOrder(t *testing.T) {
	h := newHarness()
	rec := &fakeMetrics{}
	svc := h.service(t, WithMetrics(rec))

	res, err := svc.DeleteAccount(context.Background(), "u1", "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success || res.Error != nil || res.RequiresReauth {
		t.Fatalf("expected clean success, got %+v", res)
	}

	wantEvents := []string{"deleteUserData:u1", "clearLocalStorage", "accountDeleted:u1"}
	if !slices.Equal(h.events, wantEvents) {
		t.Fatalf("expected events %v, got %v", wantEvents, h.events)
	}
	if got := h.provider.Calls(); !slices.Equal(got, []string{"Reauthenticate", "DeleteIdentity"}) {
		t.Fatalf("unexpected provider calls %v", got)
	}
	if len(h.reports) != 0 {
		t.Fatalf("expected no reports, got %v", h.labels())
	}
	if !slices.Equal(rec.deletions, []string{"success"}) {
		t.Fatalf("unexpected metrics %v", rec.deletions)
	}
}

func TestDeleteAccountClearLocalStorageFailureIsNonFatal(t *testing.T) {
	h := newHarness()
	h.clearStorageErr = errors.New("disk busy")
	svc := h.service(t)

	res, err := svc.DeleteAccount(context.Background(), "u1", "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res.Error)
	}
	if len(h.reports) != 1 {
		t.Fatalf("expected exactly one report, got %v", h.labels())
	}
	if !strings.Contains(h.reports[0].label, "clearLocalStorage") {
		t.Fatalf("unexpected report label %q", h.reports[0].label)
	}
	if !errors.Is(h.reports[0].err, h.clearStorageErr) {
		t.Fatalf("expected raw error to be reported, got %v", h.reports[0].err)
	}
	if got := h.provider.Calls(); !slices.Contains(got, "DeleteIdentity") {
		t.Fatalf("expected identity deletion to run, got %v", got)
	}
}

func TestDeleteAccountNotifyFailureIsIgnored(t *testing.T) {
	h := newHarness()
	h.accountDeletedErr = errors.New("webhook down")
	svc := h.service(t)

	res, _ := svc.DeleteAccount(context.Background(), "u1", "pw")
	if !res.Success {
		t.Fatalf("expected success, got %+v", res.Error)
	}
	if len(h.reports) != 0 {
		t.Fatalf("expected notify failure not to be reported, got %v", h.labels())
	}
}

func TestDeleteAccountWithoutOptionalCallbacks(t *testing.T) {
	h := newHarness()
	cfg := h.config()
	cfg.OnAccountDeleted = nil
	cfg.OnDeleteError = nil
	h.clearStorageErr = errors.New("ignored")

	svc, err := NewService(h.provider, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, _ := svc.DeleteAccount(context.Background(), "u1", "pw")
	if !res.Success {
		t.Fatalf("expected success, got %+v", res.Error)
	}
}

func TestDeleteAccountUserDataFailureAborts(t *testing.T) {
	h := newHarness()
	h.deleteUserDataErr = errors.New("permission denied")
	svc := h.service(t)

	res, err := svc.DeleteAccount(context.Background(), "u1", "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success || res.RequiresReauth {
		t.Fatalf("expected non-reauth failure, got %+v", res)
	}
	if code := res.Error.Code; code == CodeAuthRequired || code == CodeReauthFailed || code != CodeDeleteFailed {
		t.Fatalf("unexpected code %s", code)
	}
	if res.Error.Message != "Failed to delete user data: permission denied" {
		t.Fatalf("unexpected message %q", res.Error.Message)
	}
	if !slices.Equal(h.events, []string{"deleteUserData:u1"}) {
		t.Fatalf("expected later steps not to run, got %v", h.events)
	}
	if got := h.provider.Calls(); !slices.Equal(got, []string{"Reauthenticate"}) {
		t.Fatalf("expected identity to be kept, got %v", got)
	}
	wantLabels := []string{"account.delete.deleteUserData", "account.delete"}
	if got := h.labels(); !slices.Equal(got, wantLabels) {
		t.Fatalf("expected reports %v, got %v", wantLabels, got)
	}
	if !errors.Is(h.reports[1].err, ErrDeletionFailed) || !errors.Is(h.reports[1].err, h.deleteUserDataErr) {
		t.Fatalf("expected wrapped deletion error, got %v", h.reports[1].err)
	}
	if !errors.Is(res.Err(), ErrDeletionFailed) {
		t.Fatalf("expected ErrDeletionFailed, got %v", res.Err())
	}
}

func TestDeleteAccountIdentityFailure(t *testing.T) {
	h := newHarness()
	h.provider.DeleteErr = identity.NewError(identity.CodeInternal, "deleting user", errors.New("backend"))
	svc := h.service(t)

	res, _ := svc.DeleteAccount(context.Background(), "u1", "pw")
	if res.Success || res.Error.Code != CodeDeleteFailed {
		t.Fatalf("expected DELETE_FAILED, got %+v", res)
	}
	if !strings.HasPrefix(res.Error.Message, "Failed to delete auth account: ") {
		t.Fatalf("unexpected message %q", res.Error.Message)
	}
	if slices.Contains(h.events, "accountDeleted:u1") {
		t.Fatal("expected notify not to run")
	}
	wantLabels := []string{"account.delete.deleteIdentity", "account.delete"}
	if got := h.labels(); !slices.Equal(got, wantLabels) {
		t.Fatalf("expected reports %v, got %v", wantLabels, got)
	}
}

func TestDeleteAccountSessionLostBeforeIdentityDeletion(t *testing.T) {
	h := newHarness()
	h.provider.ClearSessionOnReauth = true
	svc := h.service(t)

	res, _ := svc.DeleteAccount(context.Background(), "u1", "pw")
	if res.Success || res.Error.Message != "No authenticated user found" {
		t.Fatalf("expected missing session failure, got %+v", res)
	}
	if slices.Contains(h.provider.Calls(), "DeleteIdentity") {
		t.Fatal("expected identity deletion to be skipped")
	}
}

func TestDeleteAccountRecoversPanics(t *testing.T) {
	h := newHarness()
	cfg := h.config()
	cfg.OnClearLocalStorage = func(context.Context) error { panic("storage exploded") }
	cfg.OnDeleteError = func(context.Context, error, string) { panic("hook exploded") }
	cfg.OnAccountDeleted = func(context.Context, string) error { panic("notify exploded") }

	svc, err := NewService(h.provider, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, _ := svc.DeleteAccount(context.Background(), "u1", "pw")
	if !res.Success {
		t.Fatalf("expected success despite panics, got %+v", res.Error)
	}

	cfg.OnDeleteUserData = func(context.Context, string) error { panic("data exploded") }
	if err := svc.Initialize(h.provider, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, _ = svc.DeleteAccount(context.Background(), "u1", "pw")
	if res.Success || res.Error.Code != CodeDeleteFailed {
		t.Fatalf("expected DELETE_FAILED, got %+v", res)
	}
	if !strings.Contains(res.Error.Message, "data exploded") {
		t.Fatalf("expected panic value in message, got %q", res.Error.Message)
	}
}

func TestDeleteAccountSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	h := newHarness()
	svc := h.service(t, WithTracerProvider(tp))
	if _, err := svc.DeleteAccount(context.Background(), "u1", "pw"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	want := []string{
		"account.delete.reauthenticate",
		"account.delete.deleteUserData",
		"account.delete.clearLocalStorage",
		"account.delete.deleteIdentity",
		"account.delete.notify",
		"account.delete",
	}
	if !slices.Equal(names, want) {
		t.Fatalf("expected spans %v, got %v", want, names)
	}
}

func TestLogout(t *testing.T) {
	tests := []struct {
		name       string
		signOutErr error
		clearErr   error
		wantCodes  []string
	}{
		{"success", nil, nil, nil},
		{"sign out fails", identity.NewError(identity.CodeInternal, "revoking", nil), nil, []string{CodeSignOutFailed}},
		{"clear fails", nil, errors.New("busy"), []string{CodeClearStorageFailed}},
		{"both fail", errors.New("x"), errors.New("y"), []string{CodeSignOutFailed, CodeClearStorageFailed}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.provider.SignOutErr = tt.signOutErr
			h.clearStorageErr = tt.clearErr
			rec := &fakeMetrics{}
			svc := h.service(t, WithMetrics(rec))

			res, err := svc.Logout(context.Background(), "u1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Success != (len(tt.wantCodes) == 0) {
				t.Fatalf("unexpected success %v with errors %+v", res.Success, res.Errors)
			}
			var codes []string
			for _, e := range res.Errors {
				codes = append(codes, e.Code)
			}
			if !slices.Equal(codes, tt.wantCodes) {
				t.Fatalf("expected codes %v, got %v", tt.wantCodes, codes)
			}
			if !slices.Equal(h.events, []string{"clearLocalStorage"}) {
				t.Fatalf("expected local storage to be cleared, got %v", h.events)
			}
			if len(rec.logouts) != 1 || rec.logouts[0] != res.Success {
				t.Fatalf("unexpected logout metrics %v", rec.logouts)
			}
		})
	}
}

func TestLogoutRequiresMatchingSession(t *testing.T) {
	h := newHarness()
	svc := h.service(t)

	res, err := svc.Logout(context.Background(), "other")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success || len(res.Errors) != 1 || res.Errors[0].Code != CodeAuthRequired {
		t.Fatalf("expected AUTH_REQUIRED, got %+v", res)
	}
	if len(h.provider.Calls()) != 0 || len(h.events) != 0 {
		t.Fatal("expected no side effects")
	}
}

func TestResultErrKinds(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{CodeAuthRequired, ErrAuthRequired},
		{CodeEmailNotFound, ErrReauthRequired},
		{CodeReauthFailed, ErrReauthRequired},
		{CodeWrongPassword, ErrWrongPassword},
		{CodeNotInitialized, ErrNotInitialized},
		{CodeDeleteFailed, ErrDeletionFailed},
		{"SOMETHING_ELSE", ErrDeletionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := failed(tt.code, "msg").Err()
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if succeeded().Err() != nil {
		t.Fatal("expected nil error for success")
	}
}

func TestErrorCodeAndMessage(t *testing.T) {
	err := newError(KindDeletionFailed, "", nil)
	if err.Error() != ErrDeletionFailed.Error() {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if codeOf(errors.New("plain")) != CodeDeleteFailed {
		t.Fatal("expected DELETE_FAILED for foreign errors")
	}
	if codeOf(newError(KindWrongPassword, "x", nil)) != CodeWrongPassword {
		t.Fatal("expected WRONG_PASSWORD")
	}
}
