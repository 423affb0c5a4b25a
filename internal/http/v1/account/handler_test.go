package account

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/janisto/account-lifecycle/internal/platform/auth"
	"github.com/janisto/account-lifecycle/internal/platform/identity"
	appmiddleware "github.com/janisto/account-lifecycle/internal/platform/middleware"
	"github.com/janisto/account-lifecycle/internal/platform/respond"
	accountsvc "github.com/janisto/account-lifecycle/internal/service/account"
)

type harness struct {
	router   chi.Router
	provider *identity.MockProvider
	svc      *accountsvc.Service
	deleted  []string
}

func newHarness(t *testing.T, dataErr error) *harness {
	t.Helper()
	h := &harness{}
	h.provider = identity.NewMockProvider(&identity.Session{
		UID:   auth.TestUser().UID,
		Email: auth.TestUser().Email,
	})

	svc, err := accountsvc.NewService(h.provider, accountsvc.Config{
		OnDeleteUserData: func(_ context.Context, userID string) error {
			h.deleted = append(h.deleted, userID)
			return dataErr
		},
		OnClearLocalStorage: func(context.Context) error { return nil },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	h.svc = svc

	router := chi.NewRouter()
	router.Use(appmiddleware.RequestID(), respond.Recoverer())
	api := humachi.New(router, huma.DefaultConfig("AccountTest", "test"))
	api.UseMiddleware(auth.NewAuthMiddleware(api, &auth.MockVerifier{User: auth.TestUser()}))
	Register(api, svc)
	h.router = router
	return h
}

func (h *harness) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer valid-token")
	}
	resp := httptest.NewRecorder()
	h.router.ServeHTTP(resp, req)
	return resp
}

func decodeProblem(t *testing.T, resp *httptest.ResponseRecorder) Problem {
	t.Helper()
	var p Problem
	if err := json.Unmarshal(resp.Body.Bytes(), &p); err != nil {
		t.Fatalf("json unmarshal: %v: %s", err, resp.Body.String())
	}
	return p
}

func TestDeleteAccountSuccess(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.do(http.MethodDelete, "/account/test-user-123", `{"password":"secret"}`, true)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(h.deleted) != 1 || h.deleted[0] != "test-user-123" {
		t.Fatalf("expected user data deleted, got %v", h.deleted)
	}
	creds := h.provider.Credentials()
	if len(creds) != 1 || creds[0].Email != "test@example.com" || creds[0].Password != "secret" {
		t.Fatalf("unexpected credentials %+v", creds)
	}
}

func TestDeleteAccountFailures(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		reauthErr  error
		dataErr    error
		noSession  bool
		wantStatus int
		wantCode   string
		wantReauth bool
	}{
		{
			name:       "wrong password",
			path:       "/account/test-user-123",
			reauthErr:  identity.NewError(identity.CodeWrongPassword, "wrong password", nil),
			wantStatus: http.StatusForbidden,
			wantCode:   accountsvc.CodeWrongPassword,
			wantReauth: true,
		},
		{
			name:       "provider rejects reauth",
			path:       "/account/test-user-123",
			reauthErr:  identity.NewError(identity.CodeTooManyRequests, "too many attempts", nil),
			wantStatus: http.StatusForbidden,
			wantCode:   accountsvc.CodeReauthFailed,
			wantReauth: true,
		},
		{
			name:       "other user",
			path:       "/account/someone-else",
			wantStatus: http.StatusForbidden,
			wantCode:   accountsvc.CodeAuthRequired,
		},
		{
			name:       "no session",
			path:       "/account/test-user-123",
			noSession:  true,
			wantStatus: http.StatusUnauthorized,
			wantCode:   accountsvc.CodeAuthRequired,
		},
		{
			name:       "user data failure",
			path:       "/account/test-user-123",
			dataErr:    errors.New("firestore unavailable"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   accountsvc.CodeDeleteFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.dataErr)
			h.provider.ReauthErr = tt.reauthErr
			if tt.noSession {
				h.provider.Session = nil
			}

			resp := h.do(http.MethodDelete, tt.path, `{"password":"secret"}`, true)

			if resp.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, resp.Code, resp.Body.String())
			}
			p := decodeProblem(t, resp)
			if p.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, p.Code)
			}
			if p.RequiresReauth != tt.wantReauth {
				t.Errorf("expected requiresReauth %v, got %v", tt.wantReauth, p.RequiresReauth)
			}
			if p.Status != tt.wantStatus {
				t.Errorf("expected problem status %d, got %d", tt.wantStatus, p.Status)
			}
		})
	}
}

func TestDeleteAccountWrongPasswordCarriesProviderCode(t *testing.T) {
	h := newHarness(t, nil)
	h.provider.ReauthErr = identity.NewError(identity.CodeInvalidCredential, "invalid", nil)

	resp := h.do(http.MethodDelete, "/account/test-user-123", `{"password":"nope"}`, true)

	p := decodeProblem(t, resp)
	if p.ProviderCode != identity.CodeInvalidCredential {
		t.Fatalf("expected provider code %s, got %q", identity.CodeInvalidCredential, p.ProviderCode)
	}
	if len(h.deleted) != 0 {
		t.Fatal("expected no data deleted after failed reauthentication")
	}
}

func TestDeleteAccountGuestNeedsNoPassword(t *testing.T) {
	h := newHarness(t, nil)
	h.provider.Session = &identity.Session{UID: "test-user-123", Anonymous: true}

	resp := h.do(http.MethodDelete, "/account/test-user-123", `{}`, true)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(h.provider.Credentials()) != 0 {
		t.Fatal("expected no reauthentication for guest")
	}
}

func TestDeleteAccountUnauthorized(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.do(http.MethodDelete, "/account/test-user-123", `{"password":"secret"}`, false)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	if len(h.provider.Calls()) != 0 {
		t.Fatalf("expected no provider calls, got %v", h.provider.Calls())
	}
}

func TestDeleteAccountNotInitialized(t *testing.T) {
	h := newHarness(t, nil)
	h.svc.Reset()

	resp := h.do(http.MethodDelete, "/account/test-user-123", `{"password":"secret"}`, true)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", resp.Code, resp.Body.String())
	}
	if p := decodeProblem(t, resp); p.Code != accountsvc.CodeNotInitialized {
		t.Fatalf("expected NOT_INITIALIZED, got %s", p.Code)
	}
}

func TestLogout(t *testing.T) {
	tests := []struct {
		name        string
		signOutErr  error
		wantSuccess bool
		wantCodes   []string
	}{
		{name: "success", wantSuccess: true},
		{
			name:       "sign out fails",
			signOutErr: identity.NewError(identity.CodeInternal, "revoke failed", nil),
			wantCodes:  []string{accountsvc.CodeSignOutFailed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.provider.SignOutErr = tt.signOutErr

			resp := h.do(http.MethodPost, "/account/logout", "", true)

			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
			}
			var body struct {
				Success bool          `json:"success"`
				Errors  []LogoutError `json:"errors"`
			}
			if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
				t.Fatalf("json unmarshal: %v", err)
			}
			if body.Success != tt.wantSuccess {
				t.Fatalf("expected success %v, got %v", tt.wantSuccess, body.Success)
			}
			if len(body.Errors) != len(tt.wantCodes) {
				t.Fatalf("expected %d errors, got %+v", len(tt.wantCodes), body.Errors)
			}
			for i, code := range tt.wantCodes {
				if body.Errors[i].Code != code {
					t.Errorf("error %d: expected %s, got %s", i, code, body.Errors[i].Code)
				}
			}
		})
	}
}

func TestLogoutNotInitialized(t *testing.T) {
	h := newHarness(t, nil)
	h.svc.Reset()

	resp := h.do(http.MethodPost, "/account/logout", "", true)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}
