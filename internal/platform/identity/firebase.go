package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"

	"github.com/janisto/account-lifecycle/internal/platform/auth"
	applog "github.com/janisto/account-lifecycle/internal/platform/logging"
)

const defaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com"

// AdminClient is the subset of the Firebase Admin auth client used here.
type AdminClient interface {
	DeleteUser(ctx context.Context, uid string) error
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// FirebaseProvider implements Provider with Firebase Authentication. Sessions
// come from verified ID tokens placed in the request context by the auth
// middleware; password reauthentication goes through the Identity Toolkit REST
// API because the Admin SDK cannot verify passwords.
type FirebaseProvider struct {
	admin      AdminClient
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures a FirebaseProvider.
type Option func(*FirebaseProvider)

// WithBaseURL sets the Identity Toolkit base URL (useful for testing).
func WithBaseURL(u string) Option {
	return func(p *FirebaseProvider) {
		p.baseURL = strings.TrimRight(u, "/")
	}
}

// WithEmulatorHost routes password checks to the Auth emulator at host:port.
func WithEmulatorHost(host string) Option {
	return func(p *FirebaseProvider) {
		if host != "" {
			p.baseURL = "http://" + host + "/identitytoolkit.googleapis.com"
		}
	}
}

// WithAPIKey sets the Web API key sent with password checks.
func WithAPIKey(key string) Option {
	return func(p *FirebaseProvider) {
		p.apiKey = key
	}
}

// NewFirebaseProvider creates a provider backed by the given admin client.
func NewFirebaseProvider(admin AdminClient, httpClient *http.Client, opts ...Option) *FirebaseProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	p := &FirebaseProvider{
		admin:      admin,
		httpClient: httpClient,
		baseURL:    defaultIdentityToolkitURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CurrentSession maps the verified caller in ctx to a Session.
func (p *FirebaseProvider) CurrentSession(ctx context.Context) *Session {
	return SessionFromUser(auth.UserFromContext(ctx))
}

// SessionFromUser converts verified token claims to a Session. It returns nil for a nil user.
func SessionFromUser(u *auth.User) *Session {
	if u == nil {
		return nil
	}
	return &Session{
		UID:         u.UID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
		Anonymous:   u.IsAnonymous(),
	}
}

// Credential builds a password credential.
func (p *FirebaseProvider) Credential(email, password string) Credential {
	return Credential{Email: email, Password: password}
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
}

type toolkitErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Reauthenticate signs in with the credential and checks that it resolves to
// the session's user.
func (p *FirebaseProvider) Reauthenticate(ctx context.Context, session *Session, cred Credential) error {
	if session == nil {
		return NewError(CodeNoSession, "no current user", nil)
	}
	if cred.Password == "" {
		return NewError(CodeMissingPassword, "password is required", nil)
	}

	body, err := json.Marshal(signInRequest{Email: cred.Email, Password: cred.Password, ReturnSecureToken: true})
	if err != nil {
		return fmt.Errorf("encoding sign-in request: %w", err)
	}

	u := p.baseURL + "/v1/accounts:signInWithPassword"
	if p.apiKey != "" {
		u += "?" + url.Values{"key": {p.apiKey}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return NewError(CodeInternal, "identity toolkit request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var tk toolkitErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&tk); decodeErr != nil {
			return NewError(CodeInternal, fmt.Sprintf("identity toolkit status %d", resp.StatusCode), decodeErr)
		}
		code := toolkitCode(tk.Error.Message)
		applog.LogWarn(ctx, "reauthentication rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("code", code),
		)
		return NewError(code, tk.Error.Message, nil)
	}

	var out signInResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return NewError(CodeInternal, "decoding sign-in response", err)
	}
	if out.LocalID != session.UID {
		return NewError(CodeUserMismatch, "credential belongs to a different user", nil)
	}
	return nil
}

// toolkitCode maps Identity Toolkit error messages to client SDK codes.
// Messages may carry a detail suffix ("TOO_MANY_ATTEMPTS_TRY_LATER : ...").
func toolkitCode(message string) string {
	reason, _, _ := strings.Cut(message, " ")
	switch reason {
	case "INVALID_PASSWORD":
		return CodeWrongPassword
	case "INVALID_LOGIN_CREDENTIALS", "INVALID_EMAIL":
		return CodeInvalidCredential
	case "EMAIL_NOT_FOUND":
		return CodeUserNotFound
	case "USER_DISABLED":
		return CodeUserDisabled
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return CodeTooManyRequests
	case "MISSING_PASSWORD":
		return CodeMissingPassword
	default:
		return CodeInternal
	}
}

// DeleteIdentity deletes the session's Firebase Auth user.
func (p *FirebaseProvider) DeleteIdentity(ctx context.Context, session *Session) error {
	if session == nil {
		return NewError(CodeNoSession, "no current user", nil)
	}
	if err := p.admin.DeleteUser(ctx, session.UID); err != nil {
		if fbauth.IsUserNotFound(err) {
			return NewError(CodeUserNotFound, "user not found", err)
		}
		return NewError(CodeInternal, "deleting user", err)
	}
	return nil
}

// SignOut revokes the session's refresh tokens.
func (p *FirebaseProvider) SignOut(ctx context.Context, session *Session) error {
	if session == nil {
		return NewError(CodeNoSession, "no current user", nil)
	}
	if err := p.admin.RevokeRefreshTokens(ctx, session.UID); err != nil {
		if fbauth.IsUserNotFound(err) {
			return NewError(CodeUserNotFound, "user not found", err)
		}
		return NewError(CodeInternal, "revoking refresh tokens", err)
	}
	return nil
}

// Compile-time interface checks
var (
	_ Provider    = (*FirebaseProvider)(nil)
	_ AdminClient = (*fbauth.Client)(nil)
)
