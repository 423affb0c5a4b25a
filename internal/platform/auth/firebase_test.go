package auth

import (
	"errors"
	"testing"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{name: "lowercase scheme", header: "bearer token123", want: "token123"},
		{name: "mixed case scheme", header: "BeArEr token123", want: "token123"},
		{name: "jwt", header: "Bearer aaa.bbb.ccc", want: "aaa.bbb.ccc"},
		{name: "empty", header: "", wantErr: ErrNoToken},
		{name: "missing scheme", header: "token123", wantErr: ErrInvalidToken},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantErr: ErrInvalidToken},
		{name: "scheme only", header: "Bearer", wantErr: ErrInvalidToken},
		{name: "extra parts", header: "Bearer a b", wantErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractBearerToken(tt.header)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserFromClaims(t *testing.T) {
	user := userFromClaims("uid-1", "password", map[string]any{
		"email":          "jane@example.com",
		"email_verified": true,
		"name":           "Jane",
		"picture":        "https://example.com/jane.png",
	})

	if user.UID != "uid-1" || user.Email != "jane@example.com" || !user.EmailVerified {
		t.Fatalf("unexpected identity fields: %+v", user)
	}
	if user.DisplayName != "Jane" || user.PhotoURL != "https://example.com/jane.png" {
		t.Fatalf("unexpected profile claims: %+v", user)
	}
	if user.IsAnonymous() {
		t.Fatal("password user must not be anonymous")
	}
}

func TestUserFromClaimsAnonymous(t *testing.T) {
	user := userFromClaims("guest-1", "anonymous", map[string]any{})
	if !user.IsAnonymous() {
		t.Fatal("expected anonymous user")
	}
	if user.Email != "" {
		t.Fatalf("expected empty email, got %q", user.Email)
	}

	var nilUser *User
	if nilUser.IsAnonymous() {
		t.Fatal("nil user must not be anonymous")
	}
}
