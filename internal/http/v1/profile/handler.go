package profile

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/janisto/account-lifecycle/internal/platform/auth"
	"github.com/janisto/account-lifecycle/internal/platform/identity"
	"github.com/janisto/account-lifecycle/internal/platform/timeutil"
	profilesvc "github.com/janisto/account-lifecycle/internal/service/profile"
)

// Service is the profile behavior the handlers depend on.
type Service interface {
	LoadUserProfile(ctx context.Context, session *identity.Session) (*profilesvc.Profile, error)
	CreateUserProfile(ctx context.Context, session *identity.Session, displayName string) (*profilesvc.Profile, error)
	UpdateUserProfile(ctx context.Context, userID string, params profilesvc.UpdateParams) error
	UpdateLastLogin(ctx context.Context, userID string) error
}

// Register registers profile endpoints.
func Register(api huma.API, svc Service, prefix string) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-profile",
		Method:        http.MethodPost,
		Path:          "/profile",
		Summary:       "Create user profile",
		Description:   "Creates the authenticated user's profile from identity claims and configured defaults.",
		Tags:          []string{"Profile"},
		DefaultStatus: http.StatusCreated,
		Security: []map[string][]string{
			{"bearerAuth": {}},
		},
	}, func(ctx context.Context, input *ProfileCreateInput) (*ProfileCreateOutput, error) {
		session := identity.SessionFromUser(auth.UserFromContext(ctx))

		profile, err := svc.CreateUserProfile(ctx, session, input.Body.DisplayName)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return &ProfileCreateOutput{
			Location: prefix + "/profile",
			Body:     toHTTPProfile(profile),
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-profile",
		Method:      http.MethodGet,
		Path:        "/profile",
		Summary:     "Get current user's profile",
		Description: "Retrieves the authenticated user's profile with identity claims and defaults filled in.",
		Tags:        []string{"Profile"},
		Security: []map[string][]string{
			{"bearerAuth": {}},
		},
	}, func(ctx context.Context, _ *ProfileGetInput) (*ProfileGetOutput, error) {
		session := identity.SessionFromUser(auth.UserFromContext(ctx))

		profile, err := svc.LoadUserProfile(ctx, session)
		if err != nil {
			return nil, mapServiceError(err)
		}
		if profile == nil {
			return nil, huma.Error404NotFound("profile not found")
		}
		return &ProfileGetOutput{
			Body: toHTTPProfile(profile),
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "update-profile",
		Method:        http.MethodPatch,
		Path:          "/profile",
		Summary:       "Update current user's profile",
		Description:   "Updates fields on the authenticated user's profile. Preference and metadata keys are merged.",
		Tags:          []string{"Profile"},
		DefaultStatus: http.StatusNoContent,
		Security: []map[string][]string{
			{"bearerAuth": {}},
		},
	}, func(ctx context.Context, input *ProfileUpdateInput) (*struct{}, error) {
		user := auth.UserFromContext(ctx)

		params := profilesvc.UpdateParams{
			Email:       input.Body.Email,
			DisplayName: input.Body.DisplayName,
			PhotoURL:    input.Body.PhotoURL,
			Preferences: input.Body.Preferences,
			Metadata:    input.Body.Metadata,
		}
		if params.IsEmpty() {
			return nil, huma.Error422UnprocessableEntity("at least one field must be provided")
		}

		if err := svc.UpdateUserProfile(ctx, user.UID, params); err != nil {
			return nil, mapServiceError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "record-login",
		Method:        http.MethodPost,
		Path:          "/profile/login",
		Summary:       "Record login",
		Description:   "Refreshes the authenticated user's last login timestamp. Best effort.",
		Tags:          []string{"Profile"},
		DefaultStatus: http.StatusNoContent,
		Security: []map[string][]string{
			{"bearerAuth": {}},
		},
	}, func(ctx context.Context, _ *ProfileLoginInput) (*struct{}, error) {
		user := auth.UserFromContext(ctx)

		if err := svc.UpdateLastLogin(ctx, user.UID); err != nil {
			return nil, mapServiceError(err)
		}
		return nil, nil
	})
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, profilesvc.ErrNotFound):
		return huma.Error404NotFound("profile not found")
	case errors.Is(err, profilesvc.ErrAlreadyExists):
		return huma.Error409Conflict("profile already exists")
	case errors.Is(err, profilesvc.ErrSessionRequired):
		return huma.Error401Unauthorized("authentication required")
	case errors.Is(err, profilesvc.ErrNotInitialized):
		return huma.Error503ServiceUnavailable("profile service is not initialized")
	default:
		return huma.Error500InternalServerError("internal error")
	}
}

func toHTTPProfile(p *profilesvc.Profile) Profile {
	return Profile{
		UID:         p.UID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		PhotoURL:    p.PhotoURL,
		CreatedAt:   timeutil.NewTime(p.CreatedAt),
		LastLoginAt: timeutil.NewTime(p.LastLoginAt),
		Preferences: p.Preferences,
		Metadata:    p.Metadata,
	}
}
