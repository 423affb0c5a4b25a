package account

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/janisto/account-lifecycle/internal/platform/auth"
	accountsvc "github.com/janisto/account-lifecycle/internal/service/account"
)

// Operation IDs
const (
	OperationDeleteAccount = "delete-account"
	OperationLogout        = "logout"
)

// Service is the account behavior the handlers depend on.
type Service interface {
	DeleteAccount(ctx context.Context, userID, password string) (*accountsvc.DeleteAccountResult, error)
	Logout(ctx context.Context, userID string) (*accountsvc.LogoutResult, error)
}

// Register registers account endpoints.
func Register(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{
		OperationID: OperationDeleteAccount,
		Method:      http.MethodDelete,
		Path:        "/account/{userId}",
		Summary:     "Delete account",
		Description: "Permanently deletes the caller's account: reauthenticates with the password, " +
			"removes application data and the identity. Guest accounts need no password.",
		Tags:          []string{"Account"},
		DefaultStatus: http.StatusNoContent,
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusServiceUnavailable,
		},
		Security: []map[string][]string{
			{"bearerAuth": {}},
		},
	}, func(ctx context.Context, input *DeleteAccountInput) (*struct{}, error) {
		user := auth.UserFromContext(ctx)
		if user.UID != input.UserID {
			return nil, newProblem(http.StatusForbidden, accountsvc.CodeAuthRequired,
				"cannot delete another user's account")
		}

		res, err := svc.DeleteAccount(ctx, input.UserID, input.Body.Password)
		if err != nil {
			return nil, unavailable(err)
		}
		if !res.Success {
			return nil, problemFor(res)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: OperationLogout,
		Method:      http.MethodPost,
		Path:        "/account/logout",
		Summary:     "Log out",
		Description: "Revokes the caller's refresh tokens and clears server-side session state. " +
			"Every step runs; failures are listed in the response.",
		Tags:   []string{"Account"},
		Errors: []int{http.StatusUnauthorized, http.StatusServiceUnavailable},
		Security: []map[string][]string{
			{"bearerAuth": {}},
		},
	}, func(ctx context.Context, _ *LogoutInput) (*LogoutOutput, error) {
		user := auth.UserFromContext(ctx)

		res, err := svc.Logout(ctx, user.UID)
		if err != nil {
			return nil, unavailable(err)
		}
		out := &LogoutOutput{}
		out.Body.Success = res.Success
		for _, e := range res.Errors {
			out.Body.Errors = append(out.Body.Errors, LogoutError{Code: e.Code, Message: e.Message})
		}
		return out, nil
	})
}

func newProblem(status int, code, detail string) *Problem {
	return &Problem{
		ErrorModel: huma.ErrorModel{
			Type:   "about:blank",
			Title:  http.StatusText(status),
			Status: status,
			Detail: detail,
		},
		Code: code,
	}
}

// problemFor maps a failed deletion result to its HTTP problem.
func problemFor(res *accountsvc.DeleteAccountResult) *Problem {
	err := res.Err()
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, accountsvc.ErrAuthRequired):
		status = http.StatusUnauthorized
	case errors.Is(err, accountsvc.ErrWrongPassword), errors.Is(err, accountsvc.ErrReauthRequired):
		status = http.StatusForbidden
	case errors.Is(err, accountsvc.ErrNotInitialized):
		status = http.StatusServiceUnavailable
	}

	p := newProblem(status, res.Error.Code, res.Error.Message)
	p.ProviderCode = res.Error.ProviderCode
	p.RequiresReauth = res.RequiresReauth
	return p
}

func unavailable(err error) error {
	if errors.Is(err, accountsvc.ErrNotInitialized) {
		return newProblem(http.StatusServiceUnavailable, accountsvc.CodeNotInitialized,
			"account service is not initialized")
	}
	return huma.Error500InternalServerError("internal error")
}
