package routes

import (
	"net/url"

	"github.com/danielgtaylor/huma/v2"

	"github.com/janisto/account-lifecycle/internal/http/v1/account"
	"github.com/janisto/account-lifecycle/internal/http/v1/profile"
	"github.com/janisto/account-lifecycle/internal/platform/auth"
	appmiddleware "github.com/janisto/account-lifecycle/internal/platform/middleware"
)

// Services are the handlers' dependencies.
type Services struct {
	Account account.Service
	Profile profile.Service
}

// Register wires all HTTP routes into the provided API router. A nil limiter
// leaves account deletion unthrottled.
func Register(api huma.API, verifier auth.Verifier, limiter *appmiddleware.RateLimiter, svcs Services) {
	prefix := apiPrefix(api)

	// Auth runs first so the limiter can key on the caller.
	api.UseMiddleware(auth.NewAuthMiddleware(api, verifier))
	if limiter != nil {
		api.UseMiddleware(limiter.Middleware(api, account.OperationDeleteAccount))
	}

	account.Register(api, svcs.Account)
	profile.Register(api, svcs.Profile, prefix)
}

func apiPrefix(api huma.API) string {
	for _, s := range api.OpenAPI().Servers {
		if u, err := url.Parse(s.URL); err == nil && u.Path != "" {
			return u.Path
		}
	}
	return ""
}
