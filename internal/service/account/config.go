package account

import "context"

// Config holds the callbacks supplied by the embedding application.
type Config struct {
	// OnDeleteUserData deletes all application data owned by userID. Required.
	OnDeleteUserData func(ctx context.Context, userID string) error
	// OnClearLocalStorage clears state cached for the current session. Required.
	OnClearLocalStorage func(ctx context.Context) error
	// OnAccountDeleted is notified after a successful deletion. Its failure is ignored.
	OnAccountDeleted func(ctx context.Context, userID string) error
	// OnDeleteError observes step failures. It never affects control flow.
	OnDeleteError func(ctx context.Context, err error, context string)
}

func (c Config) validate() error {
	if c.OnDeleteUserData == nil {
		return newError(KindNotInitialized, "OnDeleteUserData callback is required", nil)
	}
	if c.OnClearLocalStorage == nil {
		return newError(KindNotInitialized, "OnClearLocalStorage callback is required", nil)
	}
	return nil
}
