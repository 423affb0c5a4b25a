package account

import (
	"context"
	"errors"
	"fmt"

	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/janisto/account-lifecycle/internal/platform/identity"
	applog "github.com/janisto/account-lifecycle/internal/platform/logging"
)

// Context labels passed to OnDeleteError, also used as span names.
const (
	contextDelete            = "account.delete"
	contextReauthenticate    = "account.delete.reauthenticate"
	contextDeleteUserData    = "account.delete.deleteUserData"
	contextClearLocalStorage = "account.delete.clearLocalStorage"
	contextDeleteIdentity    = "account.delete.deleteIdentity"
	contextNotify            = "account.delete.notify"
)

const msgWrongPassword = "Incorrect password. Please try again."

// deletion runs the steps of one DeleteAccount call, strictly in order:
// reauthenticate, delete user data, clear local storage, delete identity,
// notify. Reauthentication, user data and identity failures abort; the
// others are best effort.
type deletion struct {
	provider identity.Provider
	cfg      Config
	tracer   trace.Tracer
	userID   string
	session  *identity.Session
}

// run returns a result for reauthentication failures and an *Error for
// failures after destructive work has started.
func (d *deletion) run(ctx context.Context, password string) (*DeleteAccountResult, error) {
	if d.session.Anonymous {
		applog.LogInfo(ctx, "skipping reauthentication for guest session")
	} else {
		if d.session.Email == "" {
			return reauthFailed(CodeEmailNotFound, "User email not found", ""), nil
		}
		if res := d.reauthenticate(ctx, password); res != nil {
			return res, nil
		}
	}

	if err := d.deleteUserData(ctx); err != nil {
		return nil, err
	}
	d.clearLocalStorage(ctx)
	if err := d.deleteIdentity(ctx); err != nil {
		return nil, err
	}
	d.notify(ctx)

	return succeeded(), nil
}

func (d *deletion) reauthenticate(ctx context.Context, password string) *DeleteAccountResult {
	err := d.step(ctx, contextReauthenticate, func(ctx context.Context) error {
		cred := d.provider.Credential(d.session.Email, password)
		return d.provider.Reauthenticate(ctx, d.session, cred)
	})
	if err == nil {
		return nil
	}
	report(ctx, d.cfg, err, contextReauthenticate)

	providerCode := identity.CodeOf(err)
	if identity.IsWrongPassword(err) {
		return reauthFailed(CodeWrongPassword, msgWrongPassword, providerCode)
	}
	msg := "Reauthentication failed"
	var ie *identity.Error
	if errors.As(err, &ie) && ie.Message != "" {
		msg = ie.Message
	}
	return reauthFailed(CodeReauthFailed, msg, providerCode)
}

func (d *deletion) deleteUserData(ctx context.Context) error {
	err := d.step(ctx, contextDeleteUserData, func(ctx context.Context) error {
		return d.cfg.OnDeleteUserData(ctx, d.userID)
	})
	if err == nil {
		return nil
	}
	report(ctx, d.cfg, err, contextDeleteUserData)
	return newError(KindDeletionFailed, "Failed to delete user data: "+err.Error(), err)
}

func (d *deletion) clearLocalStorage(ctx context.Context) {
	err := d.step(ctx, contextClearLocalStorage, func(ctx context.Context) error {
		return d.cfg.OnClearLocalStorage(ctx)
	})
	if err != nil {
		report(ctx, d.cfg, err, contextClearLocalStorage)
	}
}

func (d *deletion) deleteIdentity(ctx context.Context) error {
	// The session is looked up again: the caller's may have ended while user data was deleted.
	session := d.provider.CurrentSession(ctx)
	if session == nil || session.UID != d.userID {
		err := newError(KindDeletionFailed, "No authenticated user found", nil)
		report(ctx, d.cfg, err, contextDeleteIdentity)
		return err
	}

	err := d.step(ctx, contextDeleteIdentity, func(ctx context.Context) error {
		return d.provider.DeleteIdentity(ctx, session)
	})
	if err == nil {
		return nil
	}
	report(ctx, d.cfg, err, contextDeleteIdentity)
	return newError(KindDeletionFailed, "Failed to delete auth account: "+err.Error(), err)
}

func (d *deletion) notify(ctx context.Context) {
	if d.cfg.OnAccountDeleted == nil {
		return
	}
	err := d.step(ctx, contextNotify, func(ctx context.Context) error {
		return d.cfg.OnAccountDeleted(ctx, d.userID)
	})
	if err != nil {
		applog.LogWarn(ctx, "account deleted callback failed", zap.Error(err))
	}
}

// step runs fn inside a span, converting a panic into an error.
func (d *deletion) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := d.tracer.Start(ctx, name)
	defer span.End()

	err := safeCall(func() error { return fn(ctx) })
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	return err
}

// report hands err to OnDeleteError. A panicking hook is logged and discarded.
func report(ctx context.Context, cfg Config, err error, label string) {
	if cfg.OnDeleteError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			applog.LogWarn(ctx, "OnDeleteError panicked", zap.String("context", label), zap.Any("panic", r))
		}
	}()
	cfg.OnDeleteError(ctx, err, label)
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	return fn()
}
