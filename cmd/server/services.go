package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/janisto/account-lifecycle/internal/platform/auth"
	"github.com/janisto/account-lifecycle/internal/platform/config"
	"github.com/janisto/account-lifecycle/internal/platform/firebase"
	"github.com/janisto/account-lifecycle/internal/platform/identity"
	applog "github.com/janisto/account-lifecycle/internal/platform/logging"
	"github.com/janisto/account-lifecycle/internal/platform/metrics"
	accountsvc "github.com/janisto/account-lifecycle/internal/service/account"
	profilesvc "github.com/janisto/account-lifecycle/internal/service/profile"
	"github.com/janisto/account-lifecycle/internal/service/userdata"
)

// services holds the constructed application services and the resources
// they own.
type services struct {
	Account *accountsvc.Service
	Profile *profilesvc.Service

	cacheDB *sql.DB
}

// Close releases the profile cache database.
func (s *services) Close() {
	if s.cacheDB != nil {
		_ = s.cacheDB.Close()
	}
}

// userEvicter drops a user's locally cached state.
type userEvicter interface {
	EvictUser(ctx context.Context, userID string) error
}

func buildServices(
	ctx context.Context,
	cfg *config.Config,
	clients *firebase.Clients,
	rec metrics.Recorder,
) (*services, error) {
	svcs := &services{}

	var repo profilesvc.Repository = profilesvc.NewFirestoreRepository(clients.Firestore, cfg.Profile.Collection)
	var cache userEvicter
	if cfg.Profile.CachePath != "" {
		db, err := profilesvc.OpenCacheDB(cfg.Profile.CachePath)
		if err != nil {
			return nil, err
		}
		cached, err := profilesvc.NewCachedRepository(ctx, repo, db, cfg.Profile.CacheTTL)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		svcs.cacheDB = db
		repo = cached
		cache = cached
	}

	profiles, err := profilesvc.NewService(repo, profileConfig(cfg.Profile), profilesvc.WithMetrics(rec))
	if err != nil {
		svcs.Close()
		return nil, fmt.Errorf("profile service: %w", err)
	}
	svcs.Profile = profiles

	provider := identity.NewFirebaseProvider(
		clients.Auth,
		&http.Client{Timeout: 10 * time.Second},
		identity.WithAPIKey(cfg.Firebase.APIKey),
		identity.WithEmulatorHost(cfg.Firebase.AuthEmulatorHost),
	)
	purger := userdata.NewFirestorePurger(clients.Firestore, repo, cfg.Account.UserDataCollections)

	accounts, err := accountsvc.NewService(provider, accountConfig(purger, cache, rec), accountsvc.WithMetrics(rec))
	if err != nil {
		svcs.Close()
		return nil, fmt.Errorf("account service: %w", err)
	}
	svcs.Account = accounts

	return svcs, nil
}

func profileConfig(cfg config.Profile) profilesvc.Config {
	defaults := profilesvc.Preferences{}
	if cfg.DefaultTheme != "" {
		defaults[profilesvc.PrefTheme] = cfg.DefaultTheme
	}
	if cfg.DefaultLanguage != "" {
		defaults[profilesvc.PrefLanguage] = cfg.DefaultLanguage
	}
	return profilesvc.Config{
		Collection:         cfg.Collection,
		DefaultPreferences: defaults,
		OnProfileCreated: func(ctx context.Context, p *profilesvc.Profile) {
			applog.LogInfo(ctx, "profile created", zap.String("userId", p.UID))
		},
	}
}

// accountConfig wires the deletion callbacks. cache may be nil when no local
// profile cache is configured.
func accountConfig(purger *userdata.FirestorePurger, cache userEvicter, rec metrics.Recorder) accountsvc.Config {
	return accountsvc.Config{
		OnDeleteUserData: purger.Purge,
		OnClearLocalStorage: func(ctx context.Context) error {
			user := auth.UserFromContext(ctx)
			if cache == nil || user == nil {
				return nil
			}
			return cache.EvictUser(ctx, user.UID)
		},
		OnAccountDeleted: func(ctx context.Context, userID string) error {
			applog.LogInfo(ctx, "account deleted", zap.String("userId", userID))
			return nil
		},
		OnDeleteError: func(ctx context.Context, err error, step string) {
			applog.LogError(ctx, "account deletion step failed", err, zap.String("step", step))
			rec.RecordStepFailure(step)
		},
	}
}
