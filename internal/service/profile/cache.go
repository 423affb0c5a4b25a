package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	applog "github.com/janisto/account-lifecycle/internal/platform/logging"
)

const cacheSchema = `CREATE TABLE IF NOT EXISTS profile_cache (
	user_id   TEXT PRIMARY KEY,
	payload   BLOB NOT NULL,
	cached_at INTEGER NOT NULL
)`

var (
	cacheEncMode cbor.EncMode
	cacheDecMode cbor.DecMode
)

func init() {
	var err error
	cacheEncMode, err = cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	cacheDecMode, err = cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
	if err != nil {
		panic(err)
	}
}

// OpenCacheDB opens the SQLite database backing the profile cache.
func OpenCacheDB(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("cache path is required")
	}
	dsn := "file:" + filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}

// CachedRepository serves reads from a local SQLite cache in front of
// another Repository. Writes go to the backing repository and evict the
// user's entry.
type CachedRepository struct {
	next Repository
	db   *sql.DB
	ttl  time.Duration
	now  func() time.Time
}

// NewCachedRepository wraps next with a cache stored in db.
func NewCachedRepository(ctx context.Context, next Repository, db *sql.DB, ttl time.Duration) (*CachedRepository, error) {
	if next == nil || db == nil {
		return nil, errors.New("backing repository and database are required")
	}
	if ttl <= 0 {
		return nil, errors.New("cache ttl must be positive")
	}
	if _, err := db.ExecContext(ctx, cacheSchema); err != nil {
		return nil, fmt.Errorf("create cache table: %w", err)
	}
	return &CachedRepository{
		next: next,
		db:   db,
		ttl:  ttl,
		now:  time.Now,
	}, nil
}

func (c *CachedRepository) Get(ctx context.Context, userID string) (*Profile, error) {
	if p, ok := c.lookup(ctx, userID); ok {
		return p, nil
	}

	p, err := c.next.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, p)
	return p, nil
}

func (c *CachedRepository) Create(ctx context.Context, p *Profile) (*Profile, error) {
	created, err := c.next.Create(ctx, p)
	c.evict(ctx, p.UID)
	return created, err
}

func (c *CachedRepository) Update(ctx context.Context, userID string, params UpdateParams) error {
	err := c.next.Update(ctx, userID, params)
	c.evict(ctx, userID)
	return err
}

func (c *CachedRepository) TouchLastLogin(ctx context.Context, userID string) error {
	err := c.next.TouchLastLogin(ctx, userID)
	c.evict(ctx, userID)
	return err
}

func (c *CachedRepository) Delete(ctx context.Context, userID string) error {
	err := c.next.Delete(ctx, userID)
	c.evict(ctx, userID)
	return err
}

// EvictUser removes userID's cached profile.
func (c *CachedRepository) EvictUser(ctx context.Context, userID string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM profile_cache WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("evict cache entry: %w", err)
	}
	return nil
}

// lookup returns a fresh cached profile. Cache faults are logged and treated as misses.
func (c *CachedRepository) lookup(ctx context.Context, userID string) (*Profile, bool) {
	var (
		payload  []byte
		cachedAt int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT payload, cached_at FROM profile_cache WHERE user_id = ?`, userID,
	).Scan(&payload, &cachedAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			applog.LogWarn(ctx, "profile cache read failed", zap.Error(err))
		}
		return nil, false
	}
	if c.now().Sub(time.UnixMilli(cachedAt)) >= c.ttl {
		return nil, false
	}

	var p Profile
	if err := cacheDecMode.Unmarshal(payload, &p); err != nil {
		applog.LogWarn(ctx, "profile cache entry corrupt", zap.Error(err))
		c.evict(ctx, userID)
		return nil, false
	}
	return &p, true
}

func (c *CachedRepository) store(ctx context.Context, p *Profile) {
	payload, err := cacheEncMode.Marshal(p)
	if err != nil {
		applog.LogWarn(ctx, "profile cache encode failed", zap.Error(err))
		return
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO profile_cache (user_id, payload, cached_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload, cached_at = excluded.cached_at`,
		p.UID, payload, c.now().UnixMilli(),
	)
	if err != nil {
		applog.LogWarn(ctx, "profile cache write failed", zap.Error(err))
	}
}

func (c *CachedRepository) evict(ctx context.Context, userID string) {
	if err := c.EvictUser(ctx, userID); err != nil {
		applog.LogWarn(ctx, "profile cache eviction failed", zap.Error(err))
	}
}

// Compile-time interface check
var _ Repository = (*CachedRepository)(nil)
