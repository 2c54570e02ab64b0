package store

import (
	"context"
	"database/sql"
	"encoding/json"
	errs "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"storycanvas/internal/util"
)

var ErrNoChange = errs.New("no change")

// Preference keys mirroring the web client's localStorage slots.
const (
	KeyAuthToken    = "authToken"
	KeyUserID       = "userId"
	KeyUsername     = "username"
	KeyDisplayName  = "displayName"
	KeyAvatar       = "avatar"
	KeyTheme        = "theme"
	KeyAutoGenerate = "AUTO_GENERATE_IMAGE"
)

// DB wraps gorm.DB for repositories and exposes Close.
type DB struct {
	gorm *gorm.DB
	sql  *sql.DB
}

func (d *DB) Close() error   { return d.sql.Close() }
func (d *DB) Gorm() *gorm.DB { return d.gorm }

// Open connects to the local client database per config.
func Open(ctx context.Context, cfg util.Config) (*DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("missing DSN")
	}
	gdb, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sdb, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sdb.SetConnMaxLifetime(30 * time.Minute)
	sdb.SetMaxOpenConns(10)
	sdb.SetMaxIdleConns(5)
	if err := sdb.PingContext(ctx); err != nil {
		return nil, err
	}
	return &DB{gorm: gdb, sql: sdb}, nil
}

// Identity is the persisted auth slice of client state.
type Identity struct {
	Token       string
	UserID      string
	Username    string
	DisplayName string
	Avatar      string
}

// PrefsRepo is the key/value store standing in for the browser's
// localStorage: read once at startup, written on successful mutations.
type PrefsRepo struct{ db *DB }

func NewPrefsRepo(db *DB) *PrefsRepo { return &PrefsRepo{db: db} }

func (r *PrefsRepo) Get(ctx context.Context, key string) (string, error) {
	row := r.db.gorm.WithContext(ctx).Raw(`SELECT value FROM client_prefs WHERE key = ?`, key).Row()
	var v string
	if err := row.Scan(&v); err != nil {
		if errs.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", wrap(err, "read pref")
	}
	return v, nil
}

func (r *PrefsRepo) Set(ctx context.Context, key, value string) error {
	err := r.db.gorm.WithContext(ctx).Exec(`INSERT INTO client_prefs(key, value) VALUES (?,?)
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value).Error
	return wrap(err, "write pref")
}

func (r *PrefsRepo) Delete(ctx context.Context, keys ...string) error {
	err := r.db.gorm.WithContext(ctx).Exec(`DELETE FROM client_prefs WHERE key = ANY(?)`, pqStringArray(keys)).Error
	return wrap(err, "delete prefs")
}

// LoadIdentity rehydrates cached auth fields; absent keys come back empty.
func (r *PrefsRepo) LoadIdentity(ctx context.Context) (Identity, error) {
	var id Identity
	fields := map[string]*string{
		KeyAuthToken:   &id.Token,
		KeyUserID:      &id.UserID,
		KeyUsername:    &id.Username,
		KeyDisplayName: &id.DisplayName,
		KeyAvatar:      &id.Avatar,
	}
	for key, dst := range fields {
		v, err := r.Get(ctx, key)
		if err != nil {
			return Identity{}, err
		}
		*dst = v
	}
	return id, nil
}

// SaveIdentity persists every non-empty auth field.
func (r *PrefsRepo) SaveIdentity(ctx context.Context, id Identity) error {
	fields := map[string]string{
		KeyAuthToken:   id.Token,
		KeyUserID:      id.UserID,
		KeyUsername:    id.Username,
		KeyDisplayName: id.DisplayName,
		KeyAvatar:      id.Avatar,
	}
	for key, v := range fields {
		if v == "" {
			continue
		}
		if err := r.Set(ctx, key, v); err != nil {
			return err
		}
	}
	return nil
}

// ClearIdentity removes all persisted auth fields. Theme and the
// auto-generate preference survive logout.
func (r *PrefsRepo) ClearIdentity(ctx context.Context) error {
	return r.Delete(ctx, KeyAuthToken, KeyUserID, KeyUsername, KeyDisplayName, KeyAvatar)
}

// SessionCacheRepo keeps the last good session snapshot per user so the
// storyboard can be redisplayed before (or without) a backend round trip.
type SessionCacheRepo struct{ db *DB }

func NewSessionCacheRepo(db *DB) *SessionCacheRepo { return &SessionCacheRepo{db: db} }

func (r *SessionCacheRepo) Put(ctx context.Context, userID string, snapshot any) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return wrap(err, "marshal snapshot")
	}
	err = r.db.gorm.WithContext(ctx).Exec(`INSERT INTO session_cache(id, user_id, data, saved_at) VALUES (?,?,?,now())
	ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data, saved_at = now()`, uuid.New(), userID, data).Error
	return wrap(err, "write session cache")
}

func (r *SessionCacheRepo) Get(ctx context.Context, userID string, out any) (bool, error) {
	row := r.db.gorm.WithContext(ctx).Raw(`SELECT data FROM session_cache WHERE user_id = ?`, userID).Row()
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errs.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, wrap(err, "read session cache")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, wrap(err, "decode session cache")
	}
	return true, nil
}

func (r *SessionCacheRepo) Delete(ctx context.Context, userID string) error {
	err := r.db.gorm.WithContext(ctx).Exec(`DELETE FROM session_cache WHERE user_id = ?`, userID).Error
	return wrap(err, "delete session cache")
}

// Helper converts []T (string-like) to []string for driver.
func pqStringArray[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

// Helper error wrap
func wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}
