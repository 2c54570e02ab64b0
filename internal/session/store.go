package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"storycanvas/internal/api"
	"storycanvas/internal/provider"
	"storycanvas/internal/store"
)

// Prefs is the persisted key/value slice of client state.
type Prefs interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	LoadIdentity(ctx context.Context) (store.Identity, error)
	SaveIdentity(ctx context.Context, id store.Identity) error
	ClearIdentity(ctx context.Context) error
}

// SnapshotCache holds the last good session snapshot per user.
type SnapshotCache interface {
	Put(ctx context.Context, userID string, snapshot any) error
	Get(ctx context.Context, userID string, out any) (bool, error)
	Delete(ctx context.Context, userID string) error
}

// Store owns all mutable client state and every operation that touches
// it. UI commands run concurrently, so access goes through a single
// mutex even though each operation is itself sequential.
type Store struct {
	mu    sync.Mutex
	state State

	api      *api.Client
	prefs    Prefs
	cache    SnapshotCache
	provider provider.Provider
	log      zerolog.Logger

	// onAuthExpired fires after a forced logout completes local cleanup.
	// silent mirrors the originating call's UI intent.
	onAuthExpired func(silent bool)
}

func NewStore(client *api.Client, prefs Prefs, cache SnapshotCache, p provider.Provider, logger zerolog.Logger) *Store {
	s := &Store{
		api:      client,
		prefs:    prefs,
		cache:    cache,
		provider: p,
		log:      logger.With().Str("component", "session").Logger(),
	}
	s.state.ArtStyle = DefaultArtStyle
	client.SetTokenSource(s.token)
	client.SetUnauthorizedHandler(s.forceLogout)
	return s
}

// SetAuthExpiredHandler registers the UI callback for forced logouts.
func (s *Store) SetAuthExpiredHandler(h func(silent bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAuthExpired = h
}

func (s *Store) token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Session.Token
}

// View returns a copy of the current state for rendering. Slices are
// shared; the UI must not mutate them.
func (s *Store) View() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Authenticated reports whether a session token is present.
func (s *Store) Authenticated() bool { return s.token() != "" }

// Rehydrate restores the persisted identity so a restart keeps the user
// signed in. A missing token just leaves the store logged out.
func (s *Store) Rehydrate(ctx context.Context) error {
	id, err := s.prefs.LoadIdentity(ctx)
	if err != nil {
		return err
	}
	if id.Token == "" {
		return nil
	}
	s.mu.Lock()
	s.state.Session = Session{
		Token:       id.Token,
		UserID:      id.UserID,
		Username:    id.Username,
		DisplayName: id.DisplayName,
		Avatar:      id.Avatar,
	}
	s.mu.Unlock()
	return nil
}

// Load fetches the persisted session snapshot and replaces local story
// state with it. On any failure the story state resets instead of being
// left half-applied; the call itself is silent, so a stale token clears
// the session without an error banner.
func (s *Store) Load(ctx context.Context) error {
	snap, err := s.api.LoadSession(ctx)
	if err != nil {
		s.mu.Lock()
		s.state.resetStory()
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.state.applySnapshot(snap)
	userID := s.state.Session.UserID
	s.mu.Unlock()

	if userID != "" {
		if err := s.cache.Put(ctx, userID, snap); err != nil {
			s.log.Warn().Err(err).Msg("session cache write failed")
		}
	}
	return nil
}

// LoadCached applies the last locally cached snapshot, if any. Used to
// paint the storyboard before the backend round trip completes.
func (s *Store) LoadCached(ctx context.Context) (bool, error) {
	s.mu.Lock()
	userID := s.state.Session.UserID
	s.mu.Unlock()
	if userID == "" {
		return false, nil
	}
	var snap api.SessionSnapshot
	ok, err := s.cache.Get(ctx, userID, &snap)
	if err != nil || !ok {
		return false, err
	}
	s.mu.Lock()
	s.state.applySnapshot(&snap)
	s.mu.Unlock()
	return true, nil
}

// Save persists the current snapshot. Failures are logged and swallowed:
// a failed save never rolls back what the user sees.
func (s *Store) Save(ctx context.Context) {
	s.mu.Lock()
	if s.state.Session.Token == "" {
		s.mu.Unlock()
		return
	}
	snap := s.state.snapshot()
	userID := s.state.Session.UserID
	s.mu.Unlock()

	if err := s.api.SaveSession(ctx, snap); err != nil {
		s.log.Warn().Err(err).Msg("session save failed")
	}
	if userID != "" {
		if err := s.cache.Put(ctx, userID, snap); err != nil {
			s.log.Warn().Err(err).Msg("session cache write failed")
		}
	}
}

// Logout signs out everywhere it can and clears local state regardless
// of how the remote calls go.
func (s *Store) Logout(ctx context.Context) {
	if s.provider != nil {
		if err := s.provider.SignOut(ctx); err != nil {
			s.log.Warn().Err(err).Msg("provider sign-out failed")
		}
	}
	if err := s.api.Logout(ctx); err != nil {
		s.log.Warn().Err(err).Msg("backend logout failed")
	}
	s.clearLocal(ctx)
}

// forceLogout is the 401 path: local cleanup only, no backend call, then
// the UI notification. Runs on the calling goroutine of the failed
// request.
func (s *Store) forceLogout(silent bool) {
	ctx := context.Background()
	s.clearLocal(ctx)

	s.mu.Lock()
	h := s.onAuthExpired
	s.mu.Unlock()
	if h != nil {
		h(silent)
	}
}

// clearLocal wipes the in-memory session, the persisted identity, and
// the cached snapshot. Theme and generation preferences survive.
func (s *Store) clearLocal(ctx context.Context) {
	s.mu.Lock()
	userID := s.state.Session.UserID
	s.state.Session = Session{}
	s.state.resetStory()
	s.state.Generating = false
	s.state.UsedRealLLM = nil
	s.mu.Unlock()

	if err := s.prefs.ClearIdentity(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear persisted identity")
	}
	if userID != "" {
		if err := s.cache.Delete(ctx, userID); err != nil {
			s.log.Warn().Err(err).Msg("failed to drop cached session")
		}
	}
}

// Preference accessors for UI settings that live outside the snapshot.

func (s *Store) Preference(ctx context.Context, key string) string {
	v, err := s.prefs.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("pref read failed")
		return ""
	}
	return v
}

func (s *Store) SetPreference(ctx context.Context, key, value string) {
	if err := s.prefs.Set(ctx, key, value); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("pref write failed")
	}
}

// SetArtStyle updates the style used for subsequent generations.
func (s *Store) SetArtStyle(style string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if style == "" {
		style = DefaultArtStyle
	}
	s.state.ArtStyle = style
}

// Status fetches the backend provider banner info. Silent by contract.
func (s *Store) Status(ctx context.Context) (*api.ProviderStatus, error) {
	return s.api.Status(ctx)
}

// CacheList and CacheInvalidate expose the image-cache admin surface.
func (s *Store) CacheList(ctx context.Context) ([]api.CacheEntry, error) {
	return s.api.CacheList(ctx)
}

func (s *Store) CacheInvalidate(ctx context.Context, key string) error {
	return s.api.CacheInvalidate(ctx, key)
}
