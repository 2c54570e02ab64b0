package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"storycanvas/internal/api"
	"storycanvas/internal/provider"
	"storycanvas/internal/store"
	"storycanvas/internal/util"
)

var fakeIdentity = provider.Identity{
	IDToken:     "firebase-id-token",
	UID:         "uid-1",
	Email:       "user@example.com",
	DisplayName: "Hint Name",
	Photo:       "http://pic",
}

// fakePrefs is an in-memory stand-in for the postgres pref table.
type fakePrefs struct {
	mu sync.Mutex
	m  map[string]string
}

func newFakePrefs() *fakePrefs { return &fakePrefs{m: map[string]string{}} }

func (f *fakePrefs) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.m[key], nil
}

func (f *fakePrefs) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[key] = value
	return nil
}

func (f *fakePrefs) LoadIdentity(ctx context.Context) (store.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return store.Identity{
		Token:       f.m[store.KeyAuthToken],
		UserID:      f.m[store.KeyUserID],
		Username:    f.m[store.KeyUsername],
		DisplayName: f.m[store.KeyDisplayName],
		Avatar:      f.m[store.KeyAvatar],
	}, nil
}

func (f *fakePrefs) SaveIdentity(_ context.Context, id store.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, v := range map[string]string{
		store.KeyAuthToken:   id.Token,
		store.KeyUserID:      id.UserID,
		store.KeyUsername:    id.Username,
		store.KeyDisplayName: id.DisplayName,
		store.KeyAvatar:      id.Avatar,
	} {
		if v != "" {
			f.m[key] = v
		}
	}
	return nil
}

func (f *fakePrefs) ClearIdentity(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range []string{store.KeyAuthToken, store.KeyUserID, store.KeyUsername, store.KeyDisplayName, store.KeyAvatar} {
		delete(f.m, key)
	}
	return nil
}

type fakeCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{m: map[string][]byte{}} }

func (f *fakeCache) Put(_ context.Context, userID string, snapshot any) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[userID] = data
	return nil
}

func (f *fakeCache) Get(_ context.Context, userID string, out any) (bool, error) {
	f.mu.Lock()
	data, ok := f.m[userID]
	f.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, out)
}

func (f *fakeCache) Delete(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.m, userID)
	return nil
}

type stubProvider struct {
	signIns  int
	signOuts int
	err      error
}

func (s *stubProvider) SignIn(context.Context) (*provider.Identity, error) {
	s.signIns++
	if s.err != nil {
		return nil, s.err
	}
	id := fakeIdentity
	return &id, nil
}

func (s *stubProvider) SignOut(context.Context) error {
	s.signOuts++
	return nil
}

type harness struct {
	store *Store
	prefs *fakePrefs
	cache *fakeCache
	idp   *stubProvider
}

func newTestStore(t *testing.T, handler http.Handler) *harness {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := util.Config{
		APIBaseURL:     srv.URL,
		MaxRetries:     1,
		InitialBackoff: time.Millisecond,
		StoryTimeout:   5 * time.Second,
		DefaultTimeout: 5 * time.Second,
		PollInterval:   time.Millisecond,
		PollBudget:     50 * time.Millisecond,
	}
	client, err := api.New(cfg, zerolog.Nop())
	require.NoError(t, err)

	h := &harness{prefs: newFakePrefs(), cache: newFakeCache(), idp: &stubProvider{}}
	h.store = NewStore(client, h.prefs, h.cache, h.idp, zerolog.Nop())
	return h
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestLoginValidatesBeforeCalling(t *testing.T) {
	var calls int
	h := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))

	var verr *ValidationError
	require.ErrorAs(t, h.store.Login(context.Background(), "", "pw"), &verr)
	require.ErrorAs(t, h.store.Login(context.Background(), "ab", "pw"), &verr)
	require.ErrorAs(t, h.store.Login(context.Background(), "alice", ""), &verr)
	require.Zero(t, calls)
}

func TestLoginPersistsIdentity(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, api.AuthResponse{Token: "tok", UserID: "u1", Username: "alice"})
	})
	h := newTestStore(t, mux)

	require.NoError(t, h.store.Login(context.Background(), "alice", "hunter2"))
	require.True(t, h.store.Authenticated())
	require.Equal(t, "alice", h.store.View().Session.Username)
	require.Equal(t, "tok", h.prefs.m[store.KeyAuthToken])
	require.Equal(t, "u1", h.prefs.m[store.KeyUserID])
}

func TestRegisterAutoLogsIn(t *testing.T) {
	var registered bool
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/register", func(w http.ResponseWriter, r *http.Request) {
		registered = true
		writeJSON(t, w, api.RegisterResponse{Message: "ok", UserID: "u2"})
	})
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, api.AuthResponse{Token: "tok2", UserID: "u2", Username: "bob"})
	})
	h := newTestStore(t, mux)

	require.NoError(t, h.store.Register(context.Background(), "bob", "secret1"))
	require.True(t, registered)
	require.Equal(t, "tok2", h.store.View().Session.Token)
}

func TestRegisterValidatesPasswordLength(t *testing.T) {
	h := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	var verr *ValidationError
	require.ErrorAs(t, h.store.Register(context.Background(), "carol", "short"), &verr)
}

func TestSignInWithGoogleExchangesToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/firebase", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDToken string `json:"idToken"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "firebase-id-token", req.IDToken)
		writeJSON(t, w, map[string]string{"token": "gtok", "user_id": "gu1"})
	})
	h := newTestStore(t, mux)

	require.NoError(t, h.store.SignInWithGoogle(context.Background()))
	sess := h.store.View().Session
	require.Equal(t, "gtok", sess.Token)
	require.Equal(t, "gu1", sess.UserID)
	// response omitted the profile, so the provider hint fills it
	require.Equal(t, "user@example.com", sess.Username)
	require.Equal(t, "Hint Name", sess.DisplayName)
	require.Equal(t, 1, h.idp.signIns)
}

func TestForcedLogoutOn401ClearsEverything(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/story/load-session", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	h := newTestStore(t, mux)

	h.store.state.Session = Session{Token: "stale", UserID: "u1", Username: "alice"}
	require.NoError(t, h.prefs.SaveIdentity(context.Background(), store.Identity{Token: "stale", UserID: "u1"}))
	require.NoError(t, h.cache.Put(context.Background(), "u1", &api.SessionSnapshot{}))

	var expired []bool
	h.store.SetAuthExpiredHandler(func(silent bool) { expired = append(expired, silent) })

	err := h.store.Load(context.Background())
	require.ErrorIs(t, err, api.ErrUnauthorized)
	require.False(t, h.store.Authenticated())
	require.Empty(t, h.prefs.m[store.KeyAuthToken])
	_, ok := h.cache.m["u1"]
	require.False(t, ok)
	// load-session is a silent call
	require.Equal(t, []bool{true}, expired)
}

func TestLoadFailureResetsStoryState(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/story/load-session", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	h := newTestStore(t, mux)

	h.store.state.Session = Session{Token: "tok", UserID: "u1"}
	h.store.state.Scenes = []Scene{{ID: 1, Narrative: "stale"}}
	h.store.state.SceneCounter = 1
	h.store.state.StoryHistory = []string{"old"}

	require.Error(t, h.store.Load(context.Background()))
	st := h.store.View()
	require.Empty(t, st.Scenes)
	require.Empty(t, st.StoryHistory)
	require.Zero(t, st.SceneCounter)
	// identity survives a non-auth failure
	require.True(t, h.store.Authenticated())
}

func TestLoadAppliesSnapshotAndWritesCache(t *testing.T) {
	snap := api.SessionSnapshot{
		StoryHistory: []string{"a dark room"},
		SceneCounter: 1,
		Scenes:       []api.SceneRecord{{ID: 1, Narrative: "It begins.", ImageURL: "http://img"}},
		ArtStyle:     "noir",
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/story/load-session", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, snap)
	})
	h := newTestStore(t, mux)
	h.store.state.Session = Session{Token: "tok", UserID: "u1"}

	require.NoError(t, h.store.Load(context.Background()))
	st := h.store.View()
	require.Len(t, st.Scenes, 1)
	require.Equal(t, "noir", st.ArtStyle)

	_, ok := h.cache.m["u1"]
	require.True(t, ok)
}

func TestLoadCachedPaintsFromLocalCopy(t *testing.T) {
	h := newTestStore(t, http.NewServeMux())
	h.store.state.Session = Session{Token: "tok", UserID: "u1"}
	require.NoError(t, h.cache.Put(context.Background(), "u1", &api.SessionSnapshot{
		SceneCounter: 2,
		Scenes:       []api.SceneRecord{{ID: 2, Narrative: "cached"}},
	}))

	ok, err := h.store.LoadCached(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "cached", h.store.View().Scenes[0].Narrative)

	ok, err = h.store.LoadCached(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLogoutClearsLocalStateEvenWhenBackendFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	h := newTestStore(t, mux)
	h.store.state.Session = Session{Token: "tok", UserID: "u1", Username: "alice"}
	require.NoError(t, h.prefs.SaveIdentity(context.Background(), store.Identity{Token: "tok"}))

	h.store.Logout(context.Background())
	require.False(t, h.store.Authenticated())
	require.Empty(t, h.prefs.m[store.KeyAuthToken])
	require.Equal(t, 1, h.idp.signOuts)
}

func TestSaveIsBestEffort(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/story/save-session", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	h := newTestStore(t, mux)
	h.store.state.Session = Session{Token: "tok", UserID: "u1"}
	h.store.state.Scenes = []Scene{{ID: 1, Narrative: "keep me"}}

	h.store.Save(context.Background())
	require.Equal(t, "keep me", h.store.View().Scenes[0].Narrative)
}

func TestSaveSkippedWhenLoggedOut(t *testing.T) {
	h := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected while logged out")
	}))
	h.store.Save(context.Background())
}

func TestRehydrateRestoresIdentity(t *testing.T) {
	h := newTestStore(t, http.NewServeMux())
	require.NoError(t, h.prefs.SaveIdentity(context.Background(), store.Identity{
		Token: "tok", UserID: "u1", Username: "alice", DisplayName: "Alice",
	}))

	require.NoError(t, h.store.Rehydrate(context.Background()))
	sess := h.store.View().Session
	require.Equal(t, "tok", sess.Token)
	require.Equal(t, "Alice", sess.DisplayName)
}

func TestRehydrateWithoutTokenStaysLoggedOut(t *testing.T) {
	h := newTestStore(t, http.NewServeMux())
	require.NoError(t, h.store.Rehydrate(context.Background()))
	require.False(t, h.store.Authenticated())
}
