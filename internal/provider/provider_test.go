package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"storycanvas/internal/util"
)

func TestNewGoogleRequiresConfig(t *testing.T) {
	_, err := NewGoogle(util.Config{}, zerolog.Nop())
	require.Error(t, err)

	_, err = NewGoogle(util.Config{GoogleClientID: "id"}, zerolog.Nop())
	require.Error(t, err)

	g, err := NewGoogle(util.Config{GoogleClientID: "id", FirebaseAPIKey: "key"}, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, g)
}

func TestSignInWithIdpParsesProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "key", r.URL.Query().Get("key"))
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Contains(t, req["postBody"], "id_token=google-token")
		require.Contains(t, req["postBody"], "providerId=google.com")
		json.NewEncoder(w).Encode(map[string]any{
			"idToken":     "fb-token",
			"localId":     "uid-1",
			"email":       "user@example.com",
			"displayName": "User",
			"photoUrl":    "http://photo",
		})
	}))
	defer srv.Close()

	g, err := NewGoogle(util.Config{GoogleClientID: "id", FirebaseAPIKey: "key"}, zerolog.Nop())
	require.NoError(t, err)
	g.identityEndpoint = srv.URL

	ident, err := g.signInWithIdp(context.Background(), "google-token")
	require.NoError(t, err)
	require.Equal(t, "fb-token", ident.IDToken)
	require.Equal(t, "uid-1", ident.UID)
	require.Equal(t, "user@example.com", ident.Email)
	require.Equal(t, "User", ident.DisplayName)
	require.Equal(t, "http://photo", ident.Photo)
}

func TestSignInWithIdpSurfacesFirebaseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "INVALID_IDP_RESPONSE"},
		})
	}))
	defer srv.Close()

	g, err := NewGoogle(util.Config{GoogleClientID: "id", FirebaseAPIKey: "key"}, zerolog.Nop())
	require.NoError(t, err)
	g.identityEndpoint = srv.URL

	_, err = g.signInWithIdp(context.Background(), "bad-token")
	require.Error(t, err)
	require.Contains(t, err.Error(), "INVALID_IDP_RESPONSE")
}

func TestRandomStateIsUnique(t *testing.T) {
	a, err := randomState()
	require.NoError(t, err)
	b, err := randomState()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.NotEmpty(t, a)
}
