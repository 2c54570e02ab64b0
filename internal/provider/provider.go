// Package provider implements the third-party identity side of sign-in:
// a loopback OAuth flow against Google, exchanged through the Firebase
// Identity Toolkit for the ID token the backend accepts.
package provider

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"storycanvas/internal/util"
)

// Identity is what a completed provider sign-in yields: the token the
// backend exchange wants plus profile hints for field fallback.
type Identity struct {
	IDToken     string
	UID         string
	Email       string
	DisplayName string
	Photo       string

	refreshToken string
}

// Provider abstracts the identity provider so the auth bridge and tests
// do not depend on a live browser flow.
type Provider interface {
	SignIn(ctx context.Context) (*Identity, error)
	SignOut(ctx context.Context) error
}

const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"
	googleRevoke   = "https://oauth2.googleapis.com/revoke"
	identityURL    = "https://identitytoolkit.googleapis.com/v1/accounts:signInWithIdp"
)

// Google signs in through a loopback redirect: the terminal counterpart
// of the web client's popup, with the same backend-facing result.
type Google struct {
	clientID     string
	clientSecret string
	apiKey       string
	log          zerolog.Logger
	http         *http.Client

	// OpenURL launches the user's browser; replaceable in tests.
	OpenURL func(url string) error

	identityEndpoint string

	lastToken *oauth2.Token
}

func NewGoogle(cfg util.Config, logger zerolog.Logger) (*Google, error) {
	if cfg.GoogleClientID == "" || cfg.FirebaseAPIKey == "" {
		return nil, errors.New("google sign-in not configured")
	}
	return &Google{
		clientID:         cfg.GoogleClientID,
		clientSecret:     cfg.GoogleClientSecret,
		apiKey:           cfg.FirebaseAPIKey,
		log:              logger.With().Str("component", "provider").Logger(),
		http:             &http.Client{Timeout: 30 * time.Second},
		OpenURL:          openBrowser,
		identityEndpoint: identityURL,
	}, nil
}

// SignIn runs the loopback code flow and exchanges the Google ID token
// for a Firebase one.
func (g *Google) SignIn(ctx context.Context) (*Identity, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, errors.Wrap(err, "open loopback listener")
	}
	defer listener.Close()

	conf := &oauth2.Config{
		ClientID:     g.clientID,
		ClientSecret: g.clientSecret,
		RedirectURL:  fmt.Sprintf("http://%s/callback", listener.Addr().String()),
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     oauth2.Endpoint{AuthURL: googleAuthURL, TokenURL: googleTokenURL},
	}

	state, err := randomState()
	if err != nil {
		return nil, err
	}
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errCh <- errors.New("oauth state mismatch")
			return
		}
		if msg := r.URL.Query().Get("error"); msg != "" {
			http.Error(w, msg, http.StatusBadRequest)
			errCh <- errors.Errorf("sign-in failed: %s", msg)
			return
		}
		fmt.Fprintln(w, "Signed in. You can close this tab and return to storycanvas.")
		codeCh <- r.URL.Query().Get("code")
	})}
	go srv.Serve(listener)
	defer srv.Close()

	// prompt=select_account forces the account picker every time.
	authURL := conf.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
	if err := g.OpenURL(authURL); err != nil {
		g.log.Warn().Err(err).Msg("could not open browser; visit the URL manually")
	}
	g.log.Info().Str("url", authURL).Msg("waiting for sign-in redirect")

	var code string
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errCh:
		return nil, err
	case code = <-codeCh:
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "exchange authorization code")
	}
	g.lastToken = tok
	rawID, _ := tok.Extra("id_token").(string)
	if rawID == "" {
		return nil, errors.New("no id_token in Google response")
	}
	return g.signInWithIdp(ctx, rawID)
}

// signInWithIdp mints a Firebase ID token from the Google one.
func (g *Google) signInWithIdp(ctx context.Context, googleIDToken string) (*Identity, error) {
	body, err := json.Marshal(map[string]any{
		"postBody":            fmt.Sprintf("id_token=%s&providerId=google.com", googleIDToken),
		"requestUri":          "http://localhost",
		"returnIdpCredential": true,
		"returnSecureToken":   true,
	})
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s?key=%s", g.identityEndpoint, url.QueryEscape(g.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "identity toolkit request")
	}
	defer resp.Body.Close()

	var out struct {
		IDToken      string `json:"idToken"`
		RefreshToken string `json:"refreshToken"`
		LocalID      string `json:"localId"`
		Email        string `json:"email"`
		DisplayName  string `json:"displayName"`
		PhotoURL     string `json:"photoUrl"`
		Error        *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode identity toolkit response")
	}
	if resp.StatusCode != http.StatusOK || out.Error != nil {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if out.Error != nil {
			msg = out.Error.Message
		}
		return nil, errors.Errorf("firebase sign-in failed: %s", msg)
	}
	return &Identity{
		IDToken:      out.IDToken,
		UID:          out.LocalID,
		Email:        out.Email,
		DisplayName:  out.DisplayName,
		Photo:        out.PhotoURL,
		refreshToken: out.RefreshToken,
	}, nil
}

// SignOut revokes the Google token. Best-effort: local cleanup proceeds
// regardless of the result.
func (g *Google) SignOut(ctx context.Context) error {
	if g.lastToken == nil {
		return nil
	}
	tok := g.lastToken
	g.lastToken = nil
	form := url.Values{"token": {tok.AccessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, googleRevoke, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func openBrowser(target string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", target).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target).Start()
	default:
		return exec.Command("xdg-open", target).Start()
	}
}
