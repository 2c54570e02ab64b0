package session

import (
	"context"
	"strings"

	"storycanvas/internal/api"
	"storycanvas/internal/provider"
	"storycanvas/internal/store"
)

// AuthResult is the union of login outcomes. Exactly one branch is set;
// both feed the same reducer so every sign-in path updates the session
// identically.
type AuthResult struct {
	Password *api.AuthResponse
	Provider *api.FirebaseExchangeResponse
	// Hint carries the identity provider's profile fields, used when the
	// backend response omits them.
	Hint *provider.Identity
}

// reduceAuth folds an auth result into a session. Per-field precedence:
// backend response, then provider hint, then whatever was already set.
func reduceAuth(prev Session, r AuthResult) Session {
	next := prev
	switch {
	case r.Password != nil:
		next.Token = pick(r.Password.Token, prev.Token)
		next.UserID = pick(r.Password.UserID, prev.UserID)
		next.Username = pick(r.Password.Username, prev.Username)
	case r.Provider != nil:
		resp := r.Provider
		next.Token = pick(resp.Token, prev.Token)
		next.UserID = pick(resp.UserID, prev.UserID)
		next.Username = pick(resp.Username, prev.Username)
		next.DisplayName = pick(resp.DisplayName, prev.DisplayName)
		next.Avatar = pick(resp.Avatar, prev.Avatar)
		if u := resp.User; u != nil {
			next.UserID = pick(next.UserID, u.ID)
			next.Username = pick(next.Username, u.Username, u.Email)
			next.DisplayName = pick(next.DisplayName, u.DisplayName, u.Name)
			next.Avatar = pick(next.Avatar, u.Avatar, u.Picture)
		}
		if h := r.Hint; h != nil {
			next.Username = pick(next.Username, h.Email)
			next.DisplayName = pick(next.DisplayName, h.DisplayName)
			next.Avatar = pick(next.Avatar, h.Photo)
			next.UserID = pick(next.UserID, h.UID)
		}
	}
	return next
}

// pick returns the first non-empty value.
func pick(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Login signs in with username and password.
func (s *Store) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return &ValidationError{Reason: "username and password are required"}
	}
	if len(username) < 3 {
		return &ValidationError{Reason: "username must be at least 3 characters"}
	}
	resp, err := s.api.Login(ctx, username, password)
	if err != nil {
		return err
	}
	return s.applyAuth(ctx, AuthResult{Password: resp})
}

// Register creates an account and immediately logs in with the same
// credentials.
func (s *Store) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if len(username) < 3 {
		return &ValidationError{Reason: "username must be at least 3 characters"}
	}
	if len(password) < 6 {
		return &ValidationError{Reason: "password must be at least 6 characters"}
	}
	if _, err := s.api.Register(ctx, username, password); err != nil {
		return err
	}
	resp, err := s.api.Login(ctx, username, password)
	if err != nil {
		return err
	}
	return s.applyAuth(ctx, AuthResult{Password: resp})
}

// SignInWithGoogle runs the provider flow and exchanges the resulting ID
// token for a backend session.
func (s *Store) SignInWithGoogle(ctx context.Context) error {
	if s.provider == nil {
		return &ValidationError{Reason: "google sign-in is not configured"}
	}
	ident, err := s.provider.SignIn(ctx)
	if err != nil {
		return err
	}
	hint := &api.FirebaseUserHint{
		Email:       ident.Email,
		DisplayName: ident.DisplayName,
		Picture:     ident.Photo,
		UID:         ident.UID,
	}
	resp, err := s.api.ExchangeFirebase(ctx, ident.IDToken, hint)
	if err != nil {
		return err
	}
	return s.applyAuth(ctx, AuthResult{Provider: resp, Hint: ident})
}

// applyAuth commits the reduced session and persists it. Every sign-in
// path ends here, so the UI observes exactly one authenticated signal.
func (s *Store) applyAuth(ctx context.Context, r AuthResult) error {
	s.mu.Lock()
	s.state.Session = reduceAuth(s.state.Session, r)
	sess := s.state.Session
	s.mu.Unlock()

	if sess.Token == "" {
		s.log.Warn().Msg("auth response carried no token")
	}
	err := s.prefs.SaveIdentity(ctx, store.Identity{
		Token:       sess.Token,
		UserID:      sess.UserID,
		Username:    sess.Username,
		DisplayName: sess.DisplayName,
		Avatar:      sess.Avatar,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to persist identity")
	}
	return nil
}
