package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"chatrelay/internal/app"
	"chatrelay/internal/util"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateTTL    = 10 * time.Minute
)

// GoogleOAuth performs the authorization-code flow against Google.
type GoogleOAuth struct {
	config      *oauth2.Config
	userinfoURL string
	httpClient  *http.Client
}

// GoogleOAuthConfig configures the federated login flow.
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Endpoint and UserinfoURL default to Google's; overridable in tests.
	Endpoint    *oauth2.Endpoint
	UserinfoURL string
}

// NewGoogleOAuth builds the flow helper. Returns nil when the client id is
// empty so federated login can be left unconfigured.
func NewGoogleOAuth(cfg GoogleOAuthConfig) *GoogleOAuth {
	if cfg.ClientID == "" {
		return nil
	}
	endpoint := google.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	userinfoURL := cfg.UserinfoURL
	if userinfoURL == "" {
		userinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	}
	return &GoogleOAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
		userinfoURL: userinfoURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *GoogleOAuth) authURL(state string) string {
	return g.config.AuthCodeURL(state)
}

// fetchProfile exchanges the code and loads the userinfo payload.
func (g *GoogleOAuth) fetchProfile(ctx context.Context, code string) (app.GoogleProfile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return app.GoogleProfile{}, fmt.Errorf("exchange code: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userinfoURL, nil)
	if err != nil {
		return app.GoogleProfile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return app.GoogleProfile{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return app.GoogleProfile{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}
	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return app.GoogleProfile{}, fmt.Errorf("decode userinfo: %w", err)
	}
	profile := app.GoogleProfile{Raw: raw}
	profile.Subject, _ = raw["sub"].(string)
	profile.Email, _ = raw["email"].(string)
	profile.Name, _ = raw["name"].(string)
	return profile, nil
}

func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.google == nil {
		writeError(w, http.StatusNotImplemented, "google login not configured")
		return
	}
	state := newOAuthState()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.google.authURL(state), http.StatusFound)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.google == nil {
		writeError(w, http.StatusNotImplemented, "google login not configured")
		return
	}
	logger := util.LoggerFromContext(r.Context())
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		writeError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}
	// One-shot state: clear the cookie regardless of outcome.
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/auth/google",
		MaxAge:   -1,
		HttpOnly: true,
	})
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing code")
		return
	}
	profile, err := s.google.fetchProfile(r.Context(), code)
	if err != nil {
		logger.Warn("google login failed", "error", err)
		writeError(w, http.StatusBadGateway, "google login failed")
		return
	}
	_, token, err := s.app.LoginWithGoogle(profile)
	if err != nil {
		logger.Error("federated account login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	redirect := s.frontendOrigin + "/auth/success?token=" + url.QueryEscape(token)
	http.Redirect(w, r, redirect, http.StatusFound)
}

func newOAuthState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
