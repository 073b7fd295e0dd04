package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/redhat-et/script-archive/pkg/logger"
)

// OIDCConfig holds OIDC configuration
type OIDCConfig struct {
	IssuerURL       string        `mapstructure:"issuer_url"`
	ClientID        string        `mapstructure:"client_id"`
	ClientSecret    string        `mapstructure:"client_secret"`
	RedirectURL     string        `mapstructure:"redirect_url"`
	Enabled         bool          `mapstructure:"enabled"`
	SkipExpiryCheck bool          `mapstructure:"skip_expiry_check"` // For development with clock skew
	PostLogoutURL   string        `mapstructure:"post_logout_url"`   // Where to redirect after logout
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
}

// OIDCProvider wraps the OIDC provider and OAuth2 configuration
type OIDCProvider struct {
	oauth2Config  *oauth2.Config
	verifier      *oidc.IDTokenVerifier
	issuerURL     string
	clientID      string
	postLogoutURL string
}

// NewOIDCProvider creates a new OIDC provider
func NewOIDCProvider(ctx context.Context, cfg OIDCConfig) (*OIDCProvider, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	// Configure verifier - skip expiry check if there's clock skew (dev mode)
	verifier := provider.Verifier(&oidc.Config{
		ClientID:        cfg.ClientID,
		SkipExpiryCheck: cfg.SkipExpiryCheck,
	})

	postLogoutURL := cfg.PostLogoutURL
	if postLogoutURL == "" {
		postLogoutURL = origin(cfg.RedirectURL)
	}

	return &OIDCProvider{
		oauth2Config:  oauth2Config,
		verifier:      verifier,
		issuerURL:     cfg.IssuerURL,
		clientID:      cfg.ClientID,
		postLogoutURL: postLogoutURL,
	}, nil
}

// origin strips path, query and fragment from a URL
func origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host
}

// AuthCodeURL returns the URL to redirect the user for authentication
func (p *OIDCProvider) AuthCodeURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state)
}

// Exchange exchanges the authorization code for tokens
func (p *OIDCProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.oauth2Config.Exchange(ctx, code)
}

// Verify verifies the ID token and returns the parsed token
func (p *OIDCProvider) Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error) {
	return p.verifier.Verify(ctx, rawIDToken)
}

// VerifyAccount verifies a bearer ID token and returns its account.
func (p *OIDCProvider) VerifyAccount(ctx context.Context, rawIDToken string) (string, error) {
	idToken, err := p.Verify(ctx, rawIDToken)
	if err != nil {
		return "", fmt.Errorf("invalid ID token: %w", err)
	}
	claims, err := ExtractClaims(idToken)
	if err != nil {
		return "", err
	}
	return claims.Account(), nil
}

// LogoutURL returns the URL to redirect to for logging out of the OIDC provider
func (p *OIDCProvider) LogoutURL() string {
	q := url.Values{}
	q.Set("client_id", p.clientID)
	q.Set("post_logout_redirect_uri", p.postLogoutURL)
	return p.issuerURL + "/protocol/openid-connect/logout?" + q.Encode()
}

// Claims represents the claims extracted from the ID token
type Claims struct {
	Subject           string `json:"sub"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	Email             string `json:"email"`
}

// Account returns the claim used as script owner.
func (c *Claims) Account() string {
	s := Session{Subject: c.Subject, Username: c.PreferredUsername, Email: c.Email}
	return s.Account()
}

// ExtractClaims extracts claims from an ID token
func ExtractClaims(idToken *oidc.IDToken) (*Claims, error) {
	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to extract claims: %w", err)
	}
	return &claims, nil
}

// LoginHandlers serve the browser login flow.
type LoginHandlers struct {
	Provider *OIDCProvider
	Sessions *SessionStore
	States   *StateStore
	Log      *logger.Logger
}

// Login redirects to the identity provider.
func (h *LoginHandlers) Login(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.Provider.AuthCodeURL(h.States.GenerateState()), http.StatusFound)
}

// Callback completes the code flow and starts a session.
func (h *LoginHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	if !h.States.Validate(r.URL.Query().Get("state")) {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	token, err := h.Provider.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.Log.Error("Code exchange failed", "error", err)
		http.Error(w, "login failed", http.StatusUnauthorized)
		return
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		h.Log.Error("Token response has no id_token")
		http.Error(w, "login failed", http.StatusUnauthorized)
		return
	}
	claims, err := h.claims(r.Context(), rawIDToken)
	if err != nil {
		h.Log.Error("ID token rejected", "error", err)
		http.Error(w, "login failed", http.StatusUnauthorized)
		return
	}

	session := h.Sessions.Create(claims)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	h.Log.Success("Session connected", "account", session.Account())
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *LoginHandlers) claims(ctx context.Context, raw string) (*Claims, error) {
	idToken, err := h.Provider.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	claims, err := ExtractClaims(idToken)
	if err != nil {
		return nil, err
	}
	if claims.Account() == "" {
		return nil, errors.New("token carries no usable account claim")
	}
	return claims, nil
}

// Logout ends the session and redirects to the provider's logout endpoint.
func (h *LoginHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		h.Sessions.Delete(c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, h.Provider.LogoutURL(), http.StatusFound)
}
