package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	googleOAuth "golang.org/x/oauth2/google"
	"golang.org/x/oauth2/linkedin"

	"github.com/sumire/portal/internal/domain"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// ProviderConfig holds OAuth client configuration.
type ProviderConfig struct {
	GoogleClientID       string
	GoogleClientSecret   string
	LinkedInClientID     string
	LinkedInClientSecret string
	BaseURL              string

	// Overridable for tests.
	GoogleEndpoint    oauth2.Endpoint
	GoogleUserInfoURL string
	HTTPClient        *http.Client
}

// Providers builds authorization URLs and completes provider callbacks.
type Providers struct {
	baseURL     string
	google      *oauth2.Config
	linkedin    *oauth2.Config
	userInfoURL string
	http        *http.Client
}

// NewProviders creates a new Providers.
func NewProviders(cfg ProviderConfig) *Providers {
	base := strings.TrimRight(cfg.BaseURL, "/")
	endpoint := cfg.GoogleEndpoint
	if endpoint.TokenURL == "" {
		endpoint = googleOAuth.Endpoint
	}
	userInfo := cfg.GoogleUserInfoURL
	if userInfo == "" {
		userInfo = googleUserInfoURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}

	return &Providers{
		baseURL: base,
		google: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "profile", "email"},
			RedirectURL:  base + "/api/auth/callback/google",
		},
		linkedin: &oauth2.Config{
			ClientID:     cfg.LinkedInClientID,
			ClientSecret: cfg.LinkedInClientSecret,
			Endpoint:     linkedin.Endpoint,
			Scopes:       []string{"openid", "profile", "email"},
			RedirectURL:  base + "/api/auth/callback/linkedin",
		},
		userInfoURL: userInfo,
		http:        hc,
	}
}

// AuthURL returns the authorization URL for provider.
func (p *Providers) AuthURL(provider domain.AuthProvider, state string) (string, error) {
	switch provider {
	case domain.AuthProviderGoogle:
		return p.google.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
	case domain.AuthProviderLinkedIn:
		return p.linkedin.AuthCodeURL(state), nil
	default:
		return "", fmt.Errorf("%w: unsupported provider %q", domain.ErrInvalidInput, provider)
	}
}

// RedirectURI is the callback URI registered for provider. LinkedIn requires
// the exact same value at token exchange.
func (p *Providers) RedirectURI(provider domain.AuthProvider) string {
	return p.baseURL + "/api/auth/callback/" + string(provider)
}

// GoogleCallback exchanges the authorization code and returns the sign-in
// event carrying the id-token and the Google profile. A response without an
// id_token still yields an event; reconciliation classifies it.
func (p *Providers) GoogleCallback(ctx context.Context, code string) (domain.SignInEvent, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.http)

	token, err := p.google.Exchange(ctx, code)
	if err != nil {
		return domain.SignInEvent{}, fmt.Errorf("google token exchange: %w", err)
	}

	info, err := p.fetchGoogleUserInfo(ctx, token)
	if err != nil {
		return domain.SignInEvent{}, fmt.Errorf("fetch google user info: %w", err)
	}

	idToken, _ := token.Extra("id_token").(string)
	return domain.GoogleSignIn(idToken, domain.ProviderProfile{
		ID:      info.ID,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}), nil
}

// LinkedInCallback returns the sign-in event for a LinkedIn code. The
// profile is filled in by the exchange.
func (p *Providers) LinkedInCallback(code string) domain.SignInEvent {
	return domain.LinkedInSignIn(code, p.RedirectURI(domain.AuthProviderLinkedIn), domain.ProviderProfile{})
}

type googleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (p *Providers) fetchGoogleUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.google.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google user info returned status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return &info, nil
}
