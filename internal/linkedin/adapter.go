// Package linkedin trades a LinkedIn authorization code for a backend
// session: token exchange, OIDC userinfo fetch, backend relay. Each hop
// either succeeds or the whole exchange fails; nothing is retried.
package linkedin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"

	"github.com/sumire/portal/internal/domain"
	"github.com/sumire/portal/internal/gateway"
)

const defaultUserInfoURL = "https://api.linkedin.com/v2/userinfo"

const (
	msgTokenExchange = "Failed to exchange LinkedIn auth code for access token"
	msgProfileFetch  = "Failed to fetch LinkedIn user profile"
	msgBackendRelay  = "Failed to process LinkedIn user data with backend"
)

// UpstreamError carries a failed hop's status and body so the handler can
// forward them unchanged.
type UpstreamError struct {
	StatusCode int
	Message    string
	Details    json.RawMessage

	// Backend is set when the identity backend, not LinkedIn, rejected the hop.
	Backend bool
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// Relay forwards a normalized LinkedIn profile to the identity backend.
type Relay interface {
	LinkedInSignup(ctx context.Context, profile gateway.LinkedInProfile) (json.RawMessage, error)
}

// Config holds the LinkedIn client credentials and endpoint overrides.
type Config struct {
	ClientID     string
	ClientSecret string

	// Overridable for tests.
	TokenURL    string
	UserInfoURL string

	Timeout    time.Duration
	HTTPClient *http.Client
}

// Adapter performs the LinkedIn authorization-code exchange.
type Adapter struct {
	cfg   Config
	relay Relay
	http  *http.Client
}

// NewAdapter creates a new Adapter.
func NewAdapter(cfg Config, relay Relay) *Adapter {
	if cfg.TokenURL == "" {
		cfg.TokenURL = linkedin.Endpoint.TokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultUserInfoURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Adapter{cfg: cfg, relay: relay, http: hc}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

type userInfo struct {
	Sub     string `json:"sub"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// Result is a completed exchange: the LinkedIn identity and the backend's
// response body, unmodified.
type Result struct {
	Profile domain.ProviderProfile
	Body    json.RawMessage
}

// Exchange runs the three hops and returns the backend body verbatim.
func (a *Adapter) Exchange(ctx context.Context, authCode, redirectURI string) (json.RawMessage, error) {
	res, err := a.SignIn(ctx, authCode, redirectURI)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

// SignIn runs the three hops and also returns the profile that was relayed.
//
// A failed hop yields *UpstreamError; transport or decoding failures are
// returned as plain errors.
func (a *Adapter) SignIn(ctx context.Context, authCode, redirectURI string) (*Result, error) {
	if authCode == "" || redirectURI == "" {
		return nil, fmt.Errorf("%w: missing authCode or redirectUri", domain.ErrInvalidInput)
	}

	accessToken, err := a.exchangeToken(ctx, authCode, redirectURI)
	if err != nil {
		return nil, err
	}

	info, err := a.fetchUserInfo(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	body, err := a.relay.LinkedInSignup(ctx, gateway.LinkedInProfile{
		ID:             info.Sub,
		Name:           info.Name,
		Email:          info.Email,
		ProfilePicture: info.Picture,
	})
	if err != nil {
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) {
			slog.Error("linkedin backend relay failed", "status", apiErr.StatusCode, "body", string(apiErr.Body))
			return nil, &UpstreamError{StatusCode: apiErr.StatusCode, Message: msgBackendRelay, Details: asJSON(apiErr.Body), Backend: true}
		}
		return nil, fmt.Errorf("relay linkedin profile: %w", err)
	}

	return &Result{
		Profile: domain.ProviderProfile{ID: info.Sub, Email: info.Email, Name: info.Name, Picture: info.Picture},
		Body:    body,
	}, nil
}

func (a *Adapter) exchangeToken(ctx context.Context, code, redirectURI string) (string, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {a.cfg.ClientID},
		"client_secret": {a.cfg.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("linkedin token request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}

	var tok tokenResponse
	_ = json.Unmarshal(raw, &tok)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || tok.AccessToken == "" {
		slog.Error("linkedin token exchange failed", "status", resp.StatusCode, "body", string(raw))
		return "", &UpstreamError{StatusCode: resp.StatusCode, Message: msgTokenExchange, Details: asJSON(raw)}
	}
	return tok.AccessToken, nil
}

func (a *Adapter) fetchUserInfo(ctx context.Context, accessToken string) (*userInfo, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.http)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create userinfo request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("linkedin userinfo request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read userinfo response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Error("linkedin profile fetch failed", "status", resp.StatusCode, "body", string(raw))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: msgProfileFetch, Details: asJSON(raw)}
	}

	var info userInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	return &info, nil
}

// asJSON keeps a valid JSON body as-is and quotes anything else.
func asJSON(raw []byte) json.RawMessage {
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	quoted, _ := json.Marshal(string(raw))
	return json.RawMessage(quoted)
}
