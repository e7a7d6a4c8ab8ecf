package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sumire/portal/internal/domain"
	"github.com/sumire/portal/internal/gateway"
	"github.com/sumire/portal/internal/resolver"
	"github.com/sumire/portal/internal/session"
)

const (
	stateCookie    = "oauth_state"
	callbackCookie = "portal.callback-url"
)

// SignInProviders starts and completes OAuth provider flows.
type SignInProviders interface {
	AuthURL(provider domain.AuthProvider, state string) (string, error)
	GoogleCallback(ctx context.Context, code string) (domain.SignInEvent, error)
	LinkedInCallback(code string) domain.SignInEvent
}

// SignInReconciler turns sign-in events into session tokens.
type SignInReconciler interface {
	SignIn(ctx context.Context, event domain.SignInEvent, prior domain.Token) (domain.Token, error)
	Refresh(ctx context.Context, tok domain.Token) domain.Token
}

// BackendLogin performs a direct backend credentials login.
type BackendLogin interface {
	Login(ctx context.Context, email, password string) (*gateway.LoginResponse, error)
}

// HandoffURLs builds the companion application's callback URL.
type HandoffURLs interface {
	HandoffURL(userID, token string) string
}

// AuthConfig holds the settings AuthHandler needs.
type AuthConfig struct {
	BaseURL string
	Routes  session.Routes
}

// AuthHandler handles sign-in, session and sign-out endpoints.
type AuthHandler struct {
	providers  SignInProviders
	reconciler SignInReconciler
	sessions   *Sessions
	backend    BackendLogin
	handoff    HandoffURLs
	cfg        AuthConfig
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(providers SignInProviders, reconciler SignInReconciler, sessions *Sessions, backend BackendLogin, handoff HandoffURLs, cfg AuthConfig) *AuthHandler {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &AuthHandler{
		providers:  providers,
		reconciler: reconciler,
		sessions:   sessions,
		backend:    backend,
		handoff:    handoff,
		cfg:        cfg,
	}
}

// SignIn redirects the user to the provider's consent page.
func (h *AuthHandler) SignIn(c echo.Context) error {
	provider := domain.AuthProvider(c.Param("provider"))
	if !provider.Federated() {
		return fmt.Errorf("%w: unknown provider %q", domain.ErrNotFound, provider)
	}

	state, err := generateState()
	if err != nil {
		return err
	}
	authURL, err := h.providers.AuthURL(provider, state)
	if err != nil {
		return err
	}

	h.setShortCookie(c, stateCookie, state)
	if cb := c.QueryParam("callbackUrl"); cb != "" {
		h.setShortCookie(c, callbackCookie, cb)
	}
	return c.Redirect(http.StatusTemporaryRedirect, authURL)
}

// Callback completes a provider flow, reconciles the session and redirects.
func (h *AuthHandler) Callback(c echo.Context) error {
	provider := domain.AuthProvider(c.Param("provider"))
	if !provider.Federated() {
		return fmt.Errorf("%w: unknown provider %q", domain.ErrNotFound, provider)
	}
	if err := validateOAuthState(c.Request()); err != nil {
		slog.Warn("oauth callback rejected", "provider", provider, "error", err)
		return h.loginWithError(c, domain.ErrCodeOAuthProcessingError)
	}
	h.clearCookie(c, stateCookie)

	ctx := c.Request().Context()
	code := c.QueryParam("code")

	var event domain.SignInEvent
	switch provider {
	case domain.AuthProviderGoogle:
		if code == "" {
			return h.loginWithError(c, domain.ErrCodeOAuthProcessingError)
		}
		ev, err := h.providers.GoogleCallback(ctx, code)
		if err != nil {
			slog.Error("google callback failed", "error", err)
			return h.loginWithError(c, domain.ErrCodeOAuthProcessingError)
		}
		event = ev
	case domain.AuthProviderLinkedIn:
		event = h.providers.LinkedInCallback(code)
	}

	prior, _ := CurrentToken(c)
	tok, err := h.reconciler.SignIn(ctx, event, prior)
	if err != nil {
		return err
	}
	if err := h.sessions.Issue(c, tok); err != nil {
		return err
	}

	target := h.cfg.BaseURL
	if cb, err := c.Cookie(callbackCookie); err == nil && cb.Value != "" {
		target = cb.Value
		h.clearCookie(c, callbackCookie)
	}
	return c.Redirect(http.StatusFound, h.cfg.Routes.Redirect(target, h.cfg.BaseURL, tok))
}

type credentialsRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	CallbackURL string `json:"callbackUrl"`
}

// Credentials signs in with email and password. A rejected login is
// reported directly and leaves any existing session untouched.
func (h *AuthHandler) Credentials(c echo.Context) error {
	var req credentialsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	prior, _ := CurrentToken(c)
	tok, err := h.reconciler.SignIn(c.Request().Context(), domain.CredentialsSignIn(req.Email, req.Password), prior)
	if err != nil {
		return err
	}
	if err := h.sessions.Issue(c, tok); err != nil {
		return err
	}

	target := req.CallbackURL
	if target == "" {
		target = h.cfg.BaseURL
	}
	return JSON(c, http.StatusOK, map[string]any{
		"url":     h.cfg.Routes.Redirect(target, h.cfg.BaseURL, tok),
		"session": session.Project(tok),
	})
}

// Session returns the current session projection, or an empty body when
// unauthenticated.
func (h *AuthHandler) Session(c echo.Context) error {
	tok, ok := CurrentToken(c)
	if !ok {
		return JSON(c, http.StatusOK, nil)
	}
	return JSON(c, http.StatusOK, session.Project(tok))
}

// SignOut destroys the session and the stored backend token.
func (h *AuthHandler) SignOut(c echo.Context) error {
	h.sessions.Clear(c)
	resolver.NewCookieStorage(c.Response(), c.Request(), h.sessions.Secure()).Clear()
	return JSON(c, http.StatusOK, map[string]string{"url": h.cfg.BaseURL + h.cfg.Routes.Login})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login performs a direct backend login and returns the companion
// application handoff URL.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	resp, err := h.backend.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	userID := resp.CanonicalUserID()
	if !resp.Success || resp.Token == "" || userID == "" {
		slog.Warn("backend login unsuccessful", "email", req.Email, "message", resp.Message)
		return domain.ErrInvalidCredentials
	}

	resolver.NewCookieStorage(c.Response(), c.Request(), h.sessions.Secure()).SetToken(resp.Token)
	return JSON(c, http.StatusOK, map[string]string{
		"userId": userID,
		"url":    h.handoff.HandoffURL(userID, resp.Token),
	})
}

func (h *AuthHandler) loginWithError(c echo.Context, code domain.ErrorCode) error {
	return c.Redirect(http.StatusFound, h.cfg.BaseURL+h.cfg.Routes.Login+"?error="+url.QueryEscape(string(code)))
}

func (h *AuthHandler) setShortCookie(c echo.Context, name, value string) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.sessions.Secure(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600,
	})
}

func (h *AuthHandler) clearCookie(c echo.Context, name string) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.sessions.Secure(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// readRandom is swapped in tests.
var readRandom = rand.Read

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := readRandom(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func validateOAuthState(r *http.Request) error {
	cookie, err := r.Cookie(stateCookie)
	if err != nil {
		return fmt.Errorf("missing oauth_state cookie")
	}

	queryState := r.URL.Query().Get("state")
	if queryState == "" || queryState != cookie.Value {
		return fmt.Errorf("state mismatch")
	}

	return nil
}
